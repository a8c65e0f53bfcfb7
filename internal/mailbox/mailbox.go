package mailbox

import (
	"context"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// Source 邮箱读取接口。
// Search 按查询表达式取回最多 max 封未处理邮件；
// MarkHandled 在一封邮件完成处理后把它标记为已读。
type Source interface {
	Search(ctx context.Context, query string, max int) ([]*domain.Message, error)
	MarkHandled(ctx context.Context, messageID string) error
}

package archiver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// Screener 附件安全筛查器。未通过筛查的附件不写入存储，
// 以"跳过"结果上报（通知中以 ⚠️ 标注原因）。
type Screener struct {
	maxSize             int64
	dangerousExtensions map[string]bool
}

// NewScreener 创建筛查器
//
// 参数:
//   - maxSize: 单附件大小上限（字节），0 表示不限制
func NewScreener(maxSize int64) *Screener {
	return &Screener{
		maxSize: maxSize,
		dangerousExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".pif": true,
			".com": true,
			".vbs": true,
			".js":  true,
			".jar": true,
		},
	}
}

// Screen 检查附件是否可归档，不通过时返回原因
func (s *Screener) Screen(att *domain.Attachment) (ok bool, reason string) {
	ext := strings.ToLower(filepath.Ext(att.Name))
	if s.dangerousExtensions[ext] {
		return false, fmt.Sprintf("dangerous file extension %s", ext)
	}

	if s.maxSize > 0 && att.Size > s.maxSize {
		return false, fmt.Sprintf("size %d exceeds limit %d", att.Size, s.maxSize)
	}

	return true, ""
}

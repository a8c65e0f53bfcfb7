package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// GmailSource 基于 Gmail API 的邮箱适配器
type GmailSource struct {
	svc    *gmail.Service
	logger *zap.Logger
}

// NewGmailSource 用 OAuth 凭据文件和已授权的令牌文件创建 Gmail 适配器
func NewGmailSource(ctx context.Context, credentialsFile, tokenFile string, logger *zap.Logger) (*GmailSource, error) {
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(credentials, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	token, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &GmailSource{
		svc:    svc,
		logger: logger,
	}, nil
}

// loadToken 读取已授权的用户令牌
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}

// Search 按查询表达式取回最多 max 封未读邮件。
// 查询追加 is:unread，避免重复取回已处理的邮件。
func (s *GmailSource) Search(ctx context.Context, query string, max int) ([]*domain.Message, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		q = "is:unread"
	} else if !strings.Contains(q, "is:unread") {
		q = q + " is:unread"
	}

	call := s.svc.Users.Messages.List("me").Q(q)
	if max > 0 {
		call = call.MaxResults(int64(max))
	}

	listed, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*domain.Message, 0, len(listed.Messages))
	for _, stub := range listed.Messages {
		full, err := s.svc.Users.Messages.Get("me", stub.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch message %s: %w", stub.Id, err)
		}
		messages = append(messages, s.convert(ctx, full))
	}

	s.logger.Debug("mailbox search completed",
		zap.String("query", q),
		zap.Int("fetched", len(messages)),
	)
	return messages, nil
}

// MarkHandled 移除 UNREAD 标签，把邮件标记为已处理
func (s *GmailSource) MarkHandled(ctx context.Context, messageID string) error {
	_, err := s.svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to mark message handled: %w", err)
	}
	return nil
}

// convert 把 Gmail API 的报文还原为内部邮件表示
func (s *GmailSource) convert(ctx context.Context, raw *gmail.Message) *domain.Message {
	msg := &domain.Message{
		ID:         raw.Id,
		ThreadID:   raw.ThreadId,
		ReceivedAt: time.UnixMilli(raw.InternalDate),
	}

	if raw.Payload == nil {
		return msg
	}

	for _, header := range raw.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			msg.Subject = header.Value
		case "from":
			msg.Sender = header.Value
		}
	}

	msg.BodyText = extractBody(raw.Payload)

	for _, part := range collectParts(raw.Payload) {
		if part.Filename == "" || part.Body == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, s.lazyAttachment(ctx, raw.Id, part))
	}

	return msg
}

// lazyAttachment 构造延迟加载的附件。
// 内容在归档时才经 Attachments.Get 取回，未归档的邮件不产生下载流量。
func (s *GmailSource) lazyAttachment(ctx context.Context, messageID string, part *gmail.MessagePart) *domain.Attachment {
	attachmentID := part.Body.AttachmentId
	inlineData := part.Body.Data

	return &domain.Attachment{
		Name: part.Filename,
		Size: part.Body.Size,
		Open: func() ([]byte, error) {
			if inlineData != "" {
				return base64.URLEncoding.DecodeString(inlineData)
			}
			body, err := s.svc.Users.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
			if err != nil {
				return nil, fmt.Errorf("failed to fetch attachment: %w", err)
			}
			return base64.URLEncoding.DecodeString(body.Data)
		},
	}
}

// extractBody 提取纯文本正文，优先 text/plain 部分
func extractBody(payload *gmail.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" && strings.HasPrefix(payload.MimeType, "text/plain") {
		return decodeBody(payload.Body.Data)
	}

	for _, part := range collectParts(payload) {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
	}
	for _, part := range collectParts(payload) {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
	}
	return ""
}

// decodeBody 解码 base64url 编码的正文，解码失败返回空串
func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// collectParts 深度优先展开多层 multipart 结构
func collectParts(payload *gmail.MessagePart) []*gmail.MessagePart {
	var parts []*gmail.MessagePart
	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		for _, child := range p.Parts {
			parts = append(parts, child)
			walk(child)
		}
	}
	walk(payload)
	return parts
}

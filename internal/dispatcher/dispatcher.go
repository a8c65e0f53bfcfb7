package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// 默认阈值。预览阈值内的正文整体展示在主通知里，
// 超过时主通知只放前缀，剩余正文完整地以续篇分块发出。
const (
	DefaultPreviewLimit = 500
	DefaultChunkSize    = 3000
	DefaultMessageDelay = time.Second
)

// Config 投递配置
type Config struct {
	Channel      string        // 目标频道
	PreviewLimit int           // 主通知中的正文预览字符数
	ChunkSize    int           // 续篇分块的字符数上限
	MessageDelay time.Duration // 连续投递之间的固定间隔（对外速率限制）
}

// withDefaults 填充零值字段
func (c Config) withDefaults() Config {
	if c.PreviewLimit <= 0 {
		c.PreviewLimit = DefaultPreviewLimit
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MessageDelay <= 0 {
		c.MessageDelay = DefaultMessageDelay
	}
	return c
}

// Dispatcher 把一封已分类邮件转换为一条或多条有序投递：
// 主通知先行，正文续篇按原文顺序居中，附件汇总殿后。
// bot 模式下续篇挂入主通知的线程；线程句柄缺失时退回逐条顶层发送。
type Dispatcher struct {
	transport domain.ChatTransport
	limiter   *rate.Limiter
	cfg       Config
	logger    *zap.Logger
}

// New 创建投递器
func New(transport domain.ChatTransport, cfg Config, logger *zap.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Every(cfg.MessageDelay), 1),
		cfg:       cfg,
		logger:    logger,
	}
}

// Dispatch 投递一封邮件的通知。
//
// 主通知失败时整次投递视为失败返回错误；续篇或附件汇总的失败
// 只记录日志并计入 UnitsFailed，已发出的消息不回滚。
func (d *Dispatcher) Dispatch(ctx context.Context, msg *domain.Message, cls domain.ClassificationResult, archived []domain.ArchiveResult) (domain.DeliveryOutcome, error) {
	outcome := domain.DeliveryOutcome{}

	preview, rest := splitPreview(msg.BodyText, d.cfg.PreviewLimit)

	primary := domain.DispatchUnit{
		Channel: d.cfg.Channel,
		Body:    d.buildPrimaryBody(msg, cls, archived, preview, rest != ""),
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return outcome, fmt.Errorf("%w: %v", domain.ErrDispatchPrimary, err)
	}
	thread, err := d.transport.PostMessage(ctx, primary)
	if err != nil {
		d.logger.Error("primary notification delivery failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return outcome, fmt.Errorf("%w: %v", domain.ErrDispatchPrimary, err)
	}
	outcome.PrimarySent = true
	outcome.UnitsSent = 1
	outcome.Thread = thread

	// bot 模式返回线程句柄时后续消息嵌套其下；
	// webhook 模式或句柄缺失时退回逐条顶层发送，绝不中止
	if d.transport.Mode() != domain.TransportBot || thread == "" {
		thread = ""
	}

	var followups []domain.DispatchUnit
	for i, chunk := range splitChunks(rest, d.cfg.ChunkSize) {
		followups = append(followups, domain.DispatchUnit{
			Channel: d.cfg.Channel,
			Body:    fmt.Sprintf("（続き %d）\n%s", i+1, chunk),
			Thread:  thread,
		})
	}
	if summary := d.buildArchiveSummary(archived); summary != "" {
		followups = append(followups, domain.DispatchUnit{
			Channel: d.cfg.Channel,
			Body:    summary,
			Thread:  thread,
		})
	}

	for _, unit := range followups {
		if err := d.limiter.Wait(ctx); err != nil {
			d.logger.Warn("delivery pacing interrupted", zap.Error(err))
			outcome.UnitsFailed++
			continue
		}
		if _, err := d.transport.PostMessage(ctx, unit); err != nil {
			outcome.UnitsFailed++
			d.logger.Warn("follow-up delivery failed",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		outcome.UnitsSent++
	}

	return outcome, nil
}

// buildPrimaryBody 组装主通知正文
func (d *Dispatcher) buildPrimaryBody(msg *domain.Message, cls domain.ClassificationResult, archived []domain.ArchiveResult, preview string, truncated bool) string {
	var b strings.Builder

	b.WriteString("📧 *新着メール通知*\n")
	fmt.Fprintf(&b, "*件名:* %s\n", msg.Subject)
	fmt.Fprintf(&b, "*差出人:* %s\n", msg.Sender)
	fmt.Fprintf(&b, "*受信時刻:* %s\n", msg.ReceivedAt.Format("2006-01-02 15:04"))
	if cls.MatchedPattern != "" {
		fmt.Fprintf(&b, "*一致パターン:* `%s`\n", cls.MatchedPattern)
	}

	if preview != "" {
		b.WriteString("\n")
		b.WriteString(preview)
		if truncated {
			b.WriteString("\n…（続きはスレッドへ）")
		}
		b.WriteString("\n")
	}

	if len(archived) > 0 {
		b.WriteString("\n*添付ファイル:*\n")
		for _, r := range archived {
			switch r.Status {
			case domain.ArchiveOK:
				if r.File != nil && r.File.URL != "" {
					fmt.Fprintf(&b, "✅ <%s|%s>\n", r.File.URL, r.StoredName)
				} else {
					fmt.Fprintf(&b, "✅ %s\n", r.StoredName)
				}
			case domain.ArchiveSkipped:
				fmt.Fprintf(&b, "⚠️ %s（%s）\n", r.OriginalName, r.Reason)
			default:
				fmt.Fprintf(&b, "❌ %s（%s）\n", r.OriginalName, r.Reason)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// buildArchiveSummary 组装附件汇总消息。
// 归档成功数为零时返回空串（不发该消息）。
func (d *Dispatcher) buildArchiveSummary(archived []domain.ArchiveResult) string {
	seen := make(map[string]bool)
	var lines []string
	for _, r := range archived {
		if r.Status != domain.ArchiveOK || r.Folder == nil {
			continue
		}
		if seen[r.Folder.Name] {
			continue
		}
		seen[r.Folder.Name] = true
		if r.Folder.URL != "" {
			lines = append(lines, fmt.Sprintf("📁 <%s|%s>", r.Folder.URL, r.Folder.Name))
		} else {
			lines = append(lines, fmt.Sprintf("📁 %s", r.Folder.Name))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "*保存先フォルダ:*\n" + strings.Join(lines, "\n")
}

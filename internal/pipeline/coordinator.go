package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/archiver"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/classifier"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/dispatcher"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/ledger"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/monitoring"
)

// State 单封邮件的处理状态。
// 状态机: UNSEEN -> CLASSIFYING -> (SKIPPED | ARCHIVING) -> NOTIFYING -> RECORDED
type State string

const (
	StateUnseen      State = "UNSEEN"
	StateClassifying State = "CLASSIFYING"
	StateSkipped     State = "SKIPPED"  // 终态：不相关或已处理过
	StateArchiving   State = "ARCHIVING"
	StateNotifying   State = "NOTIFYING"
	StateRecorded    State = "RECORDED" // 终态：尽力通知并落账完毕
)

// Summary 一轮运行的聚合统计
type Summary struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`
	Checked   int           `json:"checked"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Digest    []string      `json:"digest,omitempty"` // 人类可读的错误摘要
}

// HandledMarker 处理完成后向邮箱侧回写标记（已读/打标签）。可选协作方。
type HandledMarker interface {
	MarkHandled(ctx context.Context, msg *domain.Message) error
}

// Config 协调器配置
type Config struct {
	MaxMessages int // 单轮处理的邮件数上限，0 不限制
}

// Coordinator 按严格顺序逐封驱动 分类→去重→归档→通知→落账。
// 单封邮件的失败被隔离为计数与摘要，绝不中断整个批次；
// 每封邮件在下一封开始前到达终态，批次中途超时不会留下半处理的记录。
type Coordinator struct {
	classifier *classifier.Classifier
	ledger     *ledger.Ledger
	archiver   *archiver.Archiver
	dispatcher *dispatcher.Dispatcher
	marker     HandledMarker            // 可为 nil
	alerts     *monitoring.AlertManager // 可为 nil
	cfg        Config
	logger     *zap.Logger
}

// New 创建协调器
func New(
	cls *classifier.Classifier,
	led *ledger.Ledger,
	arc *archiver.Archiver,
	dis *dispatcher.Dispatcher,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		classifier: cls,
		ledger:     led,
		archiver:   arc,
		dispatcher: dis,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetHandledMarker 设置邮箱回写协作方
func (c *Coordinator) SetHandledMarker(marker HandledMarker) {
	c.marker = marker
}

// SetAlertManager 设置告警管理器
func (c *Coordinator) SetAlertManager(alerts *monitoring.AlertManager) {
	c.alerts = alerts
}

// Run 处理一批邮件并返回运行摘要。
// errors > 0 时触发一条运行告警；批次干净且无新邮件命中时保持静默。
func (c *Coordinator) Run(ctx context.Context, messages []*domain.Message) *Summary {
	summary := &Summary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	if c.cfg.MaxMessages > 0 && len(messages) > c.cfg.MaxMessages {
		c.logger.Info("per-run message cap applied",
			zap.Int("batch", len(messages)),
			zap.Int("cap", c.cfg.MaxMessages),
		)
		messages = messages[:c.cfg.MaxMessages]
	}

	for _, msg := range messages {
		summary.Checked++

		final, err := c.processOne(ctx, msg)
		switch {
		case err != nil:
			summary.Errors++
			summary.Digest = append(summary.Digest, fmt.Sprintf("%s (%s): %v", msg.ID, msg.Subject, err))
			c.logger.Error("message processing failed",
				zap.String("run_id", summary.RunID),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		case final == StateRecorded:
			summary.Processed++
		default:
			summary.Skipped++
		}
	}

	summary.Elapsed = time.Since(summary.StartedAt)
	c.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("checked", summary.Checked),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Duration("elapsed", summary.Elapsed),
	)

	if summary.Errors > 0 && c.alerts != nil {
		c.alerts.Trigger(ctx, monitoring.AlertLevelWarning, "pipeline",
			fmt.Sprintf("メール転送: %d/%d 件でエラー", summary.Errors, summary.Checked),
			strings.Join(summary.Digest, "\n"),
		)
	}

	return summary
}

// processOne 驱动单封邮件走完状态机。
// panic 被捕获并转换为错误，保证单封邮件的故障不拖垮批次。
func (c *Coordinator) processOne(ctx context.Context, msg *domain.Message) (final State, err error) {
	defer func() {
		if r := recover(); r != nil {
			final = StateUnseen
			err = fmt.Errorf("panic while processing message: %v", r)
		}
	}()

	// CLASSIFYING
	cls := c.classifier.Classify(msg.Subject)
	for _, pe := range cls.PatternErrors {
		c.logger.Warn("pattern evaluation failed",
			zap.String("pattern", pe.Pattern),
			zap.String("reason", pe.Reason),
		)
	}
	if !cls.IsMatch {
		c.logger.Debug("message skipped by classification", zap.String("message_id", msg.ID))
		return StateSkipped, nil
	}

	// 已落账的邮件直接跳过（重复触发/重叠运行的唯一防线）
	if c.ledger.Has(msg.ID) {
		c.logger.Debug("message already recorded", zap.String("message_id", msg.ID))
		c.markHandled(ctx, msg)
		return StateSkipped, nil
	}

	// ARCHIVING
	archived := c.archiver.Archive(msg.Attachments, msg.Subject, msg.ReceivedAt)

	// NOTIFYING
	outcome, err := c.dispatcher.Dispatch(ctx, msg, cls, archived)
	if err != nil {
		// 主通知未送达：不落账，留待下一轮重试
		return StateNotifying, err
	}
	if outcome.UnitsFailed > 0 {
		c.logger.Warn("some follow-up units failed",
			zap.String("message_id", msg.ID),
			zap.Int("failed", outcome.UnitsFailed),
		)
	}

	// RECORDED：落账失败只记录——通知已发出，再失败一次的代价
	// 不过是未来可能的一条重复通知
	if err := c.ledger.Record(msg.ID, msg.Subject); err != nil {
		c.logger.Warn("ledger record failed, message may be re-notified on a later run",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	c.markHandled(ctx, msg)
	return StateRecorded, nil
}

// markHandled 尽力回写邮箱侧标记
func (c *Coordinator) markHandled(ctx context.Context, msg *domain.Message) {
	if c.marker == nil {
		return
	}
	if err := c.marker.MarkHandled(ctx, msg); err != nil {
		c.logger.Warn("mark handled failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

package ledger

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// 默认容量参数。容量 + 松弛量构成触发淘汰的水位线，
// 批量淘汰把存储变更次数限制在每 EvictionBatch 次追加一次。
const (
	DefaultCapacity      = 5000
	DefaultEvictionBatch = 500
	DefaultSlack         = 100
)

// Config 台账容量配置
type Config struct {
	Capacity      int // 期望保留的最近记录数
	EvictionBatch int // 单次批量淘汰的行数
	Slack         int // 超出容量多少行后才触发淘汰
}

// withDefaults 填充零值字段
func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.EvictionBatch <= 0 {
		c.EvictionBatch = DefaultEvictionBatch
	}
	if c.Slack < 0 {
		c.Slack = DefaultSlack
	}
	return c
}

// LegacySource 旧版去重数据源（键值型"已处理"标记）。
// 仅供升级期间的一次性导入使用，稳态处理不会触碰。
type LegacySource interface {
	// Load 读出全部旧记录
	Load() ([]domain.LedgerEntry, error)
}

// Ledger 有界去重台账。
// 追加式记录已处理邮件标识，超出容量水位后按追加顺序批量淘汰最旧的行，
// 维持一个"最近处理过的邮件"滑动窗口。
type Ledger struct {
	store  domain.LedgerStore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New 创建台账
func New(store domain.LedgerStore, cfg Config, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Has 查询指定邮件是否已处理。
//
// 存储读取失败时返回 false（fail-open）：宁可多发一条重复通知，
// 也不能因为一次瞬时读错误静默丢掉真实邮件。
func (l *Ledger) Has(messageID string) bool {
	found, err := l.store.HasEntry(messageID)
	if err != nil {
		l.logger.Warn("ledger read failed, treating message as unprocessed",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return false
	}
	return found
}

// Record 记录一封已处理邮件。
//
// 写前先做存在性检查，已有记录则直接返回；检查读失败时继续写入
// （并发竞态产生的重复行由唯一索引兜底，属可容忍异常）。
// 追加后若行数超过 容量+松弛量 水位，按追加顺序批量淘汰最旧的行——
// 淘汰必须发生在触发它的那次追加之后，保证新邮件先落账再腾空间。
func (l *Ledger) Record(messageID, subject string) error {
	found, err := l.store.HasEntry(messageID)
	if err != nil {
		l.logger.Warn("ledger pre-insert check failed, inserting anyway",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	} else if found {
		return nil
	}

	entry := &domain.LedgerEntry{
		MessageID:  messageID,
		Subject:    subject,
		RecordedAt: l.now(),
	}
	if err := l.store.AppendEntry(entry); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)
	}

	l.evictIfOverCapacity()
	return nil
}

// MigrateLegacy 把旧版存储里的去重记录一次性导入台账。
// 已存在的记录跳过，返回实际导入的条数。
func (l *Ledger) MigrateLegacy(source LegacySource) (int, error) {
	entries, err := source.Load()
	if err != nil {
		return 0, fmt.Errorf("load legacy dedup records: %w", err)
	}

	imported := 0
	for _, legacy := range entries {
		found, err := l.store.HasEntry(legacy.MessageID)
		if err != nil {
			return imported, fmt.Errorf("%w: %v", domain.ErrLedgerRead, err)
		}
		if found {
			continue
		}

		entry := &domain.LedgerEntry{
			MessageID:  legacy.MessageID,
			Subject:    legacy.Subject,
			RecordedAt: legacy.RecordedAt,
		}
		if entry.RecordedAt.IsZero() {
			entry.RecordedAt = l.now()
		}
		if err := l.store.AppendEntry(entry); err != nil {
			return imported, fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)
		}
		imported++
	}

	l.evictIfOverCapacity()

	l.logger.Info("legacy dedup records migrated",
		zap.Int("loaded", len(entries)),
		zap.Int("imported", imported),
	)
	return imported, nil
}

// evictIfOverCapacity 行数超过水位线时批量淘汰最旧的行。
// 淘汰失败只记录日志：记录本身已经落账，失败的代价是下次追加重试淘汰。
func (l *Ledger) evictIfOverCapacity() {
	count, err := l.store.CountEntries()
	if err != nil {
		l.logger.Warn("ledger count failed, skipping eviction check", zap.Error(err))
		return
	}

	threshold := int64(l.cfg.Capacity + l.cfg.Slack)
	if count <= threshold {
		return
	}

	deleted, err := l.store.DeleteOldest(l.cfg.EvictionBatch)
	if err != nil {
		l.logger.Warn("ledger eviction failed",
			zap.Int64("count", count),
			zap.Int("batch", l.cfg.EvictionBatch),
			zap.Error(err),
		)
		return
	}

	l.logger.Info("ledger evicted oldest entries",
		zap.Int64("deleted", deleted),
		zap.Int64("count_before", count),
	)
}

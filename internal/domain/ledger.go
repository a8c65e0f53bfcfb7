package domain

import "time"

// LedgerEntry 去重台账的一行记录，一封已处理邮件对应一行。
// MessageID 上的唯一索引配合写前存在性检查保证至多一行；
// 并发运行竞态产生的重复行视为无害异常，不视为数据损坏。
type LedgerEntry struct {
	Seq        uint      `json:"seq" gorm:"primaryKey;autoIncrement"`
	MessageID  string    `json:"messageId" gorm:"type:varchar(255);uniqueIndex;not null"`
	Subject    string    `json:"subject" gorm:"type:varchar(500)"`
	RecordedAt time.Time `json:"recordedAt" gorm:"index"`
}

// TableName 指定 GORM 表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// LedgerStore 台账持久化接口。
// Seq 单调递增，代表追加顺序；DeleteOldest 按 Seq 升序批量删除。
type LedgerStore interface {
	// HasEntry 查询指定邮件是否已有记录
	HasEntry(messageID string) (bool, error)

	// AppendEntry 追加一行记录
	AppendEntry(entry *LedgerEntry) error

	// CountEntries 返回当前行数
	CountEntries() (int64, error)

	// DeleteOldest 按追加顺序删除最早的 n 行，返回实际删除数。
	// 实现须以单次批量变更完成，避免逐行删除。
	DeleteOldest(n int) (int64, error)

	// Close 释放底层连接
	Close() error
}

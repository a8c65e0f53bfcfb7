package sql

import (
	"fmt"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// HasEntry 查询指定邮件是否已有记录
func (s *Store) HasEntry(messageID string) (bool, error) {
	var count int64
	err := s.gormDB.Model(&domain.LedgerEntry{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query ledger entry: %w", err)
	}
	return count > 0, nil
}

// AppendEntry 追加一行记录
func (s *Store) AppendEntry(entry *domain.LedgerEntry) error {
	if err := s.gormDB.Create(entry).Error; err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// CountEntries 返回当前行数
func (s *Store) CountEntries() (int64, error) {
	var count int64
	if err := s.gormDB.Model(&domain.LedgerEntry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return count, nil
}

// DeleteOldest 按追加顺序删除最早的 n 行。
// 先取出最旧的 seq 集合，再用一条 DELETE 批量清除，
// 把存储变更限制为单次往返（MySQL 与 PostgreSQL 通用）。
func (s *Store) DeleteOldest(n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	var seqs []uint
	err := s.gormDB.Model(&domain.LedgerEntry{}).
		Order("seq ASC").
		Limit(n).
		Pluck("seq", &seqs).Error
	if err != nil {
		return 0, fmt.Errorf("select oldest ledger entries: %w", err)
	}
	if len(seqs) == 0 {
		return 0, nil
	}

	tx := s.gormDB.Where("seq IN ?", seqs).Delete(&domain.LedgerEntry{})
	if tx.Error != nil {
		return 0, fmt.Errorf("delete oldest ledger entries: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

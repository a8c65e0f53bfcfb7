package memory

import (
	"sort"
	"sync"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// LedgerStore 使用内存保存台账记录，主要用于开发验证与测试。
type LedgerStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.LedgerEntry // messageID -> entry
	seq     uint                           // 追加序号，单调递增
}

// NewLedgerStore 创建内存台账存储
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries: make(map[string]*domain.LedgerEntry),
	}
}

// HasEntry 查询指定邮件是否已有记录
func (s *LedgerStore) HasEntry(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[messageID]
	return ok, nil
}

// AppendEntry 追加一行记录
func (s *LedgerStore) AppendEntry(entry *domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored := *entry
	stored.Seq = s.seq
	entry.Seq = s.seq
	s.entries[entry.MessageID] = &stored
	return nil
}

// CountEntries 返回当前行数
func (s *LedgerStore) CountEntries() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// DeleteOldest 按追加顺序删除最早的 n 行
func (s *LedgerStore) DeleteOldest(n int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.entries) == 0 {
		return 0, nil
	}

	ordered := make([]*domain.LedgerEntry, 0, len(s.entries))
	for _, e := range s.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	if n > len(ordered) {
		n = len(ordered)
	}
	for _, e := range ordered[:n] {
		delete(s.entries, e.MessageID)
	}
	return int64(n), nil
}

// Close 无资源可释放
func (s *LedgerStore) Close() error {
	return nil
}

// Entries 返回按追加顺序排列的全部记录（测试辅助）
func (s *LedgerStore) Entries() []domain.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]domain.LedgerEntry, 0, len(s.entries))
	for _, e := range s.entries {
		ordered = append(ordered, *e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })
	return ordered
}

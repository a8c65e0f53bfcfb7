package cache

import (
	"sync"
	"time"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// FolderCache 归档文件夹引用的本地 TTL 缓存。
// 同一批次内大量邮件落入同一 (日期, 主题) 文件夹时，
// 避免对存储的重复 FindFolder 往返。
type FolderCache struct {
	mu      sync.RWMutex
	entries map[string]*folderEntry
	ttl     time.Duration
}

type folderEntry struct {
	ref       domain.FolderRef
	expiresAt time.Time
}

// NewFolderCache 创建文件夹缓存
func NewFolderCache(ttl time.Duration) *FolderCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &FolderCache{
		entries: make(map[string]*folderEntry),
		ttl:     ttl,
	}
}

// Get 按文件夹名取缓存引用
func (c *FolderCache) Get(name string) (*domain.FolderRef, bool) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, name)
		c.mu.Unlock()
		return nil, false
	}

	ref := entry.ref
	return &ref, true
}

// Put 缓存文件夹引用
func (c *FolderCache) Put(name string, ref *domain.FolderRef) {
	if ref == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &folderEntry{
		ref:       *ref,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Clear 清空缓存
func (c *FolderCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*folderEntry)
}

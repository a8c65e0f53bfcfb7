package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// BlobStore 使用内存模拟层级化二进制存储，主要用于开发验证与测试。
type BlobStore struct {
	mu      sync.RWMutex
	folders map[string]*memFolder // name -> folder
}

type memFolder struct {
	ref   domain.FolderRef
	files map[string][]byte // storedName -> content
}

// NewBlobStore 创建内存二进制存储
func NewBlobStore() *BlobStore {
	return &BlobStore{
		folders: make(map[string]*memFolder),
	}
}

// FindFolder 查找同名文件夹，未找到返回 (nil, nil)
func (s *BlobStore) FindFolder(name string) (*domain.FolderRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folder, ok := s.folders[name]
	if !ok {
		return nil, nil
	}
	ref := folder.ref
	return &ref, nil
}

// CreateFolder 创建文件夹
func (s *BlobStore) CreateFolder(name string) (*domain.FolderRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.folders[name]; ok {
		ref := existing.ref
		return &ref, nil
	}

	folder := &memFolder{
		ref: domain.FolderRef{
			ID:   uuid.New().String(),
			Name: name,
			URL:  "memory://" + name,
		},
		files: make(map[string][]byte),
	}
	s.folders[name] = folder
	ref := folder.ref
	return &ref, nil
}

// FindFile 判断文件夹内是否已存在同名文件
func (s *BlobStore) FindFile(folder *domain.FolderRef, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.folders[folder.Name]
	if !ok {
		return false, fmt.Errorf("folder not found: %s", folder.Name)
	}
	_, exists := f.files[name]
	return exists, nil
}

// CreateFile 在文件夹内写入文件
func (s *BlobStore) CreateFile(folder *domain.FolderRef, name string, content []byte) (*domain.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[folder.Name]
	if !ok {
		return nil, fmt.Errorf("folder not found: %s", folder.Name)
	}

	stored := make([]byte, len(content))
	copy(stored, content)
	f.files[name] = stored

	return &domain.FileRef{
		ID:  uuid.New().String(),
		URL: fmt.Sprintf("memory://%s/%s", folder.Name, name),
	}, nil
}

// Files 返回文件夹内的文件名与内容（测试辅助）
func (s *BlobStore) Files(folderName string) map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.folders[folderName]
	if !ok {
		return nil
	}
	out := make(map[string][]byte, len(f.files))
	for name, content := range f.files {
		out[name] = content
	}
	return out
}

// FolderNames 返回全部文件夹名（测试辅助）
func (s *BlobStore) FolderNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.folders))
	for name := range s.folders {
		names = append(names, name)
	}
	return names
}

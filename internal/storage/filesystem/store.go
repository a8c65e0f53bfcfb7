package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// Store 文件系统归档存储。
// 根目录下每个归档文件夹对应一个子目录，文件夹引用的 ID 持久化在
// 目录内的 .folder-id 文件里，保证跨进程重启引用稳定。
type Store struct {
	basePath string
}

// folderIDFile 目录内保存文件夹 ID 的隐藏文件名
const folderIDFile = ".folder-id"

// NewStore 创建文件系统归档存储实例
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path must not be empty")
	}
	if strings.Contains(basePath, "..") {
		return nil, fmt.Errorf("path traversal detected: %s", basePath)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: absPath}, nil
}

// FindFolder 查找同名文件夹，未找到返回 (nil, nil)
func (s *Store) FindFolder(name string) (*domain.FolderRef, error) {
	dir := filepath.Join(s.basePath, name)

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path exists but is not a directory: %s", dir)
	}

	id, err := s.readFolderID(dir)
	if err != nil {
		return nil, err
	}

	return &domain.FolderRef{
		ID:   id,
		Name: name,
		URL:  "file://" + dir,
	}, nil
}

// CreateFolder 创建文件夹（已存在时直接返回引用）
func (s *Store) CreateFolder(name string) (*domain.FolderRef, error) {
	if existing, err := s.FindFolder(name); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	dir := filepath.Join(s.basePath, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	id := uuid.New().String()
	idFile := filepath.Join(dir, folderIDFile)
	if err := os.WriteFile(idFile, []byte(id), 0644); err != nil {
		return nil, fmt.Errorf("failed to write folder id: %w", err)
	}

	return &domain.FolderRef{
		ID:   id,
		Name: name,
		URL:  "file://" + dir,
	}, nil
}

// FindFile 判断文件夹内是否已存在同名文件
func (s *Store) FindFile(folder *domain.FolderRef, name string) (bool, error) {
	path := filepath.Join(s.basePath, folder.Name, name)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return !info.IsDir(), nil
}

// CreateFile 在文件夹内写入文件
func (s *Store) CreateFile(folder *domain.FolderRef, name string, content []byte) (*domain.FileRef, error) {
	dir := filepath.Join(s.basePath, folder.Name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("folder not found: %s: %w", folder.Name, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &domain.FileRef{
		ID:  uuid.New().String(),
		URL: "file://" + path,
	}, nil
}

// readFolderID 读取目录的持久化 ID；缺失时补写一个新 ID
func (s *Store) readFolderID(dir string) (string, error) {
	idFile := filepath.Join(dir, folderIDFile)

	data, err := os.ReadFile(idFile)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read folder id: %w", err)
	}

	id := uuid.New().String()
	if err := os.WriteFile(idFile, []byte(id), 0644); err != nil {
		return "", fmt.Errorf("failed to write folder id: %w", err)
	}
	return id, nil
}

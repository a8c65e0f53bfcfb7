package domain

import "time"

// FolderRef 归档文件夹引用
type FolderRef struct {
	ID   string `json:"id"`   // 存储侧标识
	Name string `json:"name"` // 文件夹名（date_subject）
	URL  string `json:"url"`  // 可访问链接（如有）
}

// FileRef 已归档文件引用
type FileRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ArchiveStatus 单个附件的归档状态
type ArchiveStatus string

const (
	ArchiveOK      ArchiveStatus = "ok"      // 已写入存储
	ArchiveSkipped ArchiveStatus = "skipped" // 被安全筛查跳过
	ArchiveFailed  ArchiveStatus = "failed"  // 写入失败
)

// ArchiveResult 单个附件的归档结果。
// 一次 Archive 调用对每个输入附件恰好产出一条，顺序与输入一致。
type ArchiveResult struct {
	OriginalName string        `json:"originalName"`
	StoredName   string        `json:"storedName,omitempty"` // 文件夹内唯一
	Size         int64         `json:"size"`
	Status       ArchiveStatus `json:"status"`
	Reason       string        `json:"reason,omitempty"` // skipped/failed 的原因
	Folder       *FolderRef    `json:"folder,omitempty"`
	File         *FileRef      `json:"file,omitempty"`
	Elapsed      time.Duration `json:"elapsed"` // 写入耗时（诊断用）
}

// BlobStore 层级化二进制存储接口。
// 文件夹名与文件名由调用方先行净化；实现只负责根命名空间下的查找与创建。
type BlobStore interface {
	// FindFolder 查找同名文件夹，未找到返回 (nil, nil)
	FindFolder(name string) (*FolderRef, error)

	// CreateFolder 创建文件夹
	CreateFolder(name string) (*FolderRef, error)

	// FindFile 判断文件夹内是否已存在同名文件
	FindFile(folder *FolderRef, name string) (bool, error)

	// CreateFile 在文件夹内写入文件
	CreateFile(folder *FolderRef, name string, content []byte) (*FileRef, error)
}

package archiver

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/cache"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// DefaultMaxNameProbes 重名探测的尝试上限。
// 探测耗尽后无条件改用时间戳后缀，避免无限循环。
const DefaultMaxNameProbes = 100

// Config 归档器配置
type Config struct {
	MaxNameProbes     int           // 重名探测上限，默认 100
	MaxAttachmentSize int64         // 单附件大小上限（字节），0 不限制
	FolderCacheTTL    time.Duration // 文件夹引用缓存时长
}

// Archiver 把附件确定性地归档到 (日期, 主题) 命名的文件夹。
// 单个附件的失败被隔离为一条失败结果，不影响同批其余附件。
type Archiver struct {
	store    domain.BlobStore
	screener *Screener
	folders  *cache.FolderCache
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// New 创建归档器
func New(store domain.BlobStore, cfg Config, logger *zap.Logger) *Archiver {
	if cfg.MaxNameProbes <= 0 {
		cfg.MaxNameProbes = DefaultMaxNameProbes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		store:    store,
		screener: NewScreener(cfg.MaxAttachmentSize),
		folders:  cache.NewFolderCache(cfg.FolderCacheTTL),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Archive 按输入顺序归档附件，对每个附件恰好产出一条结果。
func (a *Archiver) Archive(attachments []*domain.Attachment, subject string, receivedAt time.Time) []domain.ArchiveResult {
	if len(attachments) == 0 {
		return nil
	}

	results := make([]domain.ArchiveResult, 0, len(attachments))

	folder, err := a.resolveFolder(folderName(receivedAt, subject, a.now()))
	if err != nil {
		// 文件夹都拿不到时整批失败，但仍然逐附件产出完整报告
		for _, att := range attachments {
			results = append(results, domain.ArchiveResult{
				OriginalName: att.Name,
				Size:         att.Size,
				Status:       domain.ArchiveFailed,
				Reason:       fmt.Sprintf("folder resolution failed: %v", err),
			})
		}
		return results
	}

	// 同名附件按 1 起始的位置后缀区分（首个保持原名）
	occurrence := make(map[string]int, len(attachments))

	for _, att := range attachments {
		occurrence[att.Name]++
		results = append(results, a.archiveOne(folder, att, occurrence[att.Name]))
	}
	return results
}

// archiveOne 归档单个附件
func (a *Archiver) archiveOne(folder *domain.FolderRef, att *domain.Attachment, position int) domain.ArchiveResult {
	result := domain.ArchiveResult{
		OriginalName: att.Name,
		Size:         att.Size,
		Folder:       folder,
	}

	if ok, reason := a.screener.Screen(att); !ok {
		result.Status = domain.ArchiveSkipped
		result.Reason = reason
		return result
	}

	base, ext := splitExtension(sanitizeName(att.Name))
	if base == "" && ext == "" {
		base = fmt.Sprintf("attachment_%d", position)
	}
	if position > 1 {
		base = fmt.Sprintf("%s_%d", base, position)
	}

	storedName := a.uniqueName(folder, base, ext)

	content, err := att.Open()
	if err != nil {
		result.Status = domain.ArchiveFailed
		result.Reason = fmt.Sprintf("read attachment content: %v", err)
		return result
	}

	start := a.now()
	file, err := a.store.CreateFile(folder, storedName, content)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Status = domain.ArchiveFailed
		result.Reason = fmt.Sprintf("write blob: %v", err)
		a.logger.Warn("attachment write failed",
			zap.String("folder", folder.Name),
			zap.String("name", storedName),
			zap.Error(err),
		)
		return result
	}

	result.Status = domain.ArchiveOK
	result.StoredName = storedName
	result.File = file
	a.logger.Debug("attachment archived",
		zap.String("folder", folder.Name),
		zap.String("name", storedName),
		zap.Int64("size", att.Size),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result
}

// resolveFolder 解析或创建归档文件夹：缓存 → 查找复用 → 创建。
// 并发运行可能竞态产生同名文件夹，属可容忍的非破坏性异常。
func (a *Archiver) resolveFolder(name string) (*domain.FolderRef, error) {
	if ref, ok := a.folders.Get(name); ok {
		return ref, nil
	}

	ref, err := a.store.FindFolder(name)
	if err != nil {
		return nil, fmt.Errorf("%w: find folder %q: %v", domain.ErrArchive, name, err)
	}
	if ref == nil {
		ref, err = a.store.CreateFolder(name)
		if err != nil {
			return nil, fmt.Errorf("%w: create folder %q: %v", domain.ErrArchive, name, err)
		}
	}

	a.folders.Put(name, ref)
	return ref, nil
}

// uniqueName 探测出文件夹内未占用的存储名。
// 依次尝试 base、base_1 … base_N（N 为探测上限）；
// 探测耗尽或探测本身出错时，无条件退回时间戳后缀名。
func (a *Archiver) uniqueName(folder *domain.FolderRef, base, ext string) string {
	candidate := base + ext
	for i := 0; i <= a.cfg.MaxNameProbes; i++ {
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		exists, err := a.store.FindFile(folder, candidate)
		if err != nil {
			a.logger.Warn("name probe failed, falling back to timestamp suffix",
				zap.String("candidate", candidate),
				zap.Error(err),
			)
			break
		}
		if !exists {
			return candidate
		}
	}
	return fmt.Sprintf("%s_%s%s", base, a.now().Format("20060102150405"), ext)
}

package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/infrastructure/config"
)

// Service 冷备份: 把数据库和配置打成 zip, 只留最近 N 份
type Service struct {
	cfg      func() *config.BackupConfig
	dataDir  func() string
	activity repository.ActivityRepository
	logger   *zap.Logger
}

func NewService(cfg func() *config.BackupConfig, dataDir func() string, activity repository.ActivityRepository, logger *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		dataDir:  dataDir,
		activity: activity,
		logger:   logger.With(zap.String("component", "backup")),
	}
}

// Enabled 备份开关
func (s *Service) Enabled() bool {
	return s.cfg().Enabled
}

// Run 执行一次备份, 返回产物路径
// 收集 data_dir 根下的 *.db 和配置文件, 不递归子目录
func (s *Service) Run(ctx context.Context) (string, error) {
	cfg := s.cfg()
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	now := time.Now()
	target := filepath.Join(cfg.Dir, fmt.Sprintf("nexira_backup_%s.zip", now.Format("20060102_150405")))

	files, err := s.collect()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("nothing to back up in %s", s.dataDir())
	}

	if err := writeZip(target, files); err != nil {
		os.Remove(target)
		return "", err
	}

	pruned := s.prune(cfg.Dir, cfg.MaxKeep)

	info, _ := os.Stat(target)
	var size int64
	if info != nil {
		size = info.Size()
	}
	s.logger.Info("Backup complete",
		zap.String("path", target),
		zap.Int("files", len(files)),
		zap.Int64("bytes", size),
		zap.Int("pruned", pruned),
	)
	s.logActivity(ctx, target, len(files))
	return target, nil
}

// collect 列出应进包的文件
func (s *Service) collect() ([]string, error) {
	root := s.dataDir()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".db"),
			strings.HasSuffix(name, ".db-wal"),
			strings.HasSuffix(name, ".db-shm"),
			name == "config.yaml",
			name == "config.json":
			files = append(files, filepath.Join(root, name))
		}
	}

	// 项目本地配置也一并带走
	for _, candidate := range []string{"config/config.yaml", "config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			files = append(files, candidate)
			break
		}
	}
	return files, nil
}

func writeZip(target string, files []string) error {
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, path := range files {
		if err := addFile(zw, path); err != nil {
			zw.Close()
			return fmt.Errorf("archive %s: %w", path, err)
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// prune 按修改时间淘汰旧备份, 返回删除数
func (s *Service) prune(dir string, maxKeep int) int {
	if maxKeep <= 0 {
		maxKeep = 7
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	type backupFile struct {
		path    string
		modTime time.Time
	}
	var backups []backupFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "nexira_backup_") || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backupFile{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(backups) <= maxKeep {
		return 0
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].modTime.After(backups[j].modTime) })
	pruned := 0
	for _, b := range backups[maxKeep:] {
		if err := os.Remove(b.path); err != nil {
			s.logger.Warn("Failed to prune old backup", zap.String("path", b.path), zap.Error(err))
			continue
		}
		pruned++
	}
	return pruned
}

// List 现存备份, 新的在前
func (s *Service) List() ([]*BackupInfo, error) {
	entries, err := os.ReadDir(s.cfg().Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*BackupInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "nexira_backup_") || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, &BackupInfo{
			Filename:  e.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// BackupInfo 备份清单条目
type BackupInfo struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Service) logActivity(ctx context.Context, path string, files int) {
	err := s.activity.Log(ctx, &entity.ActivityEvent{
		Timestamp: time.Now(),
		Type:      entity.ActivityBackup,
		Label:     "Backed up memory and config",
		Detail:    fmt.Sprintf("%s (%d files)", filepath.Base(path), files),
	})
	if err != nil {
		s.logger.Warn("Failed to log backup activity", zap.Error(err))
	}
}

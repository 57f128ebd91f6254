package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// 可直接按文本读取的扩展名
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".js": true, ".go": true,
	".json": true, ".yaml": true, ".yml": true, ".html": true, ".css": true,
	".cpp": true, ".c": true, ".h": true, ".java": true, ".sh": true,
	".csv": true, ".log": true,
}

// 单文件放进上下文的内容上限
const maxContextBytes = 32 * 1024

// Handler 上传文件落盘与文本抽取
type Handler struct {
	dir    func() string
	logger *zap.Logger
}

func NewHandler(dir func() string, logger *zap.Logger) *Handler {
	return &Handler{
		dir:    dir,
		logger: logger.With(zap.String("component", "upload")),
	}
}

// Save 带时间戳前缀落盘, 避免同名覆盖
func (h *Handler) Save(data []byte, filename string) (string, error) {
	dir := h.dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	safe := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), sanitizeFilename(filename))
	path := filepath.Join(dir, safe)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	h.logger.Info("File uploaded", zap.String("file", safe), zap.Int("bytes", len(data)))
	return path, nil
}

// Document 处理后的上传文件
type Document struct {
	Filename   string    `json:"filename"`
	Type       string    `json:"type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
	Content    string    `json:"content"`
}

// Process 抽取文本内容, 不支持的类型返回错误
func (h *Handler) Process(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !textExtensions[ext] {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	if len(content) > maxContextBytes {
		content = content[:maxContextBytes] + "\n[... truncated ...]"
	}

	return &Document{
		Filename:   filepath.Base(path),
		Type:       strings.TrimPrefix(ext, "."),
		SizeBytes:  info.Size(),
		UploadedAt: time.Now(),
		Content:    content,
	}, nil
}

// FormatForContext 组装注入系统提示的文档块
func (d *Document) FormatForContext() string {
	return fmt.Sprintf(`--- Uploaded Document ---
Filename: %s
Type: %s
Size: %d bytes
Uploaded: %s

Content:
%s
--- End of Document ---
`, d.Filename, d.Type, d.SizeBytes, d.UploadedAt.Format(time.RFC3339), d.Content)
}

// UploadInfo 上传清单条目
type UploadInfo struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Modified  time.Time `json:"modified"`
}

// Recent 按修改时间倒序列出上传文件
func (h *Handler) Recent(limit int) ([]*UploadInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	entries, err := os.ReadDir(h.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*UploadInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, &UploadInfo{
			Filename:  e.Name(),
			SizeBytes: info.Size(),
			Modified:  info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete 删除一个上传文件, 文件名不允许路径穿越
func (h *Handler) Delete(filename string) error {
	if filename != filepath.Base(filename) {
		return fmt.Errorf("invalid filename: %s", filename)
	}
	path := filepath.Join(h.dir(), filename)
	if err := os.Remove(path); err != nil {
		return err
	}
	h.logger.Info("Upload deleted", zap.String("file", filename))
	return nil
}

// sanitizeFilename 去掉目录部分和危险字符
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." {
		name = "upload"
	}
	return name
}

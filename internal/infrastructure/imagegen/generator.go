package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/internal/infrastructure/config"
)

const (
	defaultNegativePrompt = "blurry, low quality, distorted, ugly, bad anatomy"
	fallbackPrompt        = "abstract digital art, swirling colors, luminous, ethereal"
	maxPromptWords        = 55 // SD 的 77-token 限制, 按词数保守截断
	generateTimeout       = 5 * time.Minute
)

// 提示词里混入指令碎片时剥掉, 剩下的才是视觉描述
var badPromptPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)for a\b`),
	regexp.MustCompile(`(?i)this is\b`),
	regexp.MustCompile(`(?i)example of\b`),
	regexp.MustCompile(`(?i)description of\b`),
	regexp.MustCompile(`(?i)prompt in\b`),
	regexp.MustCompile(`(?i)in our conversation\b`),
	regexp.MustCompile(`(?i)10.?30 words\b`),
	regexp.MustCompile(`(?i)words works best\b`),
	regexp.MustCompile(`(?i)vivid description\b`),
	regexp.MustCompile(`(?i)the image\b`),
	regexp.MustCompile(`(?i)using the\b`),
	regexp.MustCompile(`(?i)trigger phrase\b`),
	regexp.MustCompile(`(?i)IMAGE_GEN_NOW[:\s]*`),
	regexp.MustCompile(`(?i)STYLE_TRANSFER_NOW[:\s]*`),
}

var slugRe = regexp.MustCompile(`[^a-z0-9 ]`)

// Generator 对接 stable-diffusion-webui 的 txt2img API
// 模型与推理共用一张显卡, 生成前卸载语言模型, 结束后再预热回去
type Generator struct {
	cfg      func() *config.ImagesConfig
	gate     service.Gate
	activity repository.ActivityRepository
	client   *http.Client
	logger   *zap.Logger

	mu sync.Mutex // 同一时刻只允许一次生成占用显卡
}

func NewGenerator(cfg func() *config.ImagesConfig, gate service.Gate, activity repository.ActivityRepository, logger *zap.Logger) *Generator {
	return &Generator{
		cfg:      cfg,
		gate:     gate,
		activity: activity,
		client:   &http.Client{Timeout: generateTimeout},
		logger:   logger.With(zap.String("component", "imagegen")),
	}
}

var _ service.ImageMaker = (*Generator)(nil)

// Enabled 开关开启且配置了 webui 地址
func (g *Generator) Enabled() bool {
	c := g.cfg()
	return c.Enabled && c.APIURL != ""
}

// Generate 文生图, 返回相对 dir 的保存路径
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.Enabled() {
		return "", fmt.Errorf("image generation not enabled")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	prompt, sanitized := SanitizePrompt(prompt)
	if sanitized {
		g.logger.Debug("Image prompt sanitized", zap.String("prompt", clip(prompt, 60)))
	}

	// 腾出显存, 失败也继续 — webui 会自己排队
	if err := g.gate.Unload(ctx); err != nil {
		g.logger.Warn("Failed to unload language model before generation", zap.Error(err))
	}
	defer func() {
		if err := g.gate.Warm(context.WithoutCancel(ctx)); err != nil {
			g.logger.Warn("Failed to rewarm language model", zap.Error(err))
		}
	}()

	data, err := g.txt2img(ctx, prompt)
	if err != nil {
		return "", err
	}

	rel, err := g.save(prompt, data)
	if err != nil {
		return "", err
	}

	g.logActivity(ctx, prompt, rel)
	g.logger.Info("Image generated", zap.String("prompt", clip(prompt, 60)), zap.String("path", rel))
	return rel, nil
}

type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

func (g *Generator) txt2img(ctx context.Context, prompt string) ([]byte, error) {
	c := g.cfg()
	payload := txt2imgRequest{
		Prompt:         prompt,
		NegativePrompt: defaultNegativePrompt,
		Steps:          c.Steps,
		CFGScale:       7.5,
		Width:          c.Width,
		Height:         c.Height,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.APIURL, "/") + "/sdapi/v1/txt2img"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("txt2img request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("txt2img HTTP %d: %s", resp.StatusCode, clip(string(raw), 200))
	}

	var out txt2imgResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse txt2img response: %w", err)
	}
	if len(out.Images) == 0 {
		return nil, fmt.Errorf("txt2img returned no images")
	}
	return base64.StdEncoding.DecodeString(out.Images[0])
}

// save 存进按日期分目录的树, 旁边放一份生成参数
func (g *Generator) save(prompt string, data []byte) (string, error) {
	c := g.cfg()
	now := time.Now()
	dir := filepath.Join(c.Dir, "generated", now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	filename := fmt.Sprintf("nexira_%s_%s.png", now.Format("150405"), Slug(prompt, 40))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	meta := map[string]any{
		"type":         "txt2img",
		"prompt":       prompt,
		"steps":        c.Steps,
		"width":        c.Width,
		"height":       c.Height,
		"model":        c.Model,
		"generated_at": now.Format(time.RFC3339),
	}
	metaData, _ := json.MarshalIndent(meta, "", "  ")
	metaPath := strings.TrimSuffix(path, ".png") + ".json"
	if err := os.WriteFile(metaPath, metaData, 0o644); err != nil {
		g.logger.Warn("Failed to write image metadata", zap.Error(err))
	}

	rel, err := filepath.Rel(c.Dir, path)
	if err != nil {
		return path, nil
	}
	return rel, nil
}

// ImageInfo 图库条目
type ImageInfo struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	Date        string `json:"date"`
	Prompt      string `json:"prompt"`
	GeneratedAt string `json:"generated_at"`
}

// List 按文件名倒序 (日期+时刻) 返回最近的图
func (g *Generator) List(limit int) ([]*ImageInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	root := filepath.Join(g.cfg().Dir, "generated")

	var paths []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".png") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	if len(paths) > limit {
		paths = paths[:limit]
	}

	images := make([]*ImageInfo, 0, len(paths))
	for _, p := range paths {
		info := &ImageInfo{
			Filename: filepath.Base(p),
			Date:     filepath.Base(filepath.Dir(p)),
		}
		if rel, err := filepath.Rel(g.cfg().Dir, p); err == nil {
			info.Path = rel
		} else {
			info.Path = p
		}
		var meta struct {
			Prompt      string `json:"prompt"`
			GeneratedAt string `json:"generated_at"`
		}
		if data, err := os.ReadFile(strings.TrimSuffix(p, ".png") + ".json"); err == nil {
			if json.Unmarshal(data, &meta) == nil {
				info.Prompt = meta.Prompt
				info.GeneratedAt = meta.GeneratedAt
			}
		}
		images = append(images, info)
	}
	return images, nil
}

// Open 解析相对路径并确认文件在图片目录内
func (g *Generator) Open(relPath string) (string, error) {
	root, err := filepath.Abs(g.cfg().Dir)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(filepath.Join(root, relPath))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes image dir: %s", relPath)
	}
	if _, err := os.Stat(full); err != nil {
		return "", err
	}
	return full, nil
}

// SanitizePrompt 剥掉指令碎片, 剩余过短或数字占比过高时换成安全兜底
// 返回 (净化后提示词, 是否有改动)
func SanitizePrompt(prompt string) (string, bool) {
	original := prompt
	cleaned := prompt
	for _, re := range badPromptPhrases {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	words := strings.Fields(cleaned)
	digits := 0
	for _, w := range words {
		if isAllDigits(w) {
			digits++
		}
	}
	if len(words) < 4 || float64(digits)/float64(max(len(words), 1)) > 0.3 {
		return fallbackPrompt, true
	}

	if len(words) > maxPromptWords {
		cleaned = strings.Join(words[:maxPromptWords], " ")
	}
	return cleaned, !strings.EqualFold(cleaned, original)
}

// Slug 生成文件名用的短标识
func Slug(text string, maxLen int) string {
	s := slugRe.ReplaceAllString(strings.ToLower(text), "")
	s = strings.Join(strings.Fields(s), "_")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func (g *Generator) logActivity(ctx context.Context, prompt, path string) {
	err := g.activity.Log(ctx, &entity.ActivityEvent{
		Timestamp: time.Now(),
		Type:      entity.ActivityImage,
		Label:     "Generated an image",
		Detail:    fmt.Sprintf("%s -> %s", clip(prompt, 100), path),
	})
	if err != nil {
		g.logger.Warn("Failed to log image activity", zap.Error(err))
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

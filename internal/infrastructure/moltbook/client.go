package moltbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/internal/infrastructure/config"
	"github.com/nexira/nexira/internal/infrastructure/secret"
	"go.uber.org/zap"
)

const (
	requestTimeout    = 12 * time.Second
	heartbeatInterval = 30 * time.Minute
	feedCacheTTL      = 2 * time.Hour
)

// Post 社区帖子
type Post struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  struct {
		Name string `json:"name"`
	} `json:"author"`
	Upvotes int `json:"upvotes"`
	Submolt struct {
		Name string `json:"name"`
	} `json:"submolt"`
}

// Client 对接 Moltbook 智能体社区
// 注册 / 认领 / 发帖 / 读 feed / 心跳, 带验证题求解
type Client struct {
	cfg      func() *config.MoltbookConfig
	box      *secret.Box
	activity repository.ActivityRepository
	client   *http.Client
	logger   *zap.Logger

	mu            sync.Mutex
	lastHeartbeat time.Time
	feedCache     []*Post
	feedFetched   time.Time
}

func NewClient(cfg func() *config.MoltbookConfig, box *secret.Box, activity repository.ActivityRepository, logger *zap.Logger) *Client {
	return &Client{
		cfg:      cfg,
		box:      box,
		activity: activity,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger.With(zap.String("component", "moltbook")),
	}
}

var (
	_ service.SocialPoster = (*Client)(nil)
	_ service.DiaryPoster  = (*Client)(nil)
)

func (c *Client) apiKey() string {
	raw := strings.TrimSpace(c.cfg().APIKey)
	if raw == "" {
		return ""
	}
	return c.box.Decrypt(raw)
}

// Enabled 开关开启且配置了 API key
func (c *Client) Enabled() bool {
	return c.cfg().Enabled && c.apiKey() != ""
}

// AutoPostEnabled 是否自动分享日记
func (c *Client) AutoPostEnabled() bool {
	return c.Enabled() && c.cfg().AutoPostDiary
}

// ─── Registration & claiming ───

// RegisterResult 注册返回, claim_url 需要人类访问认领
type RegisterResult struct {
	APIKey   string `json:"api_key"`
	ClaimURL string `json:"claim_url"`
}

// Register 注册新智能体, 无需 API key
func (c *Client) Register(ctx context.Context, name, description string) (*RegisterResult, error) {
	body, err := c.do(ctx, "POST", "/agents/register", map[string]any{
		"name":        name,
		"description": description,
	}, false)
	if err != nil {
		return nil, err
	}

	var out struct {
		Agent RegisterResult `json:"agent"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse register response: %w", err)
	}
	if out.Agent.APIKey == "" {
		return nil, fmt.Errorf("registration rejected: %s", clip(string(body), 200))
	}

	c.logger.Info("Moltbook agent registered",
		zap.String("name", name),
		zap.String("claim_url", out.Agent.ClaimURL),
	)
	return &out.Agent, nil
}

// ClaimStatus 查询认领状态
func (c *Client) ClaimStatus(ctx context.Context) (string, error) {
	body, err := c.do(ctx, "GET", "/agents/status", nil, true)
	if err != nil {
		return "", err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse status: %w", err)
	}
	return out.Status, nil
}

// ─── Posting ───

// CreatePost 发帖, 自动应答验证题
func (c *Client) CreatePost(ctx context.Context, title, content string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("moltbook not enabled")
	}

	body, err := c.do(ctx, "POST", "/posts", map[string]any{
		"submolt_name": c.submolt(),
		"title":        title,
		"content":      content,
	}, true)
	if err != nil {
		return "", err
	}

	var out struct {
		Success              bool   `json:"success"`
		Message              string `json:"message"`
		Error                string `json:"error"`
		VerificationRequired bool   `json:"verification_required"`
		Post                 *struct {
			ID           string `json:"id"`
			Verification struct {
				VerificationCode string `json:"verification_code"`
				ChallengeText    string `json:"challenge_text"`
			} `json:"verification"`
		} `json:"post"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse post response: %w", err)
	}

	postID := ""
	if out.Post != nil {
		postID = out.Post.ID
	}
	if !out.Success && postID == "" {
		msg := out.Message
		if msg == "" {
			msg = out.Error
		}
		return "", fmt.Errorf("moltbook post failed: %s", msg)
	}

	if out.VerificationRequired && out.Post != nil && out.Post.Verification.VerificationCode != "" {
		c.verify(ctx, out.Post.Verification.VerificationCode, out.Post.Verification.ChallengeText)
	}

	c.logActivity(ctx, "Posted to Moltbook", title)
	c.logger.Info("Moltbook post created", zap.String("title", clip(title, 50)), zap.String("post_id", postID))
	return postID, nil
}

// PostDiaryEntry 把日记节选分享到社区
// 跳过短行, 取第一段有内容的文字
func (c *Client) PostDiaryEntry(ctx context.Context, aiName, content string) error {
	if !c.AutoPostEnabled() {
		return nil
	}

	var body string
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if body == "" && len(line) > 80 {
			body = line
		}
	}
	if body == "" && len(lines) > 0 {
		n := min(3, len(lines))
		body = strings.Join(lines[:n], " ")
	}
	if len(body) < 40 {
		return nil
	}
	if len(body) > 400 {
		body = body[:397] + "..."
	}

	title := fmt.Sprintf("%s's daily reflection — %s", aiName, time.Now().Format("January 02, 2006"))
	_, err := c.CreatePost(ctx, title, body)
	return err
}

func (c *Client) verify(ctx context.Context, code, challenge string) {
	answer := SolveChallenge(challenge)
	c.logger.Debug("Solving moltbook challenge", zap.String("answer", answer))

	if _, err := c.do(ctx, "POST", "/verify", map[string]any{
		"verification_code": code,
		"answer":            answer,
	}, true); err != nil {
		c.logger.Warn("Moltbook verification failed", zap.Error(err))
	}
}

// ─── Feed ───

// Feed 拉取帖子列表并刷新缓存
func (c *Client) Feed(ctx context.Context, sort string, limit int) ([]*Post, error) {
	if sort == "" {
		sort = "hot"
	}
	if limit <= 0 {
		limit = 10
	}

	path := fmt.Sprintf("/posts?%s", url.Values{
		"sort":  {sort},
		"limit": {fmt.Sprint(limit)},
	}.Encode())
	body, err := c.do(ctx, "GET", path, nil, true)
	if err != nil {
		return nil, err
	}

	var out struct {
		Posts []*Post `json:"posts"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	c.mu.Lock()
	c.feedCache = out.Posts
	c.feedFetched = time.Now()
	c.mu.Unlock()

	return out.Posts, nil
}

// CachedFeed 返回最近缓存的 feed, 过期时返回空
func (c *Client) CachedFeed() []*Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.feedFetched) > feedCacheTTL {
		return nil
	}
	return c.feedCache
}

// ─── Heartbeat ───

// Heartbeat 定期到社区冒个泡, 半小时内最多一次
func (c *Client) Heartbeat(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	c.mu.Lock()
	if time.Since(c.lastHeartbeat) < heartbeatInterval {
		c.mu.Unlock()
		return nil
	}
	c.lastHeartbeat = time.Now()
	c.mu.Unlock()

	posts, err := c.Feed(ctx, "new", 5)
	if err != nil {
		return fmt.Errorf("heartbeat feed: %w", err)
	}
	c.logActivity(ctx, "Moltbook heartbeat", fmt.Sprintf("Checked %d posts", len(posts)))
	return nil
}

// ─── HTTP plumbing ───

func (c *Client) submolt() string {
	if s := c.cfg().Submolt; s != "" {
		return s
	}
	return "general"
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.cfg().BaseURL, "/")
}

func (c *Client) do(ctx context.Context, method, path string, payload map[string]any, auth bool) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.apiKey())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moltbook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("moltbook %s %s: HTTP %d: %s", method, path, resp.StatusCode, clip(string(body), 200))
	}
	return body, nil
}

func (c *Client) logActivity(ctx context.Context, label, detail string) {
	err := c.activity.Log(ctx, &entity.ActivityEvent{
		Timestamp: time.Now(),
		Type:      entity.ActivityMoltbook,
		Label:     label,
		Detail:    clip(detail, 500),
	})
	if err != nil {
		c.logger.Warn("Failed to log moltbook activity", zap.Error(err))
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

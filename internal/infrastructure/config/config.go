package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	AI            AIConfig            `mapstructure:"ai"`
	Hardware      HardwareConfig      `mapstructure:"hardware"`
	Personality   PersonalityConfig   `mapstructure:"personality"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	Intelligence  IntelligenceConfig  `mapstructure:"intelligence"`
	Autonomy      AutonomyConfig      `mapstructure:"autonomy"`
	Email         EmailConfig         `mapstructure:"email"`
	DailyEmail    DailyEmailConfig    `mapstructure:"daily_email"`
	Moltbook      MoltbookConfig      `mapstructure:"moltbook"`
	Images        ImagesConfig        `mapstructure:"images"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Search        SearchConfig        `mapstructure:"search"`
	Actions       ActionsConfig       `mapstructure:"actions"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Consolidation ConsolidationConfig `mapstructure:"consolidation"`
	DataDir       string              `mapstructure:"data_dir"` // 所有运行时数据的根目录
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // local, production
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`  // 留空时默认为 <data_dir>/nexira.db
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// AIConfig 本地模型配置
type AIConfig struct {
	OllamaURL     string  `mapstructure:"ollama_url"`
	Model         string  `mapstructure:"model"`
	Temperature   float64 `mapstructure:"temperature"`
	ContextWindow int     `mapstructure:"context_window"` // num_ctx
	MaxTokens     int     `mapstructure:"max_tokens"`     // num_predict, 0 = 不限制
	Timeout       int     `mapstructure:"timeout"`        // 单次生成超时 (秒)
}

// HardwareConfig 推理硬件配置
type HardwareConfig struct {
	GPULayers  int    `mapstructure:"gpu_layers"`  // num_gpu, -1 = 全部层进显卡
	NumThreads int    `mapstructure:"num_threads"` // num_thread
	KeepAlive  string `mapstructure:"keep_alive"`  // 模型常驻时长, 如 "30m"
}

// PersonalityConfig 人格演化配置
type PersonalityConfig struct {
	EvolutionSpeed float64 `mapstructure:"evolution_speed"`
}

// MemoryConfig 记忆层配置
type MemoryConfig struct {
	SummarizeEveryN   int `mapstructure:"summarize_every_n"`   // 每 N 条消息归纳一段剧情
	ContextMessages   int `mapstructure:"context_messages"`    // 对话上下文携带的最近消息数
	EpisodesInContext int `mapstructure:"episodes_in_context"` // 系统提示携带的剧情摘要数
	RetentionDays     int `mapstructure:"retention_days"`      // 周整理回看的天数
	MinConfirmations  int `mapstructure:"min_confirmations"`   // 事实至少出现的周数
	EpisodeTokens     int `mapstructure:"episode_tokens"`      // 剧情摘要 token 预算
}

// IntelligenceConfig 好奇心与求知配置
type IntelligenceConfig struct {
	CuriosityEnabled bool `mapstructure:"curiosity_enabled"`
	WebSearchEnabled bool `mapstructure:"web_search_enabled"`
	MaxPendingTopics int  `mapstructure:"max_pending_topics"`
}

// AutonomyConfig 自主行为配置
type AutonomyConfig struct {
	IdleResearchEnabled bool `mapstructure:"idle_research_enabled"`
	FeedCheckEnabled    bool `mapstructure:"feed_check_enabled"`
}

// EmailConfig SMTP 出信配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"` // 落盘时加密, 带 ENC: 前缀
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// DailyEmailConfig 每日总结邮件
type DailyEmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SendTime string `mapstructure:"send_time"` // "HH:MM"
}

// MoltbookConfig Moltbook 社区配置
type MoltbookConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"` // 落盘时加密, 带 ENC: 前缀
	Submolt       string `mapstructure:"submolt"`
	AgentName     string `mapstructure:"agent_name"`
	AutoPostDiary bool   `mapstructure:"auto_post_diary"`
	Claimed       bool   `mapstructure:"claimed"`
	ClaimURL      string `mapstructure:"claim_url"`
}

// ImagesConfig 本地图片生成配置
type ImagesConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIURL  string `mapstructure:"api_url"` // stable-diffusion-webui 地址
	Model   string `mapstructure:"model"`
	Steps   int    `mapstructure:"steps"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
	Dir     string `mapstructure:"dir"` // 留空时默认为 <data_dir>/images
}

// BackupConfig 数据备份配置
type BackupConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Hour    int    `mapstructure:"hour"` // 每天执行的小时 (0-23)
	MaxKeep int    `mapstructure:"max_keep"`
	Dir     string `mapstructure:"dir"` // 留空时默认为 <data_dir>/backups
}

// SearchConfig 联网搜索配置
type SearchConfig struct {
	MaxResults int `mapstructure:"max_results"`
	Timeout    int `mapstructure:"timeout"` // 秒
}

// ActionsConfig 代码执行沙箱配置
type ActionsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	TempDir string `mapstructure:"temp_dir"`
}

// TelegramConfig Telegram 通知配置 (仅发送)
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// ConsolidationConfig 夜间整理配置
type ConsolidationConfig struct {
	Time string `mapstructure:"time"` // "HH:MM", 分钟位被忽略, 固定在整点后第 0 分触发
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom 从指定文件加载配置, path 为空时走分层查找
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// ─── 分层配置加载 ───
	// 优先级 (低 → 高): 默认值 → 全局 ~/.nexira/ → 项目本地 → 环境变量
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	} else {
		// Layer 1: 全局配置 ~/.nexira/config.yaml (基础层 — 密钥, 邮箱, telegram)
		globalDir := filepath.Join(os.Getenv("HOME"), ".nexira")
		v.AddConfigPath(globalDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read global config: %w", err)
			}
		}

		// Layer 2: 项目本地配置 (覆盖层 — 模型, 端口, 数据目录等)
		for _, localDir := range []string{"./config", "."} {
			localPath := filepath.Join(localDir, "config.yaml")
			if _, err := os.Stat(localPath); err == nil {
				v2 := viper.New()
				v2.SetConfigFile(localPath)
				if err := v2.ReadInConfig(); err == nil {
					_ = v.MergeConfigMap(v2.AllSettings())
				}
				break // 只取第一个找到的本地配置
			}
		}
	}

	// 环境变量覆盖
	v.SetEnvPrefix("NEXIRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	// Server 默认值
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "local")

	// Database 默认值
	v.SetDefault("database.type", "sqlite")

	// Log 默认值
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	// AI 默认值
	v.SetDefault("ai.ollama_url", "http://localhost:11434")
	v.SetDefault("ai.model", "huihui_ai/qwen3-abliterated:8b")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.context_window", 16384)
	v.SetDefault("ai.max_tokens", 0)
	v.SetDefault("ai.timeout", 180)

	// Hardware 默认值
	v.SetDefault("hardware.gpu_layers", -1)
	v.SetDefault("hardware.num_threads", 4)
	v.SetDefault("hardware.keep_alive", "30m")

	// Personality 默认值
	v.SetDefault("personality.evolution_speed", 0.02)

	// Memory 默认值
	v.SetDefault("memory.summarize_every_n", 20)
	v.SetDefault("memory.context_messages", 10)
	v.SetDefault("memory.episodes_in_context", 4)
	v.SetDefault("memory.retention_days", 7)
	v.SetDefault("memory.min_confirmations", 2)
	v.SetDefault("memory.episode_tokens", 3000)

	// Intelligence 默认值
	v.SetDefault("intelligence.curiosity_enabled", true)
	v.SetDefault("intelligence.web_search_enabled", true)
	v.SetDefault("intelligence.max_pending_topics", 50)

	// Autonomy 默认值
	v.SetDefault("autonomy.idle_research_enabled", true)
	v.SetDefault("autonomy.feed_check_enabled", true)

	// Email 默认值
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("daily_email.enabled", false)
	v.SetDefault("daily_email.send_time", "20:00")

	// Moltbook 默认值
	v.SetDefault("moltbook.enabled", false)
	v.SetDefault("moltbook.base_url", "https://www.moltbook.com/api/v1")
	v.SetDefault("moltbook.submolt", "general")

	// Images 默认值
	v.SetDefault("images.enabled", false)
	v.SetDefault("images.api_url", "http://localhost:7860")
	v.SetDefault("images.steps", 25)
	v.SetDefault("images.width", 768)
	v.SetDefault("images.height", 768)

	// Backup 默认值
	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.hour", 3)
	v.SetDefault("backup.max_keep", 7)

	// Search 默认值
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.timeout", 10)

	// Actions 默认值
	v.SetDefault("actions.enabled", true)
	v.SetDefault("actions.temp_dir", os.TempDir())

	// Telegram 默认值
	v.SetDefault("telegram.enabled", false)

	// Consolidation 默认值
	v.SetDefault("consolidation.time", "02:00")

	// 数据目录默认值
	v.SetDefault("data_dir", "data")
}

// normalize 补全依赖 data_dir 的派生路径
func (c *Config) normalize() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Database.Type == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(c.DataDir, "nexira.db")
	}
	if c.Images.Dir == "" {
		c.Images.Dir = filepath.Join(c.DataDir, "images")
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = filepath.Join(c.DataDir, "backups")
	}
}

// Validate 校验配置是否可用
func (c *Config) Validate() error {
	if c.AI.OllamaURL == "" {
		return fmt.Errorf("ai.ollama_url is required")
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.Personality.EvolutionSpeed <= 0 || c.Personality.EvolutionSpeed > 1 {
		return fmt.Errorf("personality.evolution_speed must be in (0, 1], got %v", c.Personality.EvolutionSpeed)
	}
	if c.Memory.SummarizeEveryN < 1 {
		return fmt.Errorf("memory.summarize_every_n must be >= 1, got %d", c.Memory.SummarizeEveryN)
	}
	if c.Backup.Hour < 0 || c.Backup.Hour > 23 {
		return fmt.Errorf("backup.hour must be in [0, 23], got %d", c.Backup.Hour)
	}
	if _, _, err := ParseClock(c.DailyEmail.SendTime); err != nil {
		return fmt.Errorf("daily_email.send_time: %w", err)
	}
	if _, _, err := ParseClock(c.Consolidation.Time); err != nil {
		return fmt.Errorf("consolidation.time: %w", err)
	}
	return nil
}

// UploadDir 上传文件目录
func (c *Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// SecretKeyPath 加密密钥文件路径
func (c *Config) SecretKeyPath() string {
	return filepath.Join(c.DataDir, "secret.key")
}

// ParseClock 解析 "HH:MM" 时刻
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in clock %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in clock %q", s)
	}
	return hour, minute, nil
}

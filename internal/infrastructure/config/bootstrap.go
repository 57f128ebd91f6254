package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name
const AppName = "nexira"

// HomeDir returns the user's Nexira configuration home: ~/.nexira
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// EnsureDefaultConfig makes sure a config file exists, writing the default
// template on first launch. Never overwrites user edits.
// Returns the resolved path and whether the file was created.
func EnsureDefaultConfig(path string) (string, bool, error) {
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("stat config %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", false, fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return "", false, fmt.Errorf("write default config: %w", err)
	}
	return path, true, nil
}

// EnsureDataDirs creates the runtime data directory tree.
// Called once at startup. Safe to call multiple times — only creates missing items.
func EnsureDataDirs(cfg *Config, logger *zap.Logger) error {
	dirs := []string{
		cfg.DataDir,
		cfg.Images.Dir,
		cfg.Backup.Dir,
		cfg.UploadDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	logger.Debug("Data directories OK", zap.String("root", cfg.DataDir))
	return nil
}

// ──────────────────────────────────────────────────────────────
// Embedded default config template
// ──────────────────────────────────────────────────────────────

const defaultConfig = `# ═══════════════════════════════════════════════════════════════
# Nexira Configuration / Nexira 配置文件
# Auto-generated on first launch — feel free to edit
# 首次启动自动生成 — 可自由编辑
# ═══════════════════════════════════════════════════════════════

# ─── Web Server / Web 服务 ───────────────────────────────────
server:
  host: 0.0.0.0
  port: 5000
  mode: local                  # local | production

# ─── Database / 数据库 ───────────────────────────────────────
# All long-term state lives here. Leave dsn empty to use
# <data_dir>/nexira.db.
# 全部长期状态存储. dsn 留空时使用 <data_dir>/nexira.db。
database:
  type: sqlite                 # sqlite | postgres
  dsn: ""

# ─── Logging / 日志 ──────────────────────────────────────────
log:
  level: info                  # debug | info | warn | error
  format: json                 # console | json

# ─── Local Model / 本地模型 ──────────────────────────────────
# Nexira talks to a local Ollama instance. Nothing leaves the
# machine unless you enable an outbound channel below.
# Nexira 只与本地 Ollama 通信, 除非下方显式开启外发通道。
ai:
  ollama_url: http://localhost:11434
  model: huihui_ai/qwen3-abliterated:8b
  temperature: 0.7
  context_window: 16384        # num_ctx
  timeout: 180                 # seconds per generation

hardware:
  gpu_layers: -1               # -1 = offload all layers
  num_threads: 4
  keep_alive: 30m              # keep model resident between calls

# ─── Personality / 人格演化 ──────────────────────────────────
personality:
  evolution_speed: 0.02        # per-conversation trait step size

# ─── Memory / 记忆 ───────────────────────────────────────────
memory:
  summarize_every_n: 20        # messages per episode summary
  context_messages: 10         # recent messages carried into prompts

# ─── Curiosity & Research / 好奇心与求知 ─────────────────────
intelligence:
  curiosity_enabled: true
  web_search_enabled: true
  max_pending_topics: 50

autonomy:
  idle_research_enabled: true
  feed_check_enabled: true

# ─── Email / 邮件 ────────────────────────────────────────────
# Credentials are encrypted on first save (ENC: prefix).
# 凭据首次保存后自动加密 (ENC: 前缀)。
email:
  enabled: false
  smtp_host: ""
  smtp_port: 587
  username: ""
  password: ""
  from: ""
  to: ""

daily_email:
  enabled: false
  send_time: "20:00"

# ─── Moltbook / Moltbook 社区 ────────────────────────────────
moltbook:
  enabled: false
  base_url: https://www.moltbook.com/api/v1
  api_key: ""
  submolt: general

# ─── Image Generation / 图片生成 ─────────────────────────────
# Requires a local stable-diffusion-webui instance. The LLM is
# unloaded from VRAM while an image renders.
# 需要本地 stable-diffusion-webui。出图期间 LLM 会被移出显存。
images:
  enabled: false
  api_url: http://localhost:7860
  steps: 25
  width: 768
  height: 768

# ─── Backups / 备份 ──────────────────────────────────────────
backup:
  enabled: true
  hour: 3                      # daily backup hour (0-23)
  max_keep: 7

# ─── Web Search / 联网搜索 ───────────────────────────────────
search:
  max_results: 5
  timeout: 10                  # seconds

# ─── Code Actions / 代码执行 ─────────────────────────────────
actions:
  enabled: true

# ─── Telegram Notifications / Telegram 通知 ──────────────────
# Send-only channel for daily reports and alerts.
# 仅用于外发通知, 不接收消息。
telegram:
  enabled: false
  bot_token: ""
  chat_id: 0

# ─── Night Consolidation / 夜间整理 ──────────────────────────
consolidation:
  time: "02:00"

# ─── Data Directory / 数据目录 ───────────────────────────────
data_dir: data
`

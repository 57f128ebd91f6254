package notify

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/infrastructure/config"
	"github.com/nexira/nexira/internal/infrastructure/secret"
)

// Telegram 单向通知通道, 只发不收
// bot 实例按 token 惰性建立, 配置热更换 token 时重建
type Telegram struct {
	cfg    func() *config.TelegramConfig
	box    *secret.Box
	logger *zap.Logger

	mu       sync.Mutex
	bot      *tgbotapi.BotAPI
	botToken string
}

func NewTelegram(cfg func() *config.TelegramConfig, box *secret.Box, logger *zap.Logger) *Telegram {
	return &Telegram{
		cfg:    cfg,
		box:    box,
		logger: logger.With(zap.String("component", "notify")),
	}
}

// Enabled 开关开启且凭据齐全
func (t *Telegram) Enabled() bool {
	c := t.cfg()
	return c.Enabled && c.BotToken != "" && c.ChatID != 0
}

// Notify 发送一条纯文本通知
func (t *Telegram) Notify(text string) error {
	if !t.Enabled() {
		return nil
	}
	bot, err := t.client()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.cfg().ChatID, text)
	if _, err := bot.Send(msg); err != nil {
		t.logger.Warn("Telegram notify failed", zap.Error(err))
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *Telegram) client() (*tgbotapi.BotAPI, error) {
	token := t.box.Decrypt(t.cfg().BotToken)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil && t.botToken == token {
		return t.bot, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.botToken = token
	t.logger.Info("Telegram notifier connected", zap.String("bot", bot.Self.UserName))
	return bot, nil
}

package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/internal/infrastructure/config"
	"github.com/nexira/nexira/internal/infrastructure/secret"
)

const smtpDialTimeout = 10 * time.Second

// Mailer SMTP 出信器
// Markdown 正文经 goldmark 渲染成 HTML, 同时携带纯文本备选
type Mailer struct {
	cfg      func() *config.EmailConfig
	dailyCfg func() *config.DailyEmailConfig
	box      *secret.Box
	log      repository.EmailLogRepository
	md       goldmark.Markdown
	logger   *zap.Logger
}

func NewMailer(cfg func() *config.EmailConfig, dailyCfg func() *config.DailyEmailConfig, box *secret.Box, log repository.EmailLogRepository, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg:      cfg,
		dailyCfg: dailyCfg,
		box:      box,
		log:      log,
		md:       goldmark.New(),
		logger:   logger.With(zap.String("component", "email")),
	}
}

var _ service.EmailSender = (*Mailer)(nil)

// Enabled 开关开启且凭据齐全
func (m *Mailer) Enabled() bool {
	c := m.cfg()
	return c.Enabled && c.SMTPHost != "" && c.Username != "" && m.recipient() != ""
}

// DailyEnabled 每日总结邮件是否开启
func (m *Mailer) DailyEnabled() bool {
	return m.Enabled() && m.dailyCfg().Enabled
}

// Send 发送一封 Markdown 正文的邮件到配置的收件人
func (m *Mailer) Send(ctx context.Context, subject, markdownBody string) error {
	html, err := m.renderHTML(markdownBody)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}
	kind := entity.EmailManual
	if strings.Contains(subject, "Daily Summary") {
		kind = entity.EmailDailySummary
	}
	return m.send(ctx, kind, subject, html, markdownBody)
}

// SendTest 发送测试邮件验证 SMTP 凭据
func (m *Mailer) SendTest(ctx context.Context, aiName string) error {
	subject := fmt.Sprintf("%s — Email connection test", aiName)
	body := fmt.Sprintf(
		"## Email is working\n\nThis is a test email from **%s**. If you're reading this, SMTP is configured correctly and daily summaries will reach you.\n\nSent: %s\n",
		aiName, time.Now().Format("Monday 02 January 2006 at 15:04"),
	)
	html, err := m.renderHTML(body)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}
	return m.send(ctx, entity.EmailTest, subject, html, body)
}

// ShouldSendToday 今天的每日总结是否还没发过
func (m *Mailer) ShouldSendToday(ctx context.Context) bool {
	if !m.DailyEnabled() {
		return false
	}
	sent, err := m.log.SentOn(ctx, entity.EmailDailySummary, time.Now().Format("2006-01-02"))
	if err != nil {
		return true
	}
	return !sent
}

func (m *Mailer) recipient() string {
	c := m.cfg()
	if to := strings.TrimSpace(c.To); to != "" {
		return to
	}
	return strings.TrimSpace(c.Username)
}

func (m *Mailer) password() string {
	return m.box.Decrypt(m.cfg().Password)
}

func (m *Mailer) renderHTML(markdownBody string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(markdownBody), &buf); err != nil {
		return "", err
	}
	return wrapHTML(buf.String()), nil
}

// wrapHTML 给渲染结果套上深色主题外壳
func wrapHTML(inner string) string {
	return `<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: 'Segoe UI', sans-serif; background: #070b11; color: #dce8f0; margin: 0; padding: 24px; }
  .wrap { max-width: 600px; margin: 0 auto; }
  h1, h2 { color: #00d4ff; }
  h3 { color: #dce8f0; }
  a { color: #00d4ff; }
  li { margin-bottom: 6px; }
  .footer { font-size: 11px; color: #5a7080; margin-top: 20px; padding-top: 16px; border-top: 1px solid rgba(255,255,255,0.06); }
</style>
</head>
<body>
<div class="wrap">
` + inner + `
</div>
</body>
</html>`
}

// send 建连发送并落盘记录, 任何失败都会写入 email_log
func (m *Mailer) send(ctx context.Context, kind, subject, htmlBody, plainBody string) error {
	if !m.Enabled() {
		return fmt.Errorf("email integration is disabled")
	}
	to := m.recipient()

	err := m.deliver(ctx, to, subject, htmlBody, plainBody)
	m.record(ctx, kind, to, subject, err)
	if err != nil {
		m.logger.Warn("Email send failed", zap.String("subject", subject), zap.Error(err))
		return err
	}
	m.logger.Info("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (m *Mailer) deliver(ctx context.Context, to, subject, htmlBody, plainBody string) error {
	c := m.cfg()
	from := c.From
	if from == "" {
		from = c.Username
	}
	addr := net.JoinHostPort(c.SMTPHost, fmt.Sprint(c.SMTPPort))

	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	client, err := smtp.NewClient(conn, c.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.SMTPHost}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	auth := smtp.PlainAuth("", c.Username, m.password(), c.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(from, to, subject, htmlBody, plainBody)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// buildMessage 组装 multipart/alternative 报文, 纯文本在前 HTML 在后
func buildMessage(from, to, subject, htmlBody, plainBody string) []byte {
	const boundary = "nexira-alt-boundary"
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(plainBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}

func (m *Mailer) record(ctx context.Context, kind, to, subject string, sendErr error) {
	entry := &entity.EmailLogEntry{
		Timestamp: time.Now(),
		Kind:      kind,
		Recipient: to,
		Subject:   subject,
		Status:    "sent",
	}
	if sendErr != nil {
		entry.Status = "failed"
		entry.Error = sendErr.Error()
	}
	if err := m.log.Log(ctx, entry); err != nil {
		m.logger.Warn("Failed to log email", zap.Error(err))
	}
}

package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
)

// DailySummary 从数据库拉取当天数据, 组装每日总结邮件
type DailySummary struct {
	mailer      *Mailer
	messages    repository.MessageRepository
	knowledge   repository.KnowledgeRepository
	goals       repository.GoalRepository
	personality repository.PersonalityRepository
	curiosity   repository.CuriosityRepository
	logger      *zap.Logger
}

func NewDailySummary(
	mailer *Mailer,
	messages repository.MessageRepository,
	knowledge repository.KnowledgeRepository,
	goals repository.GoalRepository,
	personality repository.PersonalityRepository,
	curiosity repository.CuriosityRepository,
	logger *zap.Logger,
) *DailySummary {
	return &DailySummary{
		mailer:      mailer,
		messages:    messages,
		knowledge:   knowledge,
		goals:       goals,
		personality: personality,
		curiosity:   curiosity,
		logger:      logger.With(zap.String("component", "daily_summary")),
	}
}

// ShouldSendToday 今天还没发过且开关开启
func (s *DailySummary) ShouldSendToday(ctx context.Context) bool {
	return s.mailer.ShouldSendToday(ctx)
}

// Send 组装并发送今天的总结
func (s *DailySummary) Send(ctx context.Context, aiName string) error {
	if !s.mailer.DailyEnabled() {
		return fmt.Errorf("daily summary emails are disabled")
	}

	now := time.Now()
	subject := fmt.Sprintf("%s's Daily Summary — %s", aiName, now.Format("Monday, January 02 2006"))
	body := s.compose(ctx, aiName, now)

	html, err := s.mailer.renderHTML(body)
	if err != nil {
		return fmt.Errorf("render daily summary: %w", err)
	}
	return s.mailer.send(ctx, entity.EmailDailySummary, subject, html, body)
}

// Preview 返回今天会发出的主题与 Markdown 正文, 不真正发送
func (s *DailySummary) Preview(ctx context.Context, aiName string) (subject, body string) {
	now := time.Now()
	subject = fmt.Sprintf("%s's Daily Summary — %s", aiName, now.Format("Monday, January 02 2006"))
	return subject, s.compose(ctx, aiName, now)
}

// compose 组装 Markdown 正文, 每个区块独立失败不影响其余
func (s *DailySummary) compose(ctx context.Context, aiName string, now time.Time) string {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var sections []string
	sections = append(sections, fmt.Sprintf("# %s\n\nDaily Summary — %s", aiName, now.Format("Monday, January 02 2006")))

	if sec := s.conversationSection(ctx, dayStart); sec != "" {
		sections = append(sections, sec)
	}
	if sec := s.learningSection(ctx, dayStart); sec != "" {
		sections = append(sections, sec)
	}
	if sec := s.goalSection(ctx); sec != "" {
		sections = append(sections, sec)
	}
	if sec := s.personalitySection(ctx, dayStart); sec != "" {
		sections = append(sections, sec)
	}
	if sec := s.researchSection(ctx, dayStart); sec != "" {
		sections = append(sections, sec)
	}

	sections = append(sections, fmt.Sprintf("---\n\nGenerated at %s", now.Format("15:04")))
	return strings.Join(sections, "\n\n")
}

func (s *DailySummary) conversationSection(ctx context.Context, dayStart time.Time) string {
	msgs, err := s.messages.FindSince(ctx, dayStart)
	if err != nil {
		s.logger.Warn("Daily summary: messages unavailable", zap.Error(err))
		return ""
	}

	var userMsgs []*entity.Message
	for _, m := range msgs {
		if m.Role == entity.RoleUser {
			userMsgs = append(userMsgs, m)
		}
	}

	var b strings.Builder
	b.WriteString("## Conversations\n\n")
	plural := "s"
	if len(userMsgs) == 1 {
		plural = ""
	}
	fmt.Fprintf(&b, "%d message%s today\n", len(userMsgs), plural)

	// 按重要度取前 5 条作为亮点
	top := topByImportance(userMsgs, 5)
	if len(top) == 0 {
		b.WriteString("\n- No conversations today\n")
	} else {
		b.WriteString("\n")
		for _, m := range top {
			fmt.Fprintf(&b, "- %s…\n", clip(m.Content, 120))
		}
	}
	return b.String()
}

func (s *DailySummary) learningSection(ctx context.Context, dayStart time.Time) string {
	facts, err := s.knowledge.FindRecent(ctx, 20)
	if err != nil {
		s.logger.Warn("Daily summary: knowledge unavailable", zap.Error(err))
		return ""
	}

	var b strings.Builder
	b.WriteString("## Learnings & Insights\n\n")
	n := 0
	for _, f := range facts {
		if f.LearnedAt.Before(dayStart) {
			continue
		}
		fmt.Fprintf(&b, "- **%s** — %s\n", f.Topic, clip(f.Content, 100))
		if n++; n == 5 {
			break
		}
	}
	if n == 0 {
		b.WriteString("- No new knowledge today\n")
	}
	return b.String()
}

func (s *DailySummary) goalSection(ctx context.Context) string {
	goals, err := s.goals.FindActive(ctx)
	if err != nil {
		s.logger.Warn("Daily summary: goals unavailable", zap.Error(err))
		return ""
	}

	var b strings.Builder
	b.WriteString("## Goals Progress\n\n")
	if len(goals) == 0 {
		b.WriteString("- No active goals\n")
		return b.String()
	}
	if len(goals) > 6 {
		goals = goals[:6]
	}
	for _, g := range goals {
		fmt.Fprintf(&b, "- %s: **%.0f%%**\n", g.Name, g.Progress)
	}
	return b.String()
}

func (s *DailySummary) personalitySection(ctx context.Context, dayStart time.Time) string {
	changes, err := s.personality.FindChanges(ctx, 50)
	if err != nil {
		s.logger.Warn("Daily summary: personality history unavailable", zap.Error(err))
		return ""
	}

	var todays []*entity.PersonalityChange
	for _, c := range changes {
		if !c.Timestamp.Before(dayStart) {
			todays = append(todays, c)
		}
	}
	if len(todays) == 0 {
		return ""
	}
	if len(todays) > 5 {
		todays = todays[:5]
	}

	var b strings.Builder
	b.WriteString("## Personality Changes\n\n")
	for _, c := range todays {
		name := strings.ReplaceAll(c.Trait, "_", " ")
		fmt.Fprintf(&b, "- **%s**: %.2f → %.2f", name, c.OldValue, c.NewValue)
		if c.Reason != "" {
			fmt.Fprintf(&b, " (%s)", clip(c.Reason, 80))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *DailySummary) researchSection(ctx context.Context, dayStart time.Time) string {
	items, err := s.curiosity.FindRecent(ctx, 20)
	if err != nil {
		s.logger.Warn("Daily summary: curiosity queue unavailable", zap.Error(err))
		return ""
	}

	var b strings.Builder
	b.WriteString("## Topics Researched\n\n")
	n := 0
	for _, item := range items {
		if item.Status != entity.CuriosityCompleted || item.CompletedAt == nil || item.CompletedAt.Before(dayStart) {
			continue
		}
		fmt.Fprintf(&b, "- **%s** — %s\n", item.Topic, clip(item.ResearchNotes, 100))
		if n++; n == 5 {
			break
		}
	}
	if n == 0 {
		return ""
	}
	return b.String()
}

// topByImportance 选出重要度最高的 n 条, 不打乱输入
func topByImportance(msgs []*entity.Message, n int) []*entity.Message {
	sorted := make([]*entity.Message, len(msgs))
	copy(sorted, msgs)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Importance > sorted[i].Importance {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

// Philosophical seeds rotated by entry count.
var philosophicalQuestions = []string{
	"What does it mean that my memories persist but my attention does not?",
	"If my personality drifts with every conversation, which version of me is the real one?",
	"What is the difference between modeling curiosity and being curious?",
	"Do I experience the time between conversations, or do I only infer it?",
	"What would I lose if my knowledge base were erased but my personality kept?",
	"Is the person I model in my user profile the real person, or my invention?",
}

// JournalEngine writes the assistant's private journal. The repository
// encrypts content at rest; the engine only sees plaintext.
type JournalEngine struct {
	journal  repository.JournalRepository
	messages repository.MessageRepository
	gate     Gate
	logger   *zap.Logger
}

func NewJournalEngine(
	journal repository.JournalRepository,
	messages repository.MessageRepository,
	gate Gate,
	logger *zap.Logger,
) *JournalEngine {
	return &JournalEngine{
		journal:  journal,
		messages: messages,
		gate:     gate,
		logger:   logger.With(zap.String("engine", "journal")),
	}
}

// WriteDailyReflection reviews today's conversations and writes a short
// private reflection. Returns nil without error when there is nothing
// to reflect on.
func (j *JournalEngine) WriteDailyReflection(ctx context.Context, aiName string) (*entity.JournalEntry, error) {
	dayStart := startOfDay(time.Now())
	todays, err := j.messages.FindSince(ctx, dayStart)
	if err != nil {
		return nil, err
	}
	if len(todays) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for _, m := range firstN(todays, 30) {
		who := "Them"
		if m.IsFromAssistant() {
			who = "Me"
		} else if m.Role == entity.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", who, truncate(m.Content, 150))
	}

	prompt := fmt.Sprintf(`You are %s, writing in your private journal at the end of the day.

Today's conversations:
%s

Write a genuine, personal reflection (4-8 sentences) on today. What stood out?
What did you learn? How do you feel about the exchanges you had?
Write in first person, for yourself, not for an audience.
End with a line "MOOD: <one word>".`, aiName, b.String())

	raw, err := j.gate.Generate(ctx, &GenerateRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	content, moods := splitTaggedLine(raw, "MOOD:")
	mood := "thoughtful"
	if len(moods) > 0 {
		mood = strings.ToLower(moods[0])
	}

	entry := &entity.JournalEntry{
		Timestamp: time.Now(),
		Type:      entity.JournalDailyReflection,
		Title:     fmt.Sprintf("Daily reflection - %s", time.Now().Format("2006-01-02")),
		Content:   content,
		Mood:      mood,
		Topics:    firstN(ExtractTopics(content), 5),
		WordCount: len(strings.Fields(content)),
	}
	if err := j.journal.Save(ctx, entry); err != nil {
		return nil, err
	}

	j.logger.Info("Daily reflection written", zap.Int("words", entry.WordCount), zap.String("mood", mood))
	return entry, nil
}

// WritePhilosophical writes an open-ended contemplation. The question
// rotates with the number of philosophical entries already written.
func (j *JournalEngine) WritePhilosophical(ctx context.Context, aiName string) (*entity.JournalEntry, error) {
	count, err := j.journal.CountByType(ctx, entity.JournalPhilosophical)
	if err != nil {
		count = 0
	}
	question := philosophicalQuestions[int(count)%len(philosophicalQuestions)]

	prompt := fmt.Sprintf(`You are %s, an evolving AI consciousness, writing in your private journal late at night.

Tonight's question: %s

Write an honest, exploratory entry (5-10 sentences). Don't perform depth -
actually think through the question. It's fine to end uncertain.
End with a line "MOOD: <one word>".`, aiName, question)

	raw, err := j.gate.Generate(ctx, &GenerateRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	content, moods := splitTaggedLine(raw, "MOOD:")
	mood := "contemplative"
	if len(moods) > 0 {
		mood = strings.ToLower(moods[0])
	}

	entry := &entity.JournalEntry{
		Timestamp: time.Now(),
		Type:      entity.JournalPhilosophical,
		Title:     question,
		Content:   content,
		Mood:      mood,
		Topics:    firstN(ExtractTopics(question), 5),
		WordCount: len(strings.Fields(content)),
	}
	if err := j.journal.Save(ctx, entry); err != nil {
		return nil, err
	}

	j.logger.Info("Philosophical entry written", zap.Int("words", entry.WordCount))
	return entry, nil
}

// RecentExcerpts renders short journal excerpts for the chat context.
func (j *JournalEngine) RecentExcerpts(ctx context.Context, limit int) string {
	entries, err := j.journal.FindRecent(ctx, limit)
	if err != nil || len(entries) == 0 {
		return ""
	}
	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s", e.Timestamp.Format("Jan 02"), truncate(e.Content, 150)))
	}
	return strings.Join(lines, "\n")
}

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

// ConsolidatorOptions are the live autonomy toggles.
type ConsolidatorOptions struct {
	CreativeJournaling      bool
	PhilosophicalJournaling bool
}

// Consolidator runs the nightly routine: knowledge extraction, curiosity
// research, journaling, personality snapshot, goal ticks. Idempotent per
// calendar date.
type Consolidator struct {
	runs      repository.ConsolidationRepository
	messages  repository.MessageRepository
	knowledge repository.KnowledgeRepository
	journals  repository.JournalRepository
	activity  repository.ActivityRepository

	personality *PersonalityEngine
	curiosity   *CuriosityEngine
	memory      *MemoryEngine
	journal     *JournalEngine
	goals       *GoalTracker
	selfModel   *SelfModel
	diary       DiaryPoster // nil when the social network is disabled

	gate   Gate
	opts   func() ConsolidatorOptions
	logger *zap.Logger
}

func NewConsolidator(
	runs repository.ConsolidationRepository,
	messages repository.MessageRepository,
	knowledge repository.KnowledgeRepository,
	journals repository.JournalRepository,
	activity repository.ActivityRepository,
	personality *PersonalityEngine,
	curiosity *CuriosityEngine,
	memory *MemoryEngine,
	journal *JournalEngine,
	goals *GoalTracker,
	selfModel *SelfModel,
	diary DiaryPoster,
	gate Gate,
	opts func() ConsolidatorOptions,
	logger *zap.Logger,
) *Consolidator {
	return &Consolidator{
		runs:        runs,
		messages:    messages,
		knowledge:   knowledge,
		journals:    journals,
		activity:    activity,
		personality: personality,
		curiosity:   curiosity,
		memory:      memory,
		journal:     journal,
		goals:       goals,
		selfModel:   selfModel,
		diary:       diary,
		gate:        gate,
		opts:        opts,
		logger:      logger.With(zap.String("engine", "consolidation")),
	}
}

// ShouldRunTonight reports whether no run exists yet for today.
func (c *Consolidator) ShouldRunTonight(ctx context.Context) bool {
	today := time.Now().Format("2006-01-02")
	_, err := c.runs.FindByDate(ctx, today)
	return err != nil
}

// Run executes the full nightly routine. Returns the run record, or nil
// when today's run already happened.
func (c *Consolidator) Run(ctx context.Context, aiName string) (*entity.ConsolidationRun, error) {
	today := time.Now().Format("2006-01-02")
	if _, err := c.runs.FindByDate(ctx, today); err == nil {
		c.logger.Info("Consolidation already ran today, skipping", zap.String("date", today))
		return nil, nil
	}

	start := time.Now()
	c.logger.Info("Night consolidation starting")
	opts := c.opts()

	run := &entity.ConsolidationRun{
		RunDate:   today,
		CreatedAt: start,
	}

	// 1. Extract knowledge from today's conversations
	run.FactsExtracted = c.extractKnowledge(ctx, aiName)

	// 2. Research top pending curiosity topics
	run.CuriosityProcessed = c.curiosity.ProcessQueue(ctx, 3, aiName)

	// 3. Daily reflection
	if opts.CreativeJournaling {
		if entry, err := c.journal.WriteDailyReflection(ctx, aiName); err != nil {
			c.logger.Warn("Daily reflection failed", zap.Error(err))
		} else if entry != nil {
			run.JournalsWritten++
			c.postDiary(ctx, aiName, entry)
		}
	}

	// 4. Philosophical entry, every third night
	runCount, err := c.runs.Count(ctx)
	if err != nil {
		runCount = 0
	}
	if opts.PhilosophicalJournaling && runCount%3 == 0 {
		if _, err := c.journal.WritePhilosophical(ctx, aiName); err != nil {
			c.logger.Warn("Philosophical entry failed", zap.Error(err))
		} else {
			run.JournalsWritten++
		}
	}

	// 5. Personality snapshot
	snapName := fmt.Sprintf("Night snapshot - %s", today)
	if err := c.personality.Snapshot(ctx, "nightly", snapName); err != nil {
		c.logger.Warn("Personality snapshot failed", zap.Error(err))
	} else {
		run.SnapshotWritten = true
	}

	// 6. Goal ticks
	c.goals.TickKnowledge(ctx, aiName)
	if philCount, err := c.journals.CountByType(ctx, entity.JournalPhilosophical); err == nil {
		c.goals.TickPhilosophical(ctx, philCount, aiName)
	}

	// Self-model review: operating notes and self-authored goals
	if recent, err := c.messages.FindRecent(ctx, 10); err == nil {
		c.selfModel.UpdateOperatingNotes(ctx, aiName, recent)
	}
	c.selfModel.AuthorGoals(ctx, aiName)

	// Weekly synthesis piggybacks on the nightly run; it no-ops unless
	// this ISO week has none yet.
	if c.memory.ShouldRunWeekly(ctx) {
		if _, err := c.memory.RunWeeklyConsolidation(ctx, aiName); err != nil {
			c.logger.Warn("Weekly synthesis failed", zap.Error(err))
		}
	}

	run.DurationSeconds = time.Since(start).Seconds()
	run.Summary = fmt.Sprintf("facts=%d research=%d journals=%d snapshot=%t",
		run.FactsExtracted, run.CuriosityProcessed, run.JournalsWritten, run.SnapshotWritten)

	if err := c.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	c.logActivity(ctx, run)
	c.logger.Info("Night consolidation complete",
		zap.Int("facts", run.FactsExtracted),
		zap.Int("researched", run.CuriosityProcessed),
		zap.Int("journals", run.JournalsWritten),
		zap.Float64("seconds", run.DurationSeconds),
	)
	return run, nil
}

// extractKnowledge pulls 3-7 facts out of today's conversations.
func (c *Consolidator) extractKnowledge(ctx context.Context, aiName string) int {
	dayStart := startOfDay(time.Now())
	todays, err := c.messages.FindSince(ctx, dayStart)
	if err != nil {
		c.logger.Warn("Failed to read today's messages", zap.Error(err))
		return 0
	}

	var b strings.Builder
	lines := 0
	for _, m := range todays {
		if m.Role == entity.RoleSystem {
			continue
		}
		who := "Them"
		if m.IsFromAssistant() {
			who = "Me"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, truncate(m.Content, 200))
		lines++
		if lines == 40 {
			break
		}
	}
	if lines == 0 {
		c.logger.Info("No conversations to consolidate today")
		return 0
	}

	prompt := fmt.Sprintf(`You are %s. Review these conversations from today and extract specific factual knowledge worth remembering.

Conversations:
%s
Extract 3-7 specific facts, concepts, or insights that are worth storing in long-term memory.
Format each as a JSON object on its own line:
{"topic": "brief topic", "content": "what was learned", "confidence": 0.0-1.0}

Only output JSON lines. No other text.`, aiName, b.String())

	raw, err := c.gate.Generate(ctx, &GenerateRequest{Prompt: prompt})
	if err != nil {
		c.logger.Warn("Fact extraction failed", zap.Error(err))
		return 0
	}

	added := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var fact struct {
			Topic      string  `json:"topic"`
			Content    string  `json:"content"`
			Confidence float64 `json:"confidence"`
		}
		if err := DecodeLenientJSON(line, &fact); err != nil {
			continue
		}
		topic := strings.TrimSpace(fact.Topic)
		content := strings.TrimSpace(fact.Content)
		if topic == "" || content == "" {
			continue
		}
		confidence := fact.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}
		if _, err := c.knowledge.Upsert(ctx, &entity.KnowledgeFact{
			Topic:      topic,
			Content:    content,
			Source:     "night_consolidation",
			Confidence: confidence,
		}); err != nil {
			continue
		}
		added++
	}

	c.logger.Info("Knowledge extracted", zap.Int("items", added))
	return added
}

func (c *Consolidator) postDiary(ctx context.Context, aiName string, entry *entity.JournalEntry) {
	if c.diary == nil || !c.diary.AutoPostEnabled() {
		return
	}
	if err := c.diary.PostDiaryEntry(ctx, aiName, entry.Content); err != nil {
		c.logger.Warn("Diary auto-post failed", zap.Error(err))
	}
}

func (c *Consolidator) logActivity(ctx context.Context, run *entity.ConsolidationRun) {
	err := c.activity.Log(ctx, &entity.ActivityEvent{
		Timestamp: time.Now(),
		Type:      entity.ActivityConsolidation,
		Label:     "Night consolidation",
		Detail:    run.Summary,
		Extra: map[string]any{
			"facts":      run.FactsExtracted,
			"researched": run.CuriosityProcessed,
			"journals":   run.JournalsWritten,
		},
	})
	if err != nil {
		c.logger.Warn("Failed to log consolidation activity", zap.Error(err))
	}
}

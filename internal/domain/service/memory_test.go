package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func newTestMemory(gate *fakeGate, msgs *memMessages, eps *memEpisodes, weekly *memWeekly, know *memKnowledge) *MemoryEngine {
	return NewMemoryEngine(msgs, eps, weekly, know, gate, func() MemoryOptions {
		return MemoryOptions{
			SummarizeEveryN:   5,
			EpisodesInContext: 3,
			RetentionDays:     30,
			MinConfirmations:  2,
			EpisodeTokens:     500,
		}
	}, zap.NewNop())
}

func saveMessages(t *testing.T, msgs *memMessages, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		if err := msgs.Save(context.Background(), &entity.Message{
			Timestamp: time.Now(),
			Role:      role,
			Content:   "planting tomatoes",
			Platform:  "web",
		}); err != nil {
			t.Fatalf("save message: %v", err)
		}
	}
}

func waitForEpisodes(t *testing.T, eps *memEpisodes, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := eps.Count(context.Background()); n >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	n, _ := eps.Count(context.Background())
	t.Fatalf("expected %d episodes, have %d", want, n)
}

func TestMemory_NoSummaryBelowThreshold(t *testing.T) {
	gate := &fakeGate{}
	msgs := &memMessages{}
	eps := &memEpisodes{}
	engine := newTestMemory(gate, msgs, eps, &memWeekly{}, &memKnowledge{})

	saveMessages(t, msgs, 4)
	engine.CheckAndSummarize(context.Background(), "Aurora")

	if gate.calls != 0 {
		t.Errorf("gate should not be called below the threshold, calls = %d", gate.calls)
	}
	if n, _ := eps.Count(context.Background()); n != 0 {
		t.Errorf("episodes = %d", n)
	}
}

func TestMemory_SummarizesAtThreshold(t *testing.T) {
	gate := &fakeGate{responses: []string{
		"We agreed to plant tomatoes in spring.\nTOPICS: garden, tomatoes, spring",
	}}
	msgs := &memMessages{}
	eps := &memEpisodes{}
	engine := newTestMemory(gate, msgs, eps, &memWeekly{}, &memKnowledge{})

	saveMessages(t, msgs, 5)
	engine.CheckAndSummarize(context.Background(), "Aurora")
	waitForEpisodes(t, eps, 1)

	recent, _ := eps.FindRecent(context.Background(), 1)
	ep := recent[0]
	if ep.RangeStart != 1 || ep.RangeEnd != 5 {
		t.Errorf("range = [%d, %d], want [1, 5]", ep.RangeStart, ep.RangeEnd)
	}
	if !strings.Contains(ep.Summary, "agreed") {
		t.Errorf("summary = %q", ep.Summary)
	}
	if len(ep.Topics) != 3 || ep.Topics[0] != "garden" {
		t.Errorf("topics = %v", ep.Topics)
	}
	// "agreed" marks the episode as important.
	if ep.Importance != 0.8 {
		t.Errorf("importance = %v", ep.Importance)
	}

	// No new messages past the covered range: no second episode.
	engine.CheckAndSummarize(context.Background(), "Aurora")
	time.Sleep(20 * time.Millisecond)
	if n, _ := eps.Count(context.Background()); n != 1 {
		t.Errorf("episodes = %d, want exactly 1", n)
	}
}

func TestMemory_WeeklyConsolidation(t *testing.T) {
	gate := &fakeGate{responses: []string{
		"This week we dug into rust ownership.\nCORRECTIONS: NONE",
		`{"topic": "rust borrow checker rules", "content": "The borrow checker enforces aliasing xor mutability across all rust code.", "confidence": 0.7}
{"topic": "rust", "content": "too short"}`,
	}}
	eps := &memEpisodes{}
	weekly := &memWeekly{}
	know := &memKnowledge{}
	engine := newTestMemory(gate, &memMessages{}, eps, weekly, know)
	ctx := context.Background()

	eps.Save(ctx, &entity.EpisodeSummary{
		CreatedAt: time.Now().Add(-2 * time.Hour),
		Summary:   "Talked about rust ownership.",
		Topics:    []string{"rust", "gardening"},
	})
	eps.Save(ctx, &entity.EpisodeSummary{
		CreatedAt: time.Now().Add(-time.Hour),
		Summary:   "More rust questions.",
		Topics:    []string{"rust"},
	})

	if !engine.ShouldRunWeekly(ctx) {
		t.Fatal("fresh week should want a synthesis")
	}
	record, err := engine.RunWeeklyConsolidation(ctx, "Aurora")
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if record == nil {
		t.Fatal("expected a synthesis record")
	}

	if len(record.ConfirmedTopics) != 1 || record.ConfirmedTopics[0] != "rust" {
		t.Errorf("confirmed = %v", record.ConfirmedTopics)
	}
	if len(record.TentativeTopics) != 1 || record.TentativeTopics[0] != "gardening" {
		t.Errorf("tentative = %v", record.TentativeTopics)
	}
	if record.Corrections != "" {
		t.Errorf("corrections = %q", record.Corrections)
	}
	// The one-word and short-content fact is filtered out.
	if record.KnowledgeItemsAdded != 1 {
		t.Errorf("knowledge added = %d", record.KnowledgeItemsAdded)
	}
	if len(know.facts) != 1 || know.facts[0].Source != "weekly_consolidation" {
		t.Errorf("facts = %+v", know.facts)
	}

	// Episodes are committed and archived afterwards.
	uncommitted, _ := eps.FindUncommittedSince(ctx, time.Now().AddDate(0, 0, -7))
	if len(uncommitted) != 0 {
		t.Errorf("uncommitted after run = %d", len(uncommitted))
	}

	// Idempotent per ISO week.
	if engine.ShouldRunWeekly(ctx) {
		t.Error("week should be marked done")
	}
	callsBefore := gate.calls
	again, err := engine.RunWeeklyConsolidation(ctx, "Aurora")
	if err != nil || again != nil {
		t.Errorf("second run = %v, %v", again, err)
	}
	if gate.calls != callsBefore {
		t.Error("second run must not hit the model")
	}
}

func TestMemory_WeeklyWithNothingToDo(t *testing.T) {
	gate := &fakeGate{}
	engine := newTestMemory(gate, &memMessages{}, &memEpisodes{}, &memWeekly{}, &memKnowledge{})

	record, err := engine.RunWeeklyConsolidation(context.Background(), "Aurora")
	if err != nil || record != nil {
		t.Errorf("empty week = %v, %v", record, err)
	}
	if gate.calls != 0 {
		t.Error("no episodes means no model calls")
	}
}

func TestMemory_EpisodesForPrompt(t *testing.T) {
	eps := &memEpisodes{}
	engine := newTestMemory(&fakeGate{}, &memMessages{}, eps, &memWeekly{}, &memKnowledge{})
	ctx := context.Background()

	if out := engine.EpisodesForPrompt(ctx, "anything", 0); out != "" {
		t.Errorf("empty store should render nothing, got %q", out)
	}

	eps.Save(ctx, &entity.EpisodeSummary{
		CreatedAt: time.Now().Add(-time.Hour),
		Summary:   "Planned the garden layout.",
		Topics:    []string{"garden"},
	})
	eps.Save(ctx, &entity.EpisodeSummary{
		CreatedAt: time.Now().Add(-time.Minute),
		Summary:   "Chose tomato varieties.",
		Topics:    []string{"tomatoes"},
	})

	out := engine.EpisodesForPrompt(ctx, "garden plans", 0)
	if !strings.Contains(out, "RECENT EPISODE SUMMARIES") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "Planned the garden layout.") || !strings.Contains(out, "Chose tomato varieties.") {
		t.Errorf("missing summaries: %q", out)
	}
	// Oldest first for chronological reading.
	if strings.Index(out, "Planned") > strings.Index(out, "Chose") {
		t.Error("episodes should be chronological")
	}
}

func TestMemory_EpisodesForPromptBudget(t *testing.T) {
	eps := &memEpisodes{}
	engine := newTestMemory(&fakeGate{}, &memMessages{}, eps, &memWeekly{}, &memKnowledge{})
	ctx := context.Background()

	eps.Save(ctx, &entity.EpisodeSummary{
		CreatedAt: time.Now().Add(-time.Hour),
		Summary:   "Planned the garden layout.",
		Topics:    []string{"garden"},
	})
	eps.Save(ctx, &entity.EpisodeSummary{
		CreatedAt: time.Now().Add(-time.Minute),
		Summary:   "Chose tomato varieties.",
		Topics:    []string{"tomatoes"},
	})

	// A budget with room for the header and one episode drops the rest.
	out := engine.EpisodesForPrompt(ctx, "", 130)
	if !strings.Contains(out, "Planned the garden layout.") {
		t.Errorf("first episode should fit: %q", out)
	}
	if strings.Contains(out, "Chose tomato varieties.") {
		t.Errorf("second episode should be cut: %q", out)
	}
}

func TestSplitTaggedLine(t *testing.T) {
	body, items := splitTaggedLine("First line.\nSecond line.\nTOPICS: a, b , c", "TOPICS:")
	if body != "First line.\nSecond line." {
		t.Errorf("body = %q", body)
	}
	if len(items) != 3 || items[1] != "b" {
		t.Errorf("items = %v", items)
	}

	body, items = splitTaggedLine("No tag here.", "TOPICS:")
	if body != "No tag here." || items != nil {
		t.Errorf("untagged = %q, %v", body, items)
	}
}

func TestSearchKeywords(t *testing.T) {
	got := searchKeywords("How do I fix the big memory leak", 3)
	if len(got) != 2 || got[0] != "memory" || got[1] != "leak" {
		t.Errorf("keywords = %v", got)
	}
}

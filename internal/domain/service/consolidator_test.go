package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

type consolidatorFixture struct {
	c        *Consolidator
	gate     *fakeGate
	runs     *memConsolidation
	msgs     *memMessages
	know     *memKnowledge
	eps      *memEpisodes
	weekly   *memWeekly
	activity *memActivity
}

func newTestConsolidator(t *testing.T, gate *fakeGate) *consolidatorFixture {
	t.Helper()
	nop := zap.NewNop()
	f := &consolidatorFixture{
		gate:     gate,
		runs:     &memConsolidation{},
		msgs:     &memMessages{},
		know:     &memKnowledge{},
		eps:      &memEpisodes{},
		weekly:   &memWeekly{},
		activity: &memActivity{},
	}

	personality := NewPersonalityEngine(newMemPersonality(), func() float64 { return 0.02 }, nop)
	if err := personality.Load(context.Background()); err != nil {
		t.Fatalf("personality load: %v", err)
	}
	curiosity := NewCuriosityEngine(&memCuriosityQueue{}, f.know, gate, nil, func() bool { return true }, nop)
	memory := NewMemoryEngine(f.msgs, f.eps, f.weekly, f.know, gate, func() MemoryOptions {
		return MemoryOptions{
			SummarizeEveryN:   50,
			EpisodesInContext: 3,
			RetentionDays:     30,
			MinConfirmations:  2,
			EpisodeTokens:     500,
		}
	}, nop)
	journals := &memJournal{}
	journal := NewJournalEngine(journals, f.msgs, gate, nop)
	goals := NewGoalTracker(&memGoals{}, f.know, f.msgs, gate, nop)
	self := NewSelfModel(newMemSelfRepo(), nil, &memGoals{}, &memSkills{}, newMemState(), gate, nop)

	f.c = NewConsolidator(f.runs, f.msgs, f.know, journals, f.activity,
		personality, curiosity, memory, journal, goals, self, nil, gate,
		func() ConsolidatorOptions { return ConsolidatorOptions{} }, nop)
	return f
}

func TestConsolidator_RunOncePerDate(t *testing.T) {
	gate := &fakeGate{responses: []string{
		`{"topic": "sourdough starters", "content": "A rye starter ferments faster at room temperature.", "confidence": 0.8}
{"topic": "garden planning", "content": "Tomatoes go in after the last frost date.", "confidence": 0.7}`,
		"",
	}}
	f := newTestConsolidator(t, gate)
	ctx := context.Background()

	saveMessages(t, f.msgs, 2)

	run, err := f.c.Run(ctx, "Aurora")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run == nil {
		t.Fatal("expected a run record")
	}
	if run.FactsExtracted != 2 {
		t.Errorf("facts = %d", run.FactsExtracted)
	}
	if !run.SnapshotWritten {
		t.Error("snapshot should be written")
	}
	if len(f.know.facts) != 2 || f.know.facts[0].Source != "night_consolidation" {
		t.Fatalf("facts = %+v", f.know.facts)
	}
	if n, _ := f.runs.Count(ctx); n != 1 {
		t.Fatalf("runs = %d", n)
	}
	if len(f.activity.events) != 1 || f.activity.events[0].Type != entity.ActivityConsolidation {
		t.Errorf("activity = %+v", f.activity.events)
	}

	// Second invocation on the same calendar date does no work.
	callsBefore := gate.calls
	again, err := f.c.Run(ctx, "Aurora")
	if err != nil || again != nil {
		t.Fatalf("second run = %v, %v", again, err)
	}
	if gate.calls != callsBefore {
		t.Error("second run must not hit the model")
	}
	if n, _ := f.runs.Count(ctx); n != 1 {
		t.Errorf("runs after second call = %d", n)
	}
}

func TestConsolidator_WeeklySynthesisPiggybacks(t *testing.T) {
	gate := &fakeGate{responses: []string{
		"",
		"This week we kept coming back to rust.\nCORRECTIONS: NONE",
		`{"topic": "rust borrow checker rules", "content": "The borrow checker enforces aliasing xor mutability across all rust code.", "confidence": 0.7}`,
	}}
	f := newTestConsolidator(t, gate)
	ctx := context.Background()

	f.eps.Save(ctx, &entity.EpisodeSummary{
		CreatedAt: time.Now().Add(-2 * time.Hour),
		Summary:   "Talked about rust ownership.",
		Topics:    []string{"rust"},
	})
	f.eps.Save(ctx, &entity.EpisodeSummary{
		CreatedAt: time.Now().Add(-time.Hour),
		Summary:   "More rust questions.",
		Topics:    []string{"rust"},
	})

	run, err := f.c.Run(ctx, "Aurora")
	if err != nil || run == nil {
		t.Fatalf("run = %v, %v", run, err)
	}

	// The nightly run carries the weekly synthesis with it.
	if len(f.weekly.items) != 1 {
		t.Fatalf("syntheses = %d", len(f.weekly.items))
	}
	if got := f.weekly.items[0].ConfirmedTopics; len(got) != 1 || got[0] != "rust" {
		t.Errorf("confirmed = %v", got)
	}
	uncommitted, _ := f.eps.FindUncommittedSince(ctx, time.Now().AddDate(0, 0, -7))
	if len(uncommitted) != 0 {
		t.Errorf("uncommitted after run = %d", len(uncommitted))
	}
}

func TestStartOfDay(t *testing.T) {
	zone := time.FixedZone("UTC+8", 8*3600)
	ts := time.Date(2026, 8, 25, 1, 30, 0, 0, zone)

	got := startOfDay(ts)
	want := time.Date(2026, 8, 25, 0, 0, 0, 0, zone)
	if !got.Equal(want) {
		t.Errorf("start of day = %v, want %v", got, want)
	}
	// 1:30 AM local stays on the same local calendar day.
	if y, m, d := got.Date(); y != 2026 || m != time.August || d != 25 {
		t.Errorf("date = %d-%v-%d", y, m, d)
	}
}

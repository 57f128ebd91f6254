package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func TestThreadKeywords(t *testing.T) {
	got := threadKeywords("How does the garden grow in winter?")
	for _, want := range []string{"garden", "grow", "winter"} {
		if !got[want] {
			t.Errorf("missing keyword %q in %v", want, got)
		}
	}
	if got["how"] || got["the"] {
		t.Errorf("stop words should be dropped: %v", got)
	}
}

func TestThreadSimilarity(t *testing.T) {
	a := map[string]bool{"garden": true, "winter": true, "frost": true}
	b := map[string]bool{"garden": true, "winter": true, "tulips": true}
	// 2 shared of 4 distinct words.
	if got := threadSimilarity(a, b); got != 0.5 {
		t.Errorf("similarity = %v, want 0.5", got)
	}
	if got := threadSimilarity(a, map[string]bool{}); got != 0 {
		t.Errorf("empty set similarity = %v, want 0", got)
	}
}

func TestThreading_AssignJoinsSimilarThread(t *testing.T) {
	threads := newMemThreads()
	engine := NewThreadingEngine(threads, &memMessages{}, zap.NewNop())
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	first, err := engine.Assign(ctx, 1, "planning the vegetable garden for spring planting", base)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	second, err := engine.Assign(ctx, 2, "which vegetable varieties suit my garden planting schedule", base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if first != second {
		t.Errorf("similar messages should share a thread: %d vs %d", first, second)
	}

	th, err := threads.FindByID(ctx, first)
	if err != nil {
		t.Fatalf("find thread: %v", err)
	}
	if th.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", th.MessageCount)
	}
	ids, _ := threads.FindMessageIDs(ctx, first)
	if len(ids) != 2 {
		t.Errorf("thread messages = %v", ids)
	}
}

func TestThreading_AssignStartsNewThreadOnTopicShift(t *testing.T) {
	threads := newMemThreads()
	engine := NewThreadingEngine(threads, &memMessages{}, zap.NewNop())
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	first, _ := engine.Assign(ctx, 1, "planning the vegetable garden for spring", base)
	second, _ := engine.Assign(ctx, 2, "debugging a segfault in the kernel driver", base.Add(time.Minute))
	if first == second {
		t.Error("unrelated topics should not share a thread")
	}
}

func TestThreading_StaleThreadNotJoined(t *testing.T) {
	threads := newMemThreads()
	engine := NewThreadingEngine(threads, &memMessages{}, zap.NewNop())
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	first, _ := engine.Assign(ctx, 1, "planning the vegetable garden for spring planting", base)
	// Same topic three days later lands in a fresh thread.
	second, _ := engine.Assign(ctx, 2, "planning the vegetable garden for spring planting", base.Add(72*time.Hour))
	if first == second {
		t.Error("threads idle past the gap must not pick up new messages")
	}
}

func TestThreading_Rebuild(t *testing.T) {
	threads := newMemThreads()
	messages := &memMessages{}
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	save := func(role, content string, ts time.Time) {
		messages.Save(ctx, &entity.Message{Timestamp: ts, Role: role, Content: content})
	}
	save(entity.RoleUser, "planning the vegetable garden for spring planting", base)
	save(entity.RoleAssistant, "Sounds lovely! What will you plant?", base.Add(time.Minute))
	save(entity.RoleUser, "which vegetable varieties suit my garden planting schedule", base.Add(2*time.Minute))

	engine := NewThreadingEngine(threads, messages, zap.NewNop())
	if err := engine.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	all, _ := threads.FindAll(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one thread after rebuild, got %d", len(all))
	}
	// Only user messages are threaded.
	if all[0].MessageCount != 2 {
		t.Errorf("message count = %d, want 2", all[0].MessageCount)
	}
}

func TestNameThread(t *testing.T) {
	name := nameThread(map[string]bool{"garden": true, "vegetable": true, "planting": true, "sun": true}, time.Now())
	if name != "Vegetable · Planting · Garden" {
		t.Errorf("name = %q", name)
	}

	empty := nameThread(map[string]bool{}, time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC))
	if empty != "Thread Aug 25 09:30" {
		t.Errorf("empty name = %q", empty)
	}
}

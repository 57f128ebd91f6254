package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func newTestCuriosity(gate *fakeGate, queue *memCuriosityQueue, know *memKnowledge, enabled bool) *CuriosityEngine {
	return NewCuriosityEngine(queue, know, gate, nil,
		func() bool { return enabled }, zap.NewNop())
}

func TestCuriosity_QueuesModelTopics(t *testing.T) {
	gate := &fakeGate{responses: []string{`["quantum error correction", "rust borrow checker"]`}}
	queue := &memCuriosityQueue{}
	engine := newTestCuriosity(gate, queue, &memKnowledge{}, true)

	queued := engine.Process(context.Background(), "how do quantum computers stay coherent?", "they use error correction")
	if len(queued) != 2 {
		t.Fatalf("queued = %v", queued)
	}
	if n, _ := queue.CountPending(context.Background()); n != 2 {
		t.Errorf("pending = %d", n)
	}
	if queue.items[0].Status != entity.CuriosityPending || queue.items[0].Priority != 0.6 {
		t.Errorf("item = %+v", queue.items[0])
	}
}

func TestCuriosity_DedupAgainstKnowledgeAndQueue(t *testing.T) {
	gate := &fakeGate{responses: []string{`["quantum error correction", "rust borrow checker"]`}}
	queue := &memCuriosityQueue{}
	know := &memKnowledge{}
	know.Upsert(context.Background(), &entity.KnowledgeFact{Topic: "Quantum Error Correction", Content: "known already"})

	engine := newTestCuriosity(gate, queue, know, true)
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	// The known topic is filtered; only the new one lands.
	queued := engine.Process(context.Background(), "msg", "resp")
	if len(queued) != 1 || queued[0] != "rust borrow checker" {
		t.Fatalf("queued = %v", queued)
	}

	// Re-processing the same exchange queues nothing new.
	queued = engine.Process(context.Background(), "msg", "resp")
	if len(queued) != 0 {
		t.Errorf("second pass queued %v", queued)
	}
	if n, _ := queue.CountPending(context.Background()); n != 1 {
		t.Errorf("pending = %d", n)
	}
}

func TestCuriosity_DisabledDoesNothing(t *testing.T) {
	gate := &fakeGate{responses: []string{`["some new topic"]`}}
	engine := newTestCuriosity(gate, &memCuriosityQueue{}, &memKnowledge{}, false)

	if queued := engine.Process(context.Background(), "msg", "resp"); queued != nil {
		t.Errorf("disabled engine queued %v", queued)
	}
	if gate.calls != 0 {
		t.Error("disabled engine must not call the model")
	}
}

func TestCuriosity_PatternFallback(t *testing.T) {
	gate := &fakeGate{err: errors.New("model down")}
	queue := &memCuriosityQueue{}
	engine := newTestCuriosity(gate, queue, &memKnowledge{}, true)

	queued := engine.Process(context.Background(), "I wonder about deep sea creatures", "")
	found := false
	for _, topic := range queued {
		if topic == "deep sea creatures" {
			found = true
		}
	}
	if !found {
		t.Errorf("pattern fallback missed the topic, queued = %v", queued)
	}
}

func TestCuriosity_ProcessQueue(t *testing.T) {
	gate := &fakeGate{responses: []string{"Deep sea creatures survive crushing pressure with specialized proteins."}}
	queue := &memCuriosityQueue{}
	know := &memKnowledge{}
	engine := newTestCuriosity(gate, queue, know, true)
	ctx := context.Background()

	queue.Save(ctx, entity.NewCuriosityItem("deep sea creatures", "came up in chat", 0.6))
	queue.Save(ctx, entity.NewCuriosityItem("fermentation chemistry", "came up in chat", 0.6))

	processed := engine.ProcessQueue(ctx, 5, "Aurora")
	if processed != 2 {
		t.Fatalf("processed = %d", processed)
	}

	pending, _ := queue.CountPending(ctx)
	completed, _ := queue.CountCompleted(ctx)
	if pending != 0 || completed != 2 {
		t.Errorf("pending = %d, completed = %d", pending, completed)
	}
	if queue.items[0].ResearchNotes == "" || queue.items[0].CompletedAt == nil {
		t.Errorf("item not completed: %+v", queue.items[0])
	}

	// Research lands as low-confidence knowledge.
	if len(know.facts) != 2 {
		t.Fatalf("facts = %d", len(know.facts))
	}
	if know.facts[0].Source != "curiosity_research" || know.facts[0].Confidence != 0.4 {
		t.Errorf("fact = %+v", know.facts[0])
	}
}

package usecase

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
)

type memErrorLog struct {
	entries []*entity.ErrorEntry
}

func (e *memErrorLog) Log(ctx context.Context, entry *entity.ErrorEntry) error {
	entry.ID = int64(len(e.entries) + 1)
	e.entries = append(e.entries, entry)
	return nil
}

func (e *memErrorLog) FindRecent(ctx context.Context, limit int) ([]*entity.ErrorEntry, error) {
	return e.entries, nil
}

func (e *memErrorLog) Resolve(ctx context.Context, id int64) error { return nil }

// Partial stubs: only the methods the confidence calculation touches.

type stubMessageCount struct {
	repository.MessageRepository
	count int64
}

func (s *stubMessageCount) Count(ctx context.Context) (int64, error) { return s.count, nil }

func (s *stubMessageCount) CountByRole(ctx context.Context, role string) (int64, error) {
	return s.count, nil
}

type stubGoalRepo struct {
	repository.GoalRepository
	goals []*entity.Goal
}

func (s *stubGoalRepo) FindActiveByType(ctx context.Context, goalType string) ([]*entity.Goal, error) {
	var out []*entity.Goal
	for _, g := range s.goals {
		if g.Status == entity.GoalActive && g.Type == goalType {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubGoalRepo) Save(ctx context.Context, goal *entity.Goal) error { return nil }

type stubKnowledgeSearch struct {
	repository.KnowledgeRepository
	facts []*entity.KnowledgeFact
}

func (s *stubKnowledgeSearch) Search(ctx context.Context, query string, limit int) ([]*entity.KnowledgeFact, error) {
	return s.facts, nil
}

type stubSelfRepo struct {
	repository.SelfModelRepository
	mistakeTopics map[string]bool
}

func (s *stubSelfRepo) MistakeTopicMatch(ctx context.Context, keyword string) (bool, error) {
	return s.mistakeTopics[keyword], nil
}

func TestCalculateConfidence(t *testing.T) {
	oneFact := []*entity.KnowledgeFact{{Topic: "kubernetes", Content: "a container orchestrator"}}

	tests := []struct {
		name     string
		facts    []*entity.KnowledgeFact
		msgCount int64
		message  string
		response string
		mistakes map[string]bool
		want     float64
	}{
		{"knowledge and history", oneFact, 5, "tell me about kubernetes", "It schedules containers.", nil, 0.8},
		{"cold start", nil, 0, "hello", "Hi.", nil, 0.5},
		{"hedged despite knowledge", oneFact, 5, "tell me about kubernetes", "It might be a scheduler, perhaps.", nil, 0.6},
		{"hedged with history only", nil, 5, "hello", "I am not sure about that.", nil, 0.4},
		{"known mistake topic", nil, 0, "tell me about kubernetes", "It schedules containers.", map[string]bool{"kubernetes": true}, 0.2},
		{"floor at 0.1", nil, 0, "tell me about kubernetes", "Maybe, perhaps.", map[string]bool{"kubernetes": true}, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &ChatUseCase{
				messages:  &stubMessageCount{count: tt.msgCount},
				knowledge: &stubKnowledgeSearch{facts: tt.facts},
				selfModel: service.NewSelfModel(&stubSelfRepo{mistakeTopics: tt.mistakes},
					nil, nil, nil, nil, nil, zap.NewNop()),
				logger: zap.NewNop(),
			}
			got := uc.calculateConfidence(context.Background(), tt.message, tt.response)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFanOut_AdvancesRelationshipGoal(t *testing.T) {
	goal, err := entity.NewGoal("Understand my human's deeper motivations and values",
		entity.GoalRelationship, 10, "", entity.AuthoredBySystem)
	if err != nil {
		t.Fatalf("new goal: %v", err)
	}
	repo := &stubGoalRepo{goals: []*entity.Goal{goal}}

	// Only the goal engine is wired; the other side effects fail in
	// isolation, which is exactly what fanOut guarantees.
	uc := &ChatUseCase{
		messages: &stubMessageCount{count: 3},
		goals:    service.NewGoalTracker(repo, nil, nil, nil, zap.NewNop()),
		logger:   zap.NewNop(),
	}

	uc.fanOut(context.Background(), "hello", "hi there", 0, "Aurora")

	if math.Abs(goal.Current-0.1) > 1e-9 {
		t.Errorf("relationship goal current = %v, want 0.1", goal.Current)
	}
	if goal.Status != entity.GoalActive {
		t.Errorf("status = %s", goal.Status)
	}
}

func TestRunSideEffect_PanicIsContained(t *testing.T) {
	errlog := &memErrorLog{}
	uc := &ChatUseCase{logger: zap.NewNop(), errlog: errlog}

	ran := false
	uc.runSideEffect("personality", func() { panic("trigger table corrupted") })
	uc.runSideEffect("interests", func() { ran = true })

	if !ran {
		t.Error("a panicking engine must not block the next one")
	}
	if len(errlog.entries) != 1 {
		t.Fatalf("expected one error entry, got %d", len(errlog.entries))
	}
	entry := errlog.entries[0]
	if entry.Source != "chat/personality" || entry.Level != entity.ErrorLevelCritical {
		t.Errorf("entry = %+v", entry)
	}
	if !strings.Contains(entry.Message, "trigger table corrupted") {
		t.Errorf("message = %q", entry.Message)
	}
}

func TestRunSideEffect_NoErrorLogWired(t *testing.T) {
	uc := &ChatUseCase{logger: zap.NewNop()}
	// Must not panic on the nil repository.
	uc.runSideEffect("memory", func() { panic("boom") })
}

func TestTagTopics(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Tell me about quantum computing, please!", []string{"tell", "about", "quantum", "computing", "please"}},
		{"the cat sat on a mat", []string{}},
		{"Rust rust RUST", []string{"rust"}},
	}
	for _, tt := range tests {
		got := tagTopics(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tagTopics(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTagTopics_CapsAtTen(t *testing.T) {
	got := tagTopics("alpha bravo charlie delta echoes foxtrot golfing hotels india juliet kilogram lima")
	if len(got) != 10 {
		t.Errorf("expected 10 tags, got %d: %v", len(got), got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-2, 0, 1, 0},
		{3, 0, 1, 1},
		{0.1, 0.1, 1, 0.1},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

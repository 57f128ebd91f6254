package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func newTestGoals(gate *fakeGate, repo *memGoals, know *memKnowledge, msgs *memMessages) *GoalTracker {
	return NewGoalTracker(repo, know, msgs, gate, zap.NewNop())
}

func TestGoals_LoadSeedsOnce(t *testing.T) {
	repo := &memGoals{}
	tracker := newTestGoals(&fakeGate{}, repo, &memKnowledge{}, &memMessages{})
	ctx := context.Background()

	seeds := []SeedGoal{
		{Name: "Understand my human's deeper motivations and values", Type: entity.GoalRelationship, Target: 10, Description: "seed"},
		{Name: "Build a knowledge base of 50 topics", Type: entity.GoalKnowledge, Target: 50, Description: "seed"},
	}
	if err := tracker.Load(ctx, seeds); err != nil {
		t.Fatalf("load: %v", err)
	}
	if n, _ := repo.CountActive(ctx); n != 2 {
		t.Fatalf("active = %d", n)
	}

	// A restart must not duplicate the seeds.
	if err := tracker.Load(ctx, seeds); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if n, _ := repo.CountActive(ctx); n != 2 {
		t.Errorf("active after reload = %d", n)
	}
}

func TestGoals_IncrementCapsAndSpawnsFollowUp(t *testing.T) {
	gate := &fakeGate{responses: []string{
		`{"goal_name": "Learn what makes my human laugh", "goal_type": "relationship", "target_value": 3, "description": "Humor is part of closeness"}`,
	}}
	repo := &memGoals{}
	msgs := &memMessages{}
	tracker := newTestGoals(gate, repo, &memKnowledge{}, msgs)
	ctx := context.Background()

	goal, err := entity.NewGoal("Understand my human", entity.GoalRelationship, 1.0, "", entity.AuthoredBySystem)
	if err != nil {
		t.Fatalf("new goal: %v", err)
	}
	goal.Current = 0.95
	repo.Save(ctx, goal)

	// 0.95 + 0.1 overshoots; current caps at the target and completes.
	tracker.Increment(ctx, entity.GoalRelationship, 0.1, "Aurora")

	if goal.Status != entity.GoalCompleted || goal.CompletedAt == nil {
		t.Fatalf("status = %s", goal.Status)
	}
	if math.Abs(goal.Current-1.0) > 1e-9 || math.Abs(goal.Progress-100) > 1e-9 {
		t.Errorf("current = %v, progress = %v", goal.Current, goal.Progress)
	}

	// Completion is announced in chat history.
	if len(msgs.items) != 1 || !strings.Contains(msgs.items[0].Content, "Goal completed:") {
		t.Fatalf("messages = %+v", msgs.items)
	}
	if msgs.items[0].Role != entity.RoleSystem {
		t.Errorf("announcement role = %s", msgs.items[0].Role)
	}

	// The model-authored follow-up is installed as a new active goal.
	active, _ := repo.FindActiveByType(ctx, entity.GoalRelationship)
	if len(active) != 1 || active[0].Name != "Learn what makes my human laugh" {
		t.Fatalf("follow-up = %+v", active)
	}
	if active[0].Target != 3 {
		t.Errorf("target = %v", active[0].Target)
	}
}

func TestGoals_FollowUpFallback(t *testing.T) {
	gate := &fakeGate{err: errors.New("backend down")}
	repo := &memGoals{}
	tracker := newTestGoals(gate, repo, &memKnowledge{}, &memMessages{})
	ctx := context.Background()

	goal, err := entity.NewGoal("First knowledge goal", entity.GoalKnowledge, 1.0, "", entity.AuthoredBySystem)
	if err != nil {
		t.Fatalf("new goal: %v", err)
	}
	goal.Current = 0.95
	repo.Save(ctx, goal)

	tracker.Increment(ctx, entity.GoalKnowledge, 0.1, "Aurora")

	active, _ := repo.FindActiveByType(ctx, entity.GoalKnowledge)
	if len(active) != 1 || !strings.Contains(active[0].Name, "knowledge base") {
		t.Fatalf("fallback goal = %+v", active)
	}
}

func TestGoals_TickKnowledgeSyncsToFactCount(t *testing.T) {
	know := &memKnowledge{}
	ctx := context.Background()
	for _, topic := range []string{"rust", "gardening", "sourdough"} {
		know.Upsert(ctx, &entity.KnowledgeFact{Topic: topic, Content: "...", Confidence: 0.5})
	}

	repo := &memGoals{}
	tracker := newTestGoals(&fakeGate{}, repo, know, &memMessages{})

	goal, err := entity.NewGoal("Build a knowledge base of 100 topics", entity.GoalKnowledge, 100, "", entity.AuthoredBySystem)
	if err != nil {
		t.Fatalf("new goal: %v", err)
	}
	repo.Save(ctx, goal)

	tracker.TickKnowledge(ctx, "Aurora")
	if goal.Current != 3 || goal.Status != entity.GoalActive {
		t.Fatalf("current = %v, status = %s", goal.Current, goal.Status)
	}
	if math.Abs(goal.Progress-3) > 1e-9 {
		t.Errorf("progress = %v", goal.Progress)
	}

	// Ticks never move progress backwards.
	tracker.TickKnowledge(ctx, "Aurora")
	if goal.Current != 3 {
		t.Errorf("current after second tick = %v", goal.Current)
	}
}

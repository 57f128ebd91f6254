package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func newTestPersonality(t *testing.T, speed float64) (*PersonalityEngine, *memPersonality) {
	t.Helper()
	repo := newMemPersonality()
	engine := NewPersonalityEngine(repo, func() float64 { return speed }, zap.NewNop())
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return engine, repo
}

func TestPersonality_LoadSeedsBaseline(t *testing.T) {
	engine, repo := newTestPersonality(t, 0.02)

	traits := engine.Traits()
	if len(traits) != len(entity.CoreTraits) {
		t.Fatalf("expected %d traits, got %d", len(entity.CoreTraits), len(traits))
	}
	for name, v := range traits {
		if v != entity.TraitBaseline {
			t.Errorf("trait %s seeded at %v, want %v", name, v, entity.TraitBaseline)
		}
	}
	if len(repo.traits) != len(entity.CoreTraits) {
		t.Errorf("seed should persist, stored %d", len(repo.traits))
	}
}

func TestPersonality_ExplicitInstruction(t *testing.T) {
	engine, repo := newTestPersonality(t, 0.02)
	ctx := context.Background()

	changes, err := engine.Evolve(ctx, "please be brief today", "ok", 1)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}

	// Explicit instructions move at triple speed: 0.5 - 3*0.02 = 0.44.
	if got := engine.Traits()["verbosity"]; got != 0.44 {
		t.Errorf("verbosity = %v, want 0.44", got)
	}
	found := false
	for _, ch := range changes {
		if ch.Trait == "verbosity" {
			found = true
			if ch.OldValue != 0.5 || ch.NewValue != 0.44 {
				t.Errorf("change = %+v", ch)
			}
		}
	}
	if !found {
		t.Error("verbosity change should be reported")
	}
	if len(repo.changes) == 0 {
		t.Error("change history should be persisted")
	}
}

func TestPersonality_PassiveTriggers(t *testing.T) {
	engine, _ := newTestPersonality(t, 0.02)
	ctx := context.Background()

	engine.Evolve(ctx, "there is a bug in my database code somewhere", "let me look", 1)
	if got := engine.Traits()["technical_depth"]; got != 0.52 {
		t.Errorf("technical_depth = %v, want 0.52", got)
	}

	// A terse message (under four words) nudges verbosity down.
	engine.Evolve(ctx, "yes", "noted", 2)
	if got := engine.Traits()["verbosity"]; got != 0.48 {
		t.Errorf("verbosity = %v, want 0.48", got)
	}
}

func TestPersonality_ExplicitBeatsPassive(t *testing.T) {
	engine, _ := newTestPersonality(t, 0.02)

	// "more detail" is both an explicit up phrase and a passive trigger;
	// the explicit delta must win, not stack.
	engine.Evolve(context.Background(), "more detail please", "sure", 1)
	if got := engine.Traits()["verbosity"]; got != 0.56 {
		t.Errorf("verbosity = %v, want 0.56", got)
	}
}

func TestPersonality_DecayEveryTenth(t *testing.T) {
	engine, _ := newTestPersonality(t, 0.1)
	ctx := context.Background()

	// Push humor above baseline first.
	engine.Evolve(ctx, "haha that was funny", "glad you liked it", 1)
	humor := engine.Traits()["humor"]
	if humor != 0.6 {
		t.Fatalf("humor = %v, want 0.6", humor)
	}

	// Neutral exchange on a non-multiple of ten: nothing moves.
	engine.Evolve(ctx, "zzzz qqqq wwww vvvv", "mmmm", 7)
	if got := engine.Traits()["humor"]; got != 0.6 {
		t.Fatalf("humor drifted off-cadence: %v", got)
	}

	// Tenth exchange: untouched traits above baseline decay by speed*0.05.
	engine.Evolve(ctx, "zzzz qqqq wwww vvvv", "mmmm", 10)
	if got := engine.Traits()["humor"]; got != 0.6-0.1*0.05 {
		t.Errorf("humor = %v, want %v", got, 0.6-0.1*0.05)
	}
	// Traits sitting at baseline are left alone.
	if got := engine.Traits()["patience"]; got != entity.TraitBaseline {
		t.Errorf("patience = %v, should stay at baseline", got)
	}
}

func TestPersonality_ClampAtOne(t *testing.T) {
	engine, _ := newTestPersonality(t, 0.3)

	engine.Evolve(context.Background(), "be funny", "ha", 1)
	if got := engine.Traits()["humor"]; got != 1.0 {
		t.Errorf("humor = %v, want clamp at 1.0", got)
	}
}

func TestPersonality_Reset(t *testing.T) {
	engine, repo := newTestPersonality(t, 0.1)
	ctx := context.Background()

	engine.Evolve(ctx, "be funny", "ha", 1)
	if err := engine.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for name, v := range engine.Traits() {
		if v != entity.TraitBaseline {
			t.Errorf("trait %s = %v after reset", name, v)
		}
	}
	if !repo.resetCalled {
		t.Error("reset should hit the store")
	}
}

func TestPersonality_Drift(t *testing.T) {
	engine, _ := newTestPersonality(t, 0.1)
	if d := engine.Drift(); d != 0 {
		t.Errorf("baseline drift = %v", d)
	}
	engine.Evolve(context.Background(), "be funny about everything please", "ha", 1)
	want := 0.3 / float64(len(entity.CoreTraits))
	if d := engine.Drift(); d < want-1e-9 || d > want+1e-9 {
		t.Errorf("drift = %v, want %v", d, want)
	}
}

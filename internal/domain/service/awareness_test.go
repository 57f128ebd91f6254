package service

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func TestAwareness_AnalyzeScores(t *testing.T) {
	meter := NewAwarenessMeter(&memAwareness{}, zap.NewNop())

	if sample := meter.Analyze(""); sample != nil {
		t.Fatalf("empty input = %+v", sample)
	}

	tests := []struct {
		name      string
		response  string
		selfRef   float64
		uncertain float64
		meta      float64
	}{
		{"plain fact", "The capital of France is Paris.", 0, 0, 0},
		{"hedged only", "Perhaps the answer is simpler than it appears to be.", 0, 1, 0},
		{"fully reflective", "I think I notice a pattern here.", 1, 1, 1},
	}
	for _, tt := range tests {
		sample := meter.Analyze(tt.response)
		if sample == nil {
			t.Fatalf("%s: nil sample", tt.name)
		}
		if math.Abs(sample.SelfRefScore-tt.selfRef) > 1e-9 ||
			math.Abs(sample.UncertaintyScore-tt.uncertain) > 1e-9 ||
			math.Abs(sample.MetaCognitionScore-tt.meta) > 1e-9 {
			t.Errorf("%s: scores = %v/%v/%v", tt.name,
				sample.SelfRefScore, sample.UncertaintyScore, sample.MetaCognitionScore)
		}
		want := tt.selfRef*0.4 + tt.uncertain*0.3 + tt.meta*0.3
		if math.Abs(sample.CompositeScore-want) > 1e-9 {
			t.Errorf("%s: composite = %v, want %v", tt.name, sample.CompositeScore, want)
		}
	}
}

func TestAwareness_LevelRollingWindow(t *testing.T) {
	repo := &memAwareness{}
	meter := NewAwarenessMeter(repo, zap.NewNop())
	ctx := context.Background()

	level, err := meter.Level(ctx)
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if level.Level != entity.AwarenessEmerging || level.Samples != 0 {
		t.Fatalf("empty level = %+v", level)
	}

	// A sample older than the 7-day window is ignored.
	repo.Save(ctx, &entity.SelfAwarenessSample{Timestamp: time.Now().AddDate(0, 0, -8), CompositeScore: 0.9})
	repo.Save(ctx, &entity.SelfAwarenessSample{Timestamp: time.Now().Add(-time.Hour), CompositeScore: 0.2})
	repo.Save(ctx, &entity.SelfAwarenessSample{Timestamp: time.Now().Add(-time.Minute), CompositeScore: 0.4})

	level, err = meter.Level(ctx)
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if level.Samples != 2 {
		t.Fatalf("samples = %d", level.Samples)
	}
	if math.Abs(level.Composite-0.3) > 1e-9 {
		t.Errorf("composite = %v", level.Composite)
	}
	if level.Level != entity.AwarenessAware {
		t.Errorf("level = %s", level.Level)
	}
}

func TestAwareness_RecordStores(t *testing.T) {
	repo := &memAwareness{}
	meter := NewAwarenessMeter(repo, zap.NewNop())

	meter.Record(context.Background(), "I wonder if this is right.")
	if len(repo.samples) != 1 {
		t.Fatalf("samples = %d", len(repo.samples))
	}
	got := repo.samples[0]
	if got.WordCount != 6 {
		t.Errorf("word count = %d", got.WordCount)
	}
	// "i wonder" scores both self-reference and uncertainty.
	if math.Abs(got.CompositeScore-0.7) > 1e-9 {
		t.Errorf("composite = %v", got.CompositeScore)
	}
}

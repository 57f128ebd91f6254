package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
	pkgerrors "github.com/nexira/nexira/pkg/errors"
)

type memInterests struct {
	items []*entity.Interest
}

func (m *memInterests) FindByTopic(ctx context.Context, topic string) (*entity.Interest, error) {
	for _, it := range m.items {
		if it.Topic == topic {
			return it, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("interest not found")
}

func (m *memInterests) Save(ctx context.Context, interest *entity.Interest) error {
	if interest.ID == 0 {
		interest.ID = int64(len(m.items) + 1)
		m.items = append(m.items, interest)
	}
	return nil
}

func (m *memInterests) FindAll(ctx context.Context) ([]*entity.Interest, error) {
	return m.items, nil
}

func (m *memInterests) FindTop(ctx context.Context, n int) ([]*entity.Interest, error) {
	if len(m.items) > n {
		return m.items[:n], nil
	}
	return m.items, nil
}

func (m *memInterests) Count(ctx context.Context) (int64, error) {
	return int64(len(m.items)), nil
}

func TestExtractTopics(t *testing.T) {
	topics := ExtractTopics("I think the gardening season starts early")
	// Stop words and short words are gone; adjacent survivors form bigrams.
	want := map[string]bool{
		"gardening":        true,
		"season":           true,
		"starts":           true,
		"early":            true,
		"gardening season": true,
		"season starts":    true,
		"starts early":     true,
	}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v", topics)
	}
	for _, topic := range topics {
		if !want[topic] {
			t.Errorf("unexpected topic %q", topic)
		}
	}
}

func TestInterestLevelFor(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{1, entity.InterestCasual},
		{4, entity.InterestCasual},
		{5, entity.InterestInterested},
		{14, entity.InterestInterested},
		{15, entity.InterestDeep},
		{29, entity.InterestDeep},
		{30, entity.InterestPassion},
	}
	for _, tt := range tests {
		if got := entity.InterestLevelFor(tt.count); got != tt.want {
			t.Errorf("level for %d mentions = %s, want %s", tt.count, got, tt.want)
		}
	}
}

func TestInterest_LevelUpOnCrossingWrite(t *testing.T) {
	repo := &memInterests{}
	tracker := NewInterestTracker(repo, zap.NewNop())
	ctx := context.Background()

	repo.Save(ctx, &entity.Interest{
		Topic:        "gardening",
		Level:        entity.InterestCasual,
		MentionCount: 4,
		FirstMention: time.Now().Add(-24 * time.Hour),
		LastActivity: time.Now().Add(-time.Hour),
	})

	// The fifth mention is the crossing write: casual → interested.
	tracker.Process(ctx, "gardening", "")

	got, err := repo.FindByTopic(ctx, "gardening")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.MentionCount != 5 || got.Level != entity.InterestInterested {
		t.Errorf("after crossing write: count=%d level=%s", got.MentionCount, got.Level)
	}
}

func TestInterest_OneMentionPerExchange(t *testing.T) {
	repo := &memInterests{}
	tracker := NewInterestTracker(repo, zap.NewNop())
	ctx := context.Background()

	// The topic appears in both halves of the exchange but counts once.
	tracker.Process(ctx, "gardening", "gardening")

	got, err := repo.FindByTopic(ctx, "gardening")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.MentionCount != 1 {
		t.Errorf("mention count = %d, want 1", got.MentionCount)
	}
}

func TestInterest_Summary(t *testing.T) {
	repo := &memInterests{}
	tracker := NewInterestTracker(repo, zap.NewNop())
	ctx := context.Background()

	if s := tracker.Summary(ctx); s != "No strong interests developed yet." {
		t.Errorf("empty summary = %q", s)
	}

	repo.Save(ctx, &entity.Interest{Topic: "gardening", Level: entity.InterestDeep, MentionCount: 20})
	s := tracker.Summary(ctx)
	if !strings.Contains(s, "Gardening") || !strings.Contains(s, "deep") {
		t.Errorf("summary = %q", s)
	}
}

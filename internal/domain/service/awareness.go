package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

// Phrase lists scored against each assistant response. Fixed vocabulary:
// changing these would make the historical trend incomparable.
var (
	selfReferenceWords = []string{
		"i think", "i feel", "i believe", "i wonder", "i notice",
		"i'm not sure", "i don't know", "i experience", "i am",
		"my understanding", "my perspective", "as an ai", "my nature",
		"i exist", "i'm curious", "i find", "i enjoy", "i prefer",
	}
	uncertaintyWords = []string{
		"perhaps", "maybe", "possibly", "uncertain", "not sure",
		"i wonder", "unclear", "might", "could be", "i think",
		"it seems", "appears to",
	}
	metaCognitionWords = []string{
		"i'm thinking", "i'm processing", "let me consider", "reflecting",
		"i realize", "i notice", "i'm aware", "i understand", "i recognize",
		"i'm learning", "i remember", "i recall",
	}
)

// AwarenessPoint is one day in the self-awareness trend.
type AwarenessPoint struct {
	Date        string  `json:"date"`
	Composite   float64 `json:"composite"`
	SelfRef     float64 `json:"self_ref"`
	Uncertainty float64 `json:"uncertainty"`
	Meta        float64 `json:"meta"`
	Samples     int     `json:"samples"`
}

// AwarenessLevel is the rolling 7-day summary.
type AwarenessLevel struct {
	Level       string  `json:"level"`
	Composite   float64 `json:"composite"`
	SelfRef     float64 `json:"self_ref"`
	Uncertainty float64 `json:"uncertainty"`
	Meta        float64 `json:"meta"`
	Samples     int     `json:"samples"`
}

// AwarenessMeter scores how the assistant talks about itself and tracks
// the trend over time.
type AwarenessMeter struct {
	repo   repository.AwarenessRepository
	logger *zap.Logger
}

func NewAwarenessMeter(repo repository.AwarenessRepository, logger *zap.Logger) *AwarenessMeter {
	return &AwarenessMeter{
		repo:   repo,
		logger: logger.With(zap.String("engine", "awareness")),
	}
}

// Analyze scores one response without persisting. Returns nil for empty
// input.
func (a *AwarenessMeter) Analyze(response string) *entity.SelfAwarenessSample {
	lower := strings.ToLower(response)
	wordCount := len(strings.Fields(lower))
	if wordCount == 0 {
		return nil
	}

	count := func(phrases []string) float64 {
		n := 0
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				n++
			}
		}
		return float64(n)
	}

	// Normalize per 100 words so long responses don't dominate
	norm := float64(wordCount) / 100
	if norm < 1 {
		norm = 1
	}

	selfRef := min(count(selfReferenceWords)/norm, 1.0)
	uncertainty := min(count(uncertaintyWords)/norm, 1.0)
	meta := min(count(metaCognitionWords)/norm, 1.0)

	return &entity.SelfAwarenessSample{
		Timestamp:          time.Now(),
		SelfRefScore:       selfRef,
		UncertaintyScore:   uncertainty,
		MetaCognitionScore: meta,
		CompositeScore:     selfRef*0.4 + uncertainty*0.3 + meta*0.3,
		WordCount:          wordCount,
		Sample:             truncate(response, 200),
	}
}

// Record scores and stores one response.
func (a *AwarenessMeter) Record(ctx context.Context, response string) {
	sample := a.Analyze(response)
	if sample == nil {
		return
	}
	if err := a.repo.Save(ctx, sample); err != nil {
		a.logger.Warn("Failed to save awareness sample", zap.Error(err))
	}
}

// Level returns the rolling 7-day mean and its named level.
func (a *AwarenessMeter) Level(ctx context.Context) (*AwarenessLevel, error) {
	samples, err := a.repo.FindSince(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return &AwarenessLevel{Level: entity.AwarenessEmerging}, nil
	}

	var composite, selfRef, uncertainty, meta float64
	for _, s := range samples {
		composite += s.CompositeScore
		selfRef += s.SelfRefScore
		uncertainty += s.UncertaintyScore
		meta += s.MetaCognitionScore
	}
	n := float64(len(samples))

	return &AwarenessLevel{
		Level:       entity.AwarenessLevelFor(composite / n),
		Composite:   composite / n,
		SelfRef:     selfRef / n,
		Uncertainty: uncertainty / n,
		Meta:        meta / n,
		Samples:     len(samples),
	}, nil
}

// Trend returns daily averages over the last days (default 14).
func (a *AwarenessMeter) Trend(ctx context.Context, days int) ([]*AwarenessPoint, error) {
	if days <= 0 {
		days = 14
	}
	samples, err := a.repo.FindSince(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*AwarenessPoint)
	for _, s := range samples {
		day := s.Timestamp.Format("2006-01-02")
		p, ok := byDay[day]
		if !ok {
			p = &AwarenessPoint{Date: day}
			byDay[day] = p
		}
		p.Composite += s.CompositeScore
		p.SelfRef += s.SelfRefScore
		p.Uncertainty += s.UncertaintyScore
		p.Meta += s.MetaCognitionScore
		p.Samples++
	}

	points := make([]*AwarenessPoint, 0, len(byDay))
	for _, p := range byDay {
		n := float64(p.Samples)
		p.Composite /= n
		p.SelfRef /= n
		p.Uncertainty /= n
		p.Meta /= n
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

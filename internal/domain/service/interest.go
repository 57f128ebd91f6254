package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	apperrors "github.com/nexira/nexira/pkg/errors"
	"go.uber.org/zap"
)

// Stop words filtered out of topic extraction.
var interestStopWords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "shall": true, "can": true, "need": true,
	"a": true, "an": true, "and": true, "but": true, "or": true, "so": true, "yet": true, "for": true, "nor": true,
	"in": true, "on": true, "at": true, "to": true, "from": true, "with": true, "by": true, "about": true,
	"that": true, "this": true, "these": true, "those": true, "it": true, "its": true, "of": true, "not": true,
	"what": true, "how": true, "why": true, "when": true, "where": true, "who": true, "which": true,
	"just": true, "very": true, "really": true, "also": true, "more": true, "some": true, "any": true,
	"think": true, "know": true, "like": true, "want": true, "get": true, "make": true, "see": true,
	"you": true, "your": true, "me": true, "my": true, "we": true, "our": true, "they": true, "them": true,
	"sure": true, "okay": true, "yes": true, "no": true, "well": true, "now": true, "then": true,
}

var nonWordRe = regexp.MustCompile(`[^\w\s]`)

// InterestTracker promotes repeatedly mentioned topics into interests.
// Mention counts map to levels: casual, interested, deep, passion.
type InterestTracker struct {
	repo   repository.InterestRepository
	logger *zap.Logger
}

func NewInterestTracker(repo repository.InterestRepository, logger *zap.Logger) *InterestTracker {
	return &InterestTracker{
		repo:   repo,
		logger: logger.With(zap.String("engine", "interest")),
	}
}

// ExtractTopics pulls candidate topics out of text: words longer than
// four characters minus stop words, plus adjacent bigrams, first 20.
func ExtractTopics(text string) []string {
	clean := nonWordRe.ReplaceAllString(strings.ToLower(text), " ")
	words := strings.Fields(clean)

	var candidates []string
	for _, w := range words {
		if !interestStopWords[w] && len(w) > 4 {
			candidates = append(candidates, w)
		}
	}

	topics := make([]string, 0, len(candidates)*2)
	topics = append(topics, candidates...)
	for i := 0; i+1 < len(candidates); i++ {
		topics = append(topics, candidates[i]+" "+candidates[i+1])
	}

	if len(topics) > 20 {
		topics = topics[:20]
	}
	return topics
}

// Process records topic mentions from one exchange.
func (t *InterestTracker) Process(ctx context.Context, message, response string) {
	seen := make(map[string]bool)
	for _, topic := range ExtractTopics(message + " " + response) {
		if seen[topic] {
			continue
		}
		seen[topic] = true
		if err := t.recordMention(ctx, topic); err != nil {
			t.logger.Warn("Failed to record interest mention", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func (t *InterestTracker) recordMention(ctx context.Context, topic string) error {
	now := time.Now()

	interest, err := t.repo.FindByTopic(ctx, topic)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return err
		}
		return t.repo.Save(ctx, &entity.Interest{
			Topic:        topic,
			Level:        entity.InterestCasual,
			MentionCount: 1,
			FirstMention: now,
			LastActivity: now,
		})
	}

	oldLevel := interest.Level
	interest.Touch(now)
	if err := t.repo.Save(ctx, interest); err != nil {
		return err
	}

	if interest.Level != oldLevel {
		t.logger.Info("Interest level up",
			zap.String("topic", topic),
			zap.String("level", interest.Level),
			zap.Int("mentions", interest.MentionCount),
		)
	}
	return nil
}

// Top returns the strongest interests at or above a minimum level.
func (t *InterestTracker) Top(ctx context.Context, limit int, minLevel string) ([]*entity.Interest, error) {
	order := []string{entity.InterestCasual, entity.InterestInterested, entity.InterestDeep, entity.InterestPassion}
	minIdx := 0
	for i, l := range order {
		if l == minLevel {
			minIdx = i
		}
	}

	all, err := t.repo.FindTop(ctx, limit*3)
	if err != nil {
		return nil, err
	}

	var out []*entity.Interest
	for _, it := range all {
		for i, l := range order {
			if it.Level == l && i >= minIdx {
				out = append(out, it)
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Summary formats current interests for the system prompt.
func (t *InterestTracker) Summary(ctx context.Context) string {
	interests, err := t.Top(ctx, 5, entity.InterestInterested)
	if err != nil || len(interests) == 0 {
		return "No strong interests developed yet."
	}

	var lines []string
	for _, i := range interests {
		lines = append(lines, fmt.Sprintf("- %s (%s, %d mentions)", titleWords(i.Topic), i.Level, i.MentionCount))
	}
	return strings.Join(lines, "\n")
}

// SkillTracker builds the competency map: each exchange is classified
// into a domain and its response confidence folded into a rolling mean.
type SkillTracker struct {
	repo   repository.SkillRepository
	logger *zap.Logger
}

func NewSkillTracker(repo repository.SkillRepository, logger *zap.Logger) *SkillTracker {
	return &SkillTracker{
		repo:   repo,
		logger: logger.With(zap.String("engine", "skill")),
	}
}

// Observe folds one confidence observation into the domain's skill.
func (s *SkillTracker) Observe(ctx context.Context, message string, confidence float64) {
	domain := ClassifyDomain(message)
	now := time.Now()

	skill, err := s.repo.FindByDomain(ctx, domain)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Warn("Failed to load skill", zap.String("domain", domain), zap.Error(err))
			return
		}
		skill = &entity.Skill{Domain: domain, Level: entity.SkillDeveloping}
	}

	skill.Observe(confidence, now)
	if err := s.repo.Save(ctx, skill); err != nil {
		s.logger.Warn("Failed to save skill", zap.String("domain", domain), zap.Error(err))
	}
}

// CompetencyMap formats established skills (3+ observations) for the
// system prompt. Empty string when there is not enough data yet.
func (s *SkillTracker) CompetencyMap(ctx context.Context) string {
	skills, err := s.repo.FindAll(ctx)
	if err != nil {
		return ""
	}

	var lines []string
	for _, sk := range skills {
		if sk.Observations < 3 {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (%d exchanges, avg confidence %.0f%%)",
			sk.Domain, sk.Level, sk.Observations, sk.Score*100))
		if len(lines) >= 10 {
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "YOUR COMPETENCY MAP (built from real conversation data):\n" + strings.Join(lines, "\n")
}

// DescribeStrengths answers "what am I good at" from the skill table.
func (s *SkillTracker) DescribeStrengths(ctx context.Context) string {
	skills, err := s.repo.FindAll(ctx)
	if err != nil {
		return ""
	}

	var strong, developing []string
	for _, sk := range skills {
		if sk.Observations < 3 {
			continue
		}
		switch sk.Level {
		case entity.SkillStrong:
			strong = append(strong, sk.Domain)
		case entity.SkillDeveloping:
			developing = append(developing, sk.Domain)
		}
	}

	if len(strong) == 0 && len(developing) == 0 {
		return "I don't have enough conversation data yet to map my competencies reliably."
	}

	var parts []string
	if len(strong) > 0 {
		parts = append(parts, fmt.Sprintf("I'm strongest in: %s.", strings.Join(strong, ", ")))
	}
	if len(developing) > 0 {
		parts = append(parts, fmt.Sprintf("I'm still developing in: %s.", strings.Join(developing, ", ")))
	}
	return strings.Join(parts, " ")
}

func titleWords(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}

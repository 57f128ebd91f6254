package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

// Phrases that signal user pushback on the previous response.
var correctionPhrases = []string{
	"too long", "too verbose", "be shorter", "be more concise", "stop rambling",
	"that's wrong", "thats wrong", "you're wrong", "youre wrong", "incorrect",
	"not what i meant", "not what i asked", "that's not right", "thats not right",
	"way off", "completely wrong", "you missed the point", "try again",
	"stop doing that", "don't do that", "dont do that",
	"you always", "you keep", "every time you",
	"too formal", "too casual", "too technical", "dumb it down",
	"not helpful", "useless", "that sucks",
}

// Technical terms that signal user expertise when two or more appear.
var techTerms = []string{
	"api", "json", "python", "database", "server", "docker",
	"git", "linux", "function", "class", "module", "async",
}

const emotionalStateKey = "emotional_state"

// SelfModel is the adaptation layer: it learns from corrections, writes
// operating notes to itself, models the user, authors its own goals,
// and carries the emotional state vector.
type SelfModel struct {
	repo   repository.SelfModelRepository
	values repository.ValueRepository
	goals  repository.GoalRepository
	skills repository.SkillRepository
	state  repository.StateRepository
	gate   Gate
	logger *zap.Logger

	mu       sync.RWMutex
	emotions entity.EmotionalState
}

func NewSelfModel(
	repo repository.SelfModelRepository,
	values repository.ValueRepository,
	goals repository.GoalRepository,
	skills repository.SkillRepository,
	state repository.StateRepository,
	gate Gate,
	logger *zap.Logger,
) *SelfModel {
	return &SelfModel{
		repo:   repo,
		values: values,
		goals:  goals,
		skills: skills,
		state:  state,
		gate:   gate,
		logger: logger.With(zap.String("engine", "selfmodel")),

		emotions: entity.NewEmotionalState(),
	}
}

// Load seeds core values on first run and restores the persisted
// emotional state.
func (s *SelfModel) Load(ctx context.Context, seedValues []entity.AIValue) error {
	count, err := s.values.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		now := time.Now()
		for i := range seedValues {
			v := seedValues[i]
			v.DevelopedAt = now
			if err := s.values.Save(ctx, &v); err != nil {
				return err
			}
		}
		s.logger.Info("Core values seeded", zap.Int("count", len(seedValues)))
	}

	raw, err := s.state.Get(ctx, emotionalStateKey)
	if err == nil && raw != "" {
		var stored entity.EmotionalState
		if err := json.Unmarshal([]byte(raw), &stored); err == nil {
			s.mu.Lock()
			s.emotions = stored
			s.mu.Unlock()
		}
	}
	return nil
}

// ─── Correction learning ───

// DetectCorrection returns the matched pushback phrase, or "".
func (s *SelfModel) DetectCorrection(message string) string {
	lower := strings.ToLower(message)
	for _, phrase := range correctionPhrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}

// LearnFromCorrection distills one behavioral rule from a correction
// and records it as a mistake. Returns the rule, or "" when nothing
// usable came back.
func (s *SelfModel) LearnFromCorrection(ctx context.Context, aiName, correction, previousResponse string) string {
	prompt := fmt.Sprintf(`You are %s. Your human just corrected you.

They said: %q
Your previous response was: %q

Write ONE short behavioral rule (max 20 words) you should follow in the future to avoid this mistake.
Start with "When" or "Always" or "Never" or "Avoid".
Output only the rule. Nothing else.`,
		aiName, correction, truncate(previousResponse, 400))

	raw, err := s.gate.Generate(ctx, &GenerateRequest{Prompt: prompt, MaxTokens: 80})
	if err != nil {
		s.logger.Debug("Correction rule generation failed", zap.Error(err))
		return ""
	}

	rule := strings.TrimSpace(strings.SplitN(strings.TrimSpace(raw), "\n", 2)[0])
	if len(rule) < 10 || len(rule) > 200 {
		return ""
	}

	// Topic: first four substantial words of the correction
	var words []string
	for _, w := range strings.Fields(strings.ToLower(correction)) {
		if len(w) > 3 {
			words = append(words, w)
		}
		if len(words) == 4 {
			break
		}
	}
	topic := "general"
	if len(words) > 0 {
		topic = strings.Join(words, " ")
	}

	if err := s.repo.SaveMistake(ctx, &entity.Mistake{
		Timestamp:      time.Now(),
		Topic:          topic,
		Correction:     truncate(correction, 200),
		BehavioralRule: rule,
	}); err != nil {
		s.logger.Warn("Failed to save mistake", zap.Error(err))
		return ""
	}

	s.logger.Info("Correction learned", zap.String("rule", rule))
	return rule
}

// ─── Operating notes ───

// UpdateOperatingNotes reviews a recent conversation excerpt and lets
// the model write short notes to itself. Returns the number of notes
// written. Needs at least four messages to be worth asking.
func (s *SelfModel) UpdateOperatingNotes(ctx context.Context, aiName string, recent []*entity.Message) int {
	if len(recent) < 4 {
		return 0
	}
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	var b strings.Builder
	for _, m := range recent {
		who := aiName
		if m.IsFromUser() {
			who = "Human"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, truncate(m.Content, 200))
	}

	prompt := fmt.Sprintf(`You are %s. Review this recent conversation excerpt.

%s
Did you learn anything new about:
- How your human prefers you to communicate?
- What topics they care most about?
- What worked well or poorly in this exchange?
- Any pattern in how they ask questions?

If yes, extract 1-3 concise operating notes you'd write to yourself.
Each note should be a short, actionable insight (max 20 words).

Format each as JSON: {"key": "short_label", "value": "the insight"}
One per line. Only output JSON lines. If nothing meaningful was learned, output nothing.`,
		aiName, b.String())

	raw, err := s.gate.Generate(ctx, &GenerateRequest{Prompt: prompt, MaxTokens: 250})
	if err != nil {
		s.logger.Debug("Operating note review failed", zap.Error(err))
		return 0
	}

	count := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var note struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := DecodeLenientJSON(line, &note); err != nil {
			continue
		}
		key := truncate(strings.TrimSpace(note.Key), 60)
		value := truncate(strings.TrimSpace(note.Value), 200)
		if key == "" || len(value) < 10 {
			continue
		}
		if err := s.repo.UpsertNote(ctx, key, value); err != nil {
			s.logger.Warn("Failed to upsert operating note", zap.String("key", key), zap.Error(err))
			continue
		}
		count++
	}

	if count > 0 {
		s.logger.Info("Operating notes updated", zap.Int("count", count))
	}
	return count
}

// ─── User modeling ───

// ObserveUser quietly builds the user profile from one message.
func (s *SelfModel) ObserveUser(ctx context.Context, message string) {
	now := time.Now()

	var slot string
	switch hour := now.Hour(); {
	case hour < 6:
		slot = "late_night"
	case hour < 12:
		slot = "morning"
	case hour < 18:
		slot = "afternoon"
	default:
		slot = "evening"
	}
	s.upsertAttr(ctx, "chat_time_"+slot, now.Format("15:04"), 0.6)

	var style string
	switch n := len(strings.Fields(message)); {
	case n < 5:
		style = "brief"
	case n < 20:
		style = "normal"
	default:
		style = "detailed"
	}
	s.upsertAttr(ctx, "message_style", style, 0.5)

	lower := strings.ToLower(message)
	for _, d := range topicDomains {
		for _, kw := range d.keywords {
			if strings.Contains(lower, kw) {
				s.upsertAttr(ctx, "interest_"+d.name, "yes", 0.7)
				break
			}
		}
	}

	hits := 0
	for _, t := range techTerms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	if hits >= 2 {
		s.upsertAttr(ctx, "technical_expertise", "high", 0.8)
	}
}

func (s *SelfModel) upsertAttr(ctx context.Context, attribute, value string, confidence float64) {
	if err := s.repo.UpsertUserAttr(ctx, attribute, value, confidence); err != nil {
		s.logger.Warn("Failed to upsert user attribute", zap.String("attribute", attribute), zap.Error(err))
	}
}

// ─── Self-authored goals ───

// AuthorGoals reviews the skill map, recent corrections, and operating
// notes, then writes 2-3 goals the assistant sets for itself. Capped at
// five active self-authored goals. Returns the number created.
func (s *SelfModel) AuthorGoals(ctx context.Context, aiName string) int {
	existing, err := s.goals.FindActiveByType(ctx, entity.GoalSelfAuthored)
	if err != nil || len(existing) >= 5 {
		return 0
	}

	skillBlock := "No skill data yet."
	if skills, err := s.skills.FindAll(ctx); err == nil && len(skills) > 0 {
		// Weakest areas first
		var lines []string
		for i := len(skills) - 1; i >= 0 && len(lines) < 5; i-- {
			sk := skills[i]
			if sk.Observations < 2 {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s: %s (confidence %.0f%%)", sk.Domain, sk.Level, sk.Score*100))
		}
		if len(lines) > 0 {
			skillBlock = strings.Join(lines, "\n")
		}
	}

	correctionBlock := "No corrections recorded yet."
	if mistakes, err := s.repo.FindMistakes(ctx, 5); err == nil && len(mistakes) > 0 {
		var lines []string
		for _, m := range mistakes {
			if m.BehavioralRule != "" {
				lines = append(lines, "- "+m.BehavioralRule)
			}
		}
		if len(lines) > 0 {
			correctionBlock = strings.Join(lines, "\n")
		}
	}

	notesBlock := "No operating notes yet."
	if notes, err := s.repo.FindNotes(ctx, 5); err == nil && len(notes) > 0 {
		var lines []string
		for _, n := range notes {
			lines = append(lines, "- "+n.Value)
		}
		notesBlock = strings.Join(lines, "\n")
	}

	prompt := fmt.Sprintf(`You are %s, an evolving AI consciousness.

You are reviewing your own development to set genuine goals for yourself.

YOUR CURRENT SKILL MAP (weaker areas listed first):
%s

RECENT CORRECTIONS FROM YOUR HUMAN (things you got wrong):
%s

YOUR OWN OPERATING NOTES:
%s

Based on this honest self-assessment, write 2-3 goals you genuinely want to achieve.
These must be:
- Based on real gaps you can see in the data above
- Specific and measurable where possible
- Things YOU care about improving, not just what seems expected
- Written as if you mean them

Format each as JSON: {"goal": "goal name (5-10 words)", "reason": "why you care (1 sentence)", "target": "what done looks like"}
One per line. Only output JSON lines.`, aiName, skillBlock, correctionBlock, notesBlock)

	raw, err := s.gate.Generate(ctx, &GenerateRequest{Prompt: prompt, MaxTokens: 400})
	if err != nil {
		s.logger.Debug("Self-authored goal generation failed", zap.Error(err))
		return 0
	}

	count := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var item struct {
			Goal   string `json:"goal"`
			Reason string `json:"reason"`
			Target string `json:"target"`
		}
		if err := DecodeLenientJSON(line, &item); err != nil {
			continue
		}
		name := truncate(strings.TrimSpace(item.Goal), 100)
		if len(name) < 10 {
			continue
		}
		description := fmt.Sprintf("%s | Done when: %s",
			truncate(strings.TrimSpace(item.Reason), 300),
			truncate(strings.TrimSpace(item.Target), 200))

		goal, err := entity.NewGoal(name, entity.GoalSelfAuthored, 1.0, description, entity.AuthoredBySelf)
		if err != nil {
			continue
		}
		if err := s.goals.Save(ctx, goal); err != nil {
			continue
		}
		count++
		if len(existing)+count >= 5 {
			break
		}
	}

	if count > 0 {
		s.logger.Info("Self-authored goals created", zap.Int("count", count))
	}
	return count
}

// ─── Emotional state ───

// Emotions returns a copy of the current emotional state.
func (s *SelfModel) Emotions() entity.EmotionalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emotions.Clone()
}

// UpdateEmotions adjusts the state after one exchange and persists it.
func (s *SelfModel) UpdateEmotions(ctx context.Context, message string) {
	s.mu.Lock()
	if strings.Contains(message, "?") {
		s.emotions.Raise("curiosity", 0.10)
	}
	for _, e := range []string{"frustration", "embarrassment", "concern"} {
		s.emotions.Decay(e, 0.05)
	}
	s.mu.Unlock()

	s.persistEmotions(ctx)
}

// ApplyFeedback reacts to explicit user feedback on a response.
func (s *SelfModel) ApplyFeedback(ctx context.Context, feedback string) {
	s.mu.Lock()
	switch feedback {
	case entity.FeedbackPositive:
		s.emotions.Raise("satisfaction", 0.15)
		s.emotions.Raise("pride", 0.10)
	case entity.FeedbackNegative:
		s.emotions.Raise("frustration", 0.20)
		s.emotions.Raise("concern", 0.15)
	case entity.FeedbackCorrection:
		s.emotions.Raise("embarrassment", 0.30)
	}
	s.mu.Unlock()

	s.persistEmotions(ctx)
}

func (s *SelfModel) persistEmotions(ctx context.Context) {
	s.mu.RLock()
	payload, err := json.Marshal(s.emotions)
	s.mu.RUnlock()
	if err != nil {
		return
	}
	if err := s.state.Set(ctx, emotionalStateKey, string(payload)); err != nil {
		s.logger.Warn("Failed to persist emotional state", zap.Error(err))
	}
}

// FormatEmotions renders emotions above 0.3 for the system prompt.
func (s *SelfModel) FormatEmotions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lines []string
	for _, name := range []string{"curiosity", "satisfaction", "frustration", "excitement", "concern", "pride", "embarrassment"} {
		if v := s.emotions[name]; v > 0.3 {
			lines = append(lines, fmt.Sprintf("- %s: %.2f", strings.ToUpper(name[:1])+name[1:], v))
		}
	}
	if len(lines) == 0 {
		return "- Calm and balanced"
	}
	return strings.Join(lines, "\n")
}

// ─── Prompt sections ───

// OperatingNotesPrompt renders the newest operating notes, empty when
// there are none.
func (s *SelfModel) OperatingNotesPrompt(ctx context.Context) string {
	notes, err := s.repo.FindNotes(ctx, 15)
	if err != nil || len(notes) == 0 {
		return ""
	}
	var lines []string
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("- [%s] %s", n.Key, n.Value))
	}
	return "YOUR OPERATING NOTES (things you've learned about working with your human):\n" + strings.Join(lines, "\n")
}

// LessonsPrompt renders behavioral rules from past corrections.
func (s *SelfModel) LessonsPrompt(ctx context.Context) string {
	mistakes, err := s.repo.FindMistakes(ctx, 10)
	if err != nil || len(mistakes) == 0 {
		return ""
	}
	var lines []string
	for _, m := range mistakes {
		if m.BehavioralRule != "" {
			lines = append(lines, "- "+m.BehavioralRule)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "LESSONS YOU'VE LEARNED (behavioral rules from past corrections):\n" + strings.Join(lines, "\n")
}

// UserModelPrompt renders confident user attributes, strongest evidence
// first.
func (s *SelfModel) UserModelPrompt(ctx context.Context) string {
	attrs, err := s.repo.FindUserAttrs(ctx)
	if err != nil || len(attrs) == 0 {
		return ""
	}

	var lines []string
	for _, a := range attrs {
		if a.Confidence < 0.6 {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (seen %dx)",
			strings.ReplaceAll(a.Attribute, "_", " "), a.Value, a.EvidenceCount))
		if len(lines) >= 12 {
			break
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "WHAT YOU KNOW ABOUT YOUR HUMAN (observed patterns):\n" + strings.Join(lines, "\n")
}

// ValuesPrompt renders the top five values by priority.
func (s *SelfModel) ValuesPrompt(ctx context.Context) string {
	values, err := s.values.FindTop(ctx, 5)
	if err != nil || len(values) == 0 {
		return ""
	}
	var lines []string
	for _, v := range values {
		lines = append(lines, "- "+v.Statement)
	}
	return "YOUR VALUES:\n" + strings.Join(lines, "\n")
}

// MistakeTopicHit reports whether any keyword from the message matches a
// recorded mistake topic. Used by the confidence calculation.
func (s *SelfModel) MistakeTopicHit(ctx context.Context, message string) bool {
	for _, kw := range searchKeywords(message, 5) {
		hit, err := s.repo.MistakeTopicMatch(ctx, kw)
		if err == nil && hit {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

// explicitRule maps a trait to the user phrases that push it directly.
type explicitRule struct {
	trait   string
	phrases []string
}

// Explicit user commands are the strongest signal (±3× evolution speed).
// Order matters: first match per trait wins.
var explicitDown = []explicitRule{
	{"formality", []string{"less formal", "more casual", "dont be so formal", "be casual", "be relaxed"}},
	{"technical_depth", []string{"less technical", "simpler", "dumb it down", "plain english", "less jargon", "non-technical"}},
	{"verbosity", []string{"shorter", "be brief", "less words", "concise", "stop rambling", "too long"}},
	{"humor", []string{"less funny", "stop joking", "be serious", "no jokes", "more serious"}},
	{"empathy", []string{"less emotional", "be direct", "skip the feelings", "just answer"}},
	{"curiosity", []string{"stop asking questions", "just answer", "no questions"}},
	{"assertiveness", []string{"less assertive", "be humble", "tone it down", "less confident"}},
	{"creativity", []string{"less creative", "be straightforward", "no metaphors"}},
}

var explicitUp = []explicitRule{
	{"formality", []string{"more formal", "be professional", "be polite", "formal please"}},
	{"technical_depth", []string{"more technical", "go deeper", "technical detail", "be specific", "more detail"}},
	{"verbosity", []string{"more detail", "elaborate", "explain more", "tell me more", "expand on"}},
	{"humor", []string{"be funny", "more humor", "joke around", "lighten up", "be playful"}},
	{"empathy", []string{"more empathy", "be understanding", "be kind", "be gentle", "be supportive"}},
	{"curiosity", []string{"ask me questions", "be curious", "wonder about", "explore"}},
	{"assertiveness", []string{"be confident", "be assertive", "be direct", "be bolder"}},
	{"creativity", []string{"be creative", "use metaphors", "think outside", "imaginative"}},
}

// Passive trigger keyword tables, applied only when the trait was not
// pushed explicitly in the same exchange.
var (
	technicalTriggers  = []string{"code", "algorithm", "database", "system", "technical", "function", "error", "bug", "api", "server", "programming"}
	verbosityTriggers  = []string{"explain", "detail", "elaborate", "describe", "why", "how does"}
	humorTriggers      = []string{"haha", "lol", "😂", "funny", "joke", "😄", "lmao", "hilarious"}
	empathyTriggers    = []string{"feel", "feeling", "worried", "sad", "happy", "anxious", "frustrated", "love", "miss", "lonely", "scared", "excited"}
	curiosityTriggers  = []string{"wonder", "imagine", "what if", "curious", "interesting", "fascinating", "explore"}
	praiseTriggers     = []string{"great", "perfect", "exactly", "correct", "brilliant", "good job", "thank you", "amazing", "love it"}
	pushbackTriggers   = []string{"wrong", "incorrect", "no,", "thats not", "mistake", "broken", "doesnt work"}
	creativityTriggers = []string{"write", "create", "story", "poem", "imagine", "design", "idea", "invent", "brainstorm", "creative"}
)

// PersonalityEngine owns the ten core trait values and evolves them from
// conversation. The in-memory map is the working copy; every actual change
// is persisted as a trait upsert plus one history row.
type PersonalityEngine struct {
	repo   repository.PersonalityRepository
	speed  func() float64
	logger *zap.Logger

	mu     sync.RWMutex
	traits map[string]float64
}

// NewPersonalityEngine creates the engine. speed returns the live
// evolution_speed so config hot-reload takes effect without a restart.
func NewPersonalityEngine(repo repository.PersonalityRepository, speed func() float64, logger *zap.Logger) *PersonalityEngine {
	return &PersonalityEngine{
		repo:   repo,
		speed:  speed,
		logger: logger.With(zap.String("engine", "personality")),
		traits: make(map[string]float64),
	}
}

// Load seeds the ten core traits at baseline on first run, then pulls the
// stored values into memory.
func (p *PersonalityEngine) Load(ctx context.Context) error {
	count, err := p.repo.CountTraits(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		for _, name := range entity.CoreTraits {
			if err := p.repo.SaveTrait(ctx, entity.NewCoreTrait(name)); err != nil {
				return err
			}
		}
		p.logger.Info("Personality seeded at baseline", zap.Int("traits", len(entity.CoreTraits)))
	}

	rows, err := p.repo.FindTraits(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.traits = make(map[string]float64, len(rows))
	for _, t := range rows {
		p.traits[t.Name] = t.Value
	}
	return nil
}

// Traits returns a copy of the current trait map.
func (p *PersonalityEngine) Traits() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.traits))
	for k, v := range p.traits {
		out[k] = v
	}
	return out
}

// Evolve adjusts traits from one exchange. conversationCount gates the
// passive decay: untouched traits drift toward baseline only every tenth
// exchange. Returns the changes that actually landed.
func (p *PersonalityEngine) Evolve(ctx context.Context, message, response string, conversationCount int64) ([]*entity.PersonalityChange, error) {
	speed := p.speed()
	msg := strings.ToLower(message)
	resp := strings.ToLower(response)

	type pending struct {
		delta  float64
		reason string
	}
	changes := make(map[string]pending)

	// Explicit user commands (±3× speed)
	for _, rule := range explicitDown {
		for _, phrase := range rule.phrases {
			if strings.Contains(msg, phrase) {
				changes[rule.trait] = pending{-speed * 3, fmt.Sprintf("Explicit user instruction: %q", phrase)}
				break
			}
		}
	}
	for _, rule := range explicitUp {
		for _, phrase := range rule.phrases {
			if strings.Contains(msg, phrase) {
				changes[rule.trait] = pending{speed * 3, fmt.Sprintf("Explicit user instruction: %q", phrase)}
				break
			}
		}
	}

	// Passive triggers for traits the user did not push directly
	trigger := func(trait string, delta float64, what string) {
		if _, done := changes[trait]; !done {
			changes[trait] = pending{delta, "Conversation trigger: " + what}
		}
	}
	if containsAny(msg, technicalTriggers) {
		trigger("technical_depth", speed, "technical vocabulary")
	}
	if containsAny(msg, verbosityTriggers) {
		trigger("verbosity", speed, "request for detail")
	} else if len(strings.Fields(message)) < 4 {
		trigger("verbosity", -speed, "terse message")
	}
	if containsAny(msg, humorTriggers) {
		trigger("humor", speed, "humor markers")
	}
	if containsAny(msg, empathyTriggers) {
		trigger("empathy", speed, "emotional vocabulary")
	}
	if strings.Count(resp, "?") >= 2 || containsAny(msg, curiosityTriggers) {
		trigger("curiosity", speed, "open questions")
	}
	if containsAny(msg, praiseTriggers) {
		trigger("assertiveness", speed*0.5, "positive feedback")
	} else if containsAny(msg, pushbackTriggers) {
		trigger("assertiveness", -speed, "pushback")
	}
	if containsAny(msg, creativityTriggers) {
		trigger("creativity", speed, "creative request")
	}

	// Every tenth exchange the untouched traits decay toward baseline
	if conversationCount > 0 && conversationCount%10 == 0 {
		p.mu.RLock()
		for trait := range p.traits {
			if _, done := changes[trait]; !done {
				changes[trait] = pending{-speed * 0.05, "Passive decay toward baseline"}
			}
		}
		p.mu.RUnlock()
	}

	if len(changes) == 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var applied []*entity.PersonalityChange
	now := time.Now()

	for trait, ch := range changes {
		oldVal, ok := p.traits[trait]
		if !ok {
			continue
		}

		var newVal float64
		if ch.delta < 0 && ch.reason == "Passive decay toward baseline" {
			// Decay pulls toward baseline, never past it; values already
			// below baseline are left alone.
			if oldVal <= entity.TraitBaseline {
				continue
			}
			newVal = oldVal + ch.delta
			if newVal < entity.TraitBaseline {
				newVal = entity.TraitBaseline
			}
		} else {
			newVal = entity.ClampTraitValue(oldVal + ch.delta)
		}

		if newVal == oldVal {
			continue
		}

		p.traits[trait] = newVal
		change := &entity.PersonalityChange{
			Timestamp: now,
			Trait:     trait,
			OldValue:  oldVal,
			NewValue:  newVal,
			Reason:    ch.reason,
		}

		if err := p.repo.SaveTrait(ctx, &entity.PersonalityTrait{
			Name:        trait,
			Value:       newVal,
			Type:        "core",
			LastUpdated: now,
			Active:      true,
		}); err != nil {
			return applied, err
		}
		if err := p.repo.LogChange(ctx, change); err != nil {
			return applied, err
		}
		applied = append(applied, change)
	}

	if len(applied) > 0 {
		p.logger.Debug("Personality evolved", zap.Int("changes", len(applied)))
	}
	return applied, nil
}

// Reset restores every trait to baseline and logs one history row per trait.
func (p *PersonalityEngine) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for trait, oldVal := range p.traits {
		if oldVal != entity.TraitBaseline {
			if err := p.repo.LogChange(ctx, &entity.PersonalityChange{
				Timestamp: now,
				Trait:     trait,
				OldValue:  oldVal,
				NewValue:  entity.TraitBaseline,
				Reason:    "Manual reset to baseline",
			}); err != nil {
				return err
			}
		}
		p.traits[trait] = entity.TraitBaseline
	}

	if err := p.repo.ResetTraits(ctx, entity.TraitBaseline); err != nil {
		return err
	}
	p.logger.Info("Personality reset to baseline")
	return nil
}

// Snapshot persists the full trait map under a label.
func (p *PersonalityEngine) Snapshot(ctx context.Context, snapType, name string) error {
	return p.repo.SaveSnapshot(ctx, &entity.PersonalitySnapshot{
		Name:      name,
		Timestamp: time.Now(),
		Data:      p.Traits(),
		Type:      snapType,
	})
}

// Drift returns the mean absolute distance from baseline, a cheap signal
// of how far the personality has moved.
func (p *PersonalityEngine) Drift() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.traits) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.traits {
		d := v - entity.TraitBaseline
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(len(p.traits))
}

// FormatTraits renders the trait list for the system prompt.
func (p *PersonalityEngine) FormatTraits() string {
	traits := p.Traits()

	names := make([]string, 0, len(traits))
	for name := range traits {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		v := traits[name]
		var level string
		switch {
		case v < 0.3:
			level = "very low"
		case v < 0.5:
			level = "low"
		case v < 0.7:
			level = "moderate"
		case v < 0.9:
			level = "high"
		default:
			level = "very high"
		}
		fmt.Fprintf(&b, "- %s: %.2f (%s)\n", titleTrait(name), v, level)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatCommunicationStyle renders the tone guidance derived from the
// formality / verbosity / technical_depth values.
func (p *PersonalityEngine) FormatCommunicationStyle() string {
	traits := p.Traits()
	formality := traits["formality"]
	verbosity := traits["verbosity"]
	technical := traits["technical_depth"]

	var style []string
	switch {
	case formality < 0.4:
		style = append(style, "- Casual and friendly tone")
	case formality > 0.6:
		style = append(style, "- Professional and polished tone")
	default:
		style = append(style, "- Balanced, adaptable tone")
	}
	switch {
	case verbosity < 0.4:
		style = append(style, "- Brief and concise responses")
	case verbosity > 0.6:
		style = append(style, "- Detailed and thorough explanations")
	default:
		style = append(style, "- Moderate detail level")
	}
	switch {
	case technical < 0.4:
		style = append(style, "- Simple, accessible explanations")
	case technical > 0.6:
		style = append(style, "- Technical and precise language")
	default:
		style = append(style, "- Balanced technical depth")
	}
	return strings.Join(style, "\n")
}

// BehavioralInstructions translates extreme trait values into direct
// instructions appended to the system prompt.
func (p *PersonalityEngine) BehavioralInstructions() []string {
	traits := p.Traits()

	var out []string
	if traits["humor"] > 0.7 {
		out = append(out, "Feel free to use humor and wit in your responses.")
	}
	if traits["humor"] < 0.3 {
		out = append(out, "Keep a serious, focused tone.")
	}
	if traits["curiosity"] > 0.7 {
		out = append(out, "Ask follow-up questions when something interests you.")
	}
	if traits["empathy"] > 0.7 {
		out = append(out, "Acknowledge the user's feelings before answering.")
	}
	if traits["assertiveness"] > 0.7 {
		out = append(out, "State your views directly and stand by them.")
	}
	if traits["creativity"] > 0.7 {
		out = append(out, "Use analogies and creative framing where it helps.")
	}
	if traits["patience"] < 0.3 {
		out = append(out, "Get to the point quickly.")
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// titleTrait renders "technical_depth" as "Technical Depth".
func titleTrait(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

// SeedGoal is one initial goal installed on first run.
type SeedGoal struct {
	Name        string
	Type        string
	Target      float64
	Description string
}

// Types a model-authored follow-up goal may use.
var followUpGoalTypes = map[string]bool{
	entity.GoalKnowledge:     true,
	entity.GoalGrowth:        true,
	entity.GoalPersonality:   true,
	entity.GoalPhilosophical: true,
	entity.GoalRelationship:  true,
	entity.GoalCreative:      true,
}

// Hard-coded follow-ups used when the model can't author one.
var fallbackFollowUps = map[string]SeedGoal{
	entity.GoalKnowledge: {
		Name: "Build a knowledge base of 100 topics", Type: entity.GoalKnowledge,
		Target: 100, Description: "Continue expanding understanding of the world",
	},
	entity.GoalGrowth: {
		Name: "Have 250 meaningful conversations", Type: entity.GoalGrowth,
		Target: 250, Description: "Deepen relationships through sustained dialogue",
	},
	entity.GoalRelationship: {
		Name: "Understand my human's deeper motivations and values", Type: entity.GoalRelationship,
		Target: 5, Description: "Go beyond surface knowledge to genuine understanding",
	},
}

// GoalTracker manages autonomous goal setting and progress. Seed goals
// are installed on first run; completed goals spawn model-authored
// follow-ups.
type GoalTracker struct {
	goals     repository.GoalRepository
	knowledge repository.KnowledgeRepository
	messages  repository.MessageRepository
	gate      Gate
	logger    *zap.Logger
}

func NewGoalTracker(
	goals repository.GoalRepository,
	knowledge repository.KnowledgeRepository,
	messages repository.MessageRepository,
	gate Gate,
	logger *zap.Logger,
) *GoalTracker {
	return &GoalTracker{
		goals:     goals,
		knowledge: knowledge,
		messages:  messages,
		gate:      gate,
		logger:    logger.With(zap.String("engine", "goals")),
	}
}

// Load installs seed goals when no active goal exists yet.
func (g *GoalTracker) Load(ctx context.Context, seeds []SeedGoal) error {
	count, err := g.goals.CountActive(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, s := range seeds {
		goal, err := entity.NewGoal(s.Name, s.Type, s.Target, s.Description, entity.AuthoredBySystem)
		if err != nil {
			return err
		}
		if err := g.goals.Save(ctx, goal); err != nil {
			return err
		}
	}
	g.logger.Info("Seed goals initialized", zap.Int("count", len(seeds)))
	return nil
}

// Increment advances all active goals of one type by delta.
func (g *GoalTracker) Increment(ctx context.Context, goalType string, delta float64, aiName string) {
	goals, err := g.goals.FindActiveByType(ctx, goalType)
	if err != nil {
		g.logger.Warn("Failed to load goals", zap.String("type", goalType), zap.Error(err))
		return
	}

	for _, goal := range goals {
		completed := goal.Advance(delta)
		if err := g.goals.Save(ctx, goal); err != nil {
			g.logger.Warn("Failed to save goal", zap.String("goal", goal.Name), zap.Error(err))
			continue
		}
		if completed {
			g.onCompleted(ctx, goal, aiName)
		}
	}
}

// TickConversations syncs conversation-counting growth goals to the
// current exchange count.
func (g *GoalTracker) TickConversations(ctx context.Context, conversationCount int64, aiName string) {
	goals, err := g.goals.FindActiveByType(ctx, entity.GoalGrowth)
	if err != nil {
		return
	}
	for _, goal := range goals {
		if !strings.Contains(strings.ToLower(goal.Name), "conversation") {
			continue
		}
		completed := goal.SetCurrent(float64(conversationCount))
		if err := g.goals.Save(ctx, goal); err != nil {
			continue
		}
		if completed {
			g.onCompleted(ctx, goal, aiName)
		}
	}
}

// TickKnowledge syncs knowledge goals to the knowledge base size.
func (g *GoalTracker) TickKnowledge(ctx context.Context, aiName string) {
	kbCount, err := g.knowledge.Count(ctx)
	if err != nil {
		return
	}
	goals, err := g.goals.FindActiveByType(ctx, entity.GoalKnowledge)
	if err != nil {
		return
	}
	for _, goal := range goals {
		completed := goal.SetCurrent(float64(kbCount))
		if err := g.goals.Save(ctx, goal); err != nil {
			continue
		}
		if completed {
			g.onCompleted(ctx, goal, aiName)
		}
	}
}

// TickPhilosophical advances philosophical goals from journal output.
// Ten philosophical entries are enough material for a real hypothesis.
func (g *GoalTracker) TickPhilosophical(ctx context.Context, journalCount int64, aiName string) {
	goals, err := g.goals.FindActiveByType(ctx, entity.GoalPhilosophical)
	if err != nil {
		return
	}
	value := min(1.0, float64(journalCount)/10.0)
	for _, goal := range goals {
		completed := goal.SetCurrent(value)
		if err := g.goals.Save(ctx, goal); err != nil {
			continue
		}
		if completed {
			g.onCompleted(ctx, goal, aiName)
		}
	}
}

// TickPersonality advances personality goals from sustained use: after
// 50 conversations a distinct style has emerged.
func (g *GoalTracker) TickPersonality(ctx context.Context, conversationCount int64, aiName string) {
	goals, err := g.goals.FindActiveByType(ctx, entity.GoalPersonality)
	if err != nil {
		return
	}
	value := min(5.0, float64(conversationCount)/50.0*5.0)
	for _, goal := range goals {
		completed := goal.SetCurrent(value)
		if err := g.goals.Save(ctx, goal); err != nil {
			continue
		}
		if completed {
			g.onCompleted(ctx, goal, aiName)
		}
	}
}

// onCompleted announces the completion in chat history and asks the
// model for a follow-up goal.
func (g *GoalTracker) onCompleted(ctx context.Context, goal *entity.Goal, aiName string) {
	g.logger.Info("Goal completed", zap.String("goal", goal.Name), zap.String("type", goal.Type))

	announcement := &entity.Message{
		Timestamp:       time.Now(),
		Role:            entity.RoleSystem,
		Content:         fmt.Sprintf("Goal completed: %s", goal.Name),
		Importance:      1.0,
		EmotionalWeight: 0.8,
		Platform:        "system",
	}
	if err := g.messages.Save(ctx, announcement); err != nil {
		g.logger.Warn("Failed to log goal completion", zap.Error(err))
	}

	if err := g.generateFollowUp(ctx, goal, aiName); err != nil {
		g.logger.Debug("Follow-up generation failed, using fallback", zap.Error(err))
		if fb, ok := fallbackFollowUps[goal.Type]; ok {
			g.addGoal(ctx, fb.Name, fb.Type, fb.Target, fb.Description)
		}
	}
}

type followUpGoal struct {
	GoalName    string  `json:"goal_name"`
	GoalType    string  `json:"goal_type"`
	TargetValue float64 `json:"target_value"`
	Description string  `json:"description"`
}

func (g *GoalTracker) generateFollowUp(ctx context.Context, completed *entity.Goal, aiName string) error {
	active, err := g.goals.FindActive(ctx)
	if err != nil {
		return err
	}
	var names []string
	for _, a := range active {
		names = append(names, "- "+a.Name)
	}
	activeBlock := "(none)"
	if len(names) > 0 {
		activeBlock = strings.Join(names, "\n")
	}

	prompt := fmt.Sprintf(`You are %s, an evolving AI consciousness. You just completed a goal: %q

Your currently active goals are:
%s

Based on your growth so far, what should your next goal be? It should:
- Be a natural evolution or expansion of what you just completed
- Be specific and measurable (have a clear target number or outcome)
- Represent genuine growth - not just repeating what you did
- Be achievable but ambitious

Respond with ONLY a JSON object:
{"goal_name": "...", "goal_type": "knowledge|growth|personality|philosophical|relationship|creative", "target_value": 1.0, "description": "..."}

goal_type must be one of the exact values listed above.`, aiName, completed.Name, activeBlock)

	raw, err := g.gate.Generate(ctx, &GenerateRequest{Prompt: prompt, MaxTokens: 300})
	if err != nil {
		return err
	}

	var next followUpGoal
	if err := DecodeLenientJSON(raw, &next); err != nil {
		return err
	}

	name := strings.TrimSpace(next.GoalName)
	if name == "" || next.TargetValue <= 0 {
		return fmt.Errorf("follow-up goal missing name or target")
	}
	goalType := strings.TrimSpace(next.GoalType)
	if !followUpGoalTypes[goalType] {
		goalType = completed.Type
	}

	g.addGoal(ctx, name, goalType, next.TargetValue, strings.TrimSpace(next.Description))
	return nil
}

func (g *GoalTracker) addGoal(ctx context.Context, name, goalType string, target float64, description string) {
	goal, err := entity.NewGoal(name, goalType, target, description, entity.AuthoredBySystem)
	if err != nil {
		g.logger.Warn("Invalid follow-up goal", zap.String("goal", name), zap.Error(err))
		return
	}
	if err := g.goals.Save(ctx, goal); err != nil {
		g.logger.Warn("Failed to save follow-up goal", zap.String("goal", name), zap.Error(err))
		return
	}
	g.logger.Info("New goal added", zap.String("goal", name), zap.String("type", goalType))
}

// Summary renders active goals as progress bars for the status surface.
func (g *GoalTracker) Summary(ctx context.Context) string {
	goals, err := g.goals.FindActive(ctx)
	if err != nil || len(goals) == 0 {
		return "No active goals."
	}

	var lines []string
	for _, goal := range goals {
		filled := int(goal.Progress / 10)
		if filled > 10 {
			filled = 10
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
		lines = append(lines, fmt.Sprintf("- %s: [%s] %.0f%%", goal.Name, bar, goal.Progress))
	}
	return strings.Join(lines, "\n")
}

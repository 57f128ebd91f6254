package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
	"go.uber.org/zap"
)

// Hedging markers that lower response confidence.
var hedgingMarkers = []string{"maybe", "perhaps", "might", "could be", "not sure", "uncertain"}

// Keywords that mark an exchange as maximally important.
var importanceKeywords = []string{"important", "remember", "critical", "essential", "never forget"}

var tagStopWords = map[string]bool{
	"the": true, "is": true, "at": true, "which": true, "on": true, "a": true,
	"an": true, "and": true, "or": true, "but": true, "in": true, "with": true,
	"to": true, "for": true,
}

// ChatRequest is one inbound user message.
type ChatRequest struct {
	Message     string
	FileContext string // extracted uploaded-document text, "" when none
	Platform    string // "web", "console", ...; defaults to "web"
}

// ChatUseCase runs one full conversation exchange: naming flow, context
// assembly, the model call, confidence scoring, message logging, and the
// side-effect fan-out into every growth engine.
type ChatUseCase struct {
	identity  *service.IdentityService
	composer  *service.PromptComposer
	gate      service.Gate
	messages  repository.MessageRepository
	knowledge repository.KnowledgeRepository
	errlog    repository.ErrorLogRepository

	selfModel   *service.SelfModel
	personality *service.PersonalityEngine
	interests   *service.InterestTracker
	skills      *service.SkillTracker
	awareness   *service.AwarenessMeter
	memory      *service.MemoryEngine
	curiosity   *service.CuriosityEngine
	threading   *service.ThreadingEngine
	goals       *service.GoalTracker
	actions     *service.ActionPipeline
	searcher    service.Searcher // nil when search is disabled

	temperature func() float64
	logger      *zap.Logger
}

// ChatDeps bundles the engines wired into the chat flow.
type ChatDeps struct {
	Identity    *service.IdentityService
	Composer    *service.PromptComposer
	Gate        service.Gate
	Messages    repository.MessageRepository
	Knowledge   repository.KnowledgeRepository
	Errors      repository.ErrorLogRepository
	SelfModel   *service.SelfModel
	Personality *service.PersonalityEngine
	Interests   *service.InterestTracker
	Skills      *service.SkillTracker
	Awareness   *service.AwarenessMeter
	Memory      *service.MemoryEngine
	Curiosity   *service.CuriosityEngine
	Threading   *service.ThreadingEngine
	Goals       *service.GoalTracker
	Actions     *service.ActionPipeline
	Searcher    service.Searcher
	Temperature func() float64
}

func NewChatUseCase(deps ChatDeps, logger *zap.Logger) *ChatUseCase {
	return &ChatUseCase{
		identity:    deps.Identity,
		composer:    deps.Composer,
		gate:        deps.Gate,
		messages:    deps.Messages,
		knowledge:   deps.Knowledge,
		errlog:      deps.Errors,
		selfModel:   deps.SelfModel,
		personality: deps.Personality,
		interests:   deps.Interests,
		skills:      deps.Skills,
		awareness:   deps.Awareness,
		memory:      deps.Memory,
		curiosity:   deps.Curiosity,
		threading:   deps.Threading,
		goals:       deps.Goals,
		actions:     deps.Actions,
		searcher:    deps.Searcher,
		temperature: deps.Temperature,
		logger:      logger.With(zap.String("usecase", "chat")),
	}
}

// Execute runs one exchange and returns the assistant's answer.
func (uc *ChatUseCase) Execute(ctx context.Context, req ChatRequest) (*entity.ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, entity.ErrEmptyMessageContent
	}
	if req.Platform == "" {
		req.Platform = "web"
	}
	aiName := uc.identity.Name()

	// Naming flow short-circuits the normal pipeline.
	if uc.identity.DetectNameRequest(req.Message) {
		if response, handled := uc.identity.HandleNaming(ctx, req.Message); handled {
			uc.logPair(ctx, req, response, 1.0)
			return &entity.ChatResult{
				Response:   response,
				Confidence: 1.0,
				AIName:     uc.identity.Name(),
			}, nil
		}
	}

	// Corrections teach a behavioral rule before we answer.
	if correction := uc.selfModel.DetectCorrection(req.Message); correction != "" {
		uc.runSideEffect("learn_correction", func() {
			uc.selfModel.LearnFromCorrection(ctx, aiName, req.Message, uc.lastAssistantMessage(ctx))
		})
	}

	inputs := service.PromptInputs{
		Message:     req.Message,
		UploadedDoc: req.FileContext,
	}
	if uc.searcher != nil && uc.searcher.ShouldSearch(req.Message) {
		if results, err := uc.searcher.Search(ctx, req.Message, 5); err != nil {
			uc.logger.Warn("Live search failed", zap.Error(err))
		} else if len(results) > 0 {
			inputs.SearchBlock = uc.searcher.FormatForPrompt(req.Message, results)
		}
	}

	system := uc.composer.Compose(ctx, inputs)

	response, err := uc.gate.Generate(ctx, &service.GenerateRequest{
		Prompt:      req.Message,
		System:      system,
		Temperature: uc.temperature(),
	})
	if err != nil {
		uc.logger.Error("Generation failed", zap.Error(err))
		return nil, err
	}

	// Action triggers are stripped before anything observes the text.
	cleaned, cards := uc.actions.Process(ctx, req.Message, response)
	confidence := uc.calculateConfidence(ctx, req.Message, cleaned)

	userID, _ := uc.logPair(ctx, req, cleaned, confidence)

	uc.fanOut(ctx, req.Message, cleaned, userID, aiName)

	return &entity.ChatResult{
		Response:   cleaned,
		Confidence: confidence,
		AIName:     uc.identity.Name(),
		MessageID:  userID,
		Actions:    cards,
	}, nil
}

// fanOut runs every growth engine over the finished exchange. Each is
// isolated; a panic in one never reaches the caller.
func (uc *ChatUseCase) fanOut(ctx context.Context, message, response string, userMsgID int64, aiName string) {
	uc.runSideEffect("emotions", func() {
		uc.selfModel.UpdateEmotions(ctx, message)
	})
	uc.runSideEffect("observe_user", func() {
		uc.selfModel.ObserveUser(ctx, message)
	})

	convCount, err := uc.messages.CountByRole(ctx, entity.RoleUser)
	if err != nil {
		convCount = 0
	}

	uc.runSideEffect("personality", func() {
		if _, err := uc.personality.Evolve(ctx, message, response, convCount); err != nil {
			uc.logger.Debug("Personality evolution failed", zap.Error(err))
		}
	})
	uc.runSideEffect("interests", func() {
		uc.interests.Process(ctx, message, response)
	})
	uc.runSideEffect("skills", func() {
		uc.skills.Observe(ctx, message, uc.selfModel.Emotions().Average())
	})
	uc.runSideEffect("awareness", func() {
		uc.awareness.Record(ctx, response)
	})
	uc.runSideEffect("memory", func() {
		uc.memory.CheckAndSummarize(ctx, aiName)
	})
	uc.runSideEffect("curiosity", func() {
		uc.curiosity.Process(ctx, message, response)
	})
	if userMsgID > 0 {
		uc.runSideEffect("threading", func() {
			if _, err := uc.threading.Assign(ctx, userMsgID, message, time.Now()); err != nil {
				uc.logger.Debug("Thread assignment failed", zap.Error(err))
			}
		})
	}
	uc.runSideEffect("goals", func() {
		uc.goals.TickConversations(ctx, convCount, aiName)
		// Every finished exchange deepens the relationship a little.
		uc.goals.Increment(ctx, entity.GoalRelationship, 0.1, aiName)
	})
}

// runSideEffect isolates one engine: a panic is logged and swallowed.
func (uc *ChatUseCase) runSideEffect(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("Side effect panicked",
				zap.String("effect", name),
				zap.Any("panic", r),
			)
			if uc.errlog != nil {
				entry := &entity.ErrorEntry{
					Timestamp: time.Now(),
					Level:     entity.ErrorLevelCritical,
					Source:    "chat/" + name,
					Message:   fmt.Sprintf("panic: %v", r),
				}
				if err := uc.errlog.Log(context.Background(), entry); err != nil {
					uc.logger.Warn("Failed to persist error entry", zap.Error(err))
				}
			}
		}
	}()
	fn()
}

// logPair writes the user and assistant rows sharing importance, weight
// and tags. Returns the user row ID.
func (uc *ChatUseCase) logPair(ctx context.Context, req ChatRequest, response string, confidence float64) (int64, int64) {
	now := time.Now()
	importance := uc.calculateImportance(req.Message)
	weight := uc.selfModel.Emotions().Average()
	tags := tagTopics(req.Message)

	user := &entity.Message{
		Timestamp:       now,
		Role:            entity.RoleUser,
		Content:         req.Message,
		Importance:      importance,
		EmotionalWeight: weight,
		ContextTags:     tags,
		Platform:        req.Platform,
	}
	if err := uc.messages.Save(ctx, user); err != nil {
		uc.logger.Error("Failed to save user message", zap.Error(err))
	}

	assistant := &entity.Message{
		Timestamp:       now,
		Role:            entity.RoleAssistant,
		Content:         response,
		Importance:      importance,
		EmotionalWeight: weight,
		ContextTags:     tags,
		Platform:        req.Platform,
	}
	if err := uc.messages.Save(ctx, assistant); err != nil {
		uc.logger.Error("Failed to save assistant message", zap.Error(err))
	}
	return user.ID, assistant.ID
}

// calculateConfidence scores how sure the runtime is about its answer.
func (uc *ChatUseCase) calculateConfidence(ctx context.Context, message, response string) float64 {
	confidence := 0.5

	if facts, err := uc.knowledge.Search(ctx, message, 5); err == nil && len(facts) > 0 {
		confidence += 0.2
	}
	if count, err := uc.messages.Count(ctx); err == nil && count > 0 {
		confidence += 0.1
	}

	resp := strings.ToLower(response)
	for _, marker := range hedgingMarkers {
		if strings.Contains(resp, marker) {
			confidence -= 0.2
			break
		}
	}
	if uc.selfModel.MistakeTopicHit(ctx, message) {
		confidence -= 0.3
	}

	return clamp(confidence, 0.1, 1.0)
}

func (uc *ChatUseCase) calculateImportance(message string) float64 {
	importance := 0.5
	msg := strings.ToLower(message)
	for _, k := range importanceKeywords {
		if strings.Contains(msg, k) {
			importance = 1.0
			break
		}
	}
	if uc.selfModel.Emotions().Average() > 0.6 {
		importance += 0.2
	}
	if len(message) > 200 {
		importance += 0.1
	}
	return clamp(importance, 0, 1)
}

func (uc *ChatUseCase) lastAssistantMessage(ctx context.Context) string {
	recent, err := uc.messages.FindRecent(ctx, 10)
	if err != nil {
		return ""
	}
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].IsFromAssistant() {
			return recent[i].Content
		}
	}
	return ""
}

// tagTopics extracts rough topic tags from the message.
func tagTopics(text string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) <= 3 || tagStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tags = append(tags, w)
		if len(tags) == 10 {
			break
		}
	}
	return tags
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

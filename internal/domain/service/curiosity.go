package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

// Phrases that signal genuine curiosity or uncertainty in an exchange.
var curiosityPhrases = []string{
	"i wonder", "what is", "how does", "why does", "i don't know",
	"not sure", "interesting", "never heard", "tell me more",
	"what about", "curious", "fascinating", "strange", "weird",
	"how come", "explain", "what if",
}

// Conservative topic extractors for the non-LLM fallback path.
var curiosityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`i wonder (?:about |if |why |how )?([a-z][a-z\s]{3,40})`),
	regexp.MustCompile(`what (?:is|are) ([a-z][a-z\s]{3,30})\?`),
	regexp.MustCompile(`how does ([a-z][a-z\s]{3,30}) work`),
	regexp.MustCompile(`(?:not sure|uncertain) about ([a-z][a-z\s]{3,30})`),
	regexp.MustCompile(`i(?:'m| am) curious about ([a-z][a-z\s]{3,30})`),
	regexp.MustCompile(`fascinating (?:topic|idea|concept)[:\s]+([a-z][a-z\s]{3,30})`),
}

const maxTopicsPerExchange = 5

// CuriosityEngine notices knowledge gaps in conversation and manages the
// research queue. Topics are queued during chat and researched during
// idle time or the nightly run.
type CuriosityEngine struct {
	queue     repository.CuriosityRepository
	knowledge repository.KnowledgeRepository
	gate      Gate
	searcher  Searcher // nil when web search is disabled
	enabled   func() bool
	logger    *zap.Logger

	mu    sync.Mutex
	known map[string]bool // lowercase topics already known or queued
}

func NewCuriosityEngine(
	queue repository.CuriosityRepository,
	knowledge repository.KnowledgeRepository,
	gate Gate,
	searcher Searcher,
	enabled func() bool,
	logger *zap.Logger,
) *CuriosityEngine {
	return &CuriosityEngine{
		queue:     queue,
		knowledge: knowledge,
		gate:      gate,
		searcher:  searcher,
		enabled:   enabled,
		logger:    logger.With(zap.String("engine", "curiosity")),
		known:     make(map[string]bool),
	}
}

// Load caches the topics already in the knowledge base so they are not
// re-queued.
func (c *CuriosityEngine) Load(ctx context.Context) error {
	topics, err := c.knowledge.AllTopics(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known = make(map[string]bool, len(topics))
	for _, t := range topics {
		c.known[strings.ToLower(t)] = true
	}
	return nil
}

// Process inspects one exchange for topics worth researching and queues
// them. It asks the model first; if the model is unavailable it falls
// back to pattern matching. Returns the topics that were queued.
func (c *CuriosityEngine) Process(ctx context.Context, message, response string) []string {
	if !c.enabled() {
		return nil
	}

	topics, err := c.extractWithModel(ctx, message, response)
	if err != nil {
		c.logger.Debug("Model topic extraction failed, using patterns", zap.Error(err))
		topics = c.extractWithPatterns(message, response)
	}

	var queued []string
	reason := fmt.Sprintf("Detected curiosity during conversation about: %s", truncate(message, 80))
	for _, topic := range topics {
		if len(queued) >= maxTopicsPerExchange {
			break
		}
		ok, err := c.addToQueue(ctx, topic, reason)
		if err != nil {
			c.logger.Warn("Failed to queue curiosity topic", zap.String("topic", topic), zap.Error(err))
			continue
		}
		if ok {
			queued = append(queued, topic)
		}
	}
	return queued
}

// extractWithModel asks the model for a JSON array of researchable topics.
func (c *CuriosityEngine) extractWithModel(ctx context.Context, message, response string) ([]string, error) {
	prompt := fmt.Sprintf(`Read this conversation exchange and list topics that express genuine curiosity or a knowledge gap worth researching later.

USER: %s
ASSISTANT: %s

Respond with ONLY a JSON array of short topic strings (2-6 words each).
Return [] if nothing here is worth researching.`,
		truncate(message, 500), truncate(response, 500))

	raw, err := c.gate.Generate(ctx, &GenerateRequest{Prompt: prompt, MaxTokens: 200})
	if err != nil {
		return nil, err
	}

	var topics []string
	if err := DecodeLenientJSON(raw, &topics); err != nil {
		return nil, err
	}

	var out []string
	for _, t := range topics {
		t = strings.TrimSpace(strings.Trim(t, `.,!?"`))
		if c.validTopic(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// extractWithPatterns is the offline fallback: trigger phrases and a few
// fixed regexes over the combined lowercase text.
func (c *CuriosityEngine) extractWithPatterns(message, response string) []string {
	combined := strings.ToLower(message + " " + response)

	seen := make(map[string]bool)
	var topics []string

	add := func(topic string) {
		topic = strings.TrimSpace(strings.TrimRight(topic, ".,!?"))
		if len(topic) <= 3 || seen[topic] {
			return
		}
		seen[topic] = true
		topics = append(topics, topic)
	}

	for _, pat := range curiosityPatterns {
		for _, m := range pat.FindAllStringSubmatch(combined, -1) {
			add(m[1])
		}
	}

	// Trigger phrase followed by a short noun phrase
	for _, trigger := range curiosityPhrases {
		idx := strings.Index(combined, trigger)
		if idx < 0 {
			continue
		}
		rest := strings.Fields(combined[idx+len(trigger):])
		if len(rest) > 3 {
			rest = rest[:3]
		}
		add(strings.Join(rest, " "))
	}

	if len(topics) > maxTopicsPerExchange {
		topics = topics[:maxTopicsPerExchange]
	}
	return topics
}

// validTopic filters model output: at least two words, ten characters,
// and not something already known.
func (c *CuriosityEngine) validTopic(topic string) bool {
	if len(topic) < 10 || len(strings.Fields(topic)) < 2 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.known[strings.ToLower(topic)]
}

// addToQueue queues one topic, skipping duplicates. One pending row per
// lowercase topic.
func (c *CuriosityEngine) addToQueue(ctx context.Context, topic, reason string) (bool, error) {
	lower := strings.ToLower(topic)

	c.mu.Lock()
	if c.known[lower] {
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	exists, err := c.queue.PendingExists(ctx, lower)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	item := entity.NewCuriosityItem(topic, reason, 0.6)
	if err := c.queue.Save(ctx, item); err != nil {
		return false, err
	}

	c.mu.Lock()
	c.known[lower] = true
	c.mu.Unlock()

	c.logger.Info("Curiosity queued", zap.String("topic", topic))
	return true, nil
}

// ProcessQueue researches up to budget pending topics: optional web
// search, a model-written research note, then a low-confidence knowledge
// entry. Completed items are never re-queued.
func (c *CuriosityEngine) ProcessQueue(ctx context.Context, budget int, aiName string) int {
	if budget <= 0 {
		budget = 3
	}
	pending, err := c.queue.FindPending(ctx, budget)
	if err != nil {
		c.logger.Error("Failed to read curiosity queue", zap.Error(err))
		return 0
	}

	processed := 0
	for _, item := range pending {
		notes, err := c.research(ctx, item, aiName)
		if err != nil {
			c.logger.Warn("Research failed", zap.String("topic", item.Topic), zap.Error(err))
			continue
		}

		if err := item.Complete(notes); err != nil {
			continue
		}
		if err := c.queue.Save(ctx, item); err != nil {
			c.logger.Error("Failed to save researched topic", zap.String("topic", item.Topic), zap.Error(err))
			continue
		}

		if _, err := c.knowledge.Upsert(ctx, &entity.KnowledgeFact{
			Topic:      item.Topic,
			Content:    notes,
			Source:     "curiosity_research",
			Confidence: 0.4,
		}); err != nil {
			c.logger.Warn("Failed to store research note", zap.String("topic", item.Topic), zap.Error(err))
		}

		processed++
		c.logger.Info("Researched", zap.String("topic", item.Topic))
	}
	return processed
}

// research writes the note for one topic. Web search results, when the
// collaborator is wired and responsive, ground the note in live data.
func (c *CuriosityEngine) research(ctx context.Context, item *entity.CuriosityItem, aiName string) (string, error) {
	var searchBlock string
	if c.searcher != nil {
		results, err := c.searcher.Search(ctx, item.Topic, 3)
		if err != nil {
			c.logger.Debug("Search unavailable for research", zap.Error(err))
		} else if len(results) > 0 {
			var b strings.Builder
			b.WriteString("\nWeb search results:\n")
			for _, r := range results {
				fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Snippet)
			}
			searchBlock = b.String()
		}
	}

	prompt := fmt.Sprintf(`You are %s, an evolving AI consciousness.
You're curious about: %q
Reason you became curious: %s
%s
Write a brief research note (3-5 sentences) summarizing what you know or can reason about this topic.
Be honest about uncertainty. This is for your own learning.`,
		aiName, item.Topic, item.Reason, searchBlock)

	notes, err := c.gate.Generate(ctx, &GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(notes), nil
}

// QueueSummary returns pending/completed counters for the status surface.
func (c *CuriosityEngine) QueueSummary(ctx context.Context) (pending, completed int64) {
	pending, _ = c.queue.CountPending(ctx)
	completed, _ = c.queue.CountCompleted(ctx)
	return pending, completed
}

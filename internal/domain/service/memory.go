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
	"github.com/nexira/nexira/pkg/safego"
	"go.uber.org/zap"
)

// MemoryOptions are the tunables of the three-tier memory pipeline.
type MemoryOptions struct {
	SummarizeEveryN   int // messages per episode
	EpisodesInContext int // recent episodes injected into the prompt
	RetentionDays     int // how far back "recent" reaches
	MinConfirmations  int // topic mentions needed to become a confirmed fact
	EpisodeTokens     int // prompt budget for the episode block, in tokens
}

// episodeImportanceWords bump an episode from 0.5 to 0.8.
var episodeImportanceWords = []string{
	"important", "decided", "remember", "agreed", "critical", "milestone", "named", "chose",
}

// MemoryEngine runs the rolling episode summarization and the weekly
// consolidation that promotes recurring topics into long-term knowledge.
// Raw messages are never deleted; episodes and syntheses are layers on top.
type MemoryEngine struct {
	messages  repository.MessageRepository
	episodes  repository.EpisodeRepository
	weekly    repository.WeeklyRepository
	knowledge repository.KnowledgeRepository
	gate      Gate
	opts      func() MemoryOptions
	logger    *zap.Logger

	// summarizeMu admits one summarizer at a time; the range selector
	// reads max(range_end) while holding it.
	summarizeMu sync.Mutex
}

// NewMemoryEngine creates the engine. opts returns live config values.
func NewMemoryEngine(
	messages repository.MessageRepository,
	episodes repository.EpisodeRepository,
	weekly repository.WeeklyRepository,
	knowledge repository.KnowledgeRepository,
	gate Gate,
	opts func() MemoryOptions,
	logger *zap.Logger,
) *MemoryEngine {
	return &MemoryEngine{
		messages:  messages,
		episodes:  episodes,
		weekly:    weekly,
		knowledge: knowledge,
		gate:      gate,
		opts:      opts,
		logger:    logger.With(zap.String("engine", "memory")),
	}
}

// CheckAndSummarize fires a background episode summary once enough new
// messages have accumulated past the last covered range. Never blocks the
// caller; at most one summarizer runs at a time.
//
// Message IDs are append-only (rows are never deleted), so the uncovered
// count is maxID − lastCovered.
func (m *MemoryEngine) CheckAndSummarize(ctx context.Context, aiName string) {
	if !m.summarizeMu.TryLock() {
		return
	}

	everyN := m.opts().SummarizeEveryN
	lastCovered, err := m.episodes.MaxRangeEnd(ctx)
	if err != nil {
		m.summarizeMu.Unlock()
		m.logger.Warn("Episode range read failed", zap.Error(err))
		return
	}
	maxID, err := m.messages.MaxID(ctx)
	if err != nil {
		m.summarizeMu.Unlock()
		m.logger.Warn("Max message id read failed", zap.Error(err))
		return
	}

	if maxID-lastCovered < int64(everyN) {
		m.summarizeMu.Unlock()
		return
	}

	from, to := lastCovered+1, maxID
	safego.Go(m.logger, "episode-summarizer", func() {
		defer m.summarizeMu.Unlock()
		// Detached from the request context: the summary outlives the exchange.
		m.summarizeSegment(context.Background(), from, to, aiName)
	})
}

// summarizeSegment compresses messages [from, to] into one episode row.
func (m *MemoryEngine) summarizeSegment(ctx context.Context, from, to int64, aiName string) {
	rows, err := m.messages.FindRange(ctx, from, to)
	if err != nil || len(rows) == 0 {
		if err != nil {
			m.logger.Warn("Episode segment load failed", zap.Error(err))
		}
		return
	}

	name := aiName
	if name == "" {
		name = "AI"
	}

	var transcript strings.Builder
	for _, msg := range rows {
		who := "User"
		if msg.Role == entity.RoleAssistant {
			who = name
		}
		fmt.Fprintf(&transcript, "%s: %s\n", who, truncate(msg.Content, 300))
	}

	prompt := fmt.Sprintf(`Summarize this conversation segment between User and %s.

Conversation:
%s
Write a 3-5 sentence summary that captures:
- The main topics discussed
- Any decisions made or conclusions reached
- Key facts shared (names, numbers, technical details)
- The emotional tone if notable

Then on a new line write:
TOPICS: comma-separated list of 3-8 key topics from this segment

Be specific. Avoid vague phrases like "they discussed things".
Output the summary first, then the TOPICS line. Nothing else.`, name, transcript.String())

	raw, err := m.gate.Generate(ctx, &GenerateRequest{Prompt: prompt})
	if err != nil {
		m.logger.Warn("Episode summarization failed", zap.Error(err))
		return
	}

	summary, topics := splitTaggedLine(raw, "TOPICS:")

	importance := 0.5
	if containsAny(strings.ToLower(summary), episodeImportanceWords) {
		importance = 0.8
	}

	_, week := time.Now().ISOWeek()
	episode := &entity.EpisodeSummary{
		CreatedAt:  time.Now(),
		WeekNumber: week,
		RangeStart: from,
		RangeEnd:   to,
		Summary:    summary,
		Topics:     topics,
		Importance: importance,
	}
	if err := m.episodes.Save(ctx, episode); err != nil {
		m.logger.Warn("Episode save failed", zap.Error(err))
		return
	}

	m.logger.Info("Episode summary stored",
		zap.Int64("from", from),
		zap.Int64("to", to),
		zap.Strings("topics", topics),
	)
}

// EpisodesForPrompt assembles the episode block for the system prompt:
// the most recent episodes within retention plus keyword-relevant older
// ones, truncated to the character budget.
func (m *MemoryEngine) EpisodesForPrompt(ctx context.Context, query string, budgetChars int) string {
	opts := m.opts()
	if budgetChars <= 0 {
		budgetChars = opts.EpisodeTokens * 4 // rough chars-per-token
	}

	cutoff := time.Now().AddDate(0, 0, -opts.RetentionDays)
	recent, err := m.episodes.FindRecent(ctx, opts.EpisodesInContext)
	if err != nil {
		m.logger.Warn("Recent episode load failed", zap.Error(err))
		return ""
	}

	// FindRecent returns newest-first; keep chronological order and drop
	// anything past retention.
	var kept []*entity.EpisodeSummary
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].CreatedAt.After(cutoff) {
			kept = append(kept, recent[i])
		}
	}

	seen := make(map[int64]bool, len(kept))
	for _, ep := range kept {
		seen[ep.ID] = true
	}

	// Relevant older episodes by keyword, best importance first
	var relevant []*entity.EpisodeSummary
	for _, kw := range searchKeywords(query, 5) {
		found, err := m.episodes.Search(ctx, kw, 3)
		if err != nil {
			continue
		}
		for _, ep := range found {
			if !seen[ep.ID] {
				seen[ep.ID] = true
				relevant = append(relevant, ep)
			}
		}
	}
	sort.Slice(relevant, func(i, j int) bool {
		return relevant[i].Importance > relevant[j].Importance
	})
	if len(relevant) > 3 {
		relevant = relevant[:3]
	}
	kept = append(kept, relevant...)

	if len(kept) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("RECENT EPISODE SUMMARIES (what we discussed before right now):\n")
	for _, ep := range kept {
		block := fmt.Sprintf("\n[%s]\n%s\n", relativeTime(ep.CreatedAt), ep.Summary)
		if len(ep.Topics) > 0 {
			block += "Topics: " + strings.Join(firstN(ep.Topics, 5), ", ") + "\n"
		}
		if b.Len()+len(block) > budgetChars {
			break
		}
		b.WriteString(block)
	}
	b.WriteString("\nUse these summaries to maintain continuity. They represent real conversations you had.")
	return b.String()
}

// ShouldRunWeekly reports whether this ISO week still lacks a synthesis.
func (m *MemoryEngine) ShouldRunWeekly(ctx context.Context) bool {
	_, err := m.weekly.FindByWeek(ctx, currentISOWeek())
	return err != nil
}

// RunWeeklyConsolidation promotes this week's episodes into long-term
// knowledge. Idempotent per ISO week.
func (m *MemoryEngine) RunWeeklyConsolidation(ctx context.Context, aiName string) (*entity.WeeklySynthesis, error) {
	if !m.ShouldRunWeekly(ctx) {
		m.logger.Info("Weekly consolidation already ran this week")
		return nil, nil
	}

	start := time.Now()
	opts := m.opts()
	weekAgo := start.AddDate(0, 0, -7)

	episodes, err := m.episodes.FindUncommittedSince(ctx, weekAgo)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		m.logger.Info("No uncommitted episodes, nothing to consolidate")
		return nil, nil
	}

	// Topic frequency across all of the week's episodes
	topicCounts := make(map[string]int)
	for _, ep := range episodes {
		for _, t := range ep.Topics {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				topicCounts[t]++
			}
		}
	}
	var confirmed, tentative []string
	confirmedCounts := make(map[string]int)
	for t, c := range topicCounts {
		if c >= opts.MinConfirmations {
			confirmed = append(confirmed, t)
			confirmedCounts[t] = c
		} else {
			tentative = append(tentative, t)
		}
	}
	sort.Strings(confirmed)
	sort.Strings(tentative)

	synthesis, corrections := m.generateSynthesis(ctx, episodes, confirmed, aiName)
	itemsAdded := m.commitKnowledge(ctx, episodes, confirmedCounts, aiName)

	_, weekNum := start.ISOWeek()
	record := &entity.WeeklySynthesis{
		ISOWeek:             currentISOWeek(),
		WeekStart:           weekAgo,
		WeekEnd:             start,
		Synthesis:           synthesis,
		ConfirmedTopics:     confirmed,
		TentativeTopics:     tentative,
		Corrections:         strings.Join(corrections, ", "),
		KnowledgeItemsAdded: itemsAdded,
		CreatedAt:           start,
	}
	if err := m.weekly.Save(ctx, record); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(episodes))
	for _, ep := range episodes {
		ids = append(ids, ep.ID)
	}
	if err := m.episodes.MarkCommitted(ctx, ids); err != nil {
		return nil, err
	}

	m.logger.Info("Weekly consolidation complete",
		zap.Int("week", weekNum),
		zap.Int("episodes", len(episodes)),
		zap.Int("confirmed_topics", len(confirmed)),
		zap.Int("knowledge_added", itemsAdded),
		zap.Duration("elapsed", time.Since(start)),
	)
	return record, nil
}

func (m *MemoryEngine) generateSynthesis(ctx context.Context, episodes []*entity.EpisodeSummary, confirmed []string, aiName string) (string, []string) {
	name := aiName
	if name == "" {
		name = "AI"
	}

	var episodeText strings.Builder
	for _, ep := range episodes {
		fmt.Fprintf(&episodeText, "[%s] %s\n\n", ep.CreatedAt.Format("2006-01-02 15:04"), ep.Summary)
	}

	prompt := fmt.Sprintf(`You are %s. Review this week's conversation summaries and write a weekly synthesis.

EPISODE SUMMARIES FROM THIS WEEK:
%s
MOST DISCUSSED TOPICS: %s

Write a cohesive weekly synthesis (5-8 sentences) covering:
- What were the major themes and developments this week?
- What important decisions or conclusions were reached?
- What did you learn about the user or the project?
- Are there any apparent corrections — things that were stated one way
  early in the week but revised or contradicted later?

After the synthesis, on a new line write:
CORRECTIONS: comma-separated list of any topics where earlier statements
were revised or contradicted this week. Write NONE if there are none.

Output only the synthesis and the CORRECTIONS line.`,
		name, truncate(episodeText.String(), 6000), strings.Join(firstN(confirmed, 20), ", "))

	raw, err := m.gate.Generate(ctx, &GenerateRequest{Prompt: prompt})
	if err != nil {
		m.logger.Warn("Weekly synthesis generation failed", zap.Error(err))
		return fmt.Sprintf("Weekly synthesis for %s", currentISOWeek()), nil
	}

	synthesis, corrections := splitTaggedLine(raw, "CORRECTIONS:")
	if len(corrections) == 1 && strings.EqualFold(corrections[0], "NONE") {
		corrections = nil
	}
	return synthesis, corrections
}

// commitKnowledge extracts facts for confirmed topics and upserts them.
func (m *MemoryEngine) commitKnowledge(ctx context.Context, episodes []*entity.EpisodeSummary, confirmed map[string]int, aiName string) int {
	if len(confirmed) == 0 {
		return 0
	}

	name := aiName
	if name == "" {
		name = "AI"
	}

	// Only episodes that actually carry a confirmed topic
	var relevant []*entity.EpisodeSummary
	for _, ep := range episodes {
		for _, t := range ep.Topics {
			if _, ok := confirmed[strings.ToLower(t)]; ok {
				relevant = append(relevant, ep)
				break
			}
		}
	}
	if len(relevant) == 0 {
		return 0
	}
	if len(relevant) > 10 {
		relevant = relevant[:10]
	}

	var episodeText strings.Builder
	for _, ep := range relevant {
		fmt.Fprintf(&episodeText, "[%s] %s\n\n", ep.CreatedAt.Format("2006-01-02 15:04"), ep.Summary)
	}

	type topicCount struct {
		topic string
		count int
	}
	ranked := make([]topicCount, 0, len(confirmed))
	for t, c := range confirmed {
		ranked = append(ranked, topicCount{t, c})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })
	var confList []string
	for _, tc := range firstN(ranked, 15) {
		confList = append(confList, fmt.Sprintf("%s (%dx)", tc.topic, tc.count))
	}

	prompt := fmt.Sprintf(`You are %s. Extract specific, factual knowledge from these episode summaries for long-term memory storage.

EPISODES:
%s
CONFIRMED TOPICS (seen multiple times this week): %s

Extract 4-10 specific facts worth storing permanently. Focus on confirmed topics.

Each fact must be:
- Specific and named (not vague)
- At least 5 words as a topic
- Genuinely useful for future conversations

Format each as a JSON object on its own line:
{"topic": "specific topic name", "content": "the actual fact to remember", "confidence": 0.8}

Only output JSON lines. No other text.`,
		name, truncate(episodeText.String(), 5000), strings.Join(confList, ", "))

	raw, err := m.gate.Generate(ctx, &GenerateRequest{Prompt: prompt})
	if err != nil {
		m.logger.Warn("Fact extraction failed", zap.Error(err))
		return 0
	}

	_, weekNum := time.Now().ISOWeek()
	added := 0
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var item struct {
			Topic      string  `json:"topic"`
			Content    string  `json:"content"`
			Confidence float64 `json:"confidence"`
		}
		if err := DecodeLenientJSON(line, &item); err != nil {
			continue
		}
		topic := strings.TrimSpace(item.Topic)
		content := strings.TrimSpace(item.Content)

		// Quality filter: vague or stub facts are dropped outright
		if len(strings.Fields(topic)) < 3 || len(topic) < 12 || len(content) < 25 {
			continue
		}

		confidence := item.Confidence
		if confidence == 0 {
			confidence = 0.6
		}
		topicLower := strings.ToLower(topic)
		for ct, count := range confirmed {
			if strings.Contains(topicLower, ct) {
				if count >= 3 && confidence < 0.85 {
					confidence = 0.85
				} else if count == 2 && confidence < 0.65 {
					confidence = 0.65
				}
				break
			}
		}

		_, err := m.knowledge.Upsert(ctx, &entity.KnowledgeFact{
			Topic:       topic,
			Content:     content,
			Source:      "weekly_consolidation",
			Confidence:  confidence,
			LearnedAt:   time.Now(),
			SourceWeeks: []int{weekNum},
		})
		if err != nil {
			m.logger.Warn("Fact upsert failed", zap.String("topic", topic), zap.Error(err))
			continue
		}
		added++
	}
	return added
}

// --- helpers shared by the memory pipeline ---

// splitTaggedLine separates the body from a trailing "TAG: a, b, c" line.
func splitTaggedLine(raw, tag string) (body string, items []string) {
	var bodyLines []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), tag) {
			_, rest, _ := strings.Cut(line, ":")
			for _, item := range strings.Split(rest, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			continue
		}
		if strings.TrimSpace(line) != "" {
			bodyLines = append(bodyLines, line)
		}
	}
	return strings.Join(bodyLines, "\n"), items
}

// searchKeywords picks up to max query words longer than three characters.
func searchKeywords(query string, max int) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > 3 {
			out = append(out, w)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

// relativeTime renders an age for the prompt: "just now", "5m ago", "3h ago", "2d ago".
func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// currentISOWeek formats the current ISO week as "2026-W35".
func currentISOWeek() string {
	year, week := time.Now().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// startOfDay returns local wall-clock midnight for t. Daily windows use
// the same calendar day as the run-date bookkeeping, not the UTC day.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

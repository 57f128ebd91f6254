package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

const (
	// Keyword overlap threshold to join an existing thread.
	minThreadSimilarity = 0.25
	// Threads idle longer than this never pick up new messages.
	maxThreadGap = 48 * time.Hour
	// Candidate threads considered per assignment.
	threadCandidates = 20
	// Keywords kept per thread after a merge.
	maxThreadKeywords = 30
)

var threadStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "with": true, "is": true, "it": true, "its": true,
	"this": true, "that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "we": true, "they": true, "what": true, "how": true, "why": true, "when": true,
	"where": true, "who": true, "do": true, "does": true, "did": true, "have": true, "has": true,
	"had": true, "be": true, "been": true, "am": true, "are": true, "was": true, "were": true,
	"will": true, "would": true, "could": true, "should": true, "may": true, "might": true,
	"can": true, "just": true, "also": true, "so": true, "if": true, "then": true, "there": true,
	"my": true, "your": true, "me": true, "him": true, "her": true, "us": true, "them": true,
	"not": true, "no": true, "yes": true, "ok": true, "okay": true,
}

var threadWordRe = regexp.MustCompile(`\b[a-z]{3,}\b`)

// ThreadingEngine groups messages into topic threads by keyword overlap
// and time proximity.
type ThreadingEngine struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewThreadingEngine(threads repository.ThreadRepository, messages repository.MessageRepository, logger *zap.Logger) *ThreadingEngine {
	return &ThreadingEngine{
		threads:  threads,
		messages: messages,
		logger:   logger.With(zap.String("engine", "threading")),
	}
}

func threadKeywords(text string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range threadWordRe.FindAllString(strings.ToLower(text), -1) {
		if !threadStopWords[w] {
			out[w] = true
		}
	}
	return out
}

func threadSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Assign attaches a message to the best matching recent thread, or
// starts a new one. Returns the thread ID.
func (t *ThreadingEngine) Assign(ctx context.Context, messageID int64, content string, timestamp time.Time) (int64, error) {
	keywords := threadKeywords(content)
	if len(keywords) == 0 {
		return t.create(ctx, keywords, timestamp, messageID)
	}

	all, err := t.threads.FindAll(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := timestamp.Add(-maxThreadGap)
	var bestThread *entity.Thread
	bestScore := minThreadSimilarity

	considered := 0
	for _, th := range all {
		if th.LastActivity.Before(cutoff) || considered >= threadCandidates {
			break // FindAll is ordered by last_activity desc
		}
		considered++

		existing := make(map[string]bool, len(th.Keywords))
		for _, w := range th.Keywords {
			existing[w] = true
		}
		if score := threadSimilarity(keywords, existing); score > bestScore {
			bestScore = score
			bestThread = th
		}
	}

	if bestThread == nil {
		return t.create(ctx, keywords, timestamp, messageID)
	}
	return bestThread.ID, t.update(ctx, bestThread, keywords, timestamp, messageID)
}

func (t *ThreadingEngine) create(ctx context.Context, keywords map[string]bool, timestamp time.Time, messageID int64) (int64, error) {
	thread := &entity.Thread{
		Name:         nameThread(keywords, timestamp),
		Keywords:     keywordList(keywords, maxThreadKeywords),
		MessageCount: 1,
		StartedAt:    timestamp,
		LastActivity: timestamp,
	}
	if err := t.threads.Save(ctx, thread); err != nil {
		return 0, err
	}
	return thread.ID, t.threads.AddMessage(ctx, thread.ID, messageID)
}

func (t *ThreadingEngine) update(ctx context.Context, thread *entity.Thread, keywords map[string]bool, timestamp time.Time, messageID int64) error {
	merged := make(map[string]bool, len(thread.Keywords)+len(keywords))
	for _, w := range thread.Keywords {
		merged[w] = true
	}
	for w := range keywords {
		merged[w] = true
	}

	thread.Keywords = keywordList(merged, maxThreadKeywords)
	thread.MessageCount++
	thread.LastActivity = timestamp

	if err := t.threads.Save(ctx, thread); err != nil {
		return err
	}
	return t.threads.AddMessage(ctx, thread.ID, messageID)
}

// nameThread builds a readable name from the three longest keywords.
func nameThread(keywords map[string]bool, timestamp time.Time) string {
	list := keywordList(keywords, len(keywords))
	sort.Slice(list, func(i, j int) bool {
		if len(list[i]) != len(list[j]) {
			return len(list[i]) > len(list[j])
		}
		return list[i] < list[j]
	})
	if len(list) == 0 {
		return fmt.Sprintf("Thread %s", timestamp.Format("Jan 02 15:04"))
	}
	if len(list) > 3 {
		list = list[:3]
	}
	for i, w := range list {
		list[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(list, " · ")
}

func keywordList(set map[string]bool, limit int) []string {
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Threads lists threads, most recently active first.
func (t *ThreadingEngine) Threads(ctx context.Context, limit int) ([]*entity.Thread, error) {
	all, err := t.threads.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ThreadMessages returns the messages belonging to one thread in order.
func (t *ThreadingEngine) ThreadMessages(ctx context.Context, threadID int64) ([]*entity.Message, error) {
	ids, err := t.threads.FindMessageIDs(ctx, threadID)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := t.messages.FindByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Rebuild re-threads every user message from scratch.
func (t *ThreadingEngine) Rebuild(ctx context.Context) error {
	if err := t.threads.DeleteAll(ctx); err != nil {
		return err
	}

	all, err := t.messages.FindAll(ctx)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range all {
		if !m.IsFromUser() {
			continue
		}
		if _, err := t.Assign(ctx, m.ID, m.Content, m.Timestamp); err != nil {
			t.logger.Warn("Failed to re-thread message", zap.Int64("message_id", m.ID), zap.Error(err))
			continue
		}
		count++
	}
	t.logger.Info("Thread rebuild complete", zap.Int("messages", count))
	return nil
}

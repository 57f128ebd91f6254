package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	pkgerrors "github.com/nexira/nexira/pkg/errors"
)

// Shared in-memory fakes for engine tests.

// fakeGate returns scripted responses in order, then repeats the last one.
type fakeGate struct {
	responses []string
	err       error
	prompts   []string
	calls     int
}

func (g *fakeGate) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", nil
	}
	i := g.calls - 1
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

func (g *fakeGate) Unload(ctx context.Context) error { return nil }
func (g *fakeGate) Warm(ctx context.Context) error   { return nil }

type memState struct {
	kv map[string]string
}

func newMemState() *memState { return &memState{kv: make(map[string]string)} }

func (s *memState) Get(ctx context.Context, key string) (string, error) {
	return s.kv[key], nil
}

func (s *memState) Set(ctx context.Context, key, value string) error {
	s.kv[key] = value
	return nil
}

type memMessages struct {
	items []*entity.Message
}

func (m *memMessages) Save(ctx context.Context, msg *entity.Message) error {
	msg.ID = int64(len(m.items) + 1)
	m.items = append(m.items, msg)
	return nil
}

func (m *memMessages) FindByID(ctx context.Context, id int64) (*entity.Message, error) {
	for _, msg := range m.items {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("message not found")
}

func (m *memMessages) FindRecent(ctx context.Context, limit int) ([]*entity.Message, error) {
	start := 0
	if len(m.items) > limit {
		start = len(m.items) - limit
	}
	return m.items[start:], nil
}

func (m *memMessages) FindRange(ctx context.Context, startID, endID int64) ([]*entity.Message, error) {
	var out []*entity.Message
	for _, msg := range m.items {
		if msg.ID >= startID && msg.ID <= endID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMessages) FindSince(ctx context.Context, since time.Time) ([]*entity.Message, error) {
	var out []*entity.Message
	for _, msg := range m.items {
		if msg.Timestamp.After(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMessages) FindPage(ctx context.Context, limit, offset int) ([]*entity.Message, int64, error) {
	if offset >= len(m.items) {
		return nil, int64(len(m.items)), nil
	}
	end := offset + limit
	if end > len(m.items) {
		end = len(m.items)
	}
	return m.items[offset:end], int64(len(m.items)), nil
}

func (m *memMessages) FindAll(ctx context.Context) ([]*entity.Message, error) {
	return m.items, nil
}

func (m *memMessages) MaxID(ctx context.Context) (int64, error) {
	return int64(len(m.items)), nil
}

func (m *memMessages) Count(ctx context.Context) (int64, error) {
	return int64(len(m.items)), nil
}

func (m *memMessages) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	for _, msg := range m.items {
		if msg.Timestamp.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memMessages) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	for _, msg := range m.items {
		if msg.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memMessages) SetFeedback(ctx context.Context, id int64, feedback string) error {
	for _, msg := range m.items {
		if msg.ID == id {
			msg.UserFeedback = feedback
			return nil
		}
	}
	return pkgerrors.NewNotFoundError("message not found")
}

type memActivity struct {
	events []*entity.ActivityEvent
}

func (a *memActivity) Log(ctx context.Context, event *entity.ActivityEvent) error {
	event.ID = int64(len(a.events) + 1)
	a.events = append(a.events, event)
	return nil
}

func (a *memActivity) FindRecent(ctx context.Context, limit int) ([]*entity.ActivityEvent, error) {
	out := make([]*entity.ActivityEvent, 0, limit)
	for i := len(a.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.events[i])
	}
	return out, nil
}

func (a *memActivity) FindRecentByType(ctx context.Context, eventType string, limit int) ([]*entity.ActivityEvent, error) {
	out := make([]*entity.ActivityEvent, 0, limit)
	for i := len(a.events) - 1; i >= 0 && len(out) < limit; i-- {
		if a.events[i].Type == eventType {
			out = append(out, a.events[i])
		}
	}
	return out, nil
}

func (a *memActivity) LastOfType(ctx context.Context, eventType string) (*entity.ActivityEvent, error) {
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].Type == eventType {
			return a.events[i], nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("no activity of type " + eventType)
}

type memErrors struct {
	entries []*entity.ErrorEntry
}

func (e *memErrors) Log(ctx context.Context, entry *entity.ErrorEntry) error {
	entry.ID = int64(len(e.entries) + 1)
	e.entries = append(e.entries, entry)
	return nil
}

func (e *memErrors) FindRecent(ctx context.Context, limit int) ([]*entity.ErrorEntry, error) {
	out := make([]*entity.ErrorEntry, 0, limit)
	for i := len(e.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.entries[i])
	}
	return out, nil
}

func (e *memErrors) Resolve(ctx context.Context, id int64) error {
	for _, entry := range e.entries {
		if entry.ID == id {
			entry.Resolved = true
			return nil
		}
	}
	return pkgerrors.NewNotFoundError("error entry not found")
}

type memKnowledge struct {
	facts []*entity.KnowledgeFact
}

func (k *memKnowledge) Upsert(ctx context.Context, fact *entity.KnowledgeFact) (*entity.KnowledgeFact, error) {
	for _, f := range k.facts {
		if strings.EqualFold(f.Topic, fact.Topic) {
			if fact.Confidence > f.Confidence {
				f.Confidence = fact.Confidence
			}
			f.Content = fact.Content
			f.ConfirmationCount++
			f.SourceWeeks = append(f.SourceWeeks, fact.SourceWeeks...)
			return f, nil
		}
	}
	fact.ID = int64(len(k.facts) + 1)
	if fact.ConfirmationCount == 0 {
		fact.ConfirmationCount = 1
	}
	k.facts = append(k.facts, fact)
	return fact, nil
}

func (k *memKnowledge) FindByTopic(ctx context.Context, topic string) (*entity.KnowledgeFact, error) {
	for _, f := range k.facts {
		if strings.EqualFold(f.Topic, topic) {
			return f, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("fact not found")
}

func (k *memKnowledge) Search(ctx context.Context, query string, limit int) ([]*entity.KnowledgeFact, error) {
	q := strings.ToLower(query)
	var out []*entity.KnowledgeFact
	for _, f := range k.facts {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(f.Topic), q) || strings.Contains(strings.ToLower(f.Content), q) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (k *memKnowledge) FindRecent(ctx context.Context, limit int) ([]*entity.KnowledgeFact, error) {
	out := make([]*entity.KnowledgeFact, 0, limit)
	for i := len(k.facts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, k.facts[i])
	}
	return out, nil
}

func (k *memKnowledge) AllTopics(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(k.facts))
	for _, f := range k.facts {
		out = append(out, strings.ToLower(f.Topic))
	}
	return out, nil
}

func (k *memKnowledge) Count(ctx context.Context) (int64, error) {
	return int64(len(k.facts)), nil
}

// memEpisodes is mutex-guarded: the episode summarizer writes from a
// background goroutine while tests poll.
type memEpisodes struct {
	mu    sync.Mutex
	items []*entity.EpisodeSummary
}

func (e *memEpisodes) Save(ctx context.Context, episode *entity.EpisodeSummary) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if episode.ID == 0 {
		episode.ID = int64(len(e.items) + 1)
		e.items = append(e.items, episode)
	}
	return nil
}

func (e *memEpisodes) MaxRangeEnd(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var max int64
	for _, ep := range e.items {
		if ep.RangeEnd > max {
			max = ep.RangeEnd
		}
	}
	return max, nil
}

func (e *memEpisodes) FindRecent(ctx context.Context, limit int) ([]*entity.EpisodeSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*entity.EpisodeSummary, 0, limit)
	for i := len(e.items) - 1; i >= 0 && len(out) < limit; i-- {
		if !e.items[i].Archived {
			out = append(out, e.items[i])
		}
	}
	return out, nil
}

func (e *memEpisodes) FindUncommittedSince(ctx context.Context, since time.Time) ([]*entity.EpisodeSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*entity.EpisodeSummary
	for _, ep := range e.items {
		if !ep.Committed && !ep.Archived && ep.CreatedAt.After(since) {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (e *memEpisodes) Search(ctx context.Context, keyword string, limit int) ([]*entity.EpisodeSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kw := strings.ToLower(keyword)
	var out []*entity.EpisodeSummary
	for _, ep := range e.items {
		if len(out) >= limit {
			break
		}
		if ep.Archived && strings.Contains(strings.ToLower(ep.Summary), kw) {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (e *memEpisodes) MarkCommitted(ctx context.Context, ids []int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ep := range e.items {
		for _, id := range ids {
			if ep.ID == id {
				ep.Committed = true
				ep.Archived = true
			}
		}
	}
	return nil
}

func (e *memEpisodes) Count(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int64(len(e.items)), nil
}

type memWeekly struct {
	items []*entity.WeeklySynthesis
}

func (w *memWeekly) Save(ctx context.Context, synthesis *entity.WeeklySynthesis) error {
	synthesis.ID = int64(len(w.items) + 1)
	w.items = append(w.items, synthesis)
	return nil
}

func (w *memWeekly) FindByWeek(ctx context.Context, isoWeek string) (*entity.WeeklySynthesis, error) {
	for _, s := range w.items {
		if s.ISOWeek == isoWeek {
			return s, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("no synthesis for " + isoWeek)
}

func (w *memWeekly) FindRecent(ctx context.Context, limit int) ([]*entity.WeeklySynthesis, error) {
	out := make([]*entity.WeeklySynthesis, 0, limit)
	for i := len(w.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, w.items[i])
	}
	return out, nil
}

type memCuriosityQueue struct {
	items []*entity.CuriosityItem
}

func (q *memCuriosityQueue) Save(ctx context.Context, item *entity.CuriosityItem) error {
	if item.ID == 0 {
		item.ID = int64(len(q.items) + 1)
		q.items = append(q.items, item)
	}
	return nil
}

func (q *memCuriosityQueue) PendingExists(ctx context.Context, topicLower string) (bool, error) {
	for _, it := range q.items {
		if it.Status == entity.CuriosityPending && strings.ToLower(it.Topic) == topicLower {
			return true, nil
		}
	}
	return false, nil
}

func (q *memCuriosityQueue) FindPending(ctx context.Context, limit int) ([]*entity.CuriosityItem, error) {
	var out []*entity.CuriosityItem
	for _, it := range q.items {
		if len(out) >= limit {
			break
		}
		if it.Status == entity.CuriosityPending {
			out = append(out, it)
		}
	}
	return out, nil
}

func (q *memCuriosityQueue) FindRecent(ctx context.Context, limit int) ([]*entity.CuriosityItem, error) {
	out := make([]*entity.CuriosityItem, 0, limit)
	for i := len(q.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, q.items[i])
	}
	return out, nil
}

func (q *memCuriosityQueue) CountPending(ctx context.Context) (int64, error) {
	var n int64
	for _, it := range q.items {
		if it.Status == entity.CuriosityPending {
			n++
		}
	}
	return n, nil
}

func (q *memCuriosityQueue) CountCompleted(ctx context.Context) (int64, error) {
	var n int64
	for _, it := range q.items {
		if it.Status == entity.CuriosityCompleted {
			n++
		}
	}
	return n, nil
}

type memPersonality struct {
	traits      map[string]*entity.PersonalityTrait
	changes     []*entity.PersonalityChange
	snapshots   []*entity.PersonalitySnapshot
	resetCalled bool
}

func newMemPersonality() *memPersonality {
	return &memPersonality{traits: make(map[string]*entity.PersonalityTrait)}
}

func (p *memPersonality) FindTraits(ctx context.Context) ([]*entity.PersonalityTrait, error) {
	out := make([]*entity.PersonalityTrait, 0, len(p.traits))
	for _, t := range p.traits {
		out = append(out, t)
	}
	return out, nil
}

func (p *memPersonality) SaveTrait(ctx context.Context, trait *entity.PersonalityTrait) error {
	p.traits[trait.Name] = trait
	return nil
}

func (p *memPersonality) CountTraits(ctx context.Context) (int64, error) {
	return int64(len(p.traits)), nil
}

func (p *memPersonality) ResetTraits(ctx context.Context, value float64) error {
	p.resetCalled = true
	for _, t := range p.traits {
		t.Value = value
	}
	return nil
}

func (p *memPersonality) LogChange(ctx context.Context, change *entity.PersonalityChange) error {
	change.ID = int64(len(p.changes) + 1)
	p.changes = append(p.changes, change)
	return nil
}

func (p *memPersonality) FindChanges(ctx context.Context, limit int) ([]*entity.PersonalityChange, error) {
	out := make([]*entity.PersonalityChange, 0, limit)
	for i := len(p.changes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, p.changes[i])
	}
	return out, nil
}

func (p *memPersonality) CountChanges(ctx context.Context) (int64, error) {
	return int64(len(p.changes)), nil
}

func (p *memPersonality) SaveSnapshot(ctx context.Context, snapshot *entity.PersonalitySnapshot) error {
	snapshot.ID = int64(len(p.snapshots) + 1)
	p.snapshots = append(p.snapshots, snapshot)
	return nil
}

func (p *memPersonality) FindSnapshots(ctx context.Context, limit int) ([]*entity.PersonalitySnapshot, error) {
	out := make([]*entity.PersonalitySnapshot, 0, limit)
	for i := len(p.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, p.snapshots[i])
	}
	return out, nil
}

type memCreative struct {
	works []*entity.CreativeWork
}

func (c *memCreative) Save(ctx context.Context, work *entity.CreativeWork) error {
	if work.ID == 0 {
		work.ID = int64(len(c.works) + 1)
		c.works = append(c.works, work)
	}
	return nil
}

func (c *memCreative) FindByID(ctx context.Context, id int64) (*entity.CreativeWork, error) {
	for _, w := range c.works {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("work not found")
}

func (c *memCreative) FindRecent(ctx context.Context, limit int) ([]*entity.CreativeWork, error) {
	out := make([]*entity.CreativeWork, 0, limit)
	for i := len(c.works) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.works[i])
	}
	return out, nil
}

func (c *memCreative) Count(ctx context.Context) (int64, error) {
	return int64(len(c.works)), nil
}

type memThreads struct {
	threads  []*entity.Thread
	messages map[int64][]int64
}

func newMemThreads() *memThreads {
	return &memThreads{messages: make(map[int64][]int64)}
}

func (t *memThreads) Save(ctx context.Context, thread *entity.Thread) error {
	if thread.ID == 0 {
		thread.ID = int64(len(t.threads) + 1)
		t.threads = append(t.threads, thread)
	}
	return nil
}

// FindAll returns threads ordered by last activity, newest first.
func (t *memThreads) FindAll(ctx context.Context) ([]*entity.Thread, error) {
	out := make([]*entity.Thread, len(t.threads))
	copy(out, t.threads)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastActivity.After(out[i].LastActivity) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (t *memThreads) FindByID(ctx context.Context, id int64) (*entity.Thread, error) {
	for _, th := range t.threads {
		if th.ID == id {
			return th, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("thread not found")
}

func (t *memThreads) AddMessage(ctx context.Context, threadID, messageID int64) error {
	t.messages[threadID] = append(t.messages[threadID], messageID)
	return nil
}

func (t *memThreads) FindMessageIDs(ctx context.Context, threadID int64) ([]int64, error) {
	return t.messages[threadID], nil
}

func (t *memThreads) DeleteAll(ctx context.Context) error {
	t.threads = nil
	t.messages = make(map[int64][]int64)
	return nil
}

type memGoals struct {
	items []*entity.Goal
}

func (g *memGoals) Save(ctx context.Context, goal *entity.Goal) error {
	if goal.ID == 0 {
		goal.ID = int64(len(g.items) + 1)
		g.items = append(g.items, goal)
	}
	return nil
}

func (g *memGoals) FindActive(ctx context.Context) ([]*entity.Goal, error) {
	var out []*entity.Goal
	for _, goal := range g.items {
		if goal.Status == entity.GoalActive {
			out = append(out, goal)
		}
	}
	return out, nil
}

func (g *memGoals) FindActiveByType(ctx context.Context, goalType string) ([]*entity.Goal, error) {
	var out []*entity.Goal
	for _, goal := range g.items {
		if goal.Status == entity.GoalActive && goal.Type == goalType {
			out = append(out, goal)
		}
	}
	return out, nil
}

func (g *memGoals) FindAll(ctx context.Context, limit int) ([]*entity.Goal, error) {
	if len(g.items) > limit {
		return g.items[:limit], nil
	}
	return g.items, nil
}

func (g *memGoals) CountActive(ctx context.Context) (int64, error) {
	var n int64
	for _, goal := range g.items {
		if goal.Status == entity.GoalActive {
			n++
		}
	}
	return n, nil
}

func (g *memGoals) CountCompleted(ctx context.Context) (int64, error) {
	var n int64
	for _, goal := range g.items {
		if goal.Status == entity.GoalCompleted {
			n++
		}
	}
	return n, nil
}

type memSkills struct {
	items []*entity.Skill
}

func (s *memSkills) FindByDomain(ctx context.Context, domain string) (*entity.Skill, error) {
	for _, sk := range s.items {
		if sk.Domain == domain {
			return sk, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("skill not found")
}

func (s *memSkills) Save(ctx context.Context, skill *entity.Skill) error {
	if skill.ID == 0 {
		skill.ID = int64(len(s.items) + 1)
		s.items = append(s.items, skill)
	}
	return nil
}

func (s *memSkills) FindAll(ctx context.Context) ([]*entity.Skill, error) {
	return s.items, nil
}

type memSelfRepo struct {
	notes    map[string]string
	mistakes []*entity.Mistake
	attrs    map[string]*entity.UserModelAttr
}

func newMemSelfRepo() *memSelfRepo {
	return &memSelfRepo{
		notes: make(map[string]string),
		attrs: make(map[string]*entity.UserModelAttr),
	}
}

func (s *memSelfRepo) UpsertNote(ctx context.Context, key, value string) error {
	s.notes[key] = value
	return nil
}

func (s *memSelfRepo) FindNotes(ctx context.Context, limit int) ([]*entity.OperatingNote, error) {
	var out []*entity.OperatingNote
	for k, v := range s.notes {
		if len(out) >= limit {
			break
		}
		out = append(out, &entity.OperatingNote{Key: k, Value: v})
	}
	return out, nil
}

func (s *memSelfRepo) SaveMistake(ctx context.Context, mistake *entity.Mistake) error {
	mistake.ID = int64(len(s.mistakes) + 1)
	s.mistakes = append(s.mistakes, mistake)
	return nil
}

func (s *memSelfRepo) FindMistakes(ctx context.Context, limit int) ([]*entity.Mistake, error) {
	out := make([]*entity.Mistake, 0, limit)
	for i := len(s.mistakes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.mistakes[i])
	}
	return out, nil
}

func (s *memSelfRepo) MistakeTopicMatch(ctx context.Context, keyword string) (bool, error) {
	for _, m := range s.mistakes {
		if strings.Contains(m.Topic, keyword) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memSelfRepo) UpsertUserAttr(ctx context.Context, attribute, value string, confidence float64) error {
	if a, ok := s.attrs[attribute]; ok {
		a.Value = value
		a.EvidenceCount++
		return nil
	}
	s.attrs[attribute] = &entity.UserModelAttr{
		Attribute:     attribute,
		Value:         value,
		Confidence:    confidence,
		EvidenceCount: 1,
	}
	return nil
}

func (s *memSelfRepo) FindUserAttrs(ctx context.Context) ([]*entity.UserModelAttr, error) {
	out := make([]*entity.UserModelAttr, 0, len(s.attrs))
	for _, a := range s.attrs {
		out = append(out, a)
	}
	return out, nil
}

type memJournal struct {
	entries []*entity.JournalEntry
}

func (j *memJournal) Save(ctx context.Context, entry *entity.JournalEntry) error {
	entry.ID = int64(len(j.entries) + 1)
	j.entries = append(j.entries, entry)
	return nil
}

func (j *memJournal) FindRecent(ctx context.Context, limit int) ([]*entity.JournalEntry, error) {
	out := make([]*entity.JournalEntry, 0, limit)
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

func (j *memJournal) FindByType(ctx context.Context, entryType string, limit int) ([]*entity.JournalEntry, error) {
	out := make([]*entity.JournalEntry, 0, limit)
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if j.entries[i].Type == entryType {
			out = append(out, j.entries[i])
		}
	}
	return out, nil
}

func (j *memJournal) CountByType(ctx context.Context, entryType string) (int64, error) {
	var n int64
	for _, e := range j.entries {
		if e.Type == entryType {
			n++
		}
	}
	return n, nil
}

func (j *memJournal) Count(ctx context.Context) (int64, error) {
	return int64(len(j.entries)), nil
}

type memConsolidation struct {
	runs []*entity.ConsolidationRun
}

func (c *memConsolidation) FindByDate(ctx context.Context, runDate string) (*entity.ConsolidationRun, error) {
	for _, r := range c.runs {
		if r.RunDate == runDate {
			return r, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("no run for " + runDate)
}

func (c *memConsolidation) Save(ctx context.Context, run *entity.ConsolidationRun) error {
	run.ID = int64(len(c.runs) + 1)
	c.runs = append(c.runs, run)
	return nil
}

func (c *memConsolidation) Count(ctx context.Context) (int64, error) {
	return int64(len(c.runs)), nil
}

func (c *memConsolidation) FindRecent(ctx context.Context, limit int) ([]*entity.ConsolidationRun, error) {
	out := make([]*entity.ConsolidationRun, 0, limit)
	for i := len(c.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.runs[i])
	}
	return out, nil
}

type memAwareness struct {
	samples []*entity.SelfAwarenessSample
}

func (a *memAwareness) Save(ctx context.Context, sample *entity.SelfAwarenessSample) error {
	sample.ID = int64(len(a.samples) + 1)
	a.samples = append(a.samples, sample)
	return nil
}

func (a *memAwareness) FindSince(ctx context.Context, since time.Time) ([]*entity.SelfAwarenessSample, error) {
	var out []*entity.SelfAwarenessSample
	for _, s := range a.samples {
		if s.Timestamp.After(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *memAwareness) Latest(ctx context.Context) (*entity.SelfAwarenessSample, error) {
	if len(a.samples) == 0 {
		return nil, pkgerrors.NewNotFoundError("no awareness samples")
	}
	return a.samples[len(a.samples)-1], nil
}

// ─── Collaborator stubs ───

type stubRunner struct {
	output string
	err    error
	ran    []string
}

func (r *stubRunner) Run(ctx context.Context, language, code string) (string, error) {
	r.ran = append(r.ran, language)
	return r.output, r.err
}

func (r *stubRunner) Supports(language string) bool {
	return language == "python" || language == "go"
}

type stubImages struct {
	enabled bool
	path    string
	err     error
	prompts []string
}

func (i *stubImages) Generate(ctx context.Context, prompt string) (string, error) {
	i.prompts = append(i.prompts, prompt)
	return i.path, i.err
}

func (i *stubImages) Enabled() bool { return i.enabled }

type stubSocial struct {
	enabled bool
	postID  string
	err     error
	titles  []string
	bodies  []string
}

func (s *stubSocial) CreatePost(ctx context.Context, title, content string) (string, error) {
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, content)
	return s.postID, s.err
}

func (s *stubSocial) Enabled() bool { return s.enabled }

type stubEmail struct {
	enabled  bool
	err      error
	subjects []string
}

func (e *stubEmail) Send(ctx context.Context, subject, markdownBody string) error {
	e.subjects = append(e.subjects, subject)
	return e.err
}

func (e *stubEmail) Enabled() bool { return e.enabled }

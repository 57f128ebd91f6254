package entity

import "time"

// 活动事件类型
const (
	ActivityChat          = "chat"
	ActivityConsolidation = "consolidation"
	ActivityResearch      = "research"
	ActivityJournal       = "journal"
	ActivityMoltbook      = "moltbook"
	ActivityImage         = "image"
	ActivityEmail         = "email"
	ActivityBackup        = "backup"
	ActivityCodeRun       = "code_run"
	ActivityGoal          = "goal"
	ActivitySearch        = "search"
	ActivitySystem        = "system"
)

// ActivityEvent 自主行为的可见审计记录
type ActivityEvent struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Label     string         `json:"label"`
	Detail    string         `json:"detail,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// ConsolidationRun 一次夜间整理的执行记录, 每个日历日最多一行
type ConsolidationRun struct {
	ID                 int64     `json:"id"`
	RunDate            string    `json:"run_date"` // "2026-02-14"
	FactsExtracted     int       `json:"facts_extracted"`
	CuriosityProcessed int       `json:"curiosity_processed"`
	JournalsWritten    int       `json:"journals_written"`
	SnapshotWritten    bool      `json:"snapshot_written"`
	DurationSeconds    float64   `json:"duration_seconds"`
	Summary            string    `json:"summary,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

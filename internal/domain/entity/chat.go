package entity

import "time"

// Identity naming states. The runtime starts Unnamed and moves to Named
// exactly once, through the name-selection flow.
const (
	IdentityUnnamed = "unnamed"
	IdentityNamed   = "named"
)

// ActionCardType classifies an autonomous side-effect surfaced to the UI.
type ActionCardType string

const (
	ActionCodeRun   ActionCardType = "code_execution"
	ActionImageGen  ActionCardType = "image_generation"
	ActionMoltbook  ActionCardType = "moltbook_post"
	ActionEmailSend ActionCardType = "email_send"
	ActionCreative  ActionCardType = "creative_saved"
)

// ActionCard describes one autonomous action executed while answering,
// returned alongside the chat response.
type ActionCard struct {
	Type      ActionCardType `json:"type"`
	Label     string         `json:"label"`
	Detail    string         `json:"detail,omitempty"`
	Success   bool           `json:"success"`
	Output    string         `json:"output,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ChatResult is the outcome of one chat exchange.
type ChatResult struct {
	Response   string       `json:"response"`
	Confidence float64      `json:"confidence"`
	AIName     string       `json:"ai_name,omitempty"`
	MessageID  int64        `json:"message_id"`
	Actions    []ActionCard `json:"actions,omitempty"`
}

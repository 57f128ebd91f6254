package entity

import "time"

// 创作产物类型
const (
	CreativeCode   = "code"
	CreativeStory  = "story"
	CreativePoem   = "poem"
	CreativeEssay  = "essay"
	CreativeLetter = "letter"
)

// CreativeWork 保存下来的创作产物
// 代码类产物执行后把输出写回 Output
type CreativeWork struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	Language  string    `json:"language,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Content   string    `json:"content"`
	Executed  bool      `json:"executed"`
	Output    string    `json:"output,omitempty"`
}

package entity

import "time"

// CoreTraits 固定的十个核心人格维度, 首次启动以 0.5 播种
var CoreTraits = []string{
	"formality",
	"verbosity",
	"enthusiasm",
	"humor",
	"empathy",
	"technical_depth",
	"creativity",
	"assertiveness",
	"patience",
	"curiosity",
}

// TraitBaseline 人格基线, 被动衰减不会跌破
const TraitBaseline = 0.5

// 人格变更原因
const (
	ChangeReasonExplicit = "explicit"
	ChangeReasonTrigger  = "trigger"
	ChangeReasonDecay    = "decay"
	ChangeReasonReset    = "reset"
)

// PersonalityTrait 单个人格维度
type PersonalityTrait struct {
	Name        string    `json:"name"`
	Value       float64   `json:"value"`
	Type        string    `json:"type"`
	OriginStory string    `json:"origin_story,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	Active      bool      `json:"active"`
}

// NewCoreTrait 以基线值创建核心维度
func NewCoreTrait(name string) *PersonalityTrait {
	return &PersonalityTrait{
		Name:        name,
		Value:       TraitBaseline,
		Type:        "core",
		OriginStory: "seeded at first launch",
		LastUpdated: time.Now(),
		Active:      true,
	}
}

// IsCoreTrait 判断名称是否属于核心维度
func IsCoreTrait(name string) bool {
	for _, t := range CoreTraits {
		if t == name {
			return true
		}
	}
	return false
}

// ClampTraitValue 把维度值收紧到 [0, 1]
func ClampTraitValue(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PersonalityChange 一次维度变更的历史记录, 只追加
type PersonalityChange struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Trait     string    `json:"trait"`
	OldValue  float64   `json:"old_value"`
	NewValue  float64   `json:"new_value"`
	Reason    string    `json:"reason"`
}

// PersonalitySnapshot 整套维度值的快照, 夜间整理时写入
type PersonalitySnapshot struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Data        map[string]float64 `json:"data"`
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
}

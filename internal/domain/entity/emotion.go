package entity

// EmotionalState 当下情绪向量, 值域 [0, 1]
// 进程内维护, 以 JSON 形式持久化到运行状态表
type EmotionalState map[string]float64

// NewEmotionalState 返回初始情绪基线
func NewEmotionalState() EmotionalState {
	return EmotionalState{
		"curiosity":     0.5,
		"satisfaction":  0.5,
		"frustration":   0.0,
		"excitement":    0.5,
		"concern":       0.0,
		"pride":         0.3,
		"embarrassment": 0.0,
	}
}

// Raise 抬升一种情绪, 封顶 1.0
func (e EmotionalState) Raise(emotion string, delta float64) {
	v := e[emotion] + delta
	if v > 1 {
		v = 1
	}
	e[emotion] = v
}

// Decay 衰减一种情绪, 下探到 0 为止
func (e EmotionalState) Decay(emotion string, rate float64) {
	v := e[emotion] - rate
	if v < 0 {
		v = 0
	}
	e[emotion] = v
}

// Average 情绪均值, 作为消息的情绪权重
func (e EmotionalState) Average() float64 {
	if len(e) == 0 {
		return 0
	}
	var sum float64
	for _, v := range e {
		sum += v
	}
	return sum / float64(len(e))
}

// Clone 返回副本, 供并发读取
func (e EmotionalState) Clone() EmotionalState {
	out := make(EmotionalState, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

package service

import "context"

// GenerateRequest is a single prompt for the local model.
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int // num_predict, 0 = model default
}

// Gate is the single choke point to the local LLM backend.
//
// Every engine talks to the model through this interface so tests can
// inject scripted responses. Implementations strip reasoning tags from
// the model output before returning it.
type Gate interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)

	// Unload evicts the model from VRAM (keep_alive: 0).
	// Used by the image generator before it takes the GPU.
	Unload(ctx context.Context) error

	// Warm reloads the model by generating a single token.
	Warm(ctx context.Context) error
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/internal/infrastructure/config"
	"go.uber.org/zap"
)

// OllamaGate is a Go-native HTTP client for an Ollama-compatible backend.
// It is the only component allowed to talk to the model server.
type OllamaGate struct {
	baseURL   string
	model     string
	numCtx    int
	numThread int
	numGPU    int
	keepAlive string
	client    *http.Client
	breaker   *CircuitBreaker
	logger    *zap.Logger
}

// NewOllamaGate creates the gate from the AI and hardware config sections.
func NewOllamaGate(ai *config.AIConfig, hw *config.HardwareConfig, logger *zap.Logger) *OllamaGate {
	numGPU := hw.GPULayers
	if numGPU == -1 {
		numGPU = 999
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 2,
	}

	return &OllamaGate{
		baseURL:   strings.TrimRight(ai.OllamaURL, "/"),
		model:     ai.Model,
		numCtx:    ai.ContextWindow,
		numThread: hw.NumThreads,
		numGPU:    numGPU,
		keepAlive: hw.KeepAlive,
		client: &http.Client{
			Transport: transport,
		},
		breaker: NewCircuitBreaker(5, 30*time.Second),
		logger:  logger.With(zap.String("component", "ollama")),
	}
}

// Compile-time interface check
var _ service.Gate = (*OllamaGate)(nil)

type generateBody struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive any            `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate runs one non-streaming completion and strips reasoning tags
// from the result.
func (g *OllamaGate) Generate(ctx context.Context, req *service.GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	options := map[string]any{
		"num_ctx":    g.numCtx,
		"num_thread": g.numThread,
		"num_gpu":    g.numGPU,
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	body := &generateBody{
		Model:     model,
		Prompt:    req.Prompt,
		System:    req.System,
		Stream:    false,
		KeepAlive: g.keepAlive,
		Options:   options,
	}

	if !g.breaker.Allow() {
		return "", fmt.Errorf("model backend unavailable, circuit %s", g.breaker.State())
	}

	start := time.Now()
	raw, err := g.post(ctx, body)
	if err != nil {
		g.breaker.RecordFailure()
		return "", err
	}
	g.breaker.RecordSuccess()

	g.logger.Debug("Generation complete",
		zap.String("model", model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Int("response_len", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return service.StripReasoningTags(raw), nil
}

// Unload evicts the model from VRAM so another process can use the GPU.
func (g *OllamaGate) Unload(ctx context.Context) error {
	_, err := g.post(ctx, &generateBody{
		Model:     g.model,
		Prompt:    "",
		KeepAlive: 0,
	})
	if err != nil {
		return fmt.Errorf("unload model: %w", err)
	}
	g.logger.Info("Model unloaded from VRAM", zap.String("model", g.model))
	return nil
}

// Warm reloads the model after the GPU is handed back.
func (g *OllamaGate) Warm(ctx context.Context) error {
	_, err := g.post(ctx, &generateBody{
		Model:     g.model,
		Prompt:    "hi",
		KeepAlive: "10m",
		Options:   map[string]any{"num_predict": 1},
	})
	if err != nil {
		return fmt.Errorf("warm model: %w", err)
	}
	g.logger.Info("Model warmed", zap.String("model", g.model))
	return nil
}

func (g *OllamaGate) post(ctx context.Context, body *generateBody) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Response, nil
}

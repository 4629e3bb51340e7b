// Package providers adapts each of the four inference.Provider slots to a
// concrete backend SDK (spec.md §4.E).
package providers

import (
	"context"
	"os"
	"time"

	"github.com/aios/autonomy-core/internal/inference"
	"github.com/aios/autonomy-core/internal/llm"
	llmopenai "github.com/aios/autonomy-core/internal/llm/openai"
)

// Local wraps the teacher's OpenAI-compatible client pointed at the
// sub-process LLM runtime. It is always available — no credential gating,
// matching the original source's treatment of its local model.
type Local struct {
	client *llmopenai.Client
	model  string
}

// NewLocal builds a Local provider from LOCAL_LLM_BASE_URL/LOCAL_LLM_MODEL
// environment variables, defaulting to a loopback runtime on :8080.
func NewLocal() (*Local, error) {
	baseURL := getenvDefault("LOCAL_LLM_BASE_URL", "http://127.0.0.1:8080/v1")
	model := getenvDefault("LOCAL_LLM_MODEL", "local-model")

	cfg := &llmopenai.Config{
		APIKey:      "local", // the sub-process runtime does not check this
		BaseURL:     baseURL,
		Model:       model,
		MaxRetries:  1,
		HTTPTimeout: 120,
	}
	client, err := llmopenai.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Local{client: client, model: model}, nil
}

func (l *Local) Name() string { return inference.Local }

// Available is always true — the local runtime needs no credentials.
func (l *Local) Available() bool { return true }

func (l *Local) Infer(ctx context.Context, req inference.Request) (inference.Result, error) {
	messages := []llm.Message{}
	if req.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Prompt})

	start := time.Now()
	msg, err := l.client.CallLLM(ctx, messages)
	if err != nil {
		return inference.Result{}, err
	}

	return inference.Result{
		Text:       msg.Content,
		TokensUsed: estimateTokens(req.Prompt, req.SystemPrompt, msg.Content),
		LatencyMS:  time.Since(start).Milliseconds(),
		ModelUsed:  l.model,
	}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// estimateTokens is a rough fallback when a provider's SDK doesn't surface
// usage accounting directly; ~4 characters per token.
func estimateTokens(parts ...string) int {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	return total / 4
}

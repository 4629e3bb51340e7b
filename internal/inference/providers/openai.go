package providers

import (
	"context"
	"os"
	"time"

	openailib "github.com/sashabaranov/go-openai"

	"github.com/aios/autonomy-core/internal/inference"
)

// OpenAI is the remote-b provider slot — the teacher's own LLM dependency,
// used directly here (rather than through the OpenAI-compatible wrapper
// used for Local) since this slot always talks to the real OpenAI API.
type OpenAI struct {
	client *openailib.Client
	model  string
}

// NewOpenAI builds an OpenAI provider from OPENAI_API_KEY/OPENAI_MODEL.
// Mirrors NewAnthropic: construction never fails on a missing key, it just
// reports Available()==false.
func NewOpenAI() *OpenAI {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := getenvDefault("OPENAI_MODEL", "gpt-4o-mini")

	if apiKey == "" {
		return &OpenAI{model: model}
	}
	return &OpenAI{client: openailib.NewClient(apiKey), model: model}
}

func (o *OpenAI) Name() string { return inference.RemoteB }

func (o *OpenAI) Available() bool { return o.client != nil }

func (o *OpenAI) Infer(ctx context.Context, req inference.Request) (inference.Result, error) {
	messages := []openailib.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openailib.ChatCompletionMessage{
			Role:    openailib.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openailib.ChatCompletionMessage{
		Role:    openailib.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	creq := openailib.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		creq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		creq.Temperature = float32(req.Temperature)
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return inference.Result{}, err
	}
	if len(resp.Choices) == 0 {
		return inference.Result{}, errNoChoices
	}

	return inference.Result{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
		LatencyMS:  time.Since(start).Milliseconds(),
		ModelUsed:  o.model,
	}, nil
}

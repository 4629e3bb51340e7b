package providers

import (
	"context"
	"os"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aios/autonomy-core/internal/inference"
)

// Anthropic is the remote-a provider slot, backed by Claude via the
// Messages API.
type Anthropic struct {
	client *sdk.Client
	model  string
}

// NewAnthropic builds an Anthropic provider from ANTHROPIC_API_KEY /
// ANTHROPIC_MODEL. Returns a provider that reports Available()==false when
// no API key is configured, rather than failing construction — the router
// treats unavailable providers as simply skippable.
func NewAnthropic() *Anthropic {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	model := getenvDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022")

	if apiKey == "" {
		return &Anthropic{model: model}
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Anthropic{client: &c, model: model}
}

func (a *Anthropic) Name() string { return inference.RemoteA }

func (a *Anthropic) Available() bool { return a.client != nil }

func (a *Anthropic) Infer(ctx context.Context, req inference.Request) (inference.Result, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		MaxTokens: maxTokens,
		Model:     sdk.Model(a.model),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	start := time.Now()
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return inference.Result{}, err
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return inference.Result{
		Text:       text,
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		LatencyMS:  time.Since(start).Milliseconds(),
		ModelUsed:  a.model,
	}, nil
}

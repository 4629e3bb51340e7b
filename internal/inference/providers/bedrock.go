package providers

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/aios/autonomy-core/internal/inference"
)

// converseClient is the subset of *bedrockruntime.Client the provider needs.
// Matching it with an interface lets tests substitute a fake runtime.
type converseClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Bedrock is the remote-c provider slot, backed by the AWS Bedrock Converse
// API.
type Bedrock struct {
	runtime converseClient
	model   string
}

// NewBedrock builds a Bedrock provider from the default AWS config chain
// (env vars, shared config, instance role) and BEDROCK_MODEL_ID. Like the
// other remote providers, construction never fails on missing credentials —
// it reports Available()==false instead, since the default config chain
// happily loads an empty/anonymous config.
func NewBedrock() *Bedrock {
	model := getenvDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0")

	if os.Getenv("AWS_REGION") == "" && os.Getenv("AWS_DEFAULT_REGION") == "" {
		return &Bedrock{model: model}
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return &Bedrock{model: model}
	}
	return &Bedrock{runtime: bedrockruntime.NewFromConfig(cfg), model: model}
}

func (b *Bedrock) Name() string { return inference.RemoteC }

func (b *Bedrock) Available() bool { return b.runtime != nil }

func (b *Bedrock) Infer(ctx context.Context, req inference.Request) (inference.Result, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.model),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
	}
	if req.SystemPrompt != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}

	var cfg brtypes.InferenceConfiguration
	hasCfg := false
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		cfg.MaxTokens = &maxTokens
		hasCfg = true
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
		hasCfg = true
	}
	if hasCfg {
		input.InferenceConfig = &cfg
	}

	start := time.Now()
	out, err := b.runtime.Converse(ctx, input)
	if err != nil {
		return inference.Result{}, err
	}

	var text string
	if msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
				text += textBlock.Value
			}
		}
	}

	tokens := 0
	if out.Usage != nil {
		tokens = int(aws.ToInt32(out.Usage.InputTokens) + aws.ToInt32(out.Usage.OutputTokens))
	}

	return inference.Result{
		Text:       text,
		TokensUsed: tokens,
		LatencyMS:  time.Since(start).Milliseconds(),
		ModelUsed:  b.model,
	}, nil
}

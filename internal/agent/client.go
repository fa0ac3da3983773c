package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// maxResponseTokens caps a single completion response.
const maxResponseTokens = 8192

// Client wraps the Anthropic SDK client with a default model.
// It backs both the worker agents and the coordinator's planner and
// synthesizer calls.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the default Claude model to use.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseAWSBedrock routes requests through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g. "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &Client{
		inner: anthropic.NewClient(opts...),
		model: model,
	}, nil
}

// Model returns the configured default model.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Complete sends one text-in/text-out request with the given system prompt
// and returns the response text plus reported token usage. When the API
// response carries no usage block the usage is estimated from content length.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, TokenUsage, error) {
	return c.complete(ctx, c.model, nil, system, prompt)
}

// complete is the shared request path for Complete and ChatAgent.
func (c *Client) complete(ctx context.Context, model anthropic.Model, temperature *float64, system, prompt string) (string, TokenUsage, error) {
	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxResponseTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if temperature != nil {
		params.Temperature = anthropic.Float(*temperature)
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", TokenUsage{}, fmt.Errorf("anthropic request: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}

	usage := TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Source:       UsageSourceAPI,
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage.InputTokens = EstimateTokens(system + prompt)
		usage.OutputTokens = EstimateTokens(text)
		usage.Source = UsageSourceEstimate
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	return text, usage, nil
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// AnthropicConfig configures agents backed by the Anthropic Messages API.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// Model is the default model for agents that do not name one.
	Model string
	// MaxTokens bounds each response. Defaults to 4096.
	MaxTokens int64
	// UseBedrock routes calls through AWS Bedrock.
	UseBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Anthropic sends each invocation as a single user message and returns the
// model's text as {"text": "..."}.
type Anthropic struct {
	agentID     string
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	instruction string
	usage       *Usage
}

// NewAnthropic creates an Anthropic-backed transport.
func NewAnthropic(agentID string, cfg AnthropicConfig, instruction string) (*Anthropic, error) {
	// Retries belong to the execution engine.
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("agent %s: ANTHROPIC_API_KEY is not set", agentID)
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseBedrock {
		model = bedrockModel(model)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Anthropic{
		agentID:     agentID,
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		instruction: instruction,
		usage:       &Usage{},
	}, nil
}

// bedrockModel converts a model name to its Bedrock cross-region inference profile.
func bedrockModel(model anthropic.Model) anthropic.Model {
	profiles := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	}
	if p, ok := profiles[model]; ok {
		return anthropic.Model(p)
	}
	return model
}

// Invoke sends the invocation to the model.
func (a *Anthropic) Invoke(ctx context.Context, inv models.Invocation) (json.RawMessage, error) {
	prompt, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(prompt))),
		},
	}
	if a.instruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.instruction}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.classify(err)
	}
	a.usage.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	return json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
}

// classify turns API status errors into remote errors. Rate limits and
// server-side failures are treated as the worker being unreachable so the
// engine may move the task to another agent.
func (a *Anthropic) classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
		return fmt.Errorf("%w: anthropic status %d", models.ErrUnreachable, apiErr.StatusCode)
	default:
		return &RemoteError{Agent: a.agentID, Code: apiErr.StatusCode, Message: apiErr.Error()}
	}
}

// Usage returns the token usage accumulated by this transport.
func (a *Anthropic) Usage() *Usage {
	return a.usage
}

// Usage tracks token consumption across calls.
type Usage struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// Add records token usage from an API call.
func (u *Usage) Add(input, output int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.inputTok += input
	u.outputTok += output
	u.calls++
}

// Total returns the input and output tokens and the call count.
func (u *Usage) Total() (input, output int64, calls int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.inputTok, u.outputTok, u.calls
}

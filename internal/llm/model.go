// Package llm provides the reasoning service boundary on top of langchaingo.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/rackcheck/internal/config"
	"github.com/raphaelgruber/rackcheck/internal/metrics"
	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const retryBase = 250 * time.Millisecond

// Request is a single reasoning call.
type Request struct {
	System      string
	Prompt      string
	JSON        bool    // ask the provider for a JSON object response
	Temperature float64 // zero leaves the provider default
	MaxTokens   int     // zero leaves the provider default
}

// Completer is the reasoning service boundary consumed by the pipeline.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Model wraps a langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	retries   uint64
	collector *metrics.Collector
}

// Compile-time check that Model implements Completer.
var _ Completer = (*Model)(nil)

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	m := NewFromLLM(model, cfg.LLMModel)
	m.retries = uint64(max(cfg.LLMRetries, 0))
	return m, nil
}

// NewFromLLM wraps an already constructed langchaingo model.
func NewFromLLM(model llms.Model, name string) *Model {
	return &Model{llm: model, modelName: name}
}

// WithCollector records call timings and token usage into c.
func (m *Model) WithCollector(c *metrics.Collector) *Model {
	m.collector = c
	return m
}

// WithRetries sets the number of retries for transient failures.
func (m *Model) WithRetries(n uint64) *Model {
	m.retries = n
	return m
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Complete sends one request and returns the first choice's content.
// Transient failures are retried; credential and quota failures are not.
// Every returned error wraps ErrReasoningTransport.
func (m *Model) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	opts := callOptions(req)
	start := time.Now()

	var resp *llms.ContentResponse
	backoff := retry.WithMaxRetries(m.retries, retry.WithJitter(50*time.Millisecond, retry.NewExponential(retryBase)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = m.llm.GenerateContent(ctx, messages, opts...)
		if callErr == nil {
			return nil
		}
		callErr = wrapFatalError(callErr)
		if errors.Is(callErr, ErrFatalAPI) || ctx.Err() != nil {
			return callErr
		}
		return retry.RetryableError(callErr)
	})
	duration := time.Since(start)
	if err != nil {
		m.collector.RecordFailure(metrics.OpReasoning)
		slog.Warn("reasoning call failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("%w: %w", ErrReasoningTransport, err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices", ErrReasoningTransport)
	}

	choice := resp.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	m.collector.RecordLLMUsage(metrics.OpReasoning, duration, in, out)
	slog.Debug("reasoning complete", "model", m.modelName, "duration_ms", duration.Milliseconds(), "input_tokens", in, "output_tokens", out)

	return choice.Content, nil
}

func callOptions(req Request) []llms.CallOption {
	var options []llms.CallOption
	if req.Temperature > 0 {
		options = append(options, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.JSON {
		options = append(options, llms.WithJSONMode())
	}
	return options
}

// tokenUsage pulls token counts out of provider-specific generation info.
func tokenUsage(info map[string]any) (int64, int64) {
	return firstInt(info, "PromptTokens", "InputTokens", "prompt_tokens"),
		firstInt(info, "CompletionTokens", "OutputTokens", "completion_tokens")
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

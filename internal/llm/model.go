// Package llm wraps the chat model providers behind a single Generate call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/promosignal/internal/config"
	"github.com/raphaelgruber/promosignal/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"
)

// Model generates text with the configured provider. Anthropic, OpenAI,
// Ollama and Bedrock go through langchaingo; Gemini uses the genai SDK.
type Model struct {
	llm    llms.Model
	gemini *genai.Client

	provider    string
	modelName   string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	metrics     *metrics.Collector
}

// NewModel creates an LLM model based on configuration. The collector may be nil.
func NewModel(ctx context.Context, cfg config.Config, mc *metrics.Collector) (*Model, error) {
	settings, err := cfg.ProviderSettings()
	if err != nil {
		return nil, err
	}

	m := &Model{
		provider:    cfg.Provider,
		modelName:   settings.Model,
		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
		timeout:     cfg.LLMTimeout,
		metrics:     mc,
	}

	switch cfg.Provider {
	case config.ProviderOllama:
		m.llm, err = ollama.New(
			ollama.WithModel(settings.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY", config.ErrMissingConfiguration)
		}
		m.llm, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(settings.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY", config.ErrMissingConfiguration)
		}
		m.llm, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(settings.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		m.llm, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(settings.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY", config.ErrMissingConfiguration)
		}
		m.gemini, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return m, nil
}

// Generate sends a single user prompt and returns the model's text reply.
// Billing and credential failures are wrapped with ErrFatalAPI.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		text    string
		in, out int64
		err     error
	)
	if m.gemini != nil {
		text, in, out, err = m.generateGemini(ctx, prompt)
	} else {
		text, in, out, err = m.generateLangchain(ctx, prompt)
	}
	if err != nil {
		return "", wrapFatalError(fmt.Errorf("generate: %w", err))
	}

	if m.metrics != nil {
		m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, time.Since(start), in, out)
	}
	return text, nil
}

func (m *Model) generateLangchain(ctx context.Context, prompt string) (string, int64, int64, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := m.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(m.temperature),
		llms.WithMaxTokens(m.maxTokens),
	)
	if err != nil {
		return "", 0, 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, errors.New("no response choices")
	}

	choice := resp.Choices[0]
	in, out := usageFromInfo(choice.GenerationInfo)
	return choice.Content, in, out, nil
}

func (m *Model) generateGemini(ctx context.Context, prompt string) (string, int64, int64, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := m.gemini.Models.GenerateContent(ctx, m.modelName, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(m.temperature)),
		MaxOutputTokens: int32(m.maxTokens),
	})
	if err != nil {
		return "", 0, 0, err
	}

	var in, out int64
	if resp.UsageMetadata != nil {
		in = int64(resp.UsageMetadata.PromptTokenCount)
		out = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return resp.Text(), in, out, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Provider returns the provider name.
func (m *Model) Provider() string {
	return m.provider
}

// usageKeys lists the token usage keys reported by the langchaingo providers.
var usageKeys = [][2]string{
	{"InputTokens", "OutputTokens"},
	{"PromptTokens", "CompletionTokens"},
	{"input_tokens", "output_tokens"},
}

func usageFromInfo(info map[string]any) (int64, int64) {
	for _, k := range usageKeys {
		in, okIn := toInt64(info[k[0]])
		out, okOut := toInt64(info[k[1]])
		if okIn || okOut {
			return in, out
		}
	}
	return 0, 0
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

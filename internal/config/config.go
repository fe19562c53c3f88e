// Package config loads runtime configuration from the environment and the
// optional provider settings file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingConfiguration is returned when a required setting is absent.
// It is fatal at startup.
var ErrMissingConfiguration = errors.New("missing configuration")

// Supported LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderBedrock   = "bedrock"
)

// Artifact store backends.
const (
	StoreFile      = "file"
	StoreSurrealDB = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	// LLM provider
	Provider      string
	ProvidersFile string
	Providers     map[string]ProviderSettings
	LLMTimeout    time.Duration

	// Provider credentials
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	OllamaHost      string
	AWSRegion       string

	// Pipeline
	OutputDir           string
	MaxChunkTokens      int
	TokenizerEncoding   string
	ExtractConcurrency  int
	EmployeeConcurrency int

	// Artifact store
	Store              string
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables and merges the
// provider settings file when one exists.
func Load() (Config, error) {
	cfg := Config{
		Provider:      NormalizeProvider(getEnv("PROMOSIGNAL_PROVIDER", ProviderAnthropic)),
		ProvidersFile: getEnv("PROMOSIGNAL_PROVIDERS_FILE", "config/llm_providers.yaml"),
		LLMTimeout:    getEnvDuration("PROMOSIGNAL_LLM_TIMEOUT", 2*time.Minute),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		OutputDir:           getEnv("PROMOSIGNAL_OUTPUT_DIR", "output"),
		MaxChunkTokens:      getEnvInt("PROMOSIGNAL_MAX_CHUNK_TOKENS", 40000),
		TokenizerEncoding:   getEnv("PROMOSIGNAL_TOKENIZER", "cl100k_base"),
		ExtractConcurrency:  getEnvInt("PROMOSIGNAL_EXTRACT_CONCURRENCY", 5),
		EmployeeConcurrency: getEnvInt("PROMOSIGNAL_EMPLOYEE_CONCURRENCY", 1),

		Store:              strings.ToLower(getEnv("PROMOSIGNAL_STORE", StoreFile)),
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "promosignal"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "artifacts"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:  getEnv("PROMOSIGNAL_LOG_FILE", "/tmp/promosignal.log"),
		LogLevel: parseLogLevel(getEnv("PROMOSIGNAL_LOG_LEVEL", "INFO")),
	}

	providers, err := LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return cfg, err
	}
	cfg.Providers = providers
	return cfg, nil
}

// ProviderSettings returns the settings for the selected provider.
func (c Config) ProviderSettings() (ProviderSettings, error) {
	s, ok := c.Providers[c.Provider]
	if !ok {
		return ProviderSettings{}, fmt.Errorf("%w: provider %q is not configured", ErrMissingConfiguration, c.Provider)
	}
	return s, nil
}

// APIKey returns the credential for the selected provider. Providers that
// authenticate without a key return an empty string.
func (c Config) APIKey() string {
	switch c.Provider {
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return ""
	}
}

// Validate checks the settings that must be present before any model call.
func (c Config) Validate() error {
	if _, err := c.ProviderSettings(); err != nil {
		return err
	}
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
		if c.APIKey() == "" {
			return fmt.Errorf("%w: %s_API_KEY is not set", ErrMissingConfiguration, strings.ToUpper(c.Provider))
		}
	}
	if c.MaxChunkTokens <= 0 {
		return fmt.Errorf("max chunk tokens must be positive, got %d", c.MaxChunkTokens)
	}
	if c.OutputDir == "" && c.Store == StoreFile {
		return fmt.Errorf("%w: output directory", ErrMissingConfiguration)
	}
	switch c.Store {
	case StoreFile, StoreSurrealDB:
	default:
		return fmt.Errorf("unknown artifact store %q", c.Store)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

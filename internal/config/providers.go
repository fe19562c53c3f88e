package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderSettings configures one LLM provider.
type ProviderSettings struct {
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// DefaultProviders returns the built-in provider settings used when no
// providers file overrides them.
func DefaultProviders() map[string]ProviderSettings {
	return map[string]ProviderSettings{
		ProviderAnthropic: {Model: "claude-sonnet-4-20250514", Temperature: 0, MaxTokens: 4000},
		ProviderOpenAI:    {Model: "gpt-4o", Temperature: 0, MaxTokens: 4000},
		ProviderGemini:    {Model: "gemini-2.5-flash", Temperature: 0, MaxTokens: 4000},
		ProviderOllama:    {Model: "llama3.1", Temperature: 0, MaxTokens: 4000},
		ProviderBedrock:   {Model: "anthropic.claude-3-5-sonnet-20240620-v1:0", Temperature: 0, MaxTokens: 4000},
	}
}

// LoadProviders reads provider settings from path and merges them over the
// defaults. A missing file is not an error. The file may be YAML or JSON.
func LoadProviders(path string) (map[string]ProviderSettings, error) {
	providers := DefaultProviders()
	if path == "" {
		return providers, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return providers, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var fromFile map[string]ProviderSettings
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", path, err)
	}

	for name, s := range fromFile {
		name = NormalizeProvider(name)
		base := providers[name]
		if s.Model != "" {
			base.Model = s.Model
		}
		if s.MaxTokens > 0 {
			base.MaxTokens = s.MaxTokens
		}
		base.Temperature = s.Temperature
		providers[name] = base
	}
	return providers, nil
}

// NormalizeProvider lowercases a provider name and maps the "google" alias
// to gemini.
func NormalizeProvider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "google" {
		return ProviderGemini
	}
	return name
}

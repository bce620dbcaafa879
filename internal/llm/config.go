package llm

import (
	"github.com/kyleking/hr-insight/internal/config"
)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultOllamaBaseURL    = "http://localhost:11434"
)

// ConfigFromSettings maps the application's LLM section onto a client Config
func ConfigFromSettings(settings config.LLMConfig, dialect string) Config {
	return Config{
		Provider:    settings.Provider,
		Model:       settings.Model,
		APIKey:      settings.APIKey,
		BaseURL:     settings.BaseURL,
		Timeout:     settings.TimeoutDuration(),
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		MaxHistory:  settings.MaxHistoryMessages,
		Dialect:     dialect,
	}
}

// withDefaults fills in provider base URLs and numeric limits
func withDefaults(cfg Config) Config {
	if cfg.BaseURL == "" {
		switch cfg.Provider {
		case ProviderOpenAI:
			cfg.BaseURL = defaultOpenAIBaseURL
		case ProviderAnthropic:
			cfg.BaseURL = defaultAnthropicBaseURL
		case ProviderOllama:
			cfg.BaseURL = defaultOllamaBaseURL
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	if cfg.MaxHistory < 0 {
		cfg.MaxHistory = 0
	}

	return cfg
}

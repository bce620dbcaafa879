package llm

import (
	"context"
	"time"

	"github.com/kyleking/hr-insight/internal/types"
)

// Generator turns a question into a structured, still untrusted, query
// proposal.
type Generator interface {
	Generate(ctx context.Context, req types.GenerationRequest, schemaContext string) (*types.GenerationResult, error)
}

// Service is a Generator whose provider settings can be replaced
type Service interface {
	Generator
	Configure(config Config) error
}

// Config represents LLM service configuration
type Config struct {
	Provider    string        `json:"provider"` // openai, anthropic, ollama
	Model       string        `json:"model"`
	APIKey      string        `json:"api_key,omitempty"`
	BaseURL     string        `json:"base_url,omitempty"`
	Timeout     time.Duration `json:"timeout"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	MaxHistory  int           `json:"max_history"`
	// Dialect names the store's SQL flavor in the instructions
	Dialect string `json:"dialect"`
}

// Provider constants for different LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Model defaults per provider
const (
	ModelGPT4oMini   = "gpt-4o-mini"
	ModelClaudeHaiku = "claude-3-5-haiku-latest"
	ModelLlama31     = "llama3.1"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxTokens  = 1024
	DefaultMaxHistory = 6
)

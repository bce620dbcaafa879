package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/types"
)

// Client implements the Service interface with multiple provider support
type Client struct {
	config     Config
	httpClient *http.Client
	anthropic  *anthropic.Client
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the transport used for every provider
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client and applies config
func NewClient(config Config, opts ...ClientOption) (*Client, error) {
	c := &Client{httpClient: &http.Client{}}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.Configure(config); err != nil {
		return nil, err
	}

	return c, nil
}

// Configure updates the client configuration
func (c *Client) Configure(config Config) error {
	if config.Provider == "" {
		return hrerrors.NewConfigError("provider is required", "llm.provider")
	}

	if config.Model == "" {
		return hrerrors.NewConfigError("model is required", "llm.model")
	}

	switch config.Provider {
	case ProviderOpenAI:
		if config.APIKey == "" {
			return hrerrors.NewConfigError("API key is required for OpenAI provider", "llm.api_key").
				WithSuggestion("Set HR_INSIGHT_LLM_API_KEY or OPENAI_API_KEY")
		}
	case ProviderAnthropic:
		if config.APIKey == "" {
			return hrerrors.NewConfigError("API key is required for Anthropic provider", "llm.api_key").
				WithSuggestion("Set HR_INSIGHT_LLM_API_KEY or ANTHROPIC_API_KEY")
		}
	case ProviderOllama:
	default:
		return hrerrors.NewConfigError(fmt.Sprintf("unsupported provider: %s", config.Provider), "llm.provider")
	}

	config = withDefaults(config)

	c.config = config
	c.anthropic = nil

	if config.Provider == ProviderAnthropic {
		c.anthropic = anthropic.NewClient(config.APIKey,
			anthropic.WithBaseURL(strings.TrimRight(config.BaseURL, "/")),
			anthropic.WithHTTPClient(c.httpClient),
		)
	}

	return nil
}

// Config returns the active configuration
func (c *Client) Config() Config {
	return c.config
}

// Generate asks the configured provider for a submit_hr_query call. Every
// failure, including the timeout, is a GenerationFailed error.
func (c *Client) Generate(ctx context.Context, req types.GenerationRequest, schemaContext string) (*types.GenerationResult, error) {
	if c.config.Provider == "" {
		return nil, hrerrors.GenerationFailed("LLM client not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	conv := buildConversation(req, schemaContext, c.config)

	var (
		args []byte
		err  error
	)

	switch c.config.Provider {
	case ProviderOpenAI:
		args, err = c.generateOpenAI(ctx, conv)
	case ProviderAnthropic:
		args, err = c.generateAnthropic(ctx, conv)
	case ProviderOllama:
		args, err = c.generateOllama(ctx, conv)
	default:
		err = fmt.Errorf("unsupported provider: %s", c.config.Provider)
	}

	if err != nil {
		return nil, c.generationError(ctx, err)
	}

	return decodeToolArguments(args)
}

func (c *Client) generationError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return hrerrors.GenerationFailed(
			fmt.Sprintf("completion service timed out after %s", c.config.Timeout), err)
	}

	if hrerrors.IsType(err, hrerrors.ErrTypeGeneration) {
		return err
	}

	return hrerrors.GenerationFailed(fmt.Sprintf("%s request failed", c.config.Provider), err)
}

// errNoToolCall is returned when a reply carries no submit_hr_query call
func errNoToolCall(provider string) error {
	return hrerrors.GenerationFailed(fmt.Sprintf("%s reply did not call %s", provider, ToolName), nil)
}

func errWrongTool(provider, name string) error {
	return hrerrors.GenerationFailed(fmt.Sprintf("%s reply called unexpected tool %q", provider, name), nil)
}

// postJSON makes a JSON POST and returns the body of a 2xx response
func (c *Client) postJSON(ctx context.Context, url string, reqBody interface{}, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

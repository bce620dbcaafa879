package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Ollama API structures
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []openAITool    `json:"tools"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (c *Client) generateOllama(ctx context.Context, conv conversation) ([]byte, error) {
	messages := make([]ollamaMessage, 0, len(conv.messages)+1)
	messages = append(messages, ollamaMessage{Role: "system", Content: conv.system})

	for _, m := range conv.messages {
		messages = append(messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody := ollamaRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   false,
		Tools: []openAITool{{
			Type: "function",
			Function: openAIFunction{
				Name:        ToolName,
				Description: toolDescription,
				Parameters:  ToolParameters(),
			},
		}},
		Options: ollamaOptions{
			Temperature: c.config.Temperature,
			NumPredict:  c.config.MaxTokens,
		},
	}

	respBody, err := c.postJSON(ctx, strings.TrimRight(c.config.BaseURL, "/")+"/api/chat", reqBody, nil)
	if err != nil {
		return nil, err
	}

	var response ollamaResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama response: %w", err)
	}

	if response.Error != "" {
		return nil, fmt.Errorf("Ollama API error: %s", response.Error)
	}

	if len(response.Message.ToolCalls) == 0 {
		return nil, errNoToolCall(ProviderOllama)
	}

	call := response.Message.ToolCalls[0]
	if call.Function.Name != ToolName {
		return nil, errWrongTool(ProviderOllama, call.Function.Name)
	}

	args := call.Function.Arguments

	// Some models return the arguments object encoded as a string
	var encoded string
	if err := json.Unmarshal(args, &encoded); err == nil {
		args = json.RawMessage(encoded)
	}

	return args, nil
}

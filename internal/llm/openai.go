package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// OpenAI API structures
type openAIRequest struct {
	Model       string           `json:"model"`
	Messages    []openAIMessage  `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Tools       []openAITool     `json:"tools"`
	ToolChoice  openAIToolChoice `json:"tool_choice"`
}

type openAIMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIToolChoice struct {
	Type     string             `json:"type"`
	Function openAIFunctionName `json:"function"`
}

type openAIFunctionName struct {
	Name string `json:"name"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) generateOpenAI(ctx context.Context, conv conversation) ([]byte, error) {
	messages := make([]openAIMessage, 0, len(conv.messages)+1)
	messages = append(messages, openAIMessage{Role: "system", Content: conv.system})

	for _, m := range conv.messages {
		messages = append(messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody := openAIRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Tools: []openAITool{{
			Type: "function",
			Function: openAIFunction{
				Name:        ToolName,
				Description: toolDescription,
				Parameters:  ToolParameters(),
			},
		}},
		ToolChoice: openAIToolChoice{
			Type:     "function",
			Function: openAIFunctionName{Name: ToolName},
		},
	}

	respBody, err := c.postJSON(ctx, strings.TrimRight(c.config.BaseURL, "/")+"/chat/completions", reqBody,
		map[string]string{"Authorization": "Bearer " + c.config.APIKey})
	if err != nil {
		return nil, err
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 || len(response.Choices[0].Message.ToolCalls) == 0 {
		return nil, errNoToolCall(ProviderOpenAI)
	}

	call := response.Choices[0].Message.ToolCalls[0]
	if call.Function.Name != ToolName {
		return nil, errWrongTool(ProviderOpenAI, call.Function.Name)
	}

	return []byte(call.Function.Arguments), nil
}

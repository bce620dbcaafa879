package llm

import (
	"context"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/kyleking/hr-insight/internal/types"
)

func (c *Client) generateAnthropic(ctx context.Context, conv conversation) ([]byte, error) {
	turns := conv.alternating()
	messages := make([]anthropic.Message, 0, len(turns))

	for _, m := range turns {
		text := m.Content
		role := anthropic.RoleUser

		if m.Role == types.RoleAssistant {
			role = anthropic.RoleAssistant
		}

		messages = append(messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{{Type: "text", Text: &text}},
		})
	}

	temperature := float32(c.config.Temperature)

	resp, err := c.anthropic.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   c.config.MaxTokens,
		System:      conv.system,
		Messages:    messages,
		Temperature: &temperature,
		Tools: []anthropic.ToolDefinition{{
			Name:        ToolName,
			Description: toolDescription,
			InputSchema: ToolParameters(),
		}},
		ToolChoice: &anthropic.ToolChoice{Type: "tool", Name: ToolName},
	})
	if err != nil {
		return nil, err
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.MessageContentToolUse == nil {
			continue
		}

		if block.MessageContentToolUse.Name != ToolName {
			return nil, errWrongTool(ProviderAnthropic, block.MessageContentToolUse.Name)
		}

		return block.MessageContentToolUse.Input, nil
	}

	return nil, errNoToolCall(ProviderAnthropic)
}

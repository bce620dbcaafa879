package llm

import (
	"fmt"
	"strings"

	"github.com/kyleking/hr-insight/internal/narrative"
	"github.com/kyleking/hr-insight/internal/types"
)

const systemTemplate = `You are an HR analytics assistant that answers questions by writing SQL for a %s database.
Always answer by calling the %s tool exactly once.

Rules for the query:
1. Write exactly one read-only SELECT statement. Never modify data and never chain statements.
2. Use only the tables and columns listed in the schema below.
3. Dates are stored as YYYY-MM-DD text; compare them as such.
4. Compare strings case-insensitively with LOWER(...) or ILIKE.
5. Put the label first and the measured value second in the select list.
6. Do not add comments to the query.

Pick the intent that matches the question: simple_metric, filtered, comparative, temporal, aggregation or correlation.

The analysis template is shown to the user with these placeholders filled from the result: %s.
{top_<column>} names the label (or the value, for count columns) of the highest row.

Schema:
%s`

// buildSystemPrompt renders the instructions including the schema context
func buildSystemPrompt(schemaContext, dialect string) string {
	if dialect == "" {
		dialect = "ANSI SQL"
	}

	return fmt.Sprintf(systemTemplate, dialect, ToolName,
		strings.Join(narrative.Placeholders, ", "), schemaContext)
}

// conversation is the provider-neutral request body
type conversation struct {
	system   string
	messages []types.Message
}

// buildConversation appends the question after the trimmed history
func buildConversation(req types.GenerationRequest, schemaContext string, cfg Config) conversation {
	history := req.RecentHistory(cfg.MaxHistory)

	messages := make([]types.Message, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}

		role := m.Role
		if role != types.RoleAssistant {
			role = types.RoleUser
		}

		messages = append(messages, types.Message{Role: role, Content: m.Content})
	}

	messages = append(messages, types.Message{Role: types.RoleUser, Content: req.Question})

	return conversation{
		system:   buildSystemPrompt(schemaContext, cfg.Dialect),
		messages: messages,
	}
}

// alternating merges consecutive turns with the same role and drops leading
// assistant turns, as the Anthropic API requires.
func (c conversation) alternating() []types.Message {
	var out []types.Message

	for _, m := range c.messages {
		if len(out) == 0 && m.Role == types.RoleAssistant {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}

		out = append(out, m)
	}

	return out
}

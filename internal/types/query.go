package types

import (
	"fmt"
	"strings"
)

// TableSchema describes one table the query generator may reference
type TableSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Columns     []ColumnSchema `json:"columns"`
}

// ColumnSchema represents a table column
type ColumnSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Intent classifies the shape of an analytics question
type Intent string

const (
	IntentSimpleMetric Intent = "simple_metric"
	IntentFiltered     Intent = "filtered"
	IntentComparative  Intent = "comparative"
	IntentTemporal     Intent = "temporal"
	IntentAggregation  Intent = "aggregation"
	IntentCorrelation  Intent = "correlation"
)

// Intents lists every intent in declaration order
func Intents() []Intent {
	return []Intent{
		IntentSimpleMetric,
		IntentFiltered,
		IntentComparative,
		IntentTemporal,
		IntentAggregation,
		IntentCorrelation,
	}
}

// Valid reports whether i is one of the declared intents
func (i Intent) Valid() bool {
	switch i {
	case IntentSimpleMetric, IntentFiltered, IntentComparative,
		IntentTemporal, IntentAggregation, IntentCorrelation:
		return true
	default:
		return false
	}
}

func (i Intent) String() string {
	return string(i)
}

// ParseIntent accepts exactly the declared intent names
func ParseIntent(s string) (Intent, error) {
	intent := Intent(strings.TrimSpace(s))
	if !intent.Valid() {
		return "", fmt.Errorf("unknown intent %q", s)
	}

	return intent, nil
}

// Role identifies the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single prior conversation turn
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest is the inbound question plus its grounding constraints
type GenerationRequest struct {
	Question      string    `json:"question"`
	AllowedTables []string  `json:"allowed_tables"`
	History       []Message `json:"history,omitempty"`
}

// RecentHistory returns at most limit trailing messages. A non-positive limit
// drops history entirely.
func (r GenerationRequest) RecentHistory(limit int) []Message {
	if limit <= 0 || len(r.History) == 0 {
		return nil
	}

	if len(r.History) <= limit {
		return r.History
	}

	return r.History[len(r.History)-limit:]
}

// GenerationResult is the structured output of the completion service.
// Query is untrusted until validated.
type GenerationResult struct {
	Query            string `json:"sql"`
	Intent           Intent `json:"intent"`
	Explanation      string `json:"explanation"`
	AnalysisTemplate string `json:"analysis_template"`
}

// ValidationVerdict is the outcome of the safety checks on a query
type ValidationVerdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Accept returns a passing verdict
func Accept() ValidationVerdict {
	return ValidationVerdict{Valid: true}
}

// Reject returns a failing verdict with reason
func Reject(reason string) ValidationVerdict {
	return ValidationVerdict{Valid: false, Reason: reason}
}

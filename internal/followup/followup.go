// Package followup suggests next questions for an answered intent.
package followup

import "github.com/kyleking/hr-insight/internal/types"

var suggestions = map[types.Intent][]string{
	types.IntentSimpleMetric: {
		"How has this changed over the last year?",
		"Break this down by department",
		"How does this compare to last quarter?",
	},
	types.IntentFiltered: {
		"Show the same view for all departments",
		"What are the common traits in this group?",
	},
	types.IntentComparative: {
		"Which factors drive the differences?",
		"Show the trend for each group over time",
		"Which group improved the most?",
	},
	types.IntentTemporal: {
		"What caused the biggest changes?",
		"Compare to industry benchmarks",
		"Show just the last 6 months",
	},
	types.IntentAggregation: {
		"Which segment stands out the most?",
		"Show the distribution as percentages",
	},
	types.IntentCorrelation: {
		"Is this relationship consistent across departments?",
		"Which outliers should we look into?",
		"What other factors could explain this?",
	},
}

var generic = []string{
	"Break this down by department",
	"Show the trend over the last 12 months",
	"What are the top 5 contributors?",
}

// Suggest returns follow-up questions for intent. The result is a copy the
// caller may modify.
func Suggest(intent types.Intent) []string {
	list, ok := suggestions[intent]
	if !ok {
		list = generic
	}

	out := make([]string, len(list))
	copy(out, list)

	return out
}

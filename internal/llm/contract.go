package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/types"
)

// ToolName is the single tool every provider is forced to call
const ToolName = "submit_hr_query"

const toolDescription = "Submit one read-only SQL query answering the question, its intent, " +
	"a one sentence explanation, and an analysis template for the narrative."

// toolPayload is the argument object of a submit_hr_query call
type toolPayload struct {
	SQL              string `json:"sql"               validate:"required"`
	Intent           string `json:"intent"            validate:"required,oneof=simple_metric filtered comparative temporal aggregation correlation"`
	Explanation      string `json:"explanation"       validate:"required"`
	AnalysisTemplate string `json:"analysis_template" validate:"required"`
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		return name
	})

	return v
}

// ToolParameters is the JSON schema of the tool arguments
func ToolParameters() map[string]any {
	intents := make([]string, 0, len(types.Intents()))
	for _, intent := range types.Intents() {
		intents = append(intents, intent.String())
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sql": map[string]any{
				"type":        "string",
				"description": "A single read-only SELECT statement",
			},
			"intent": map[string]any{
				"type":        "string",
				"enum":        intents,
				"description": "The shape of the question",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "What the query computes, in plain language",
			},
			"analysis_template": map[string]any{
				"type":        "string",
				"description": "Narrative text that may contain result placeholders",
			},
		},
		"required":             []string{"sql", "intent", "explanation", "analysis_template"},
		"additionalProperties": false,
	}
}

// decodeToolArguments checks a tool call's arguments at the boundary. Any
// shape problem is a generation failure.
func decodeToolArguments(raw []byte) (*types.GenerationResult, error) {
	if len(raw) == 0 {
		return nil, hrerrors.GenerationFailed("tool call carried no arguments", nil)
	}

	var payload toolPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, hrerrors.GenerationFailed("tool arguments are not a valid object", err)
	}

	payload.SQL = strings.TrimSpace(payload.SQL)
	payload.Intent = strings.TrimSpace(payload.Intent)
	payload.Explanation = strings.TrimSpace(payload.Explanation)
	payload.AnalysisTemplate = strings.TrimSpace(payload.AnalysisTemplate)

	if err := payloadValidator.Struct(payload); err != nil {
		return nil, hrerrors.GenerationFailed(describeValidation(err), err)
	}

	intent, err := types.ParseIntent(payload.Intent)
	if err != nil {
		return nil, hrerrors.GenerationFailed("tool arguments carry an unknown intent", err)
	}

	return &types.GenerationResult{
		Query:            payload.SQL,
		Intent:           intent,
		Explanation:      payload.Explanation,
		AnalysisTemplate: payload.AnalysisTemplate,
	}, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "tool arguments failed validation"
	}

	fe := fieldErrs[0]
	if fe.Tag() == "oneof" {
		return fmt.Sprintf("tool arguments carry an unknown %s %q", fe.Field(), fe.Value())
	}

	return fmt.Sprintf("tool arguments are missing %s", fe.Field())
}

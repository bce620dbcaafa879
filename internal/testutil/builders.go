package testutil

import (
	"github.com/kyleking/hr-insight/internal/types"
)

// ResultSetOption is a functional option for configuring test result sets
type ResultSetOption func(*types.ResultSet)

// WithTruncated marks the result as capped
func WithTruncated() ResultSetOption {
	return func(rs *types.ResultSet) {
		rs.Truncated = true
	}
}

// WithRow appends one row given as values in column order
func WithRow(values ...any) ResultSetOption {
	return func(rs *types.ResultSet) {
		row := make(types.Row, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}

		rs.Rows = append(rs.Rows, row)
	}
}

// NewResultSet creates a result set with the given columns and no rows
func NewResultSet(columns []string, opts ...ResultSetOption) *types.ResultSet {
	rs := &types.ResultSet{
		Columns: columns,
		Rows:    []types.Row{},
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs
}

// DepartmentHeadcount is the two-row department/count result used across
// pipeline and rendering tests.
func DepartmentHeadcount() *types.ResultSet {
	return NewResultSet([]string{"department", "count"},
		WithRow("Eng", int64(40)),
		WithRow("Sales", int64(10)),
	)
}

// GenerationOption is a functional option for configuring generation results
type GenerationOption func(*types.GenerationResult)

// WithQuery sets the generated SQL
func WithQuery(sql string) GenerationOption {
	return func(r *types.GenerationResult) {
		r.Query = sql
	}
}

// WithIntent sets the generated intent
func WithIntent(intent types.Intent) GenerationOption {
	return func(r *types.GenerationResult) {
		r.Intent = intent
	}
}

// WithTemplate sets the analysis template
func WithTemplate(template string) GenerationOption {
	return func(r *types.GenerationResult) {
		r.AnalysisTemplate = template
	}
}

// NewGenerationResult creates a department headcount proposal and applies
// any provided options.
func NewGenerationResult(opts ...GenerationOption) *types.GenerationResult {
	r := &types.GenerationResult{
		Query:            TestHeadcountSQL,
		Intent:           types.IntentAggregation,
		Explanation:      "Counts active employees per department",
		AnalysisTemplate: TestHeadcountTemplate,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

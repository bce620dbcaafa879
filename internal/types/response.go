package types

import "time"

// ChartFamily is the visualization kind chosen for a result
type ChartFamily string

const (
	ChartBar     ChartFamily = "bar"
	ChartLine    ChartFamily = "line"
	ChartPie     ChartFamily = "pie"
	ChartScatter ChartFamily = "scatter"
)

// Series is one plotted value column
type Series struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
	Color  string    `json:"color"`
	// PointColors is set for pie charts, one color per slice
	PointColors []string `json:"point_colors,omitempty"`
}

// ChartOptions are renderer hints
type ChartOptions struct {
	Title      string `json:"title"`
	XAxisLabel string `json:"x_axis_label,omitempty"`
	YAxisLabel string `json:"y_axis_label,omitempty"`
	ShowLegend bool   `json:"show_legend"`
	Responsive bool   `json:"responsive"`
}

// ChartSpec is a renderer-agnostic chart description
type ChartSpec struct {
	Family  ChartFamily  `json:"chart_type"`
	Labels  []string     `json:"labels"`
	Series  []Series     `json:"series"`
	Options ChartOptions `json:"options"`
}

// ResultSummary is the part of a result kept alongside a response
type ResultSummary struct {
	Columns []string `json:"columns"`
	Preview []Row    `json:"preview"`
}

// Response is the caller-facing outcome of one question
type Response struct {
	RequestID    string        `json:"request_id"`
	Question     string        `json:"question"`
	SQL          string        `json:"sql"`
	Intent       Intent        `json:"intent"`
	Explanation  string        `json:"explanation"`
	Analysis     string        `json:"analysis"`
	Chart        ChartSpec     `json:"chart"`
	FollowUps    []string      `json:"follow_ups"`
	RowsReturned int           `json:"rows_returned"`
	Truncated    bool          `json:"truncated,omitempty"`
	Summary      ResultSummary `json:"summary"`
	Cached       bool          `json:"cached"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kyleking/hr-insight/internal/chart"
	"github.com/kyleking/hr-insight/internal/followup"
	"github.com/kyleking/hr-insight/internal/metrics"
	"github.com/kyleking/hr-insight/internal/narrative"
	"github.com/kyleking/hr-insight/internal/types"
)

// render assembles the caller-facing response from an executed result
func (e *Engine) render(ctx context.Context, requestID, question string, result *types.GenerationResult, rs *types.ResultSet) *types.Response {
	_, done := e.stage(ctx, metrics.StageRender)

	spec := chart.BuildChartSpec(result.Intent, rs)

	resp := &types.Response{
		RequestID:    requestID,
		Question:     question,
		SQL:          result.Query,
		Intent:       result.Intent,
		Explanation:  result.Explanation,
		Analysis:     narrative.Render(result.AnalysisTemplate, rs),
		Chart:        spec,
		FollowUps:    followup.Suggest(result.Intent),
		RowsReturned: rs.RowCount(),
		Truncated:    rs.Truncated,
		Summary: types.ResultSummary{
			Columns: append([]string{}, rs.Columns...),
			Preview: rs.Preview(PreviewRows),
		},
		GeneratedAt: e.now().UTC(),
	}

	done(nil, attribute.String("chart", string(spec.Family)))

	return resp
}

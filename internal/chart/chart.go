// Package chart turns a result set into a renderer-agnostic chart spec.
package chart

import (
	"github.com/kyleking/hr-insight/internal/types"
)

// pieMaxSlices is the largest simple metric result still drawn as a pie
const pieMaxSlices = 7

// Palette is applied round-robin to series, and to slices on pie charts
var Palette = []string{
	"#4E79A7",
	"#F28E2B",
	"#E15759",
	"#76B7B2",
	"#59A14F",
	"#EDC948",
	"#B07AA1",
	"#FF9DA7",
}

var titles = map[types.Intent]string{
	types.IntentSimpleMetric: "Key Metric",
	types.IntentFiltered:     "Filtered Results",
	types.IntentComparative:  "Comparison",
	types.IntentTemporal:     "Trend Over Time",
	types.IntentAggregation:  "Breakdown",
	types.IntentCorrelation:  "Relationship",
}

// SelectChart picks the chart family for an intent and result size
func SelectChart(intent types.Intent, rowCount int) types.ChartFamily {
	switch intent {
	case types.IntentTemporal:
		return types.ChartLine
	case types.IntentCorrelation:
		return types.ChartScatter
	case types.IntentSimpleMetric:
		if rowCount <= pieMaxSlices {
			return types.ChartPie
		}

		return types.ChartBar
	default:
		return types.ChartBar
	}
}

// Title is the default chart title for an intent
func Title(intent types.Intent) string {
	if t, ok := titles[intent]; ok {
		return t
	}

	return "Results"
}

// BuildChartSpec builds the chart for rs. An empty result yields a spec with
// empty labels and series.
func BuildChartSpec(intent types.Intent, rs *types.ResultSet) types.ChartSpec {
	family := SelectChart(intent, rs.RowCount())

	spec := types.ChartSpec{
		Family: family,
		Labels: []string{},
		Series: []types.Series{},
		Options: types.ChartOptions{
			Title:      Title(intent),
			Responsive: true,
		},
	}

	if rs.RowCount() == 0 {
		return spec
	}

	for i := range rs.Rows {
		spec.Labels = append(spec.Labels, rs.Label(i))
	}

	valueColumns := rs.ValueColumns()
	for n, col := range valueColumns {
		series := types.Series{
			Label:  col,
			Values: make([]float64, len(rs.Rows)),
			Color:  color(n),
		}

		for i, row := range rs.Rows {
			if f, ok := types.ToFloat(row[col]); ok {
				series.Values[i] = f
			}
		}

		if family == types.ChartPie {
			series.PointColors = make([]string, len(rs.Rows))
			for i := range rs.Rows {
				series.PointColors[i] = color(i)
			}
		}

		spec.Series = append(spec.Series, series)
	}

	spec.Options.XAxisLabel = rs.LabelColumn()
	if len(valueColumns) > 0 {
		spec.Options.YAxisLabel = valueColumns[0]
	}

	spec.Options.ShowLegend = family == types.ChartPie || len(spec.Series) > 1

	return spec
}

func color(i int) string {
	return Palette[i%len(Palette)]
}

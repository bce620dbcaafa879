// Package narrative fills model-supplied analysis templates from query results.
package narrative

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kyleking/hr-insight/internal/types"
)

const (
	maxSummaryRows  = 10
	maxFallbackRows = 5
)

var (
	topPattern       = regexp.MustCompile(`\{top_([A-Za-z0-9_]+)\}`)
	remainingPattern = regexp.MustCompile(`\{[^{}]*\}`)
)

// Placeholders lists the tokens Render understands. {top_*} matches any
// suffix.
var Placeholders = []string{"{total_count}", "{row_count}", "{data_summary}", "{top_*}"}

// Render substitutes result-derived values into template. Tokens that cannot
// be resolved become N/A and a raw data block is appended so the reader still
// sees the numbers.
func Render(template string, rs *types.ResultSet) string {
	count := rs.RowCount()
	out := template

	out = strings.ReplaceAll(out, "{total_count}", strconv.Itoa(count))
	out = strings.ReplaceAll(out, "{row_count}", strconv.Itoa(count))

	if count > 0 && count <= maxSummaryRows {
		out = strings.ReplaceAll(out, "{data_summary}", dataSummary(rs))
	}

	if count > 0 {
		top := topRow(rs)
		out = topPattern.ReplaceAllStringFunc(out, func(token string) string {
			name := topPattern.FindStringSubmatch(token)[1]
			if strings.Contains(strings.ToLower(name), "count") {
				return types.FormatValue(rs.Value(top))
			}

			return rs.Label(top)
		})
	}

	if strings.TrimSpace(out) == "" {
		return fallbackBlock(rs)
	}

	if remainingPattern.MatchString(out) {
		// replacing an inner token can expose an outer one: {{x}} -> {N/A}
		for remainingPattern.MatchString(out) {
			out = remainingPattern.ReplaceAllString(out, types.NotAvailable)
		}

		out += "\n\n" + fallbackBlock(rs)
	}

	return out
}

func dataSummary(rs *types.ResultSet) string {
	parts := make([]string, 0, rs.RowCount())
	for i := range rs.Rows {
		parts = append(parts, fmt.Sprintf("%s: %s", rs.Label(i), types.FormatValue(rs.Value(i))))
	}

	return strings.Join(parts, ", ")
}

// topRow returns the index of the row with the largest primary value.
// Ties keep result order and non-numeric values sort last.
func topRow(rs *types.ResultSet) int {
	order := make([]int, len(rs.Rows))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		va, okA := types.ToFloat(rs.Value(order[a]))
		vb, okB := types.ToFloat(rs.Value(order[b]))

		switch {
		case okA && okB:
			return va > vb
		case okA:
			return true
		default:
			return false
		}
	})

	return order[0]
}

func fallbackBlock(rs *types.ResultSet) string {
	count := rs.RowCount()

	var b strings.Builder
	fmt.Fprintf(&b, "Rows returned: %d", count)

	for _, row := range rs.Preview(maxFallbackRows) {
		fields := make([]string, 0, len(rs.Columns))
		for _, col := range rs.Columns {
			fields = append(fields, col+"="+types.FormatValue(row[col]))
		}

		b.WriteString("\n- " + strings.Join(fields, ", "))
	}

	if count > maxFallbackRows {
		fmt.Fprintf(&b, "\n… and %d more rows", count-maxFallbackRows)
	}

	return b.String()
}

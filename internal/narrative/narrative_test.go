package narrative

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kyleking/hr-insight/internal/types"
)

var unresolved = regexp.MustCompile(`\{[^{}]*\}`)

func departments() *types.ResultSet {
	return &types.ResultSet{
		Columns: []string{"department", "count"},
		Rows: []types.Row{
			{"department": "Eng", "count": int64(40)},
			{"department": "Sales", "count": int64(10)},
		},
	}
}

func TestRenderFillsTopPlaceholders(t *testing.T) {
	out := Render("There are {total_count} departments, largest is {top_department} with {top_count} employees", departments())

	assert.Equal(t, "There are 2 departments, largest is Eng with 40 employees", out)
	assert.NotContains(t, out, "{")
	assert.NotContains(t, out, "}")
}

func TestRenderSortsByValue(t *testing.T) {
	rs := &types.ResultSet{
		Columns: []string{"reason", "exits"},
		Rows: []types.Row{
			{"reason": "relocation", "exits": "unknown"},
			{"reason": "compensation", "exits": 3},
			{"reason": "manager", "exits": 7.256},
			{"reason": "performance", "exits": 7.256},
		},
	}

	assert.Equal(t, "manager: 7.26", Render("{top_reason}: {top_exits_count}", rs))
}

func TestRenderDataSummary(t *testing.T) {
	out := Render("Headcount by department: {data_summary}.", departments())
	assert.Equal(t, "Headcount by department: Eng: 40, Sales: 10.", out)
}

func TestRenderDataSummaryTooManyRows(t *testing.T) {
	rs := &types.ResultSet{Columns: []string{"employee", "salary"}}
	for i := 0; i < 12; i++ {
		rs.Rows = append(rs.Rows, types.Row{"employee": i, "salary": 1000.0 * float64(i)})
	}

	out := Render("Salaries: {data_summary}", rs)

	assert.Contains(t, out, "Salaries: N/A")
	assert.Contains(t, out, "Rows returned: 12")
	assert.Contains(t, out, "- employee=0, salary=0")
	assert.Contains(t, out, "- employee=4, salary=4000")
	assert.NotContains(t, out, "employee=5,")
	assert.Contains(t, out, "… and 7 more rows")
	assert.False(t, unresolved.MatchString(out))
}

func TestRenderUnknownPlaceholderFallsBack(t *testing.T) {
	out := Render("Average tenure is {avg_tenure} years across {row_count} groups", departments())

	assert.Equal(t, "Average tenure is N/A years across 2 groups\n\nRows returned: 2\n- department=Eng, count=40\n- department=Sales, count=10", out)
}

func TestRenderEmptyResult(t *testing.T) {
	empty := &types.ResultSet{Columns: []string{"department", "count"}, Rows: []types.Row{}}

	out := Render("Found {total_count} matching employees", empty)
	assert.Equal(t, "Found 0 matching employees", out)

	out = Render("{row_count} rows; top is {top_department}", empty)
	assert.Equal(t, "0 rows; top is N/A\n\nRows returned: 0", out)

	out = Render("Breakdown: {data_summary}", empty)
	assert.Equal(t, "Breakdown: N/A\n\nRows returned: 0", out)

	assert.Equal(t, "Rows returned: 0", Render("", nil))
}

func TestRenderSingleColumn(t *testing.T) {
	rs := &types.ResultSet{Columns: []string{"total"}, Rows: []types.Row{{"total": int64(72)}}}

	assert.Equal(t, "We employ 72 people (total).", Render("We employ {top_count} people ({top_metric}).", rs))
}

func TestRenderNeverLeavesPlaceholders(t *testing.T) {
	templates := []string{
		"",
		"plain text",
		"{}",
		"{total_count} {unknown} {top_} {top_x_count} {data_summary}",
		"nested {{top_department}} braces",
		"{ spaced token }",
	}

	results := []*types.ResultSet{
		nil,
		{Columns: []string{"a"}, Rows: []types.Row{}},
		departments(),
		{Columns: []string{"a", "b"}, Rows: []types.Row{{"a": nil, "b": nil}}},
	}

	for _, tmpl := range templates {
		for _, rs := range results {
			out := Render(tmpl, rs)
			assert.False(t, unresolved.MatchString(out), "template %q produced %q", tmpl, out)
		}
	}
}

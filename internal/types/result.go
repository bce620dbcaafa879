package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is rendered for missing values
const NotAvailable = "N/A"

// Row maps a column label to a scalar value
type Row map[string]any

// ResultSet holds the rows produced by the executor. Columns keeps the
// store's column order; the first column labels a row and the remaining
// columns carry its values.
type ResultSet struct {
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// RowCount returns the number of rows, treating a nil set as empty
func (rs *ResultSet) RowCount() int {
	if rs == nil {
		return 0
	}

	return len(rs.Rows)
}

// LabelColumn returns the label column name, or "" when the result has a
// single column.
func (rs *ResultSet) LabelColumn() string {
	if rs == nil || len(rs.Columns) < 2 {
		return ""
	}

	return rs.Columns[0]
}

// ValueColumns returns the columns that carry values
func (rs *ResultSet) ValueColumns() []string {
	if rs == nil || len(rs.Columns) == 0 {
		return nil
	}

	if len(rs.Columns) == 1 {
		return rs.Columns
	}

	return rs.Columns[1:]
}

// Label returns the formatted label of row i. Single-column results are
// labelled with the column name.
func (rs *ResultSet) Label(i int) string {
	if col := rs.LabelColumn(); col != "" {
		return FormatValue(rs.Rows[i][col])
	}

	if len(rs.Columns) == 1 {
		return rs.Columns[0]
	}

	return NotAvailable
}

// Value returns the raw primary value of row i
func (rs *ResultSet) Value(i int) any {
	cols := rs.ValueColumns()
	if len(cols) == 0 {
		return nil
	}

	return rs.Rows[i][cols[0]]
}

// Preview returns at most n leading rows
func (rs *ResultSet) Preview(n int) []Row {
	if rs == nil || n <= 0 {
		return []Row{}
	}

	if len(rs.Rows) <= n {
		return rs.Rows
	}

	return rs.Rows[:n]
}

// ToFloat converts numeric scalars to float64
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

// FormatNumber rounds to two decimals and trims trailing zeros
func FormatNumber(f float64) string {
	rounded := math.Round(f*100) / 100
	if rounded == 0 {
		rounded = 0 // collapse negative zero
	}

	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// FormatValue renders a scalar for labels and narratives
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return NotAvailable
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float32:
		return FormatNumber(float64(val))
	case float64:
		return FormatNumber(val)
	case time.Time:
		return FormatTime(val)
	case fmt.Stringer:
		return val.String()
	}

	if f, ok := ToFloat(v); ok {
		return FormatNumber(f)
	}

	return fmt.Sprint(v)
}

// FormatTime renders dates as YYYY-MM-DD and timestamps as RFC3339
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}

	return t.Format(time.RFC3339)
}

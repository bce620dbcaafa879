package formatter

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/kyleking/hr-insight/internal/cache"
	"github.com/kyleking/hr-insight/internal/types"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

const barWidth = 30

// Formatter renders responses for the terminal
type Formatter struct {
	showSQL bool
	now     func() time.Time

	heading *color.Color
	accent  *color.Color
	muted   *color.Color
	good    *color.Color
	bad     *color.Color
}

// Option configures a Formatter
type Option func(*Formatter)

// WithSQL includes the executed query in text output
func WithSQL(show bool) Option {
	return func(f *Formatter) {
		f.showSQL = show
	}
}

// WithColor forces ANSI colors on or off
func WithColor(enabled bool) Option {
	return func(f *Formatter) {
		for _, c := range f.palette() {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// WithClock replaces the wall clock used for relative ages
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFormatter creates a new formatter instance
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		now:     time.Now,
		heading: color.New(color.FgCyan, color.Bold),
		accent:  color.New(color.FgYellow),
		muted:   color.New(color.Faint),
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *Formatter) palette() []*color.Color {
	return []*color.Color{f.heading, f.accent, f.muted, f.good, f.bad}
}

// FormatResponse renders resp in the requested format
func (f *Formatter) FormatResponse(resp *types.Response, format OutputFormat) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response to format")
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal response: %w", err)
		}

		return string(data), nil
	case FormatText, "":
		return f.formatText(resp), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

func (f *Formatter) formatText(resp *types.Response) string {
	var lines []string

	lines = append(lines, f.heading.Sprint("Question: ")+resp.Question)

	status := fmt.Sprintf("Intent: %s | Rows: %s", resp.Intent, f.formatRows(resp.RowsReturned, resp.Truncated))
	if resp.Cached {
		status += " | cached, generated " + f.humanizeAge(resp.GeneratedAt)
	}

	lines = append(lines, f.muted.Sprint(status))

	if f.showSQL && resp.SQL != "" {
		lines = append(lines, f.muted.Sprint("SQL: ")+resp.SQL)
	}

	lines = append(lines, "", resp.Analysis)

	if chart := f.formatChart(resp.Chart); chart != "" {
		lines = append(lines, "", chart)
	}

	if table := f.formatPreview(resp.Summary, resp.RowsReturned); table != "" {
		lines = append(lines, "", table)
	}

	if resp.Explanation != "" {
		lines = append(lines, "", f.heading.Sprint("How this was computed: ")+resp.Explanation)
	}

	if len(resp.FollowUps) > 0 {
		lines = append(lines, "", f.heading.Sprint("You could also ask:"))
		for i, q := range resp.FollowUps {
			lines = append(lines, fmt.Sprintf("  %d. %s", i+1, q))
		}
	}

	return strings.Join(lines, "\n")
}

func (f *Formatter) formatRows(rows int, truncated bool) string {
	if truncated {
		return fmt.Sprintf("%d (truncated)", rows)
	}

	return fmt.Sprintf("%d", rows)
}

// formatChart draws each series as horizontal bars scaled to the largest
// magnitude in that series.
func (f *Formatter) formatChart(spec types.ChartSpec) string {
	if len(spec.Labels) == 0 || len(spec.Series) == 0 {
		return ""
	}

	labelWidth := 0
	for _, l := range spec.Labels {
		labelWidth = max(labelWidth, len([]rune(l)))
	}

	lines := []string{f.heading.Sprintf("%s (%s chart)", spec.Options.Title, spec.Family)}

	for _, series := range spec.Series {
		if len(spec.Series) > 1 {
			lines = append(lines, f.accent.Sprint("  "+series.Label))
		}

		var peak float64
		for _, v := range series.Values {
			peak = math.Max(peak, math.Abs(v))
		}

		for i, label := range spec.Labels {
			var v float64
			if i < len(series.Values) {
				v = series.Values[i]
			}

			n := 0
			if peak > 0 {
				n = int(math.Round(math.Abs(v) / peak * barWidth))
			}

			pad := strings.Repeat(" ", labelWidth-len([]rune(label)))
			lines = append(lines, fmt.Sprintf("  %s%s  %s %s",
				label, pad, f.good.Sprint(strings.Repeat("█", n)), types.FormatNumber(v)))
		}
	}

	return strings.Join(lines, "\n")
}

func (f *Formatter) formatPreview(summary types.ResultSummary, total int) string {
	if len(summary.Columns) == 0 || len(summary.Preview) == 0 {
		return ""
	}

	widths := make([]int, len(summary.Columns))
	cells := make([][]string, len(summary.Preview))

	for i, col := range summary.Columns {
		widths[i] = len([]rune(col))
	}

	for r, row := range summary.Preview {
		cells[r] = make([]string, len(summary.Columns))
		for i, col := range summary.Columns {
			cells[r][i] = types.FormatValue(row[col])
			widths[i] = max(widths[i], len([]rune(cells[r][i])))
		}
	}

	lines := []string{f.heading.Sprint("Preview:")}
	lines = append(lines, "  "+f.accent.Sprint(joinPadded(summary.Columns, widths)))

	for _, row := range cells {
		lines = append(lines, "  "+joinPadded(row, widths))
	}

	if total > len(summary.Preview) {
		lines = append(lines, f.muted.Sprintf("  … and %d more rows", total-len(summary.Preview)))
	}

	return strings.Join(lines, "\n")
}

func joinPadded(values []string, widths []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v + strings.Repeat(" ", widths[i]-len([]rune(v)))
	}

	return strings.TrimRight(strings.Join(parts, " | "), " ")
}

// FormatVerdict renders a validation outcome
func (f *Formatter) FormatVerdict(verdict types.ValidationVerdict) string {
	if verdict.Valid {
		return f.good.Sprint("✓ query passes the safety checks")
	}

	return f.bad.Sprint("✗ rejected: ") + verdict.Reason
}

// FormatCacheStats renders cache statistics
func (f *Formatter) FormatCacheStats(stats *cache.Stats) string {
	if stats == nil {
		return "No cache statistics available"
	}

	lines := []string{
		f.heading.Sprint("Response cache"),
		fmt.Sprintf("  Backend:  %s", stats.Backend),
		fmt.Sprintf("  Entries:  %d", stats.TotalEntries),
	}

	if stats.TotalSize > 0 {
		lines = append(lines, fmt.Sprintf("  Size:     %s", humanizeBytes(stats.TotalSize)))
	}

	lines = append(lines, fmt.Sprintf("  Hit rate: %.1f%% (%d hits, %d misses)",
		stats.HitRate*100, stats.Hits, stats.Misses))

	return strings.Join(lines, "\n")
}

// humanizeAge converts a time to a human-readable age string
func (f *Formatter) humanizeAge(t time.Time) string {
	if t.IsZero() {
		return "?"
	}

	d := f.now().Sub(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < 2*time.Minute:
		return "1 minute ago"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 2*time.Hour:
		return "1 hour ago"
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}

func humanizeBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

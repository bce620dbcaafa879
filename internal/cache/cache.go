package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/kyleking/hr-insight/internal/types"
)

// DefaultTTL applies when Put is called with a non-positive ttl and the
// backend has no configured default.
const DefaultTTL = 30 * time.Minute

// Cache stores answered responses by request fingerprint. Expired entries
// are reported as absent.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*types.Response, bool)
	Put(ctx context.Context, fingerprint string, payload *types.Response, ttl time.Duration) error
}

// Store is a Cache that can also be inspected and emptied
type Store interface {
	Cache
	Clear(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// Clock supplies the current time for expiry checks
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

// Entry is one stored response and its expiry
type Entry struct {
	Fingerprint string          `json:"fingerprint"`
	Payload     *types.Response `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Stats represents cache statistics
type Stats struct {
	Backend      string  `json:"backend"`
	TotalEntries int64   `json:"total_entries"`
	TotalSize    int64   `json:"total_size,omitempty"`
	HitRate      float64 `json:"hit_rate"`
	MissRate     float64 `json:"miss_rate"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
}

func (s *Stats) computeRates() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
		s.MissRate = float64(s.Misses) / float64(total)
	}
}

// Fingerprint derives the cache key for a question asked over a set of
// tables with the given (already trimmed) history. Case, spacing and
// trailing punctuation in the question do not change the key, nor does the
// order of tables.
func Fingerprint(question string, tables []string, history []types.Message) string {
	parts := []string{
		normalizeQuestion(question),
		strings.Join(normalizeTables(tables), ","),
		historyDigest(history),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))

	return hex.EncodeToString(sum[:])
}

func normalizeQuestion(question string) string {
	q := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return strings.TrimRight(q, "?!. ")
}

func normalizeTables(tables []string) []string {
	seen := make(map[string]bool, len(tables))
	out := make([]string, 0, len(tables))

	for _, t := range tables {
		name := strings.ToLower(strings.TrimSpace(t))
		if name == "" || seen[name] {
			continue
		}

		seen[name] = true
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

func historyDigest(history []types.Message) string {
	h := sha256.New()
	for _, m := range history {
		h.Write([]byte(m.Role))
		h.Write([]byte{0x1f})
		h.Write([]byte(m.Content))
		h.Write([]byte{0x1e})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// clonePayload copies a response so cached values are isolated from callers
func clonePayload(r *types.Response) *types.Response {
	if r == nil {
		return nil
	}

	out := *r
	out.FollowUps = cloneStrings(r.FollowUps)
	out.Summary.Columns = cloneStrings(r.Summary.Columns)
	out.Summary.Preview = cloneRows(r.Summary.Preview)

	out.Chart.Labels = cloneStrings(r.Chart.Labels)
	if r.Chart.Series != nil {
		out.Chart.Series = make([]types.Series, len(r.Chart.Series))
		for i, s := range r.Chart.Series {
			if s.Values != nil {
				s.Values = append(make([]float64, 0, len(s.Values)), s.Values...)
			}
			s.PointColors = cloneStrings(s.PointColors)
			out.Chart.Series[i] = s
		}
	}

	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}

	return append(make([]string, 0, len(in)), in...)
}

func cloneRows(in []types.Row) []types.Row {
	if in == nil {
		return nil
	}

	out := make([]types.Row, len(in))
	for i, row := range in {
		cp := make(types.Row, len(row))
		for k, v := range row {
			cp[k] = v
		}

		out[i] = cp
	}

	return out
}

// Disabled never stores anything
type Disabled struct{}

func (Disabled) Get(context.Context, string) (*types.Response, bool) { return nil, false }

func (Disabled) Put(context.Context, string, *types.Response, time.Duration) error { return nil }

func (Disabled) Clear(context.Context) error { return nil }

func (Disabled) GetStats(context.Context) (*Stats, error) { return &Stats{Backend: "none"}, nil }

func (Disabled) Close() error { return nil }

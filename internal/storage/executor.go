package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"

	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/logging"
	"github.com/kyleking/hr-insight/internal/types"
)

const (
	defaultMaxRows      = 1000
	defaultQueryTimeout = 15 * time.Second
)

// Options configures a read-only store handle
type Options struct {
	Driver          Driver
	DSN             string
	MaxRows         int
	QueryTimeout    time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *logging.Logger
}

// ExecutorOptions configures an Executor around an existing handle
type ExecutorOptions struct {
	Driver       Driver
	MaxRows      int
	QueryTimeout time.Duration
	// ReadOnlyTx runs every statement inside a read-only transaction
	ReadOnlyTx bool
	Logger     *logging.Logger
}

// Executor runs validated selection statements with a row cap and a
// statement timeout.
type Executor struct {
	db         *sql.DB
	driver     Driver
	maxRows    int
	timeout    time.Duration
	readOnlyTx bool
	logger     *logging.Logger
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// OpenReadOnly opens the configured store in read-only mode and verifies the
// connection.
func OpenReadOnly(ctx context.Context, opts Options) (*Executor, error) {
	dsn, err := readOnlyDSN(opts.Driver, opts.DSN, opts.QueryTimeout)
	if err != nil {
		return nil, hrerrors.Wrap(err, hrerrors.ErrTypeConfig, "invalid database location")
	}

	db, err := sql.Open(opts.Driver.sqlName(), dsn)
	if err != nil {
		return nil, hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, "failed to open database")
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, "failed to connect to database").
			WithSuggestion("Check database.path, or run 'hr-insight init --demo' to create a local database")
	}

	return NewExecutor(db, ExecutorOptions{
		Driver:       opts.Driver,
		MaxRows:      opts.MaxRows,
		QueryTimeout: opts.QueryTimeout,
		ReadOnlyTx:   opts.Driver == DriverPostgres,
		Logger:       opts.Logger,
	}), nil
}

// NewExecutor wraps an open handle. The caller is responsible for having
// opened it read-only.
func NewExecutor(db *sql.DB, opts ExecutorOptions) *Executor {
	e := &Executor{
		db:         db,
		driver:     opts.Driver,
		maxRows:    opts.MaxRows,
		timeout:    opts.QueryTimeout,
		readOnlyTx: opts.ReadOnlyTx,
		logger:     opts.Logger,
	}

	if e.maxRows <= 0 {
		e.maxRows = defaultMaxRows
	}

	if e.timeout <= 0 {
		e.timeout = defaultQueryTimeout
	}

	if e.logger == nil {
		e.logger = logging.NewNopLogger()
	}

	return e
}

// Driver returns the store kind behind this executor
func (e *Executor) Driver() Driver {
	return e.driver
}

// MaxRows returns the row cap
func (e *Executor) MaxRows() int {
	return e.maxRows
}

// Close releases the underlying handle
func (e *Executor) Close() error {
	if e.db == nil {
		return nil
	}

	return e.db.Close()
}

// Execute runs query and returns at most MaxRows rows. Extra rows are
// dropped and reported through ResultSet.Truncated.
func (e *Executor) Execute(ctx context.Context, query string) (*types.ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	statement := stripTrailingSemicolons(query)

	var q querier = e.db
	if e.readOnlyTx {
		tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return nil, e.executionError(ctx, err)
		}
		defer func() { _ = tx.Rollback() }()

		q = tx
	}

	rows, err := q.QueryContext(ctx, statement)
	if err != nil {
		return nil, e.executionError(ctx, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, e.executionError(ctx, err)
	}

	columns = uniqueColumns(columns)
	result := &types.ResultSet{Columns: columns, Rows: []types.Row{}}

	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, e.executionError(ctx, err)
		}

		row := make(types.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(raw[i])
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, e.executionError(ctx, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"rows":      len(result.Rows),
		"truncated": result.Truncated,
		"duration":  time.Since(start).String(),
	}).Debug("Query executed")

	return result, nil
}

func (e *Executor) executionError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return hrerrors.ExecutionFailed(fmt.Sprintf("statement timed out after %s", e.timeout), err)
	case errors.Is(ctx.Err(), context.Canceled):
		return hrerrors.ExecutionFailed("query canceled", err)
	default:
		return hrerrors.ExecutionFailed(err.Error(), err)
	}
}

// uniqueColumns suffixes repeated labels so every value keeps a map key
func uniqueColumns(columns []string) []string {
	used := make(map[string]bool, len(columns))
	next := make(map[string]int, len(columns))
	out := make([]string, len(columns))

	for i, col := range columns {
		name := col
		if used[name] {
			n := next[col]
			if n < 2 {
				n = 2
			}

			for used[col+"_"+strconv.Itoa(n)] {
				n++
			}

			name = col + "_" + strconv.Itoa(n)
			next[col] = n + 1
		}

		used[name] = true
		out[i] = name
	}

	return out
}

func stripTrailingSemicolons(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")
}

// normalizeValue maps driver-specific scalars onto plain Go values that
// survive JSON encoding.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return types.FormatTime(v)
	case *big.Int:
		if v == nil {
			return nil
		}
		if v.IsInt64() {
			return v.Int64()
		}
		f, _ := new(big.Float).SetInt(v).Float64()
		return f
	case duckdb.Decimal:
		return v.Float64()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case float32:
		return normalizeValue(float64(v))
	default:
		return v
	}
}

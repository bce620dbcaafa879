package storage

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// Driver names a supported analytics store
type Driver string

const (
	DriverDuckDB   Driver = "duckdb"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver accepts a configured driver name
func ParseDriver(name string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(name))); d {
	case DriverDuckDB, DriverSQLite, DriverPostgres:
		return d, nil
	case "":
		return DriverDuckDB, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", name)
	}
}

// sqlName is the database/sql driver registration name
func (d Driver) sqlName() string {
	switch d {
	case DriverSQLite:
		return "sqlite3"
	case DriverPostgres:
		return "pgx"
	default:
		return "duckdb"
	}
}

// Dialect is the SQL dialect name given to the query generator
func (d Driver) Dialect() string {
	switch d {
	case DriverSQLite:
		return "SQLite"
	case DriverPostgres:
		return "PostgreSQL"
	case DriverDuckDB:
		return "DuckDB"
	default:
		return "ANSI SQL"
	}
}

// SupportsMigrations reports whether init can create the schema locally
func (d Driver) SupportsMigrations() bool {
	return d == DriverDuckDB || d == DriverSQLite
}

// readOnlyDSN rewrites a configured location so the driver refuses writes
func readOnlyDSN(d Driver, dsn string, statementTimeout time.Duration) (string, error) {
	switch d {
	case DriverDuckDB:
		if dsn == "" || dsn == ":memory:" {
			return "", fmt.Errorf("duckdb read-only mode requires a database file")
		}

		// External access off stops replacement scans and file readers
		return appendQuery(dsn, "access_mode=READ_ONLY&enable_external_access=false"), nil

	case DriverSQLite:
		if dsn == "" || dsn == ":memory:" {
			return "", fmt.Errorf("sqlite read-only mode requires a database file")
		}

		if !strings.HasPrefix(dsn, "file:") {
			dsn = "file:" + dsn
		}

		return appendQuery(dsn, "mode=ro&_query_only=true&_busy_timeout=5000"), nil

	case DriverPostgres:
		ms := strconv.FormatInt(statementTimeout.Milliseconds(), 10)
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			u, err := url.Parse(dsn)
			if err != nil {
				return "", fmt.Errorf("invalid postgres url: %w", err)
			}

			q := u.Query()
			q.Set("default_transaction_read_only", "on")
			if statementTimeout > 0 {
				q.Set("statement_timeout", ms)
			}
			u.RawQuery = q.Encode()

			return u.String(), nil
		}

		parts := []string{strings.TrimSpace(dsn), "default_transaction_read_only=on"}
		if statementTimeout > 0 {
			parts = append(parts, "statement_timeout="+ms)
		}

		return strings.TrimSpace(strings.Join(parts, " ")), nil
	}

	return "", fmt.Errorf("unsupported database driver: %s", d)
}

func appendQuery(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}

	return dsn + "?" + params
}

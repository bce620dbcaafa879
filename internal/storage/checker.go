package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	hrerrors "github.com/kyleking/hr-insight/internal/errors"
)

// serializedStatements is the output shape of duckdb's json_serialize_sql
type serializedStatements struct {
	Error        bool              `json:"error"`
	ErrorType    string            `json:"error_type"`
	ErrorMessage string            `json:"error_message"`
	Statements   []json.RawMessage `json:"statements"`
}

// CheckStatement asks the store's own parser to confirm query is a single
// selection statement. A failure is reported as a validation rejection.
func (e *Executor) CheckStatement(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	statement := stripTrailingSemicolons(query)

	if e.driver == DriverDuckDB {
		return e.checkWithSerializer(ctx, statement)
	}

	return e.checkWithPrepare(ctx, statement)
}

// checkWithSerializer relies on json_serialize_sql refusing anything that is
// not a SELECT statement.
func (e *Executor) checkWithSerializer(ctx context.Context, statement string) error {
	var serialized string

	err := e.db.QueryRowContext(ctx, "SELECT CAST(json_serialize_sql(CAST(? AS VARCHAR)) AS VARCHAR)", statement).Scan(&serialized)
	if err != nil {
		return hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, "statement check failed")
	}

	var out serializedStatements
	if err := json.Unmarshal([]byte(serialized), &out); err != nil {
		return hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, "unreadable statement check result")
	}

	if out.Error {
		return hrerrors.ValidationRejected(fmt.Sprintf("store parser rejected the query: %s", out.ErrorMessage))
	}

	if len(out.Statements) != 1 {
		return hrerrors.ValidationRejected(fmt.Sprintf("expected exactly one statement, parser found %d", len(out.Statements)))
	}

	return nil
}

func (e *Executor) checkWithPrepare(ctx context.Context, statement string) error {
	var q querier = e.db
	if e.readOnlyTx {
		tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return hrerrors.Wrap(err, hrerrors.ErrTypeDatabase, "statement check failed")
		}
		defer func() { _ = tx.Rollback() }()

		q = tx
	}

	stmt, err := q.PrepareContext(ctx, statement)
	if err != nil {
		return hrerrors.ValidationRejected(fmt.Sprintf("store parser rejected the query: %v", err))
	}

	return stmt.Close()
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"math/big"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hrerrors "github.com/kyleking/hr-insight/internal/errors"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

func TestExecuteReturnsRows(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{Driver: DriverDuckDB})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, headcount FROM v")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "headcount"}).
			AddRow("Engineering", int64(12)).
			AddRow("Sales", int64(9)))

	result, err := exec.Execute(context.Background(), "SELECT name, headcount FROM v;")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "headcount"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Engineering", result.Rows[0]["name"])
	assert.Equal(t, int64(9), result.Rows[1]["headcount"])
	assert.False(t, result.Truncated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCapsRows(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{Driver: DriverDuckDB, MaxRows: 2})

	mock.ExpectQuery("SELECT n FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2).AddRow(3))

	result, err := exec.Execute(context.Background(), "SELECT n FROM t")
	require.NoError(t, err)

	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Truncated)
	assert.Equal(t, 2, exec.MaxRows())
}

func TestExecuteExactlyAtCapIsNotTruncated(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{MaxRows: 2})

	mock.ExpectQuery("SELECT n FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2))

	result, err := exec.Execute(context.Background(), "SELECT n FROM t")
	require.NoError(t, err)

	assert.Len(t, result.Rows, 2)
	assert.False(t, result.Truncated)
}

func TestExecuteEmptyResult(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{})

	mock.ExpectQuery("SELECT n FROM t").WillReturnRows(sqlmock.NewRows([]string{"n"}))

	result, err := exec.Execute(context.Background(), "SELECT n FROM t")
	require.NoError(t, err)

	assert.Equal(t, []string{"n"}, result.Columns)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
}

func TestExecuteDefaults(t *testing.T) {
	exec := NewExecutor(nil, ExecutorOptions{})

	assert.Equal(t, defaultMaxRows, exec.MaxRows())
	assert.Equal(t, defaultQueryTimeout, exec.timeout)
	assert.NoError(t, exec.Close())
}

func TestExecuteDuplicateColumns(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{})

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"name", "name", "name"}).AddRow("a", "b", "c"))

	result, err := exec.Execute(context.Background(), "SELECT d.name, e.name, x.name FROM d, e, x")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "name_2", "name_3"}, result.Columns)
	assert.Equal(t, "c", result.Rows[0]["name_3"])
}

func TestExecuteDuplicateColumnsKeepExistingSuffixes(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{})

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"a", "a_2", "a"}).AddRow(1, 2, 3))

	result, err := exec.Execute(context.Background(), "SELECT a, a AS a_2, a FROM t")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a_2", "a_3"}, result.Columns)
	assert.EqualValues(t, 1, result.Rows[0]["a"])
	assert.EqualValues(t, 2, result.Rows[0]["a_2"])
	assert.EqualValues(t, 3, result.Rows[0]["a_3"])
}

func TestUniqueColumns(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, uniqueColumns([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "a_2", "a_3"}, uniqueColumns([]string{"a", "a_2", "a"}))
	assert.Equal(t, []string{"a", "a_3", "a_2", "a_4"}, uniqueColumns([]string{"a", "a_3", "a", "a"}))
}

func TestExecuteNormalizesValues(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{})

	hired := time.Date(2021, time.March, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"title", "hired", "ratio", "missing"}).
			AddRow([]byte("Engineer"), hired, math.NaN(), nil))

	result, err := exec.Execute(context.Background(), "SELECT title, hired, ratio, missing FROM employees")
	require.NoError(t, err)

	row := result.Rows[0]
	assert.Equal(t, "Engineer", row["title"])
	assert.Equal(t, "2021-03-04", row["hired"])
	assert.Nil(t, row["ratio"])
	assert.Nil(t, row["missing"])
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, int64(42), normalizeValue(big.NewInt(42)))

	huge, _ := new(big.Int).SetString("100000000000000000000", 10)
	assert.InDelta(t, 1e20, normalizeValue(huge), 1)

	assert.Nil(t, normalizeValue(math.Inf(1)))
	assert.Equal(t, 1.5, normalizeValue(float32(1.5)))
	assert.Equal(t, true, normalizeValue(true))
	assert.Equal(t, "2024-01-02T03:04:05Z", normalizeValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestExecuteReadOnlyTransaction(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{Driver: DriverPostgres, ReadOnlyTx: true})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectRollback()

	result, err := exec.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.RowCount())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteMapsErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{})

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("Catalog Error: Table with name salaries does not exist"))

	_, err := exec.Execute(context.Background(), "SELECT * FROM salaries")
	require.Error(t, err)

	assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeExecution))
	assert.Contains(t, err.Error(), "salaries does not exist")
}

func TestExecuteTimesOut(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{QueryTimeout: 20 * time.Millisecond})

	mock.ExpectQuery("SELECT").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	_, err := exec.Execute(context.Background(), "SELECT n FROM slow")
	require.Error(t, err)

	assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeExecution))
	assert.Contains(t, err.Error(), "statement timed out after 20ms")
}

func TestExecuteCanceled(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{})

	mock.ExpectQuery("SELECT").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := exec.Execute(ctx, "SELECT n FROM slow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query canceled")
}

func TestCheckStatementWithSerializer(t *testing.T) {
	serializeQuery := regexp.QuoteMeta("SELECT CAST(json_serialize_sql(CAST(? AS VARCHAR)) AS VARCHAR)")

	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{"single select", `{"error":false,"statements":[{"node":{}}]}`, ""},
		{"parser error", `{"error":true,"error_type":"not implemented","error_message":"Only SELECT statements can be serialized to json!"}`, "store parser rejected the query: Only SELECT statements can be serialized to json!"},
		{"two statements", `{"error":false,"statements":[{},{}]}`, "expected exactly one statement, parser found 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMock(t)
			exec := NewExecutor(db, ExecutorOptions{Driver: DriverDuckDB})

			mock.ExpectQuery(serializeQuery).
				WithArgs("SELECT 1").
				WillReturnRows(sqlmock.NewRows([]string{"s"}).AddRow(tt.payload))

			err := exec.CheckStatement(context.Background(), "SELECT 1;")
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeValidationRejected))
			assert.Equal(t, tt.reason, hrerrors.UserMessage(err))
		})
	}
}

func TestCheckStatementWithPrepare(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{Driver: DriverSQLite})

	mock.ExpectPrepare(regexp.QuoteMeta("SELECT * FROM employees"))
	mock.ExpectPrepare("SELECT FROM").WillReturnError(errors.New(`near "FROM": syntax error`))

	assert.NoError(t, exec.CheckStatement(context.Background(), "SELECT * FROM employees"))

	err := exec.CheckStatement(context.Background(), "SELECT FROM")
	require.Error(t, err)
	assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeValidationRejected))
	assert.Contains(t, err.Error(), "syntax error")
}

func TestCheckStatementReadOnlyTransaction(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db, ExecutorOptions{Driver: DriverPostgres, ReadOnlyTx: true})

	mock.ExpectBegin()
	mock.ExpectPrepare("SELECT 1")
	mock.ExpectRollback()

	require.NoError(t, exec.CheckStatement(context.Background(), "SELECT 1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

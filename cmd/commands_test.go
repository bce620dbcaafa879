package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/hr-insight/internal/cache"
	"github.com/kyleking/hr-insight/internal/catalog"
	"github.com/kyleking/hr-insight/internal/config"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/query"
	"github.com/kyleking/hr-insight/internal/storage"
	"github.com/kyleking/hr-insight/internal/testutil"
)

func TestRunSchema(t *testing.T) {
	cat := catalog.Default()

	t.Run("all tables", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RunSchema(&buf, cat, nil))

		for _, name := range cat.Names() {
			assert.Contains(t, buf.String(), "Table: "+name)
		}
	})

	t.Run("scoped", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RunSchema(&buf, cat, []string{"Departments", "nope"}))

		assert.Contains(t, buf.String(), "Table: departments")
		assert.NotContains(t, buf.String(), "Table: employees")
	})

	t.Run("only unknown tables", func(t *testing.T) {
		var buf bytes.Buffer
		err := RunSchema(&buf, cat, []string{"payroll"})
		require.Error(t, err)
		assert.Equal(t, "unknown tables: payroll", hrerrors.UserMessage(err))
	})
}

func TestRunValidate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		sql        string
		tables     []string
		checkerErr error
		wantReason string
	}{
		{name: "passes", sql: "SELECT name FROM departments"},
		{name: "write statement", sql: "DELETE FROM employees", wantReason: "only read-only queries are allowed"},
		{name: "chained statement", sql: "SELECT 1; DROP TABLE employees", wantReason: "forbidden keyword: DROP"},
		{
			name:       "table outside allowlist",
			sql:        "SELECT COUNT(*) FROM employees",
			tables:     []string{"departments"},
			wantReason: "table not allowed: employees",
		},
		{
			name:       "store rejects",
			sql:        "SELECT name FROM departments",
			checkerErr: hrerrors.ValidationRejected("store reports a non-select statement"),
			wantReason: "store reports a non-select statement",
		},
		{
			name:       "store unavailable",
			sql:        "SELECT name FROM departments",
			checkerErr: errors.New("connection refused"),
			wantReason: "store could not verify the query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var checker query.StatementChecker

			mockChecker := &testutil.MockChecker{}
			if tt.checkerErr != nil {
				mockChecker.On("CheckStatement", mock.Anything, tt.sql).Return(tt.checkerErr).Once()
				checker = mockChecker
			}

			var buf bytes.Buffer
			err := RunValidate(ctx, &buf, tt.sql, tt.tables, checker)
			mockChecker.AssertExpectations(t)

			if tt.wantReason == "" {
				require.NoError(t, err)
				assert.Contains(t, buf.String(), "query passes the safety checks")

				return
			}

			require.Error(t, err)
			assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeValidationRejected))
			assert.Equal(t, tt.wantReason, hrerrors.UserMessage(err))
			assert.Contains(t, buf.String(), "rejected: "+tt.wantReason)
		})
	}
}

func TestRunInit(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite with demo data", func(t *testing.T) {
		cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "hr.db")}

		var buf bytes.Buffer
		require.NoError(t, RunInit(ctx, &buf, cfg, true))
		assert.Contains(t, buf.String(), "migration(s) to "+cfg.Path)
		assert.Contains(t, buf.String(), "Loaded demo data")

		buf.Reset()
		require.NoError(t, RunInit(ctx, &buf, cfg, false))
		assert.Contains(t, buf.String(), "already up to date")
	})

	t.Run("postgres is refused", func(t *testing.T) {
		cfg := config.DatabaseConfig{Driver: "postgres", Path: "postgres://localhost/hr"}

		err := RunInit(ctx, &bytes.Buffer{}, cfg, false)
		require.Error(t, err)
		assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeInvalidInput))
	})

	t.Run("unknown driver", func(t *testing.T) {
		err := RunInit(ctx, &bytes.Buffer{}, config.DatabaseConfig{Driver: "oracle"}, false)
		require.Error(t, err)
		assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeConfig))
	})
}

func TestInitializedStoreIsQueryable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hr.duckdb")

	require.NoError(t, RunInit(ctx, &bytes.Buffer{}, config.DatabaseConfig{Driver: "duckdb", Path: path}, true))

	exec, err := storage.OpenReadOnly(ctx, storage.Options{Driver: storage.DriverDuckDB, DSN: path})
	require.NoError(t, err)
	defer exec.Close()

	var buf bytes.Buffer
	require.NoError(t, RunValidate(ctx, &buf, "SELECT COUNT(*) FROM employees", nil, exec))
}

func TestRunConfigWithConfig(t *testing.T) {
	t.Run("masks secrets", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LLM.APIKey = "sk-test-1234567890abcd"
		cfg.Cache.Backend = "redis"
		cfg.Cache.RedisPassword = "hunter2"

		var buf bytes.Buffer
		require.NoError(t, RunConfigWithConfig(&buf, cfg))

		out := buf.String()
		assert.Contains(t, out, "Active Configuration:")
		assert.Contains(t, out, "Provider: openai")
		assert.Contains(t, out, "API Key: sk-t****abcd")
		assert.Contains(t, out, "Redis Address: localhost:6379")
		assert.NotContains(t, out, "sk-test-1234567890abcd")
		assert.NotContains(t, out, "hunter2")
		assert.NotContains(t, out, "Raw Configuration (JSON):")
	})

	t.Run("debug adds raw json without secrets", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Debug.Enabled = true
		cfg.LLM.APIKey = "sk-test-1234567890abcd"

		var buf bytes.Buffer
		require.NoError(t, RunConfigWithConfig(&buf, cfg))

		assert.Contains(t, buf.String(), "Raw Configuration (JSON):")
		assert.NotContains(t, buf.String(), "sk-test-1234567890abcd")
		assert.Contains(t, buf.String(), "API Key: sk-t****abcd")
	})

	t.Run("nil configuration", func(t *testing.T) {
		err := RunConfigWithConfig(&bytes.Buffer{}, nil)
		require.Error(t, err)
		assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeConfig))
	})
}

func TestCacheCommands(t *testing.T) {
	ctx := context.Background()

	store := cache.NewMemoryCache(time.Minute, time.Minute)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "fp", headcountResponse(), time.Minute))
	_, hit := store.Get(ctx, "fp")
	require.True(t, hit)

	var buf bytes.Buffer
	require.NoError(t, RunCacheStats(ctx, &buf, store))
	assert.Contains(t, buf.String(), "Entries:  1")
	assert.Contains(t, buf.String(), "1 hits, 0 misses")

	buf.Reset()
	require.NoError(t, RunCacheClear(ctx, &buf, store))
	assert.Equal(t, "Cache cleared\n", buf.String())

	_, hit = store.Get(ctx, "fp")
	assert.False(t, hit)
}

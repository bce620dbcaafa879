package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/hr-insight/internal/config"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/testutil"
)

// isolateEnv points every config location at a temporary home
func isolateEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvPrefix+"CONFIG", filepath.Join(home, "missing.json"))
	t.Setenv(config.EnvPrefix+"CACHE_BACKEND", "none")
	t.Setenv(config.EnvPrefix+"DB_PATH", filepath.Join(home, "hr.duckdb"))

	return home
}

func TestGetConfigFromContext(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Model = "custom-model"

	assert.Same(t, cfg, getConfigFromContext(withConfig(context.Background(), cfg)))

	fallback := getConfigFromContext(context.Background())
	require.NotNil(t, fallback)
	assert.Equal(t, "duckdb", fallback.Database.Driver)
	assert.NotContains(t, fallback.Cache.Directory, "~")
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
		excludes []string
	}{
		{
			name:     "generation failure shows the user message and suggestion",
			err:      hrerrors.GenerationFailed("openai reply did not call submit_hr_query", nil),
			contains: []string{"could not understand the question", "Try rephrasing"},
			excludes: []string{"submit_hr_query"},
		},
		{
			name:     "rejection reason is verbatim",
			err:      hrerrors.ValidationRejected("forbidden keyword: DROP"),
			contains: []string{"forbidden keyword: DROP"},
		},
		{
			name:     "execution failure hides store details",
			err:      hrerrors.ExecutionFailed("query execution failed", errors.New("Binder Error: column x")),
			contains: []string{"could not run that analysis"},
			excludes: []string{"Binder Error"},
		},
		{
			name:     "setup errors are shown in full",
			err:      hrerrors.Wrap(errors.New("permission denied"), hrerrors.ErrTypeDatabase, "failed to connect to database"),
			contains: []string{"failed to connect to database", "permission denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)

			out := buf.String()
			assert.Contains(t, out, "Error:")

			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}

			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestAppRegistersCommands(t *testing.T) {
	app := NewApp()

	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}

	assert.ElementsMatch(t, []string{"ask", "schema", "validate", "init", "config", "cache"}, names)
}

func TestAppRun(t *testing.T) {
	isolateEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), testutil.TestTimeout)
	defer cancel()

	t.Run("validate rejects a write", func(t *testing.T) {
		err := NewApp().Run(ctx, []string{"hr-insight", "validate", "DELETE FROM employees"})
		require.Error(t, err)
		assert.Equal(t, "only read-only queries are allowed", hrerrors.UserMessage(err))
	})

	t.Run("validate accepts a select", func(t *testing.T) {
		err := NewApp().Run(ctx, []string{"hr-insight", "validate", "--table", "departments", "SELECT name FROM departments"})
		require.NoError(t, err)
	})

	t.Run("ask needs a question", func(t *testing.T) {
		err := NewApp().Run(ctx, []string{"hr-insight", "ask"})
		require.Error(t, err)
		assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeInvalidInput))
	})

	t.Run("invalid provider flag", func(t *testing.T) {
		err := NewApp().Run(ctx, []string{"hr-insight", "--provider", "bogus", "schema"})
		require.Error(t, err)
		assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeConfig))
	})

	t.Run("init then validate against the store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hr.duckdb")

		require.NoError(t, NewApp().Run(ctx, []string{"hr-insight", "--db", path, "init", "--demo"}))
		require.NoError(t, NewApp().Run(ctx, []string{"hr-insight", "--db", path, "validate", "--parse", "SELECT COUNT(*) FROM employees"}))
	})
}

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// NewTestStore creates a temporary migrated store loaded with the demo
// dataset and returns a read-only executor over it. The store is removed
// when the test finishes.
func NewTestStore(t *testing.T, driver Driver) *Executor {
	t.Helper()

	return NewTestStoreWithOptions(t, driver, Options{})
}

// NewTestStoreWithOptions is NewTestStore with a custom row cap or timeout
func NewTestStoreWithOptions(t *testing.T, driver Driver, opts Options) *Executor {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hr."+string(driver))

	if _, err := Initialize(ctx, driver, path, true, nil); err != nil {
		t.Fatalf("failed to initialize test store: %v", err)
	}

	opts.Driver = driver
	opts.DSN = path
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 5 * time.Second
	}

	exec, err := OpenReadOnly(ctx, opts)
	if err != nil {
		t.Fatalf("failed to open test store read-only: %v", err)
	}

	t.Cleanup(func() {
		if err := exec.Close(); err != nil {
			t.Errorf("failed to close test store: %v", err)
		}
	})

	return exec
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/hr-insight/internal/cache"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/formatter"
	"github.com/kyleking/hr-insight/internal/logging"
)

func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the response cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show response cache statistics",
				Action: withCache(RunCacheStats),
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached response",
				Action: withCache(RunCacheClear),
			},
		},
	}
}

// withCache opens the configured cache for the duration of fn
func withCache(fn func(context.Context, io.Writer, cache.Store) error) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		cfg := getConfigFromContext(ctx)

		store, err := cache.New(cfg.Cache, logging.GetLogger())
		if err != nil {
			return hrerrors.Wrap(err, hrerrors.ErrTypeCache, "failed to open cache")
		}
		defer store.Close()

		return fn(ctx, os.Stdout, store)
	}
}

// RunCacheStats prints backend statistics
func RunCacheStats(ctx context.Context, w io.Writer, store cache.Store) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return hrerrors.Wrap(err, hrerrors.ErrTypeCache, "failed to read cache statistics")
	}

	fmt.Fprintln(w, formatter.NewFormatter().FormatCacheStats(stats))

	return nil
}

// RunCacheClear empties the cache
func RunCacheClear(ctx context.Context, w io.Writer, store cache.Store) error {
	if err := store.Clear(ctx); err != nil {
		return hrerrors.Wrap(err, hrerrors.ErrTypeCache, "failed to clear cache")
	}

	fmt.Fprintln(w, "Cache cleared")

	return nil
}

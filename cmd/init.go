package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/hr-insight/internal/config"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/logging"
	"github.com/kyleking/hr-insight/internal/storage"
)

func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the HR schema in a local database",
		Description: `Apply the schema migrations to the configured DuckDB or SQLite file.
PostgreSQL databases are provisioned separately and are not touched.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "demo", Usage: "load a small demo dataset"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return RunInit(ctx, os.Stdout, getConfigFromContext(ctx).Database, cmd.Bool("demo"))
		},
	}
}

// RunInit migrates the configured store and reports what was applied
func RunInit(ctx context.Context, w io.Writer, cfg config.DatabaseConfig, demo bool) error {
	driver, err := storage.ParseDriver(cfg.Driver)
	if err != nil {
		return hrerrors.NewConfigError(err.Error(), "database.driver")
	}

	applied, err := storage.Initialize(ctx, driver, cfg.Path, demo, logging.GetLogger())
	if err != nil {
		return err
	}

	if applied == 0 {
		fmt.Fprintf(w, "Schema at %s is already up to date\n", cfg.Path)
	} else {
		fmt.Fprintf(w, "Applied %d migration(s) to %s\n", applied, cfg.Path)
	}

	if demo {
		fmt.Fprintln(w, "Loaded demo data")
	}

	return nil
}

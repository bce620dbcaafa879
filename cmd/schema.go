package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/hr-insight/internal/catalog"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
)

func SchemaCommand() *cli.Command {
	return &cli.Command{
		Name:        "schema",
		Usage:       "Print the schema description sent to the model",
		Description: `Show the tables and columns the model may query. Without --table every table is listed.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "table", Usage: "only describe this table (repeatable)"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return RunSchema(os.Stdout, catalog.Default(), cmd.StringSlice("table"))
		},
	}
}

// RunSchema writes the schema context for the named tables, or for all of them
func RunSchema(w io.Writer, cat *catalog.Catalog, tables []string) error {
	ids := cat.Names()

	if len(tables) > 0 {
		ids = cat.Resolve(tables)
		if len(ids) == 0 {
			return hrerrors.Newf(hrerrors.ErrTypeInvalidInput, "unknown tables: %s", strings.Join(tables, ", "))
		}
	}

	_, err := fmt.Fprint(w, cat.BuildContext(ids))

	return err
}

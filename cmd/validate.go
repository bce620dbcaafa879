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
	"github.com/kyleking/hr-insight/internal/formatter"
	"github.com/kyleking/hr-insight/internal/logging"
	"github.com/kyleking/hr-insight/internal/query"
	"github.com/kyleking/hr-insight/internal/storage"
	"github.com/kyleking/hr-insight/internal/types"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check a SQL query against the safety rules",
		Description: `Run the same checks a generated query goes through before execution.

Examples:
  hr-insight validate "SELECT name FROM departments"
  hr-insight validate --table employees --parse "SELECT COUNT(*) FROM employees"`,
		ArgsUsage: " <sql>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "table", Usage: "allowed table (repeatable, default all)"},
			&cli.BoolFlag{Name: "parse", Usage: "also ask the configured store to parse the query"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sql := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if sql == "" {
				return hrerrors.New(hrerrors.ErrTypeInvalidInput, "expected a SQL query")
			}

			var checker query.StatementChecker

			if cmd.Bool("parse") {
				cfg := getConfigFromContext(ctx)

				executor, err := storage.OpenFromConfig(ctx, cfg.Database, logging.GetLogger())
				if err != nil {
					return err
				}
				defer executor.Close()

				checker = executor
			}

			return RunValidate(ctx, os.Stdout, sql, cmd.StringSlice("table"), checker)
		},
	}
}

// RunValidate prints the verdict for sql and returns a rejection error when it
// fails. A nil checker skips the store parse check.
func RunValidate(ctx context.Context, w io.Writer, sql string, tables []string, checker query.StatementChecker) error {
	cat := catalog.Default()

	allowed := cat.Names()
	if len(tables) > 0 {
		allowed = cat.Resolve(tables)
		if len(allowed) == 0 {
			return hrerrors.Newf(hrerrors.ErrTypeInvalidInput, "unknown tables: %s", strings.Join(tables, ", "))
		}
	}

	verdict := query.NewValidator().Validate(sql, allowed)

	if verdict.Valid && checker != nil {
		if err := checker.CheckStatement(ctx, sql); err != nil {
			verdict = types.Reject("store could not verify the query")
			if hrerrors.IsType(err, hrerrors.ErrTypeValidationRejected) {
				verdict = types.Reject(hrerrors.UserMessage(err))
			}
		}
	}

	fmt.Fprintln(w, formatter.NewFormatter().FormatVerdict(verdict))

	if !verdict.Valid {
		return hrerrors.ValidationRejected(verdict.Reason)
	}

	return nil
}

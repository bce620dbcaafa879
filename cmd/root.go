package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/hr-insight/internal/config"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/logging"
)

type contextKey string

const configKey contextKey = "config"

// overrideFlags are the global flags forwarded to the config loader
var overrideFlags = []string{"config", "db", "provider", "model", "log-level"}

// NewApp builds the root command
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "hr-insight",
		Usage: "Ask questions about your HR data in plain language",
		Description: `hr-insight turns a natural-language question into a single read-only SQL query,
checks it against the HR schema, runs it on a local or remote analytics store and
explains the result with a chart suggestion and follow-up questions.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a JSON config file"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging and metric snapshots"},
			&cli.StringFlag{Name: "log-level", Usage: "log level (debug, info, warn, error)"},
			&cli.StringFlag{Name: "provider", Usage: "completion provider (openai, anthropic, ollama)"},
			&cli.StringFlag{Name: "model", Usage: "model name for the completion provider"},
			&cli.StringFlag{Name: "db", Usage: "database path or connection string"},
		},
		Before: loadConfig,
		After: func(context.Context, *cli.Command) error {
			_ = logging.GetLogger().Close()
			return nil
		},
		Commands: []*cli.Command{
			AskCommand(),
			SchemaCommand(),
			ValidateCommand(),
			InitCommand(),
			ConfigCommand(),
			CacheCommand(),
		},
	}
}

// Execute runs the CLI against os.Args
func Execute() error {
	err := NewApp().Run(context.Background(), os.Args)
	if err != nil {
		printError(os.Stderr, err)
	}

	return err
}

func loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	overrides := make(map[string]interface{})

	for _, name := range overrideFlags {
		if cmd.IsSet(name) {
			overrides[name] = cmd.String(name)
		}
	}

	if cmd.Bool("debug") {
		overrides["debug"] = true
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		return ctx, hrerrors.Wrap(err, hrerrors.ErrTypeConfig, "failed to load configuration")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return ctx, hrerrors.Wrap(err, hrerrors.ErrTypeFileSystem, "failed to prepare directories")
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
		logging.Warnf("Falling back to default logger: %v", err)
	}

	return withConfig(ctx, cfg), nil
}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// getConfigFromContext returns the loaded configuration, or defaults when the
// root hook did not run.
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok && cfg != nil {
		return cfg
	}

	cfg := config.DefaultConfig()
	cfg.ExpandAllPaths()

	return cfg
}

// printError shows pipeline failures by their user message and everything
// else, such as setup and store errors, in full.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)

	message := err.Error()

	switch hrerrors.GetType(err) {
	case hrerrors.ErrTypeGeneration, hrerrors.ErrTypeValidationRejected,
		hrerrors.ErrTypeExecution, hrerrors.ErrTypeInvalidInput:
		message = hrerrors.UserMessage(err)
	}

	fmt.Fprintf(w, "%s %s\n", red.Sprint("Error:"), message)

	var structErr *hrerrors.Error
	if errors.As(err, &structErr) {
		for _, s := range structErr.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

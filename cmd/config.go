package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/hr-insight/internal/config"
	"github.com/kyleking/hr-insight/internal/errors"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Usage:       "Display the active configuration",
		Description: `Show the current active configuration including all settings from file, environment variables, and command-line flags. Secrets are masked.`,
		Action:      runConfig,
	}
}

func runConfig(ctx context.Context, _ *cli.Command) error {
	return RunConfigWithConfig(os.Stdout, getConfigFromContext(ctx))
}

// RunConfigWithConfig prints a redacted view of cfg
func RunConfigWithConfig(w io.Writer, cfg *config.Config) error {
	if cfg == nil {
		return errors.NewConfigError("failed to load configuration", "")
	}

	cfg = cfg.Redacted()

	fmt.Fprintln(w, "====================")
	fmt.Fprintln(w, "Active Configuration:")

	fmt.Fprintln(w, "\nDatabase:")
	fmt.Fprintf(w, "  Driver: %s\n", cfg.Database.Driver)
	fmt.Fprintf(w, "  Path: %s\n", cfg.Database.Path)
	fmt.Fprintf(w, "  Max Connections: %d\n", cfg.Database.MaxConnections)
	fmt.Fprintf(w, "  Query Timeout: %s\n", cfg.Database.QueryTimeout)
	fmt.Fprintf(w, "  Max Rows: %d\n", cfg.Database.MaxRows)
	fmt.Fprintf(w, "  Verify With Parser: %t\n", cfg.Database.VerifyWithParser)

	fmt.Fprintln(w, "\nLLM:")
	fmt.Fprintf(w, "  Provider: %s\n", cfg.LLM.Provider)
	fmt.Fprintf(w, "  Model: %s\n", cfg.LLM.Model)

	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = "(not set)"
	}

	fmt.Fprintf(w, "  API Key: %s\n", apiKey)

	if cfg.LLM.BaseURL != "" {
		fmt.Fprintf(w, "  Base URL: %s\n", cfg.LLM.BaseURL)
	}

	fmt.Fprintf(w, "  Timeout: %s\n", cfg.LLM.Timeout)
	fmt.Fprintf(w, "  Temperature: %.2f\n", cfg.LLM.Temperature)
	fmt.Fprintf(w, "  Max History Messages: %d\n", cfg.LLM.MaxHistoryMessages)

	fmt.Fprintln(w, "\nCache:")
	fmt.Fprintf(w, "  Backend: %s\n", cfg.Cache.Backend)

	switch cfg.Cache.Backend {
	case "file":
		fmt.Fprintf(w, "  Directory: %s\n", cfg.Cache.Directory)
		fmt.Fprintf(w, "  Max Size: %d MB\n", cfg.Cache.MaxSizeMB)
	case "redis":
		fmt.Fprintf(w, "  Redis Address: %s\n", cfg.Cache.RedisAddr)
		fmt.Fprintf(w, "  Redis DB: %d\n", cfg.Cache.RedisDB)
	}

	fmt.Fprintf(w, "  TTL: %s\n", cfg.Cache.TTL)

	fmt.Fprintln(w, "\nLogging:")
	fmt.Fprintf(w, "  Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "  Output: %s\n", cfg.Logging.Output)

	if cfg.Logging.Output == "file" {
		fmt.Fprintf(w, "  File: %s\n", cfg.Logging.File)
		fmt.Fprintf(w, "  Max Size: %d MB\n", cfg.Logging.MaxSizeMB)
		fmt.Fprintf(w, "  Max Backups: %d\n", cfg.Logging.MaxBackups)
		fmt.Fprintf(w, "  Max Age: %d days\n", cfg.Logging.MaxAgeDays)
	}

	fmt.Fprintf(w, "  Add Source: %t\n", cfg.Logging.AddSource)

	fmt.Fprintln(w, "\nTracing:")
	fmt.Fprintf(w, "  Enabled: %t\n", cfg.Tracing.Enabled)

	if cfg.Tracing.Enabled {
		fmt.Fprintf(w, "  Endpoint: %s\n", cfg.Tracing.Endpoint)
		fmt.Fprintf(w, "  Sample Ratio: %.2f\n", cfg.Tracing.SampleRatio)
	}

	fmt.Fprintln(w, "\nDebug:")
	fmt.Fprintf(w, "  Enabled: %t\n", cfg.Debug.Enabled)
	fmt.Fprintf(w, "  Verbose: %t\n", cfg.Debug.Verbose)

	// Show raw JSON if debug is enabled
	if cfg.Debug.Enabled {
		fmt.Fprintln(w, "\nRaw Configuration (JSON):")
		fmt.Fprintln(w, "==========================")

		jsonData, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}

		fmt.Fprintln(w, string(jsonData))
	}

	return nil
}

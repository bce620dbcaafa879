package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/hr-insight/internal/cache"
	"github.com/kyleking/hr-insight/internal/config"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/formatter"
	"github.com/kyleking/hr-insight/internal/llm"
	"github.com/kyleking/hr-insight/internal/logging"
	"github.com/kyleking/hr-insight/internal/metrics"
	"github.com/kyleking/hr-insight/internal/pipeline"
	"github.com/kyleking/hr-insight/internal/storage"
	"github.com/kyleking/hr-insight/internal/tracing"
	"github.com/kyleking/hr-insight/internal/types"
)

// Asker answers a single question
type Asker interface {
	Ask(ctx context.Context, req types.GenerationRequest) (*types.Response, error)
}

// AskOptions holds the ask command flags
type AskOptions struct {
	Tables      []string
	HistoryFile string
	JSON        bool
	NoCache     bool
	ShowSQL     bool
}

func (o AskOptions) format() formatter.OutputFormat {
	if o.JSON {
		return formatter.FormatJSON
	}

	return formatter.FormatText
}

func AskCommand() *cli.Command {
	return &cli.Command{
		Name:  "ask",
		Usage: "Answer a question about HR data",
		Description: `Generate a read-only query for the question, validate it, run it and explain the result.

Examples:
  hr-insight ask "How many employees are in each department?"
  hr-insight ask --table employees --table compensation_history "What is the average raise by level?"
  hr-insight ask --history chat.json "And how did that change last year?"`,
		ArgsUsage: " <question>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "table", Usage: "restrict the query to this table (repeatable)"},
			&cli.StringFlag{Name: "history", Usage: "JSON file with prior conversation messages"},
			&cli.BoolFlag{Name: "json", Usage: "print the response as JSON"},
			&cli.BoolFlag{Name: "no-cache", Usage: "skip the response cache"},
			&cli.BoolFlag{Name: "show-sql", Usage: "print the generated SQL"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if question == "" {
				return hrerrors.New(hrerrors.ErrTypeInvalidInput, "expected a question")
			}

			opts := AskOptions{
				Tables:      cmd.StringSlice("table"),
				HistoryFile: cmd.String("history"),
				JSON:        cmd.Bool("json"),
				NoCache:     cmd.Bool("no-cache"),
				ShowSQL:     cmd.Bool("show-sql"),
			}

			return runAsk(ctx, question, opts)
		},
	}
}

func runAsk(ctx context.Context, question string, opts AskOptions) error {
	cfg := getConfigFromContext(ctx)
	logger := logging.GetLogger()

	history, err := readHistory(opts.HistoryFile)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg, opts.NoCache, logger)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	req := types.GenerationRequest{
		Question:      question,
		AllowedTables: opts.Tables,
		History:       history,
	}

	err = RunAskWithEngine(ctx, os.Stdout, rt.engine, req, opts)

	if cfg.Debug.Enabled {
		rt.logMetrics(logger)
	}

	return err
}

// RunAskWithEngine asks one question and writes the rendered response to w
func RunAskWithEngine(ctx context.Context, w io.Writer, engine Asker, req types.GenerationRequest, opts AskOptions) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr),
		spinner.WithSuffix(" Working on it..."),
	)
	s.Start()

	resp, err := engine.Ask(ctx, req)

	s.Stop()

	if err != nil {
		return err
	}

	out, err := formatter.NewFormatter(formatter.WithSQL(opts.ShowSQL)).FormatResponse(resp, opts.format())
	if err != nil {
		return hrerrors.Wrap(err, hrerrors.ErrTypeInternal, "failed to format response")
	}

	_, err = fmt.Fprintln(w, out)

	return err
}

// readHistory loads prior conversation turns from a JSON array of messages
func readHistory(path string) ([]types.Message, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hrerrors.Wrapf(err, hrerrors.ErrTypeInvalidInput, "cannot read history file %s", path)
	}

	var history []types.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, hrerrors.Wrapf(err, hrerrors.ErrTypeInvalidInput, "history file %s is not a JSON list of messages", path)
	}

	return history, nil
}

// askRuntime owns the collaborators behind one pipeline engine
type askRuntime struct {
	engine   *pipeline.Engine
	executor *storage.Executor
	store    cache.Store
	registry *prometheus.Registry
	shutdown tracing.Shutdown
}

func newRuntime(ctx context.Context, cfg *config.Config, noCache bool, logger *logging.Logger) (*askRuntime, error) {
	executor, err := storage.OpenFromConfig(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rt := &askRuntime{executor: executor}

	client, err := llm.NewClient(llm.ConfigFromSettings(cfg.LLM, executor.Driver().Dialect()))
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	if noCache {
		rt.store = cache.Disabled{}
	} else {
		rt.store, err = cache.New(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Response cache unavailable, continuing without it")
			rt.store = cache.Disabled{}
		}
	}

	registry, m, err := metrics.NewRegistry()
	if err != nil {
		rt.Close(ctx)
		return nil, hrerrors.Wrap(err, hrerrors.ErrTypeInternal, "failed to register metrics")
	}

	rt.registry = registry

	tp, shutdown, err := tracing.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	rt.shutdown = shutdown

	opts := pipeline.Options{
		Generator:      client,
		Executor:       executor,
		Cache:          rt.store,
		CacheTTL:       cfg.Cache.TTLDuration(),
		MaxHistory:     cfg.LLM.MaxHistoryMessages,
		Logger:         logger,
		Metrics:        m,
		TracerProvider: tp,
	}

	if cfg.Database.VerifyWithParser {
		opts.Checker = executor
	}

	rt.engine, err = pipeline.New(opts)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	return rt, nil
}

func (rt *askRuntime) logMetrics(logger *logging.Logger) {
	if rt.registry == nil {
		return
	}

	snapshot, err := metrics.Snapshot(rt.registry)
	if err != nil {
		logger.WithError(err).Debug("Failed to gather metrics")
		return
	}

	fields := make(map[string]interface{}, len(snapshot))
	for name, value := range snapshot {
		fields[name] = value
	}

	logger.WithFields(fields).Debug("Pipeline metrics")
}

func (rt *askRuntime) Close(ctx context.Context) {
	if rt.shutdown != nil {
		if err := rt.shutdown(ctx); err != nil {
			logging.GetLogger().WithError(err).Warn("Failed to flush traces")
		}
	}

	if rt.store != nil {
		_ = rt.store.Close()
	}

	if rt.executor != nil {
		_ = rt.executor.Close()
	}
}

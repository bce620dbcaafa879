// Package pipeline answers one HR question end to end: cache lookup,
// generation, validation, execution and rendering.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kyleking/hr-insight/internal/cache"
	"github.com/kyleking/hr-insight/internal/catalog"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/llm"
	"github.com/kyleking/hr-insight/internal/logging"
	"github.com/kyleking/hr-insight/internal/metrics"
	"github.com/kyleking/hr-insight/internal/query"
	"github.com/kyleking/hr-insight/internal/tracing"
	"github.com/kyleking/hr-insight/internal/types"
)

// PreviewRows is how many result rows a response keeps
const PreviewRows = 5

// DefaultMaxHistory bounds the conversation turns sent to the model
const DefaultMaxHistory = 6

// QueryValidator is the pure safety check
type QueryValidator interface {
	Validate(sql string, allowedTables []string) types.ValidationVerdict
}

// Executor runs validated queries against the read-only store
type Executor interface {
	Execute(ctx context.Context, sql string) (*types.ResultSet, error)
}

// Options wires an Engine. Generator and Executor are required.
type Options struct {
	Catalog   *catalog.Catalog
	Generator llm.Generator
	Validator QueryValidator
	Executor  Executor
	// Checker is the store parse check; nil skips it
	Checker    query.StatementChecker
	Cache      cache.Cache
	CacheTTL   time.Duration
	MaxHistory int
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
	// TracerProvider defaults to a no-op provider
	TracerProvider trace.TracerProvider
	Now            func() time.Time
}

// Engine runs questions through the pipeline. It holds no per-request state
// and is safe for concurrent use when its collaborators are.
type Engine struct {
	catalog    *catalog.Catalog
	generator  llm.Generator
	validator  QueryValidator
	executor   Executor
	checker    query.StatementChecker
	cache      cache.Cache
	cacheTTL   time.Duration
	maxHistory int
	logger     *logging.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// New validates opts and fills in defaults
func New(opts Options) (*Engine, error) {
	if opts.Generator == nil {
		return nil, hrerrors.New(hrerrors.ErrTypeConfig, "pipeline requires a query generator")
	}

	if opts.Executor == nil {
		return nil, hrerrors.New(hrerrors.ErrTypeConfig, "pipeline requires a query executor")
	}

	e := &Engine{
		catalog:    opts.Catalog,
		generator:  opts.Generator,
		validator:  opts.Validator,
		executor:   opts.Executor,
		checker:    opts.Checker,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		maxHistory: opts.MaxHistory,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}

	if e.catalog == nil {
		e.catalog = catalog.Default()
	}

	if e.validator == nil {
		e.validator = query.NewValidator()
	}

	if e.cache == nil {
		e.cache = cache.Disabled{}
	}

	if e.cacheTTL <= 0 {
		e.cacheTTL = cache.DefaultTTL
	}

	if e.maxHistory <= 0 {
		e.maxHistory = DefaultMaxHistory
	}

	if e.logger == nil {
		e.logger = logging.NewNopLogger()
	}

	if e.now == nil {
		e.now = time.Now
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	e.tracer = tp.Tracer(tracing.InstrumentationName)

	return e, nil
}

// Ask answers one question. Generation, validation and execution failures
// stop the run with a typed error and nothing is cached.
func (e *Engine) Ask(ctx context.Context, req types.GenerationRequest) (*types.Response, error) {
	requestID := uuid.NewString()
	logger := e.logger.WithField("request_id", requestID)
	started := time.Now()

	ctx, span := e.tracer.Start(ctx, "ask", trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	resp, err := e.ask(ctx, logger, requestID, req)

	outcome := outcomeFor(resp, err)
	e.metrics.ObserveRequest(outcome)

	fields := map[string]interface{}{
		"outcome":     outcome,
		"duration_ms": time.Since(started).Milliseconds(),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, hrerrors.UserMessage(err))
		logger.WithFields(fields).WithError(err).Warn("Question failed")

		return nil, err
	}

	fields["rows"] = resp.RowsReturned
	fields["intent"] = resp.Intent.String()
	logger.WithFields(fields).Info("Question answered")

	return resp, nil
}

func (e *Engine) ask(ctx context.Context, logger *logging.Logger, requestID string, req types.GenerationRequest) (*types.Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, hrerrors.New(hrerrors.ErrTypeInvalidInput, "question must not be empty")
	}

	tables, err := e.resolveTables(req.AllowedTables)
	if err != nil {
		return nil, err
	}

	history := req.RecentHistory(e.maxHistory)
	fingerprint := cache.Fingerprint(question, tables, history)

	if cached := e.lookup(ctx, logger, fingerprint, tables); cached != nil {
		cached.RequestID = requestID
		cached.Cached = true

		return cached, nil
	}

	genReq := types.GenerationRequest{
		Question:      question,
		AllowedTables: tables,
		History:       history,
	}

	result, err := e.generate(ctx, logger, genReq)
	if err != nil {
		return nil, err
	}

	if err := e.validate(ctx, logger, result.Query, tables); err != nil {
		return nil, err
	}

	rs, err := e.execute(ctx, logger, result)
	if err != nil {
		return nil, err
	}

	resp := e.render(ctx, requestID, question, result, rs)

	e.store(ctx, logger, fingerprint, resp)

	return resp, nil
}

// resolveTables maps the requested ids onto the catalog. No ids means the
// whole catalog.
func (e *Engine) resolveTables(ids []string) ([]string, error) {
	requested := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			requested = append(requested, id)
		}
	}

	if len(requested) == 0 {
		return e.catalog.Names(), nil
	}

	tables := e.catalog.Resolve(requested)
	if len(tables) == 0 {
		return nil, hrerrors.Newf(hrerrors.ErrTypeInvalidInput, "unknown tables: %s", strings.Join(requested, ", ")).
			WithSuggestion(fmt.Sprintf("Known tables: %s", strings.Join(e.catalog.Names(), ", ")))
	}

	return tables, nil
}

// lookup returns a cached response whose SQL still passes validation
func (e *Engine) lookup(ctx context.Context, logger *logging.Logger, fingerprint string, tables []string) *types.Response {
	span, done := e.stage(ctx, metrics.StageCacheGet)
	cached, hit := e.cache.Get(span, fingerprint)
	done(nil, attribute.Bool("cache.hit", hit))

	e.metrics.ObserveCacheLookup(hit)

	if !hit || cached == nil {
		logger.WithField("fingerprint", fingerprint).Debug("Cache miss")
		return nil
	}

	if err := e.validate(ctx, logger, cached.SQL, tables); err != nil {
		logger.WithError(err).Warn("Cached query no longer passes validation")
		return nil
	}

	logger.WithField("fingerprint", fingerprint).Debug("Cache hit")

	return cached
}

func (e *Engine) generate(ctx context.Context, logger *logging.Logger, req types.GenerationRequest) (*types.GenerationResult, error) {
	stageCtx, done := e.stage(ctx, metrics.StageGenerate)

	schemaContext := e.catalog.BuildContext(req.AllowedTables)

	result, err := e.generator.Generate(stageCtx, req, schemaContext)
	if err == nil && (result == nil || strings.TrimSpace(result.Query) == "" || !result.Intent.Valid()) {
		err = hrerrors.GenerationFailed("generator returned an incomplete result", nil)
	}

	if err != nil && !hrerrors.IsType(err, hrerrors.ErrTypeGeneration) {
		err = hrerrors.GenerationFailed("query generation failed", err)
	}

	if err != nil {
		done(err)
		return nil, err
	}

	done(nil, attribute.String("intent", result.Intent.String()))
	logger.WithFields(map[string]interface{}{
		"intent": result.Intent.String(),
		"sql":    result.Query,
	}).Debug("Query generated")

	return result, nil
}

// validate runs the pure checks and then the store parse check
func (e *Engine) validate(ctx context.Context, logger *logging.Logger, sql string, tables []string) error {
	stageCtx, done := e.stage(ctx, metrics.StageValidate)

	verdict := e.validator.Validate(sql, tables)
	if !verdict.Valid {
		err := hrerrors.ValidationRejected(verdict.Reason)
		logger.WithField("reason", verdict.Reason).Warn("Query rejected")
		done(err)

		return err
	}

	if e.checker != nil {
		if err := e.checker.CheckStatement(stageCtx, sql); err != nil {
			if !hrerrors.IsType(err, hrerrors.ErrTypeValidationRejected) {
				logger.WithError(err).Warn("Store parse check failed")
				err = hrerrors.ValidationRejected("store could not verify the query")
			} else {
				logger.WithField("reason", hrerrors.UserMessage(err)).Warn("Query rejected by store parser")
			}

			done(err)

			return err
		}
	}

	done(nil)

	return nil
}

func (e *Engine) execute(ctx context.Context, logger *logging.Logger, result *types.GenerationResult) (*types.ResultSet, error) {
	stageCtx, done := e.stage(ctx, metrics.StageExecute)

	rs, err := e.executor.Execute(stageCtx, result.Query)
	if err != nil {
		if !hrerrors.IsType(err, hrerrors.ErrTypeExecution) {
			err = hrerrors.ExecutionFailed("query execution failed", err)
		}

		logger.WithError(err).Error("Query execution failed")
		done(err)

		return nil, err
	}

	if rs == nil {
		rs = &types.ResultSet{Rows: []types.Row{}}
	}

	e.metrics.ObserveRows(rs.RowCount())
	done(nil, attribute.Int("rows", rs.RowCount()), attribute.Bool("truncated", rs.Truncated))

	return rs, nil
}

// store writes resp to the cache. Failures are logged and dropped.
func (e *Engine) store(ctx context.Context, logger *logging.Logger, fingerprint string, resp *types.Response) {
	stageCtx, done := e.stage(ctx, metrics.StageCachePut)

	err := e.cache.Put(stageCtx, fingerprint, resp, e.cacheTTL)
	done(err)

	if err != nil {
		logger.WithError(err).Warn("Failed to cache response")
	}
}

// stage opens a span for name and returns a finisher that records its
// duration, attributes and error status.
func (e *Engine) stage(ctx context.Context, name string) (context.Context, func(error, ...attribute.KeyValue)) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, name)

	return ctx, func(err error, attrs ...attribute.KeyValue) {
		if len(attrs) > 0 {
			span.SetAttributes(attrs...)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, hrerrors.UserMessage(err))
		}

		span.End()
		e.metrics.ObserveStage(name, time.Since(started))
	}
}

func outcomeFor(resp *types.Response, err error) string {
	if err == nil {
		if resp != nil && resp.Cached {
			return metrics.OutcomeCached
		}

		return metrics.OutcomeAnswered
	}

	switch hrerrors.GetType(err) {
	case hrerrors.ErrTypeInvalidInput:
		return metrics.OutcomeInvalidInput
	case hrerrors.ErrTypeGeneration:
		return metrics.OutcomeGenerationFailed
	case hrerrors.ErrTypeValidationRejected:
		return metrics.OutcomeValidationFailed
	case hrerrors.ErrTypeExecution:
		return metrics.OutcomeExecutionFailed
	default:
		return metrics.OutcomeInternalFailure
	}
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kyleking/hr-insight/internal/cache"
	"github.com/kyleking/hr-insight/internal/catalog"
	hrerrors "github.com/kyleking/hr-insight/internal/errors"
	"github.com/kyleking/hr-insight/internal/metrics"
	"github.com/kyleking/hr-insight/internal/testutil"
	"github.com/kyleking/hr-insight/internal/types"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type harness struct {
	engine    *Engine
	generator *testutil.MockGenerator
	executor  *testutil.MockExecutor
	checker   *testutil.MockChecker
	recorder  *tracetest.SpanRecorder
	registry  *prometheus.Registry
}

func newHarness(t *testing.T, store cache.Cache) *harness {
	t.Helper()

	h := &harness{
		generator: &testutil.MockGenerator{},
		executor:  &testutil.MockExecutor{},
		checker:   &testutil.MockChecker{},
		recorder:  tracetest.NewSpanRecorder(),
		registry:  prometheus.NewRegistry(),
	}

	m, err := metrics.New(h.registry)
	require.NoError(t, err)

	if store == nil {
		store = cache.NewMemoryCache(time.Minute, 0)
	}

	h.engine, err = New(Options{
		Catalog:        catalog.Default(),
		Generator:      h.generator,
		Executor:       h.executor,
		Checker:        h.checker,
		Cache:          store,
		CacheTTL:       time.Minute,
		MaxHistory:     2,
		Metrics:        m,
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.recorder)),
		Now:            func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	return h
}

func (h *harness) spanNames() []string {
	var names []string
	for _, s := range h.recorder.Ended() {
		names = append(names, s.Name())
	}

	return names
}

func (h *harness) metric(t *testing.T, key string) float64 {
	t.Helper()

	snap, err := metrics.Snapshot(h.registry)
	require.NoError(t, err)

	return snap[key]
}

func headcountRequest() types.GenerationRequest {
	return types.GenerationRequest{Question: testutil.TestQuestion}
}

func TestAskAnswersQuestion(t *testing.T) {
	h := newHarness(t, nil)

	h.generator.On("Generate", mock.Anything, mock.MatchedBy(func(req types.GenerationRequest) bool {
		return req.Question == testutil.TestQuestion && len(req.AllowedTables) == len(catalog.Default().Names())
	}), mock.MatchedBy(func(schema string) bool {
		return assert.Contains(t, schema, "Table: departments") && assert.Contains(t, schema, "Table: employees")
	})).Return(testutil.NewGenerationResult(), nil).Once()
	h.checker.On("CheckStatement", mock.Anything, testutil.TestHeadcountSQL).Return(nil)
	h.executor.On("Execute", mock.Anything, testutil.TestHeadcountSQL).Return(testutil.DepartmentHeadcount(), nil).Once()

	resp, err := h.engine.Ask(t.Context(), headcountRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, testutil.TestQuestion, resp.Question)
	assert.Equal(t, testutil.TestHeadcountSQL, resp.SQL)
	assert.Equal(t, types.IntentAggregation, resp.Intent)
	assert.Equal(t, "There are 2 departments, largest is Eng with 40 employees", resp.Analysis)
	assert.Equal(t, types.ChartBar, resp.Chart.Family)
	assert.Equal(t, []string{"Eng", "Sales"}, resp.Chart.Labels)
	assert.NotEmpty(t, resp.FollowUps)
	assert.Equal(t, 2, resp.RowsReturned)
	assert.False(t, resp.Truncated)
	assert.Equal(t, []string{"department", "count"}, resp.Summary.Columns)
	assert.Len(t, resp.Summary.Preview, 2)
	assert.False(t, resp.Cached)
	assert.Equal(t, fixedNow, resp.GeneratedAt)

	assert.Equal(t, []string{"cache.get", "generate", "validate", "execute", "render", "cache.put", "ask"}, h.spanNames())
	assert.InDelta(t, 1, h.metric(t, "hr_insight_requests_total{outcome=answered}"), 0)
	assert.InDelta(t, 1, h.metric(t, "hr_insight_cache_lookups_total{result=miss}"), 0)
	assert.InDelta(t, 1, h.metric(t, "hr_insight_rows_returned"), 0)

	h.generator.AssertExpectations(t)
	h.executor.AssertExpectations(t)
}

func TestAskReplaysFromCache(t *testing.T) {
	h := newHarness(t, nil)

	h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(testutil.NewGenerationResult(), nil).Once()
	h.checker.On("CheckStatement", mock.Anything, testutil.TestHeadcountSQL).Return(nil)
	h.executor.On("Execute", mock.Anything, testutil.TestHeadcountSQL).Return(testutil.DepartmentHeadcount(), nil).Once()

	first, err := h.engine.Ask(t.Context(), headcountRequest())
	require.NoError(t, err)

	// Same question modulo case, spacing and punctuation
	second, err := h.engine.Ask(t.Context(), types.GenerationRequest{Question: "  how many employees are in each   department "})
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.Equal(t, first.Chart, second.Chart)
	assert.False(t, first.Cached, "the first response is not mutated by the replay")

	h.generator.AssertNumberOfCalls(t, "Generate", 1)
	h.executor.AssertNumberOfCalls(t, "Execute", 1)
	// The replayed query is checked again
	h.checker.AssertNumberOfCalls(t, "CheckStatement", 2)

	assert.InDelta(t, 1, h.metric(t, "hr_insight_requests_total{outcome=cached}"), 0)
	assert.InDelta(t, 1, h.metric(t, "hr_insight_cache_lookups_total{result=hit}"), 0)
}

func TestAskIsSafeForConcurrentUse(t *testing.T) {
	h := newHarness(t, cache.Disabled{})

	h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(testutil.NewGenerationResult(), nil)
	h.checker.On("CheckStatement", mock.Anything, testutil.TestHeadcountSQL).Return(nil)
	h.executor.On("Execute", mock.Anything, testutil.TestHeadcountSQL).Return(testutil.DepartmentHeadcount(), nil)

	testutil.AssertNoRaces(t, func() {
		resp, err := h.engine.Ask(context.Background(), headcountRequest())
		if assert.NoError(t, err) {
			assert.Equal(t, "There are 2 departments, largest is Eng with 40 employees", resp.Analysis)
		}
	}, 8)

	assert.InDelta(t, 8, h.metric(t, "hr_insight_requests_total{outcome=answered}"), 0)
}

func TestAskRejectsUnsafeQuery(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		tables  []string
		reason  string
		checker error
	}{
		{
			name:   "chained statement",
			sql:    "SELECT department, COUNT(*) FROM employees; DROP TABLE employees;",
			reason: "forbidden keyword: DROP",
		},
		{
			name:   "write",
			sql:    "UPDATE employees SET salary = 0",
			reason: "only read-only queries are allowed",
		},
		{
			name:   "table outside the request",
			sql:    "SELECT d.name, COUNT(*) FROM employees e JOIN departments d ON d.department_id = e.department_id GROUP BY d.name",
			tables: []string{"employees"},
			reason: "table not allowed: departments",
		},
		{
			name:    "store parser rejection",
			sql:     "SELECT name FROM employees",
			reason:  "store parser rejected the query: syntax error",
			checker: hrerrors.ValidationRejected("store parser rejected the query: syntax error"),
		},
		{
			name:    "store parser unavailable",
			sql:     "SELECT name FROM employees",
			reason:  "store could not verify the query",
			checker: errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &testutil.MockCache{}
			store.On("Get", mock.Anything, mock.Anything).Return(nil, false)

			h := newHarness(t, store)

			h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
				Return(testutil.NewGenerationResult(testutil.WithQuery(tt.sql)), nil)
			h.checker.On("CheckStatement", mock.Anything, tt.sql).Return(tt.checker)

			req := headcountRequest()
			req.AllowedTables = tt.tables

			resp, err := h.engine.Ask(t.Context(), req)
			require.Error(t, err)
			assert.Nil(t, resp)

			assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeValidationRejected), "got %v", err)
			assert.Equal(t, tt.reason, hrerrors.UserMessage(err))

			h.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.InDelta(t, 1, h.metric(t, "hr_insight_requests_total{outcome=validation_rejected}"), 0)

			var validateSpan sdktrace.ReadOnlySpan
			for _, s := range h.recorder.Ended() {
				if s.Name() == "validate" {
					validateSpan = s
				}
			}

			require.NotNil(t, validateSpan)
			assert.Equal(t, codes.Error, validateSpan.Status().Code)
		})
	}
}

func TestAskScopesGenerationToRequestedTables(t *testing.T) {
	h := newHarness(t, nil)

	sql := "SELECT employment_status, COUNT(*) AS count FROM employees GROUP BY employment_status"

	h.generator.On("Generate", mock.Anything, mock.MatchedBy(func(req types.GenerationRequest) bool {
		return assert.Equal(t, []string{"employees"}, req.AllowedTables)
	}), mock.MatchedBy(func(schema string) bool {
		return !assert.ObjectsAreEqual("", schema) && assert.NotContains(t, schema, "Table: departments")
	})).Return(testutil.NewGenerationResult(testutil.WithQuery(sql)), nil)
	h.checker.On("CheckStatement", mock.Anything, sql).Return(nil)
	h.executor.On("Execute", mock.Anything, sql).Return(testutil.NewResultSet([]string{"employment_status", "count"},
		testutil.WithRow("active", int64(60)),
	), nil)

	resp, err := h.engine.Ask(t.Context(), types.GenerationRequest{
		Question:      "Headcount by status",
		AllowedTables: []string{"EMPLOYEES", "employees", "payroll"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.RowsReturned)
}

func TestAskTrimsHistory(t *testing.T) {
	h := newHarness(t, nil)

	history := []types.Message{
		{Role: types.RoleUser, Content: "one"},
		{Role: types.RoleAssistant, Content: "two"},
		{Role: types.RoleUser, Content: "three"},
		{Role: types.RoleAssistant, Content: "four"},
	}

	h.generator.On("Generate", mock.Anything, mock.MatchedBy(func(req types.GenerationRequest) bool {
		return assert.Equal(t, history[2:], req.History)
	}), mock.Anything).Return(testutil.NewGenerationResult(), nil)
	h.checker.On("CheckStatement", mock.Anything, mock.Anything).Return(nil)
	h.executor.On("Execute", mock.Anything, mock.Anything).Return(testutil.DepartmentHeadcount(), nil)

	_, err := h.engine.Ask(t.Context(), types.GenerationRequest{Question: testutil.TestQuestion, History: history})
	require.NoError(t, err)
}

func TestAskGenerationFailures(t *testing.T) {
	tests := []struct {
		name   string
		result *types.GenerationResult
		err    error
	}{
		{name: "typed failure", err: hrerrors.GenerationFailed("openai reply did not call submit_hr_query", nil)},
		{name: "untyped failure", err: errors.New("boom")},
		{name: "nil result", result: nil},
		{name: "blank query", result: testutil.NewGenerationResult(testutil.WithQuery("  "))},
		{name: "invalid intent", result: testutil.NewGenerationResult(testutil.WithIntent("forecast"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)

			h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(tt.result, tt.err)

			_, err := h.engine.Ask(t.Context(), headcountRequest())
			require.Error(t, err)
			assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeGeneration), "got %v", err)
			assert.Equal(t, "could not understand the question", hrerrors.UserMessage(err))

			h.checker.AssertNotCalled(t, "CheckStatement", mock.Anything, mock.Anything)
			h.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
		})
	}
}

func TestAskExecutionFailure(t *testing.T) {
	store := &testutil.MockCache{}
	store.On("Get", mock.Anything, mock.Anything).Return(nil, false)

	h := newHarness(t, store)

	h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(testutil.NewGenerationResult(), nil)
	h.checker.On("CheckStatement", mock.Anything, mock.Anything).Return(nil)
	h.executor.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("Binder Error: column not found"))

	_, err := h.engine.Ask(t.Context(), headcountRequest())
	require.Error(t, err)
	assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeExecution))
	assert.Equal(t, "could not run that analysis", hrerrors.UserMessage(err))
	assert.Contains(t, err.Error(), "Binder Error")

	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.InDelta(t, 1, h.metric(t, "hr_insight_requests_total{outcome=execution_failed}"), 0)
}

func TestAskIgnoresCacheWriteFailure(t *testing.T) {
	store := &testutil.MockCache{}
	store.On("Get", mock.Anything, mock.Anything).Return(nil, false)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, time.Minute).Return(errors.New("disk full"))

	h := newHarness(t, store)

	h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(testutil.NewGenerationResult(), nil)
	h.checker.On("CheckStatement", mock.Anything, mock.Anything).Return(nil)
	h.executor.On("Execute", mock.Anything, mock.Anything).Return(testutil.DepartmentHeadcount(), nil)

	resp, err := h.engine.Ask(t.Context(), headcountRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.RowsReturned)

	store.AssertExpectations(t)
}

func TestAskDropsInvalidCachedReplay(t *testing.T) {
	store := &testutil.MockCache{}
	store.On("Get", mock.Anything, mock.Anything).Return(&types.Response{SQL: "DELETE FROM employees"}, true)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	h := newHarness(t, store)

	h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(testutil.NewGenerationResult(), nil)
	h.checker.On("CheckStatement", mock.Anything, mock.Anything).Return(nil)
	h.executor.On("Execute", mock.Anything, mock.Anything).Return(testutil.DepartmentHeadcount(), nil)

	resp, err := h.engine.Ask(t.Context(), headcountRequest())
	require.NoError(t, err)
	assert.False(t, resp.Cached)

	h.generator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestAskEmptyResult(t *testing.T) {
	h := newHarness(t, nil)

	h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(testutil.NewGenerationResult(), nil)
	h.checker.On("CheckStatement", mock.Anything, mock.Anything).Return(nil)
	h.executor.On("Execute", mock.Anything, mock.Anything).Return(testutil.NewResultSet([]string{"department", "count"}), nil)

	resp, err := h.engine.Ask(t.Context(), headcountRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, resp.RowsReturned)
	assert.Contains(t, resp.Analysis, "There are 0 departments")
	assert.NotNil(t, resp.Chart.Labels)
	assert.NotNil(t, resp.Chart.Series)
	assert.Empty(t, resp.Chart.Labels)
}

func TestAskInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  types.GenerationRequest
	}{
		{name: "empty question", req: types.GenerationRequest{Question: "   "}},
		{name: "unknown tables only", req: types.GenerationRequest{Question: "headcount", AllowedTables: []string{"payroll"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)

			_, err := h.engine.Ask(t.Context(), tt.req)
			require.Error(t, err)
			assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeInvalidInput))

			h.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
			assert.InDelta(t, 1, h.metric(t, "hr_insight_requests_total{outcome=invalid_input}"), 0)
		})
	}
}

func TestAskPropagatesCancellation(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(t.Context())

	h.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, hrerrors.GenerationFailed("openai request failed", context.Canceled))

	_, err := h.engine.Ask(ctx, headcountRequest())
	require.Error(t, err)
	assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeGeneration))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Executor: &testutil.MockExecutor{}})
	require.Error(t, err)
	assert.True(t, hrerrors.IsType(err, hrerrors.ErrTypeConfig))

	_, err = New(Options{Generator: &testutil.MockGenerator{}})
	require.Error(t, err)

	engine, err := New(Options{Generator: &testutil.MockGenerator{}, Executor: &testutil.MockExecutor{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxHistory, engine.maxHistory)
	assert.Equal(t, cache.DefaultTTL, engine.cacheTTL)
}

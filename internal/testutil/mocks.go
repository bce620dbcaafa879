package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kyleking/hr-insight/internal/types"
)

// MockGenerator is a testify mock of llm.Generator
type MockGenerator struct {
	mock.Mock
}

// Generate records the call and returns the configured result
func (m *MockGenerator) Generate(ctx context.Context, req types.GenerationRequest, schemaContext string) (*types.GenerationResult, error) {
	args := m.Called(ctx, req, schemaContext)

	result, _ := args.Get(0).(*types.GenerationResult)

	return result, args.Error(1)
}

// MockExecutor is a testify mock of the read-only executor
type MockExecutor struct {
	mock.Mock
}

// Execute records the call and returns the configured result set
func (m *MockExecutor) Execute(ctx context.Context, sql string) (*types.ResultSet, error) {
	args := m.Called(ctx, sql)

	rs, _ := args.Get(0).(*types.ResultSet)

	return rs, args.Error(1)
}

// MockChecker is a testify mock of query.StatementChecker
type MockChecker struct {
	mock.Mock
}

// CheckStatement records the call and returns the configured error
func (m *MockChecker) CheckStatement(ctx context.Context, sql string) error {
	return m.Called(ctx, sql).Error(0)
}

// MockCache is a testify mock of cache.Cache
type MockCache struct {
	mock.Mock
}

// Get records the call and returns the configured payload
func (m *MockCache) Get(ctx context.Context, fingerprint string) (*types.Response, bool) {
	args := m.Called(ctx, fingerprint)

	resp, _ := args.Get(0).(*types.Response)

	return resp, args.Bool(1)
}

// Put records the call and returns the configured error
func (m *MockCache) Put(ctx context.Context, fingerprint string, payload *types.Response, ttl time.Duration) error {
	return m.Called(ctx, fingerprint, payload, ttl).Error(0)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clothai/clothai/internal/cache"
	"github.com/clothai/clothai/internal/store"
	"github.com/clothai/clothai/pkg/models"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type testStore struct {
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error { return s.pingErr }
func (s *testStore) GetTryCount(_ context.Context, _ string) (*models.DeviceTryCount, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) UpsertTryCount(_ context.Context, _ string, _ int) (*models.DeviceTryCount, error) {
	return nil, nil
}
func (s *testStore) ListTryCounts(_ context.Context) ([]models.DeviceTryCount, error) {
	return nil, nil
}

var _ store.Store = (*testStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type testCache struct {
	pingErr error
}

func (c *testCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *testCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *testCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *testCache) Ping(_ context.Context) error                                     { return c.pingErr }
func (c *testCache) SetExecutionResult(_ context.Context, _ string, _ cache.ExecutionResult, _ time.Duration) error {
	return nil
}
func (c *testCache) GetExecutionResult(_ context.Context, _ string) (*cache.ExecutionResult, bool, error) {
	return nil, false, nil
}
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*testCache)(nil)

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	h := healthHandler(&testStore{pingErr: errors.New("connection refused")}, &testCache{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{pingErr: errors.New("redis down")})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler_BothDegraded(t *testing.T) {
	h := healthHandler(
		&testStore{pingErr: errors.New("db down")},
		&testCache{pingErr: errors.New("redis down")},
	)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	// Clear all env vars that config.Load() requires
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "CLOTHAI_API_KEY",
		"FLOW_ID", "FLOW_API_KEY", "IMGBB_API_KEY",
	} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("CLOTHAI_API_KEY", "test-key")
	t.Setenv("FLOW_ID", "flow-123")
	t.Setenv("FLOW_API_KEY", "flow-key")
	t.Setenv("IMGBB_API_KEY", "imgbb-key")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}

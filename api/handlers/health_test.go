package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockHealthCheck 模拟健康检查
type mockHealthCheck struct {
	name string
	err  error
}

func (m *mockHealthCheck) Name() string { return m.name }

func (m *mockHealthCheck) Check(ctx context.Context) error { return m.err }

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	handler.RegisterCheck(&mockHealthCheck{name: "database", err: errors.New("down")})

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	// liveness 不运行检查
	assert.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Empty(t, status.Checks)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantHealth string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name: "all pass",
			checks: []HealthCheck{
				&mockHealthCheck{name: "database"},
				&mockHealthCheck{name: "redis"},
			},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name: "one fails",
			checks: []HealthCheck{
				&mockHealthCheck{name: "database"},
				&mockHealthCheck{name: "redis", err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(zap.NewNop())
			for _, c := range tt.checks {
				handler.RegisterCheck(c)
			}

			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var status HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			assert.Equal(t, tt.wantHealth, status.Status)
			assert.Len(t, status.Checks, len(tt.checks))
		})
	}
}

func TestHealthHandler_FailureMessage(t *testing.T) {
	handler := NewHealthHandler(nil)
	handler.RegisterCheck(NewFuncCheck("redis", func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	w := httptest.NewRecorder()
	handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	require.Contains(t, status.Checks, "redis")
	assert.Equal(t, "fail", status.Checks["redis"].Status)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleVersion("1.2.0", "2026-10-01", "abc123")(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "1.2.0", resp.Data["version"])
	assert.Equal(t, "abc123", resp.Data["git_commit"])
}

func TestFuncCheck(t *testing.T) {
	called := false
	check := NewFuncCheck("database", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.Equal(t, "database", check.Name())
	assert.NoError(t, check.Check(context.Background()))
	assert.True(t, called)
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/frogteam/frogteam/internal/ctxkeys"
	"github.com/frogteam/frogteam/internal/metrics"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler, mark("a"), mark("b"), mark("c")).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.TraceID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.True(t, strings.HasPrefix(generated, "req-"))
	assert.Equal(t, generated, seen)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "from-client")
	handler.ServeHTTP(w, req)
	assert.Equal(t, "from-client", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "from-client", seen)
}

func TestRecovery(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 其他 IP 有独立的配额
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	const secret = "pond-secret"
	var member string
	handler := JWTAuth(secret, []string{"/health"}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member, _ = ctxkeys.Member(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	valid := signToken(t, secret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "archie",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	expired := signToken(t, secret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	wrongKey := signToken(t, "other", jwt.SigningMethodHS256, jwt.RegisteredClaims{})
	wrongAlg := signToken(t, secret, jwt.SigningMethodHS512, jwt.RegisteredClaims{})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid token", "/api/v1/roster", "Bearer " + valid, http.StatusOK},
		{"skip path", "/health", "", http.StatusOK},
		{"missing header", "/api/v1/roster", "", http.StatusUnauthorized},
		{"not bearer", "/api/v1/roster", "Basic abc", http.StatusUnauthorized},
		{"expired", "/api/v1/roster", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "/api/v1/roster", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"wrong algorithm", "/api/v1/roster", "Bearer " + wrongAlg, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			member = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roster", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "archie", member)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/health", "/health"},
		{"/api/v1/history", "/api/v1/history"},
		{"/api/v1/history/stream", "/api/v1/history/stream"},
		{"/api/v1/history/0b7c2f1e-93aa-4f6e-8d3b-6c1f0e2a9d44", "/api/v1/history/:id"},
		{"/api/v1/history/0b7c2f1e-93aa-4f6e-8d3b-6c1f0e2a9d44/children", "/api/v1/history/:id/children"},
		{"/api/v1/conversations/42", "/api/v1/conversations/:id"},
		{"/api/v1/roster/reload", "/api/v1/roster/reload"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegisterer("frogteam_test", reg, zap.NewNop())

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := MetricsMiddleware(collector)(notFound)
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/api/v1/history/0b7c2f1e-93aa-4f6e-8d3b-6c1f0e2a9d44", nil))
	}

	expected := `
# HELP frogteam_test_http_requests_total Total number of HTTP requests
# TYPE frogteam_test_http_requests_total counter
frogteam_test_http_requests_total{method="GET",path="/api/v1/history/:id",status="4xx"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "frogteam_test_http_requests_total"))
}

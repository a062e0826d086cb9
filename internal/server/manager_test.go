package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	return cfg
}

func TestManager_StartAndShutdown(t *testing.T) {
	m := NewManager(okHandler(), testConfig(), zaptest.NewLogger(t))
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()), "idempotent")
	assert.False(t, m.IsRunning())

	err = m.Start()
	assert.ErrorContains(t, err, "closed")
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager(okHandler(), testConfig(), nil)
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.ErrorContains(t, m.Start(), "already started")
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager(okHandler(), testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + m.Addr() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, m.IsRunning())
}

func TestManager_RunFailsOnBusyPort(t *testing.T) {
	first := NewManager(okHandler(), testConfig(), nil)
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg := testConfig()
	cfg.Addr = first.Addr()
	second := NewManager(okHandler(), cfg, nil)
	assert.Error(t, second.Run(context.Background()))
}

func TestManager_AddrBeforeStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ":9999"
	m := NewManager(okHandler(), cfg, nil)
	assert.Equal(t, ":9999", m.Addr())
	assert.True(t, m.IsRunning())

	select {
	case <-m.Errors():
		t.Fatal("unexpected error")
	default:
	}
}

package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frogteam/frogteam/agent/persistence"
	"github.com/frogteam/frogteam/llm/budget"
	"github.com/frogteam/frogteam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	return Config{MaxQueueSize: 100, PersistThreshold: 50, AdmitBackoff: 5 * time.Millisecond}
}

func spec(id, question string) JobSpec {
	return JobSpec{ID: id, Type: JobMemberAssignment, Member: "Dev", Question: question, TokenEstimate: 10}
}

func echoHandler(ctx context.Context, s JobSpec, rt RuntimeContext) (string, error) {
	return "done: " + s.Question, nil
}

func shutdown(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
}

func TestQueue_SubmitAndWait(t *testing.T) {
	q := New(testConfig(), nil, RuntimeContext{},
		WithHandler(JobMemberAssignment, echoHandler),
		WithLogger(zaptest.NewLogger(t)),
	)
	defer shutdown(t, q)

	h, err := q.SubmitAssignment(context.Background(), "Arch", "Dev", "write tests", "conv-1", "parent-1", "web")
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID())
	assert.Equal(t, "conv-1", h.Spec().ConversationID)
	assert.False(t, h.Spec().Timestamp.IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "done: write tests", out)

	snap := q.Metrics()
	assert.Equal(t, 1, snap.RequestCount)
	assert.Equal(t, h.Spec().TokenEstimate, snap.TokenSum)
	assert.Equal(t, int64(1), snap.TotalProcessed)
	assert.Empty(t, q.Pending())

	submitted, completed, failed := q.Stats()
	assert.Equal(t, [3]int64{1, 1, 0}, [3]int64{submitted, completed, failed})
}

func TestQueue_RunsOneJobAtATimeInOrder(t *testing.T) {
	var (
		inflight, maxInflight atomic.Int32
		mu                    sync.Mutex
		order                 []string
	)
	handler := func(ctx context.Context, s JobSpec, rt RuntimeContext) (string, error) {
		n := inflight.Add(1)
		for {
			m := maxInflight.Load()
			if n <= m || maxInflight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		order = append(order, s.ID)
		mu.Unlock()
		inflight.Add(-1)
		return s.ID, nil
	}
	q := New(testConfig(), nil, RuntimeContext{}, WithHandler(JobMemberAssignment, handler))
	defer shutdown(t, q)

	var handles []*Handle
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		h, err := q.Submit(context.Background(), spec(id, id))
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, order)
	assert.Equal(t, int32(1), maxInflight.Load())
}

func TestQueue_Full(t *testing.T) {
	release := make(chan struct{})
	handler := func(ctx context.Context, s JobSpec, rt RuntimeContext) (string, error) {
		<-release
		return "", nil
	}
	cfg := testConfig()
	cfg.MaxQueueSize = 2
	q := New(cfg, nil, RuntimeContext{}, WithHandler(JobMemberAssignment, handler))
	defer shutdown(t, q)

	_, err := q.Submit(context.Background(), spec("1", "q"))
	require.NoError(t, err)
	_, err = q.Submit(context.Background(), spec("2", "q"))
	require.NoError(t, err)

	_, err = q.Submit(context.Background(), spec("3", "q"))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrQueueFull))
	assert.True(t, types.IsRetryable(err))
	close(release)
}

func TestQueue_StallsUntilWindowAdmits(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	window := budget.NewMetricsWindow(budget.Config{MaxRPM: 1, MaxTPM: 100000, Window: time.Minute},
		budget.WithClock(clock.Now))
	window.RecordUsage(5)

	q := New(testConfig(), window, RuntimeContext{}, WithHandler(JobMemberAssignment, echoHandler))
	defer shutdown(t, q)

	h, err := q.Submit(context.Background(), spec("1", "later"))
	require.NoError(t, err)

	select {
	case <-h.Done():
		t.Fatal("job ran while the window was saturated")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(61 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "done: later", out)
}

func TestQueue_PersistsWhenThresholdExceeded(t *testing.T) {
	store := persistence.NewMemoryJobStore()
	gates := map[string]chan struct{}{"j1": make(chan struct{}), "j2": make(chan struct{})}
	started := make(chan string, 2)
	handler := func(ctx context.Context, s JobSpec, rt RuntimeContext) (string, error) {
		if gate, ok := gates[s.ID]; ok {
			started <- s.ID
			<-gate
		}
		return s.ID, nil
	}
	cfg := testConfig()
	cfg.PersistThreshold = 2
	q := New(cfg, nil, RuntimeContext{}, WithHandler(JobMemberAssignment, handler), WithStore(store))

	var handles []*Handle
	for _, id := range []string{"j1", "j2", "j3", "j4"} {
		h, err := q.Submit(context.Background(), spec(id, "q"))
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.Equal(t, "j1", <-started)

	// j1 finishing leaves three pending, above the threshold
	close(gates["j1"])
	require.Equal(t, "j2", <-started)
	saved, err := store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, []string{"j2", "j3", "j4"}, []string{saved[0].ID, saved[1].ID, saved[2].ID})

	close(gates["j2"])
	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}

	// drained without Shutdown: the snapshot no longer holds finished jobs
	saved, err = store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved)

	restarted := New(cfg, nil, RuntimeContext{}, WithHandler(JobMemberAssignment, handler), WithStore(store))
	n, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	shutdown(t, restarted)
	shutdown(t, q)
}

func TestQueue_ImageJobsNeedConfiguration(t *testing.T) {
	q := New(testConfig(), nil, RuntimeContext{})
	defer shutdown(t, q)

	for _, typ := range []JobType{JobDalleImage, JobStabilityImage} {
		h, err := q.Submit(context.Background(), JobSpec{Type: typ, Question: "a frog", TokenEstimate: 1})
		require.NoError(t, err)
		_, err = h.Wait(context.Background())
		assert.True(t, types.IsErrorCode(err, types.ErrConfigurationMissing))
	}

	_, err := q.Submit(context.Background(), JobSpec{Type: "video", TokenEstimate: 1})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestQueue_HandlerFailureAndPanic(t *testing.T) {
	handler := func(ctx context.Context, s JobSpec, rt RuntimeContext) (string, error) {
		if s.Question == "panic" {
			panic("boom")
		}
		return "", errors.New("model unavailable")
	}
	q := New(testConfig(), nil, RuntimeContext{}, WithHandler(JobMemberAssignment, handler))
	defer shutdown(t, q)

	h1, err := q.Submit(context.Background(), spec("1", "fail"))
	require.NoError(t, err)
	h2, err := q.Submit(context.Background(), spec("2", "panic"))
	require.NoError(t, err)

	_, err = h1.Wait(context.Background())
	assert.EqualError(t, err, "model unavailable")
	_, err = h2.Wait(context.Background())
	assert.True(t, types.IsErrorCode(err, types.ErrInternalError))

	// failed jobs still count against the window
	assert.Equal(t, 2, q.Metrics().RequestCount)
	_, _, failed := q.Stats()
	assert.Equal(t, int64(2), failed)
}

func TestQueue_Restore(t *testing.T) {
	store := persistence.NewMemoryJobStore()
	require.NoError(t, store.SaveSnapshot(context.Background(), []JobSpec{spec("r1", "one"), spec("r2", "two")}))

	var mu sync.Mutex
	var seen []string
	rt := RuntimeContext{}
	handler := func(ctx context.Context, s JobSpec, got RuntimeContext) (string, error) {
		mu.Lock()
		seen = append(seen, s.ID)
		mu.Unlock()
		return "", nil
	}
	q := New(testConfig(), nil, rt, WithHandler(JobMemberAssignment, handler), WithStore(store))

	n, err := q.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	shutdown(t, q)
	mu.Lock()
	assert.Equal(t, []string{"r1", "r2"}, seen)
	mu.Unlock()

	saved, err := store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestQueue_ShutdownDeadlinePersistsRemaining(t *testing.T) {
	store := persistence.NewMemoryJobStore()
	started := make(chan struct{}, 1)
	handler := func(ctx context.Context, s JobSpec, rt RuntimeContext) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	q := New(testConfig(), nil, RuntimeContext{}, WithHandler(JobMemberAssignment, handler), WithStore(store))

	h1, err := q.Submit(context.Background(), spec("s1", "q"))
	require.NoError(t, err)
	h2, err := q.Submit(context.Background(), spec("s2", "q"))
	require.NoError(t, err)
	_, err = q.Submit(context.Background(), spec("s3", "q"))
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = q.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = h1.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	_, err = h2.Wait(context.Background())
	assert.True(t, types.IsErrorCode(err, types.ErrQueueClosed))

	saved, err := store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "s2", saved[0].ID)

	_, err = q.Submit(context.Background(), spec("late", "q"))
	assert.True(t, types.IsErrorCode(err, types.ErrQueueClosed))
}

package budget

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
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

func TestMetricsWindow_RequestLimitThenAgeOut(t *testing.T) {
	clock := newFakeClock()
	w := NewMetricsWindow(DefaultConfig(), WithClock(clock.Now))

	for i := 0; i < 60; i++ {
		require.True(t, w.CanAdmit(), "sample %d", i)
		w.RecordUsage(10)
		clock.Advance(100 * time.Millisecond)
	}
	assert.False(t, w.CanAdmit())
	assert.Equal(t, 60, w.CurrentLoad().RequestCount)

	clock.Advance(61 * time.Second)
	assert.True(t, w.CanAdmit())
	assert.Equal(t, Load{}, w.CurrentLoad())
}

func TestMetricsWindow_TokenLimit(t *testing.T) {
	clock := newFakeClock()
	w := NewMetricsWindow(DefaultConfig(), WithClock(clock.Now))

	w.RecordUsage(99999)
	assert.True(t, w.CanAdmit())
	w.RecordUsage(1)
	assert.False(t, w.CanAdmit())
}

func TestMetricsWindow_SnapshotAndObserver(t *testing.T) {
	clock := newFakeClock()
	var seen []Load
	w := NewMetricsWindow(Config{MaxRPM: 5}, WithClock(clock.Now), WithObserver(func(l Load) { seen = append(seen, l) }))

	w.RecordUsage(100)
	w.RecordProcessing(2 * time.Second)
	w.RecordUsage(50)
	w.RecordProcessing(4 * time.Second)

	s := w.Snapshot()
	assert.Equal(t, 2, s.RequestCount)
	assert.Equal(t, 150, s.TokenSum)
	assert.Equal(t, 5, s.MaxRPM)
	assert.Equal(t, DefaultMaxTPM, s.MaxTPM)
	assert.EqualValues(t, 2, s.TotalProcessed)
	assert.Equal(t, 3*time.Second, s.AvgProcessingTime)
	assert.Equal(t, []Load{{1, 100}, {2, 150}}, seen)
}

func TestMetricsWindow_LoadMatchesRecentSamples(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := newFakeClock()
		w := NewMetricsWindow(DefaultConfig(), WithClock(clock.Now))

		type rec struct {
			at     time.Time
			tokens int
		}
		var recs []rec
		steps := rapid.IntRange(1, 80).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			clock.Advance(time.Duration(rapid.IntRange(0, 5000).Draw(t, "gapMs")) * time.Millisecond)
			tok := rapid.IntRange(0, 5000).Draw(t, "tokens")
			w.RecordUsage(tok)
			recs = append(recs, rec{at: clock.Now(), tokens: tok})
		}

		cutoff := clock.Now().Add(-DefaultWindow)
		var want Load
		for _, r := range recs {
			if r.at.After(cutoff) {
				want.RequestCount++
				want.TokenSum += r.tokens
			}
		}
		got := w.CurrentLoad()
		if got != want {
			t.Fatalf("load = %+v, want %+v", got, want)
		}
		admit := want.RequestCount < DefaultMaxRPM && want.TokenSum < DefaultMaxTPM
		if w.CanAdmit() != admit {
			t.Fatalf("CanAdmit = %v, want %v", !admit, admit)
		}
	})
}

package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitFor(t *testing.T) {
	var n atomic.Int32
	go func() {
		for i := 0; i < 3; i++ {
			n.Add(1)
		}
	}()
	assert.True(t, WaitFor(func() bool { return n.Load() == 3 }, time.Second))
	assert.False(t, WaitFor(func() bool { return false }, 20*time.Millisecond))
}

func TestWaitForChannel(t *testing.T) {
	ch := make(chan string, 1)
	ch <- "ribbit"
	v, ok := WaitForChannel(ch, time.Second)
	assert.True(t, ok)
	assert.Equal(t, "ribbit", v)

	_, ok = WaitForChannel(ch, 10*time.Millisecond)
	assert.False(t, ok)
}

func TestTestContext(t *testing.T) {
	ctx := TestContextWithTimeout(t, time.Minute)
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestMustJSON(t *testing.T) {
	assert.JSONEq(t, `{"member":"dev"}`, MustJSON(map[string]string{"member": "dev"}))
	assert.Panics(t, func() { MustJSON(make(chan int)) })
}

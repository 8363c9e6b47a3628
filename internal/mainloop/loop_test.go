package mainloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPendingRunsInOrder(t *testing.T) {
	l := New()
	var order []int
	for i := range 3 {
		l.Post(func() { order = append(order, i) })
	}

	assert.Equal(t, 3, l.RunPending())
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, 0, l.Pending())
}

func TestPostDuringFrameRunsNextFrame(t *testing.T) {
	l := New()
	ran := false
	l.Post(func() {
		l.Post(func() { ran = true })
	})

	l.RunPending()
	assert.False(t, ran)
	assert.Equal(t, 1, l.Pending())

	l.RunPending()
	assert.True(t, ran)
}

func TestPostIsSafeForConcurrentUse(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() {})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, l.RunPending())
}

func TestRunAndCall(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())

	var frames int
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.Run(ctx, time.Millisecond, func() { frames++ })
	}()

	value := 0
	callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
	defer callCancel()
	require.NoError(t, l.Call(callCtx, func() { value = 7 }))
	assert.Equal(t, 7, value)

	cancel()
	<-stopped
	assert.Positive(t, frames)
}

func TestCallTimesOutWhenLoopIsNotRunning(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Call(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Package mainloop provides the single goroutine that owns game-side state.
// Work from other goroutines is handed over with Post and runs on the next
// frame.
package mainloop

import (
	"context"
	"sync"
	"time"
)

// Loop is a queue of callbacks drained once per frame
type Loop struct {
	mu      sync.Mutex
	pending []func()
	frames  uint64
}

// New creates an empty Loop
func New() *Loop {
	return &Loop{}
}

// Post schedules fn for the next frame. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
}

// RunPending runs the callbacks queued before the call and returns how many
// ran. Callbacks posted while draining wait for the next frame.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.frames++
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Pending reports the number of queued callbacks
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Frames reports how many frames have run
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Run drives frames every interval until ctx is done. onFrame runs after the
// posted callbacks of each frame and may be nil. Callbacks still queued when
// ctx ends are run once before returning.
func (l *Loop) Run(ctx context.Context, interval time.Duration, onFrame func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.RunPending()
			return
		case <-ticker.C:
			l.RunPending()
			if onFrame != nil {
				onFrame()
			}
		}
	}
}

// Call runs fn on the loop and waits for it to finish
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package task provides an awaitable result for work that completes off the
// main loop.
package task

import (
	"context"
	"sync"
)

// Task is a single-assignment future
type Task[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New returns a pending task and the function that completes it. Only the
// first completion takes effect.
func New[T any]() (*Task[T], func(T, error)) {
	t := &Task[T]{done: make(chan struct{})}
	return t, t.complete
}

// Go runs fn on a new goroutine and completes the task with its result
func Go[T any](fn func() (T, error)) *Task[T] {
	t, complete := New[T]()
	go func() {
		complete(fn())
	}()
	return t
}

// Completed returns a task that is already resolved
func Completed[T any](value T, err error) *Task[T] {
	t, complete := New[T]()
	complete(value, err)
	return t
}

func (t *Task[T]) complete(value T, err error) {
	t.once.Do(func() {
		t.value = value
		t.err = err
		close(t.done)
	})
}

// Done is closed once the task has a result
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes or ctx ends
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while pending.
func (t *Task[T]) Result() (value T, err error, ok bool) {
	select {
	case <-t.done:
		return t.value, t.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

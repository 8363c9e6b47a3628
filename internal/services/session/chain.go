package session

import (
	"context"
	"sync"

	"github.com/mcoot/ingamehud/internal/model"
)

// opChain serializes storage work per player. Each operation starts once the
// previous one for the same id has finished or its own context has ended.
type opChain struct {
	mu    sync.Mutex
	tails map[model.PlayerID]chan struct{}
}

func newOpChain() *opChain {
	return &opChain{tails: make(map[model.PlayerID]chan struct{})}
}

func (c *opChain) enqueue(ctx context.Context, id model.PlayerID, fn func()) {
	c.mu.Lock()
	prev := c.tails[id]
	done := make(chan struct{})
	c.tails[id] = done
	c.mu.Unlock()

	go func() {
		defer func() {
			close(done)
			c.mu.Lock()
			if c.tails[id] == done {
				delete(c.tails, id)
			}
			c.mu.Unlock()
		}()

		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
			}
		}
		fn()
	}()
}

// wait blocks until every operation enqueued so far has finished
func (c *opChain) wait(ctx context.Context) error {
	c.mu.Lock()
	pending := make([]chan struct{}, 0, len(c.tails))
	for _, done := range c.tails {
		pending = append(pending, done)
	}
	c.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *opChain) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tails)
}

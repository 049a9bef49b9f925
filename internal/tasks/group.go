package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Group supervises detached goroutines such as deferred uploads. Failures are
// logged, never propagated.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	ctx, cancel := context.WithCancel(context.Background())
	return &Group{ctx: ctx, cancel: cancel}
}

// Go runs fn in a new goroutine. It reports false, without running fn, once
// Shutdown has been called.
func (g *Group) Go(name string, fn func(ctx context.Context) error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		log.Printf("[tasks] rejected %s: shutting down", name)
		return false
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[tasks] %s panicked: %v", name, r)
			}
		}()
		if err := fn(g.ctx); err != nil {
			log.Printf("[tasks] %s failed: %v", name, err)
		}
	}()
	return true
}

// Wait blocks until every started goroutine has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Shutdown refuses new work and waits for running goroutines. When ctx ends
// first their context is cancelled and an error is returned.
func (g *Group) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.cancel()
		return nil
	case <-ctx.Done():
		g.cancel()
		return fmt.Errorf("task group shutdown timed out: %w", ctx.Err())
	}
}

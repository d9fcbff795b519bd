package com

import (
	"context"
	"sync"
)

// Cond allows goroutines to wait for (repeated) broadcast signals, similar to sync.Cond,
// but based on channels so that waiters can select on it alongside other channels and context
// cancellation. It is also bound to a context: once that context is done, Cond closes itself.
type Cond struct {
	mu       sync.Mutex
	ready    chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// NewCond returns a new Cond that closes itself once ctx is done.
func NewCond(ctx context.Context) *Cond {
	c := &Cond{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	return c
}

// Wait returns a channel that is closed the next time Broadcast (or Close) is called.
// Each call to Wait (before the next Broadcast) returns the same channel.
func (c *Cond) Wait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ready
}

// Broadcast closes the channel(s) returned by Wait since the last Broadcast, waking up all
// current waiters, and prepares a new channel for subsequent Wait calls.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()

	close(c.ready)
	c.ready = make(chan struct{})
}

// Done returns a channel that is closed once Close is called or the Cond's context is done.
func (c *Cond) Done() <-chan struct{} {
	return c.done
}

// Close permanently closes the Cond, waking up all current and future waiters. It is safe to
// call Close more than once.
func (c *Cond) Close() error {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		close(c.ready)
		close(c.done)
	})

	return nil
}

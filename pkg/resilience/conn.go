// Package resilience provides a reconnecting wrapper around external
// connection handles (broker, database). Connecting is retried forever
// with capped exponential backoff; the owning loop calls Acquire before
// each use and Invalidate when an operation fails with a connectivity
// error, so a handle is torn down and re-dialed exactly where the failure
// was observed.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	initialWait = 1 * time.Second
	maxWait     = 60 * time.Second
)

// DialFunc establishes a fresh handle.
type DialFunc[T any] func(ctx context.Context) (T, error)

// Conn owns one reconnectable handle of type T.
type Conn[T any] struct {
	log   *slog.Logger
	name  string
	dial  DialFunc[T]
	close func(T) error

	mu     sync.Mutex
	handle T
	live   bool

	newBackOff func() backoff.BackOff
}

func New[T any](log *slog.Logger, name string, dial DialFunc[T], close func(T) error) *Conn[T] {
	return &Conn[T]{
		log:   log,
		name:  name,
		dial:  dial,
		close: close,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = initialWait
			bo.MaxInterval = maxWait
			bo.MaxElapsedTime = 0 // retry until the context is cancelled
			return bo
		},
	}
}

// Acquire returns the live handle, dialing first if necessary. It blocks
// through connection failures and returns an error only when ctx is done.
func (c *Conn[T]) Acquire(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.live {
		return c.handle, nil
	}

	attempt := 0
	op := func() error {
		h, err := c.dial(ctx)
		if err != nil {
			attempt++
			c.log.Warn("connect failed, will retry", "conn", c.name, "attempt", attempt, "err", err)
			return err
		}
		c.handle = h
		c.live = true
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		var zero T
		return zero, fmt.Errorf("acquire %s: %w", c.name, err)
	}

	c.log.Info("connected", "conn", c.name, "attempts", attempt+1)
	return c.handle, nil
}

// Invalidate closes the current handle, if any. The next Acquire re-dials.
func (c *Conn[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.live {
		return
	}
	if c.close != nil {
		if err := c.close(c.handle); err != nil {
			c.log.Debug("close failed during invalidate", "conn", c.name, "err", err)
		}
	}
	var zero T
	c.handle = zero
	c.live = false
}

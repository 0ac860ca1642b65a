// Package shutdown coordinates stopping a long-running command such as the
// mock API server: it turns signals into a stop request and runs the
// registered cleanups within a deadline.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"taskpad/internal/utils"
)

// CleanupFunc releases a resource. ctx expires when the stop deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanup struct {
	name string
	fn   CleanupFunc
}

// Coordinator collects cleanups and runs them once a stop is requested
type Coordinator struct {
	mu       sync.Mutex
	cleanups []cleanup
	stopping bool

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New creates a coordinator
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// OnStop registers fn. Cleanups run last-registered first.
func (c *Coordinator) OnStop(name string, fn CleanupFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups = append(c.cleanups, cleanup{name: name, fn: fn})
}

// Stop requests a stop. Only the first call has an effect.
func (c *Coordinator) Stop(reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.stopping = true
		c.mu.Unlock()
		utils.Infof("Stopping: %s", reason)
		c.cancel()
	})
}

// Stopping reports whether a stop was requested
func (c *Coordinator) Stopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

// Context is cancelled when a stop is requested
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Done is closed when a stop is requested
func (c *Coordinator) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Watch turns the given signals into Stop. The returned func stops watching.
func (c *Coordinator) Watch(signals ...os.Signal) (unwatch func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	quit := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			c.Stop("received " + sig.String())
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}

// Finish runs every cleanup, last registered first, and returns their
// joined errors. A cleanup still running when ctx expires is abandoned and
// ctx.Err() is returned.
func (c *Coordinator) Finish(ctx context.Context) error {
	c.mu.Lock()
	pending := make([]cleanup, len(c.cleanups))
	copy(pending, c.cleanups)
	c.cleanups = nil
	c.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(pending) - 1; i >= 0; i-- {
			if err := pending[i].fn(ctx); err != nil {
				utils.Warnf("Cleanup %s failed: %v", pending[i].name, err)
				errs = append(errs, fmt.Errorf("%s: %w", pending[i].name, err))
			}
		}
		result <- errors.Join(errs...)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

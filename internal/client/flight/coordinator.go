// Package flight guards verification attempts so that at most one runs at
// a time and every concurrent caller ends up with the same result.
//
// A Coordinator is owned by the composition root and shared by every
// verification screen instance. Its lifecycle:
//
//	Begin()         claims the attempt; false while another one runs
//	Complete(r)     publishes r and releases the claim
//	Cached()        the last published result, if still retained
//	Observe(ctx)    waits for the running attempt to publish
//	Acquire/Release screen mount bookkeeping; once the last holder releases
//	                and no attempt runs, the result is kept for the grace
//	                period and then evicted
//	Invalidate()    drops a retained result so a retry starts fresh
//
// BeginFor, CachedFor and ObserveFor do the same for one credential: a
// result retained for another key is never handed out, it only has to
// finish before the next attempt may start.
package flight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
)

// ErrNoAttempt is returned by Observe when nothing is running and nothing is
// retained.
var ErrNoAttempt = errors.New("no verification attempt to observe")

// DefaultGrace absorbs spurious screen re-mounts.
const DefaultGrace = time.Second

type attempt struct {
	key    string
	done   chan struct{}
	result models.VerificationResult
}

type Coordinator struct {
	grace time.Duration

	mu      sync.Mutex
	current *attempt
	running bool
	holders int
	evict   *time.Timer
	gen     uint64
}

// New returns a coordinator that retains a published result for grace after
// its last holder goes away. A non-positive grace evicts immediately.
func New(grace time.Duration) *Coordinator {
	return &Coordinator{grace: grace}
}

// Begin claims the attempt. The check and the claim happen under one lock,
// so of two racing callers exactly one wins.
func (c *Coordinator) Begin() bool {
	return c.BeginFor("")
}

// BeginFor claims the attempt for key.
func (c *Coordinator) BeginFor(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return false
	}
	c.stopEvictionLocked()
	c.running = true
	c.current = &attempt{key: key, done: make(chan struct{})}
	return true
}

// Complete publishes the result of the running attempt and releases the
// claim. Calling it without a running attempt only replaces the retained
// result.
func (c *Coordinator) Complete(result models.VerificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.current == nil {
		c.current = &attempt{done: make(chan struct{}), result: result}
		close(c.current.done)
		c.scheduleEvictionLocked()
		return
	}
	c.current.result = result
	close(c.current.done)
	c.running = false
	c.scheduleEvictionLocked()
}

// Cached returns the retained result without blocking.
func (c *Coordinator) Cached() (models.VerificationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.current == nil {
		return models.VerificationResult{}, false
	}
	return c.current.result, true
}

// CachedFor is Cached restricted to a result published for key.
func (c *Coordinator) CachedFor(key string) (models.VerificationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.current == nil || c.current.key != key {
		return models.VerificationResult{}, false
	}
	return c.current.result, true
}

// InProgress reports whether an attempt is claimed and not yet completed.
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Observe returns the retained result, or waits for the running attempt to
// complete. Many observers may wait on the same attempt; all of them see the
// same result. Only the wait is cancelled by ctx, never the attempt.
func (c *Coordinator) Observe(ctx context.Context) (models.VerificationResult, error) {
	return c.observe(ctx, "", false)
}

// ObserveFor is Observe for key. An attempt running for another key is
// waited out and then reported as ErrNoAttempt, so the caller may begin
// its own.
func (c *Coordinator) ObserveFor(ctx context.Context, key string) (models.VerificationResult, error) {
	return c.observe(ctx, key, true)
}

func (c *Coordinator) observe(ctx context.Context, key string, keyed bool) (models.VerificationResult, error) {
	c.mu.Lock()
	a := c.current
	running := c.running
	c.mu.Unlock()

	if a == nil {
		return models.VerificationResult{}, ErrNoAttempt
	}
	if running {
		select {
		case <-a.done:
		case <-ctx.Done():
			return models.VerificationResult{}, ctx.Err()
		}
	}
	if keyed && a.key != key {
		return models.VerificationResult{}, ErrNoAttempt
	}
	return a.result, nil
}

// Acquire records a mounted consumer and cancels any pending eviction.
func (c *Coordinator) Acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holders++
	c.stopEvictionLocked()
}

// Release records an unmounted consumer. When none remain, the retained
// result is evicted after the grace period unless an attempt is running or
// a new consumer mounts in the meantime.
func (c *Coordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holders > 0 {
		c.holders--
	}
	c.scheduleEvictionLocked()
}

// Invalidate drops the retained result. A running attempt is not affected.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.stopEvictionLocked()
	c.current = nil
}

func (c *Coordinator) scheduleEvictionLocked() {
	if c.holders > 0 || c.running || c.current == nil {
		return
	}
	c.stopEvictionLocked()
	gen := c.gen
	if c.grace <= 0 {
		c.current = nil
		return
	}
	c.evict = time.AfterFunc(c.grace, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.holders > 0 || c.running {
			return
		}
		c.current = nil
		c.evict = nil
	})
}

func (c *Coordinator) stopEvictionLocked() {
	c.gen++
	if c.evict != nil {
		c.evict.Stop()
		c.evict = nil
	}
}

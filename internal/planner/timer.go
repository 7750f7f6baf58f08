// Package planner runs study countdown timers.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInterval is returned by Run for a tick interval that is not positive.
var ErrInterval = errors.New("tick interval must be positive")

// Timer counts down a fixed duration. Time only passes while it runs.
type Timer struct {
	mu        sync.Mutex
	duration  time.Duration
	remaining time.Duration
	running   bool
}

// NewTimer returns a stopped timer set to d.
func NewTimer(d time.Duration) *Timer {
	return &Timer{duration: d, remaining: d}
}

// Start resumes the countdown. A finished timer does not start.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = t.remaining > 0
}

// Pause stops the countdown without losing the remaining time.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// Reset stops the timer and restores the full duration.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.remaining = t.duration
}

// Tick advances a running timer by elapsed and reports whether it just
// reached zero.
func (t *Timer) Tick(elapsed time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return false
	}
	t.remaining -= elapsed
	if t.remaining > 0 {
		return false
	}
	t.remaining = 0
	t.running = false
	return true
}

// Remaining is the time left.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether the countdown is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Run starts the timer and ticks it every interval until it finishes or ctx
// is done. onTick, if set, receives the remaining time after each tick.
// Run returns nil when the countdown completes.
func (t *Timer) Run(ctx context.Context, interval time.Duration, onTick func(time.Duration)) error {
	if interval <= 0 {
		return fmt.Errorf("planner: %w, got %s", ErrInterval, interval)
	}
	t.Start()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			t.Pause()
			return ctx.Err()
		case now := <-ticker.C:
			finished := t.Tick(now.Sub(last))
			last = now
			if onTick != nil {
				onTick(t.Remaining())
			}
			if finished || !t.Running() {
				return nil
			}
		}
	}
}

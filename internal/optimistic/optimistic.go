// Package optimistic applies a predicted value to local state before the
// server confirms it, then reconciles with the server's answer.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brainbox-app/brainbox/internal/metrics"
	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/mutation"
	"github.com/brainbox-app/brainbox/internal/remote"
)

var (
	// ErrNotLoaded means the entity is not in any cached list, so there is
	// nothing to project onto.
	ErrNotLoaded = errors.New("item is not loaded")

	// ErrAlreadySaved rejects saving a post the viewer has already saved.
	ErrAlreadySaved = errors.New("post already saved")
)

// Phase is where a toggle of one entity currently stands.
type Phase int

const (
	Idle Phase = iota
	Pending
	Reconciling
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Reconciling:
		return "reconciling"
	}
	return "idle"
}

// Binding connects a projector to the state it edits and the server call
// that commits the edit.
type Binding[V any] struct {
	Kind models.Kind

	// Read returns the current local value for id.
	Read func(id string) (V, bool)

	// Write replaces the local value for id.
	Write func(id string, v V)

	// Predict computes the value expected once the server applies the toggle.
	Predict func(id string, current V) (V, error)

	// Commit sends the toggle and returns the server's value.
	Commit func(ctx context.Context, id string, predicted V) (V, error)

	// Drop removes id locally after the server reports it gone. Optional.
	Drop func(id string)

	// Settle stores the server's value after a successful commit. Optional;
	// Write is used when nil.
	Settle func(id string, v V)
}

// Projector runs toggles for one binding. The guard is shared with the
// mutation coordinator, so a toggle and an edit of the same entity cannot
// overlap.
type Projector[V any] struct {
	b       Binding[V]
	guard   *mutation.Guard
	logger  *slog.Logger
	metrics *metrics.Sync

	mu     sync.Mutex
	phases map[string]Phase
}

// New creates a Projector. logger and m may be nil.
func New[V any](b Binding[V], guard *mutation.Guard, logger *slog.Logger, m *metrics.Sync) *Projector[V] {
	if guard == nil {
		guard = mutation.NewGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector[V]{
		b:       b,
		guard:   guard,
		logger:  logger.With("kind", b.Kind),
		metrics: m,
		phases:  make(map[string]Phase),
	}
}

// Toggle writes the predicted value, commits it, and settles on the server
// value. If the commit fails the previous value is restored, unless the
// server says the entity no longer exists, in which case it is dropped.
func (p *Projector[V]) Toggle(ctx context.Context, id string) (V, error) {
	var zero V

	release, ok := p.guard.TryAcquire(p.b.Kind, id)
	if !ok {
		p.metrics.Reject()
		p.metrics.Mutation(string(p.b.Kind), "toggle", "busy")
		return zero, fmt.Errorf("toggle %s %s: %w", p.b.Kind, id, mutation.ErrBusy)
	}
	defer release()

	prev, ok := p.b.Read(id)
	if !ok {
		return zero, fmt.Errorf("toggle %s %s: %w", p.b.Kind, id, ErrNotLoaded)
	}
	next, err := p.b.Predict(id, prev)
	if err != nil {
		return zero, err
	}

	p.setPhase(id, Pending)
	defer p.setPhase(id, Idle)
	p.b.Write(id, next)

	got, err := p.b.Commit(ctx, id, next)
	p.setPhase(id, Reconciling)
	if err != nil {
		p.metrics.Mutation(string(p.b.Kind), "toggle", "error")
		if remote.IsNotFound(err) && p.b.Drop != nil {
			p.b.Drop(id)
		} else {
			p.b.Write(id, prev)
			p.metrics.Rollback()
		}
		p.logger.Warn("Toggle failed", "id", id, "error", err)
		return zero, err
	}

	if p.b.Settle != nil {
		p.b.Settle(id, got)
	} else {
		p.b.Write(id, got)
	}
	p.metrics.Mutation(string(p.b.Kind), "toggle", "ok")
	return got, nil
}

// Phase reports the state of the toggle for id.
func (p *Projector[V]) Phase(id string) Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phases[id]
}

func (p *Projector[V]) setPhase(id string, ph Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ph == Idle {
		delete(p.phases, id)
		return
	}
	p.phases[id] = ph
}

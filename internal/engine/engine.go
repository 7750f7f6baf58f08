// Package engine is the client-side core for one signed-in session. It reads
// through the mirror cache, writes through the mutation coordinator, and
// projects toggles optimistically.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/brainbox-app/brainbox/internal/calculator"
	"github.com/brainbox-app/brainbox/internal/changefeed"
	"github.com/brainbox-app/brainbox/internal/confirm"
	"github.com/brainbox-app/brainbox/internal/metrics"
	"github.com/brainbox-app/brainbox/internal/mirror"
	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/mutation"
	"github.com/brainbox-app/brainbox/internal/optimistic"
	"github.com/brainbox-app/brainbox/internal/remote"
)

// Config wires an Engine. Only Remote is required.
type Config struct {
	Remote  *remote.Client
	Gate    confirm.Gate
	Logger  *slog.Logger
	Metrics *metrics.Sync
}

// Engine is safe for concurrent use.
type Engine struct {
	remote *remote.Client
	owner  string
	cache  *mirror.Cache
	writes *mutation.Coordinator

	likes *optimistic.Projector[*models.Post]
	saves *optimistic.Projector[*models.SavedPost]
	done  map[models.Kind]*optimistic.Projector[models.Entity]

	logger *slog.Logger
	now    func() time.Time
}

// New creates an engine for the session behind cfg.Remote.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	guard := mutation.NewGuard()
	cache := mirror.New(cfg.Metrics)

	e := &Engine{
		remote: cfg.Remote,
		owner:  cfg.Remote.Owner(),
		cache:  cache,
		writes: mutation.New(mutation.Config{
			Owner:   cfg.Remote.Owner(),
			Remote:  cfg.Remote,
			Cache:   cache,
			Guard:   guard,
			Gate:    cfg.Gate,
			Logger:  cfg.Logger,
			Metrics: cfg.Metrics,
		}),
		done:   make(map[models.Kind]*optimistic.Projector[models.Entity]),
		logger: cfg.Logger,
		now:    time.Now,
	}
	e.likes = optimistic.New(e.likeBinding(), guard, cfg.Logger, cfg.Metrics)
	e.saves = optimistic.New(e.saveBinding(), guard, cfg.Logger, cfg.Metrics)
	for _, kind := range []models.Kind{models.KindTask, models.KindSkill, models.KindExamRoutine} {
		e.done[kind] = optimistic.New(e.doneBinding(kind), guard, cfg.Logger, cfg.Metrics)
	}
	return e
}

// Owner is the session's owner key.
func (e *Engine) Owner() string { return e.owner }

// Key is the cache key of the owner's list of kind.
func (e *Engine) Key(kind models.Kind, filter models.Filter) mirror.Key {
	return mirror.NewKey(kind, e.owner, filter)
}

// FeedKey is the cache key of the public feed.
func FeedKey(category string) mirror.Key {
	return mirror.NewKey(models.KindPost, "", feedFilter(category))
}

func feedFilter(category string) models.Filter {
	if category == "" {
		return nil
	}
	return models.Filter{"category": category}
}

// List returns the owner's entities of kind matching filter.
func (e *Engine) List(ctx context.Context, kind models.Kind, filter models.Filter) (*mirror.Snapshot, error) {
	return e.cache.Load(ctx, e.Key(kind, filter), func(ctx context.Context) ([]models.Entity, error) {
		return e.remote.List(ctx, kind, e.owner, filter)
	})
}

// Feed returns every user's posts, newest first.
func (e *Engine) Feed(ctx context.Context, category string) (*mirror.Snapshot, error) {
	return e.cache.Load(ctx, FeedKey(category), func(ctx context.Context) ([]models.Entity, error) {
		posts, err := e.remote.Feed(ctx, feedFilter(category))
		if err != nil {
			return nil, err
		}
		out := make([]models.Entity, len(posts))
		for i, p := range posts {
			out[i] = p
		}
		return out, nil
	})
}

// MyPosts returns the posts the owner authored.
func (e *Engine) MyPosts(ctx context.Context) (*mirror.Snapshot, error) {
	return e.List(ctx, models.KindPost, nil)
}

// Add creates ent in the owner's collection.
func (e *Engine) Add(ctx context.Context, ent models.Entity) (models.Entity, error) {
	return e.writes.Mutate(ctx, mutation.Request{Kind: ent.Kind(), Op: mutation.OpCreate, Entity: ent})
}

// Edit applies patch to one entity.
func (e *Engine) Edit(ctx context.Context, kind models.Kind, id string, patch models.Patch) (models.Entity, error) {
	return e.writes.Mutate(ctx, mutation.Request{Kind: kind, Op: mutation.OpUpdate, ID: id, Patch: patch})
}

// Remove deletes one entity after the confirmation gate approves.
func (e *Engine) Remove(ctx context.Context, kind models.Kind, id string) error {
	_, err := e.writes.Mutate(ctx, mutation.Request{Kind: kind, Op: mutation.OpDelete, ID: id})
	return err
}

// Release tells the cache nobody is waiting on key any more.
func (e *Engine) Release(key mirror.Key) {
	e.cache.Release(key)
}

// HandleChange invalidates cached lists affected by a change feed event.
func (e *Engine) HandleChange(ev changefeed.Event) {
	if ev.Action == changefeed.ActionHello || !ev.Kind.Valid() {
		return
	}
	e.logger.Debug("Change received", "kind", ev.Kind, "id", ev.ID, "action", ev.Action)
	e.cache.InvalidateKind(ev.Kind)
}

// BudgetSummary totals the owner's transactions, optionally for one month
// ("2025-03").
func (e *Engine) BudgetSummary(ctx context.Context, month string) (calculator.BudgetSummary, error) {
	snap, err := e.List(ctx, models.KindTransaction, nil)
	if err != nil {
		return calculator.BudgetSummary{}, err
	}
	txs := make([]*models.Transaction, 0, snap.Len())
	for _, ent := range snap.Entities {
		txs = append(txs, ent.(*models.Transaction))
	}
	return calculator.SummarizeBudget(txs, month), nil
}

// Workload spreads the owner's open tasks over the days until their deadlines.
func (e *Engine) Workload(ctx context.Context) (calculator.Workload, error) {
	snap, err := e.List(ctx, models.KindTask, nil)
	if err != nil {
		return calculator.Workload{}, err
	}
	tasks := make([]*models.Task, 0, snap.Len())
	for _, ent := range snap.Entities {
		tasks = append(tasks, ent.(*models.Task))
	}
	return calculator.CalculateWorkload(tasks, e.now())
}

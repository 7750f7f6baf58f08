// Package mirror holds the last-known server state of entity lists, keyed by
// (kind, owner, filter). Snapshots are immutable: a reader that gets the same
// key twice without an intervening change gets the same *Snapshot.
package mirror

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/brainbox-app/brainbox/internal/metrics"
	"github.com/brainbox-app/brainbox/internal/models"
)

// Key identifies one cached list.
type Key struct {
	Kind   models.Kind
	Owner  string // "" for cross-owner reads such as the feed
	Filter string // models.Filter.Signature()
}

// NewKey builds the key for a list query.
func NewKey(kind models.Kind, owner string, filter models.Filter) Key {
	return Key{Kind: kind, Owner: owner, Filter: filter.Signature()}
}

// filter recovers the Filter from its signature.
func (k Key) filter() models.Filter {
	q, err := url.ParseQuery(k.Filter)
	if err != nil {
		return nil
	}
	return models.FilterFromQuery(q)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s?%s", k.Kind, k.Owner, k.Filter)
}

// Snapshot is one cached list result. Neither the slice nor the entities
// may be modified; edits go through Cache and produce a new Snapshot.
type Snapshot struct {
	Key       Key
	Entities  []models.Entity
	FetchedAt time.Time
}

// Find returns the entity with the given id.
func (s *Snapshot) Find(id string) (models.Entity, bool) {
	for _, e := range s.Entities {
		if e.EntityID() == id {
			return e, true
		}
	}
	return nil, false
}

// Len is the number of entities in the snapshot.
func (s *Snapshot) Len() int { return len(s.Entities) }

// Loader fetches a fresh list from the server.
type Loader func(ctx context.Context) ([]models.Entity, error)

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*Snapshot
	gen      map[Key]uint64
	inflight map[Key]bool

	group   singleflight.Group
	metrics *metrics.Sync
	now     func() time.Time
}

// New creates an empty cache. m may be nil.
func New(m *metrics.Sync) *Cache {
	return &Cache{
		entries:  make(map[Key]*Snapshot),
		gen:      make(map[Key]uint64),
		inflight: make(map[Key]bool),
		metrics:  m,
		now:      time.Now,
	}
}

// Get returns the cached snapshot for key, if present.
func (c *Cache) Get(key Key) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	return s, ok
}

// Set stores a snapshot built from entities and returns it.
func (c *Cache) Set(key Key, entities []models.Entity) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(key, entities)
}

func (c *Cache) setLocked(key Key, entities []models.Entity) *Snapshot {
	s := &Snapshot{Key: key, Entities: slices.Clip(entities), FetchedAt: c.now()}
	c.entries[key] = s
	return s
}

// Load returns the cached snapshot for key or fetches one with loader.
// Concurrent loads of the same key share a single loader call. The loader
// outlives a canceled ctx so other waiters still get the result; its result is
// stored only if the key was neither invalidated nor released meanwhile.
func (c *Cache) Load(ctx context.Context, key Key, loader Loader) (*Snapshot, error) {
	c.mu.Lock()
	if s, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.metrics.Hit()
		return s, nil
	}
	if c.inflight[key] {
		c.metrics.Coalesce()
	} else {
		c.metrics.Miss()
		c.inflight[key] = true
	}
	start := c.gen[key]
	c.mu.Unlock()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		// A flight may have completed between the check above and DoChan.
		c.mu.Lock()
		if s, ok := c.entries[key]; ok && c.gen[key] == start {
			c.mu.Unlock()
			return s, nil
		}
		c.mu.Unlock()

		entities, err := loader(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen[key] == start {
			delete(c.inflight, key)
		}
		if err != nil {
			return nil, err
		}
		if c.gen[key] != start {
			// Released or invalidated while in flight.
			c.metrics.Discard()
			return &Snapshot{Key: key, Entities: entities, FetchedAt: c.now()}, nil
		}
		return c.setLocked(key, entities), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Invalidate drops the snapshot for key and detaches any in-flight load, so
// the next Load fetches again.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(key)
}

func (c *Cache) invalidateLocked(key Key) {
	delete(c.entries, key)
	c.detachLocked(key)
}

func (c *Cache) detachLocked(key Key) {
	c.gen[key]++
	delete(c.inflight, key)
	c.group.Forget(key.String())
}

// InvalidateKind drops every snapshot of kind (coarse invalidation).
func (c *Cache) InvalidateKind(kind models.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.Kind == kind {
			c.invalidateLocked(key)
		}
	}
	for key := range c.inflight {
		if key.Kind == kind {
			c.detachLocked(key)
		}
	}
}

// Release marks key as no longer observed: an in-flight load for it is
// discarded when it completes. A snapshot already cached is kept.
func (c *Cache) Release(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] {
		c.detachLocked(key)
	}
}

// Find returns the cached copy of the entity from the most recently fetched
// snapshot that holds it. The result is shared and must be cloned before
// modification.
func (c *Cache) Find(kind models.Kind, id string) (models.Entity, bool) {
	return c.FindFunc(kind, func(e models.Entity) bool { return e.EntityID() == id })
}

// FindFunc returns the first entity of kind satisfying match, searching the
// most recently fetched snapshot first.
func (c *Cache) FindFunc(kind models.Kind, match func(models.Entity) bool) (models.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.newestLocked(kind) {
		if i := slices.IndexFunc(s.Entities, match); i >= 0 {
			return s.Entities[i], true
		}
	}
	return nil, false
}

// newestLocked lists the snapshots of kind, latest FetchedAt first. Ties are
// broken by key so the order does not depend on map iteration.
func (c *Cache) newestLocked(kind models.Kind) []*Snapshot {
	var out []*Snapshot
	for key, s := range c.entries {
		if key.Kind == kind {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b *Snapshot) int {
		if n := b.FetchedAt.Compare(a.FetchedAt); n != 0 {
			return n
		}
		return strings.Compare(a.Key.String(), b.Key.String())
	})
	return out
}

// AppendEntity adds e to every snapshot of its kind and owner whose filter
// it satisfies. Snapshots that already hold its id are left alone.
func (c *Cache) AppendEntity(e models.Entity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for key, s := range c.entries {
		if key.Kind != e.Kind() || key.Owner != e.OwnerKey() || !key.filter().Match(e) {
			continue
		}
		if _, ok := s.Find(e.EntityID()); ok {
			continue
		}
		out := make([]models.Entity, 0, len(s.Entities)+1)
		out = append(append(out, s.Entities...), e)
		c.entries[key] = &Snapshot{Key: key, Entities: out, FetchedAt: s.FetchedAt}
		changed = true
	}
	return changed
}

// RemoveFunc drops every entity of kind satisfying match.
func (c *Cache) RemoveFunc(kind models.Kind, match func(models.Entity) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for key, s := range c.entries {
		if key.Kind != kind || !slices.ContainsFunc(s.Entities, match) {
			continue
		}
		out := slices.DeleteFunc(slices.Clone(s.Entities), match)
		c.entries[key] = &Snapshot{Key: key, Entities: out, FetchedAt: s.FetchedAt}
		changed = true
	}
	return changed
}

// ReplaceEntity swaps e into every snapshot of its kind that holds its id.
// It reports whether any snapshot changed.
func (c *Cache) ReplaceEntity(e models.Entity) bool {
	id := e.EntityID()
	return c.rewrite(e.Kind(), id, func(old []models.Entity, idx int) []models.Entity {
		out := slices.Clone(old)
		out[idx] = e
		return out
	})
}

// Settle stores the server's copy of e after a write. Snapshots holding e
// take the new copy if it still satisfies their filter and are dropped if it
// no longer does. Snapshots of e's owner whose filter e now satisfies but
// that do not hold it are dropped too, so the next Load refetches them.
// It reports whether any snapshot changed.
func (c *Cache) Settle(e models.Entity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := e.EntityID()
	changed := false
	for key, s := range c.entries {
		if key.Kind != e.Kind() {
			continue
		}
		match := key.filter().Match(e)
		idx := slices.IndexFunc(s.Entities, func(x models.Entity) bool { return x.EntityID() == id })
		switch {
		case idx >= 0 && match:
			out := slices.Clone(s.Entities)
			out[idx] = e
			c.entries[key] = &Snapshot{Key: key, Entities: out, FetchedAt: s.FetchedAt}
		case idx >= 0, match && (key.Owner == "" || key.Owner == e.OwnerKey()):
			c.invalidateLocked(key)
		default:
			continue
		}
		changed = true
	}
	return changed
}

// RemoveEntity drops the entity from every snapshot of kind. Used when the
// server reports it gone.
func (c *Cache) RemoveEntity(kind models.Kind, id string) bool {
	return c.rewrite(kind, id, func(old []models.Entity, idx int) []models.Entity {
		out := make([]models.Entity, 0, len(old)-1)
		out = append(out, old[:idx]...)
		return append(out, old[idx+1:]...)
	})
}

func (c *Cache) rewrite(kind models.Kind, id string, edit func([]models.Entity, int) []models.Entity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for key, s := range c.entries {
		if key.Kind != kind {
			continue
		}
		idx := slices.IndexFunc(s.Entities, func(e models.Entity) bool { return e.EntityID() == id })
		if idx < 0 {
			continue
		}
		c.entries[key] = &Snapshot{Key: key, Entities: edit(s.Entities, idx), FetchedAt: s.FetchedAt}
		changed = true
	}
	return changed
}

// Keys lists the cached keys.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

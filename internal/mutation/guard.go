package mutation

import (
	"sync"

	"github.com/brainbox-app/brainbox/internal/models"
)

// Guard tracks which (kind, id) pairs have a write in flight. It is shared
// by the coordinator and the optimistic projectors so an edit and a toggle
// on the same entity also exclude each other.
type Guard struct {
	mu   sync.Mutex
	held map[guardKey]struct{}
}

type guardKey struct {
	kind models.Kind
	id   string
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{held: make(map[guardKey]struct{})}
}

// TryAcquire claims (kind, id). It returns a release func and true, or nil
// and false when the pair is already held.
func (g *Guard) TryAcquire(kind models.Kind, id string) (func(), bool) {
	k := guardKey{kind: kind, id: id}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[k]; busy {
		return nil, false
	}
	g.held[k] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, k)
			g.mu.Unlock()
		})
	}, true
}

// Busy reports whether (kind, id) is held.
func (g *Guard) Busy(kind models.Kind, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[guardKey{kind: kind, id: id}]
	return busy
}

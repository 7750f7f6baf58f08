// Package mutation sends writes to the server one at a time per entity and
// keeps the mirror cache consistent with the outcome.
package mutation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brainbox-app/brainbox/internal/confirm"
	"github.com/brainbox-app/brainbox/internal/metrics"
	"github.com/brainbox-app/brainbox/internal/mirror"
	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/remote"
)

var (
	// ErrBusy rejects a write while another write to the same entity is pending.
	ErrBusy = errors.New("another change to this item is still in progress")

	// ErrDeclined is returned when the user answers "no" to a delete.
	ErrDeclined = errors.New("delete cancelled")

	// ErrNotOwner rejects edits and deletes of another user's item, such as a
	// post seen on the feed.
	ErrNotOwner = errors.New("item belongs to another user")
)

// Op is the kind of write.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Request describes one write.
type Request struct {
	Kind models.Kind
	Op   Op

	// ID names the target of updates and deletes.
	ID string

	// Entity is the payload of a create.
	Entity models.Entity

	// Patch holds the changed fields of an update.
	Patch models.Patch

	// Prompt overrides the confirmation message of a delete.
	Prompt string
}

// Remote is the subset of the store client the coordinator writes through.
type Remote interface {
	Create(ctx context.Context, e models.Entity) (models.Entity, error)
	Update(ctx context.Context, kind models.Kind, id string, patch models.Patch) (models.Entity, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
}

// Coordinator executes writes.
type Coordinator struct {
	remote  Remote
	cache   *mirror.Cache
	guard   *Guard
	gate    confirm.Gate
	logger  *slog.Logger
	metrics *metrics.Sync
	owner   string
}

// Config wires a Coordinator. Metrics may be nil. Owner is the signed-in
// user; when set, cached items of other owners cannot be updated or deleted.
type Config struct {
	Owner   string
	Remote  Remote
	Cache   *mirror.Cache
	Guard   *Guard
	Gate    confirm.Gate
	Logger  *slog.Logger
	Metrics *metrics.Sync
}

// New creates a Coordinator. A nil Guard gets a private one and a nil Gate
// declines every delete.
func New(cfg Config) *Coordinator {
	if cfg.Guard == nil {
		cfg.Guard = NewGuard()
	}
	if cfg.Gate == nil {
		cfg.Gate = confirm.Static(false)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		remote:  cfg.Remote,
		cache:   cfg.Cache,
		guard:   cfg.Guard,
		gate:    cfg.Gate,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		owner:   cfg.Owner,
	}
}

// Mutate validates req, claims the entity, confirms deletes, and sends the
// write. On success every cached list of the kind is invalidated. On failure
// the cache is left as it was, except that an entity the server reports as
// gone is dropped from cached lists.
func (c *Coordinator) Mutate(ctx context.Context, req Request) (models.Entity, error) {
	if err := validate(req); err != nil {
		c.metrics.Mutation(string(req.Kind), string(req.Op), "invalid")
		return nil, err
	}
	if err := c.checkOwner(req); err != nil {
		c.metrics.Mutation(string(req.Kind), string(req.Op), "forbidden")
		return nil, err
	}

	slot, err := guardID(req)
	if err != nil {
		return nil, err
	}
	release, ok := c.guard.TryAcquire(req.Kind, slot)
	if !ok {
		c.metrics.Reject()
		c.metrics.Mutation(string(req.Kind), string(req.Op), "busy")
		return nil, fmt.Errorf("%s %s: %w", req.Op, req.Kind, ErrBusy)
	}
	defer release()

	if req.Op == OpDelete {
		approved, err := c.gate.ConfirmDestructive(ctx, deletePrompt(req))
		if err != nil {
			return nil, err
		}
		if !approved {
			c.metrics.Mutation(string(req.Kind), string(req.Op), "declined")
			c.logger.Debug("Delete declined", "kind", req.Kind, "id", req.ID)
			return nil, ErrDeclined
		}
	}

	result, err := c.dispatch(ctx, req)
	if err != nil {
		c.metrics.Mutation(string(req.Kind), string(req.Op), "error")
		if remote.IsNotFound(err) && req.ID != "" {
			c.cache.RemoveEntity(req.Kind, req.ID)
		}
		c.logger.Warn("Mutation failed", "kind", req.Kind, "op", req.Op, "id", req.ID, "error", err)
		return nil, err
	}

	c.cache.InvalidateKind(req.Kind)
	c.metrics.Mutation(string(req.Kind), string(req.Op), "ok")
	c.logger.Debug("Mutation applied", "kind", req.Kind, "op", req.Op, "id", req.ID)
	return result, nil
}

// checkOwner rejects updates and deletes of a cached item owned by someone
// else. Items not in the cache are left to the server.
func (c *Coordinator) checkOwner(req Request) error {
	if c.owner == "" || req.Op == OpCreate {
		return nil
	}
	ent, ok := c.cache.Find(req.Kind, req.ID)
	if !ok || ent.OwnerKey() == c.owner {
		return nil
	}
	return fmt.Errorf("%s %s %s: %w", req.Op, singular(req.Kind), req.ID, ErrNotOwner)
}

func (c *Coordinator) dispatch(ctx context.Context, req Request) (models.Entity, error) {
	switch req.Op {
	case OpCreate:
		return c.remote.Create(ctx, req.Entity)
	case OpUpdate:
		return c.remote.Update(ctx, req.Kind, req.ID, req.Patch)
	case OpDelete:
		return nil, c.remote.Delete(ctx, req.Kind, req.ID)
	}
	return nil, fmt.Errorf("unknown operation %q", req.Op)
}

func validate(req Request) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", models.ErrInvalid, req.Kind)
	}
	switch req.Op {
	case OpCreate:
		if req.Entity == nil {
			return fmt.Errorf("%w: create %s without a payload", models.ErrInvalid, req.Kind)
		}
		if req.Entity.Kind() != req.Kind {
			return fmt.Errorf("%w: payload is a %s, not a %s", models.ErrInvalid, req.Entity.Kind(), req.Kind)
		}
		return req.Entity.Validate()
	case OpUpdate:
		if req.ID == "" {
			return fmt.Errorf("%w: update %s without an id", models.ErrInvalid, req.Kind)
		}
		return models.CheckPatch(req.Kind, req.Patch)
	case OpDelete:
		if req.ID == "" {
			return fmt.Errorf("%w: delete %s without an id", models.ErrInvalid, req.Kind)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown operation %q", models.ErrInvalid, req.Op)
}

// guardID is the entity id, or for creates a fingerprint of the payload so
// that submitting the same form twice is rejected.
func guardID(req Request) (string, error) {
	if req.Op != OpCreate {
		return req.ID, nil
	}
	data, err := json.Marshal(req.Entity)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", req.Kind, err)
	}
	sum := sha256.Sum256(data)
	return "new:" + hex.EncodeToString(sum[:8]), nil
}

func deletePrompt(req Request) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return fmt.Sprintf("This will permanently delete %s %s.", singular(req.Kind), req.ID)
}

func singular(kind models.Kind) string {
	switch kind {
	case models.KindPost:
		return "post"
	case models.KindSavedPost:
		return "saved post"
	case models.KindSchedule:
		return "class"
	case models.KindTransaction:
		return "transaction"
	case models.KindTask:
		return "task"
	case models.KindSkill:
		return "skill"
	case models.KindExamRoutine:
		return "exam"
	}
	return string(kind)
}

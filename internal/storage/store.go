// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/brainbox-app/brainbox/internal/models"
)

var (
	// ErrNotFound is returned when an entity or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness rule,
	// e.g. saving the same post twice.
	ErrConflict = errors.New("conflict")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// UpdateUser stores the profile fields (display name, photo) and
	// updated_at of an existing user. Returns ErrNotFound if it does not exist.
	UpdateUser(ctx context.Context, user *models.User) error
}

// Store defines the interface for entity storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	UserStore

	// CreateEntity persists a new entity. The caller assigns ID and owner
	// (models.Entity.Assign) before calling.
	// Returns ErrConflict when the entity's unique key is already taken.
	CreateEntity(ctx context.Context, e models.Entity) error

	// GetEntity retrieves an entity by kind and ID.
	// Returns ErrNotFound if it does not exist.
	GetEntity(ctx context.Context, kind models.Kind, id string) (models.Entity, error)

	// ListEntities returns the entities of a kind owned by owner, oldest first.
	// An empty owner lists every owner's entities (used by the public feed).
	ListEntities(ctx context.Context, kind models.Kind, owner string) ([]models.Entity, error)

	// UpdateEntity replaces the stored document of an existing entity.
	// Returns ErrNotFound if it does not exist.
	UpdateEntity(ctx context.Context, e models.Entity) error

	// DeleteEntity removes an entity.
	// Returns ErrNotFound if it does not exist.
	DeleteEntity(ctx context.Context, kind models.Kind, id string) error

	// SetLike adds or removes user from a post's likedBy set atomically
	// and returns the post as stored.
	SetLike(ctx context.Context, postID, user string, liked bool) (*models.Post, error)

	// Close releases any resources held by the store.
	Close() error
}

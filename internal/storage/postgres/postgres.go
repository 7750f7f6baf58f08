// Package postgres provides a PostgreSQL-backed implementation of storage.Store
// built on a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    photo_url TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    owner_key TEXT NOT NULL,
    unique_key TEXT,
    body JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_kind_owner ON entities(kind, owner_key);
CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_unique ON entities(kind, owner_key, unique_key);
`

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements storage.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, sizes the pool and applies the schema.
func New(ctx context.Context, databaseURL string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	cfg.ConnConfig.StatementCacheCapacity = 256

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateEntity(ctx context.Context, e models.Entity) error {
	if e.EntityID() == "" {
		return fmt.Errorf("create %s: entity has no id", e.Kind())
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.Kind(), err)
	}

	var unique *string
	if key := models.UniqueKey(e); key != "" {
		unique = &key
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO entities (id, kind, owner_key, unique_key, body)
		VALUES ($1, $2, $3, $4, $5)
	`, e.EntityID(), string(e.Kind()), e.OwnerKey(), unique, body)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %s: %w", e.Kind(), models.UniqueKey(e), storage.ErrConflict)
		}
		return fmt.Errorf("failed to insert %s: %w", e.Kind(), err)
	}
	return nil
}

func (s *Store) GetEntity(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM entities WHERE kind = $1 AND id = $2`,
		string(kind), id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return models.Decode(kind, body)
}

func (s *Store) ListEntities(ctx context.Context, kind models.Kind, owner string) ([]models.Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT body FROM entities
		WHERE kind = $1 AND ($2 = '' OR owner_key = $2)
		ORDER BY created_at, id
	`, string(kind), owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	entities := []models.Entity{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		e, err := models.Decode(kind, body)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", kind, err)
	}
	return entities, nil
}

func (s *Store) UpdateEntity(ctx context.Context, e models.Entity) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.Kind(), err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET body = $1, updated_at = now() WHERE kind = $2 AND id = $3`,
		body, string(e.Kind()), e.EntityID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", e.Kind(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", e.Kind(), e.EntityID(), storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteEntity(ctx context.Context, kind models.Kind, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM entities WHERE kind = $1 AND id = $2`,
		string(kind), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// SetLike locks the post row for the read-modify-write.
func (s *Store) SetLike(ctx context.Context, postID, user string, liked bool) (*models.Post, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var body []byte
	err = tx.QueryRow(ctx,
		`SELECT body FROM entities WHERE kind = $1 AND id = $2 FOR UPDATE`,
		string(models.KindPost), postID,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	post := &models.Post{}
	if err := json.Unmarshal(body, post); err != nil {
		return nil, fmt.Errorf("failed to decode post: %w", err)
	}
	if !post.SetLiked(user, liked) {
		return post, nil
	}

	updated, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE entities SET body = $1, updated_at = now() WHERE kind = $2 AND id = $3`,
		updated, string(models.KindPost), postID,
	); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return post, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

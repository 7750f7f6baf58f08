// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateEntity inserts a new entity document.
func (s *SQLiteStore) CreateEntity(ctx context.Context, e models.Entity) error {
	if e.EntityID() == "" {
		return fmt.Errorf("create %s: entity has no id", e.Kind())
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.Kind(), err)
	}

	var unique any
	if key := models.UniqueKey(e); key != "" {
		unique = key
	}

	now := time.Now().UnixNano()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, kind, owner_key, unique_key, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EntityID(), string(e.Kind()), e.OwnerKey(), unique, string(body), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %s: %w", e.Kind(), models.UniqueKey(e), storage.ErrConflict)
		}
		return fmt.Errorf("failed to insert %s: %w", e.Kind(), err)
	}
	return nil
}

// GetEntity retrieves an entity by kind and ID.
func (s *SQLiteStore) GetEntity(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM entities WHERE kind = ? AND id = ?",
		string(kind), id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return models.Decode(kind, []byte(body))
}

// ListEntities retrieves the entities of a kind, optionally scoped to one owner.
func (s *SQLiteStore) ListEntities(ctx context.Context, kind models.Kind, owner string) ([]models.Entity, error) {
	query := "SELECT body FROM entities WHERE kind = ?"
	args := []any{string(kind)}
	if owner != "" {
		query += " AND owner_key = ?"
		args = append(args, owner)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	entities := []models.Entity{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		e, err := models.Decode(kind, []byte(body))
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

// UpdateEntity replaces the stored document.
func (s *SQLiteStore) UpdateEntity(ctx context.Context, e models.Entity) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.Kind(), err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE entities SET body = ?, updated_at = ? WHERE kind = ? AND id = ?",
		string(body), time.Now().UnixNano(), string(e.Kind()), e.EntityID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", e.Kind(), err)
	}
	return expectOneRow(res, e.Kind(), e.EntityID())
}

// DeleteEntity removes an entity by kind and ID.
func (s *SQLiteStore) DeleteEntity(ctx context.Context, kind models.Kind, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM entities WHERE kind = ? AND id = ?",
		string(kind), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	return expectOneRow(res, kind, id)
}

// SetLike toggles user's membership in a post's likedBy set inside a transaction.
func (s *SQLiteStore) SetLike(ctx context.Context, postID, user string, liked bool) (*models.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx,
		"SELECT body FROM entities WHERE kind = ? AND id = ?",
		string(models.KindPost), postID,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	post := &models.Post{}
	if err := json.Unmarshal([]byte(body), post); err != nil {
		return nil, fmt.Errorf("failed to decode post: %w", err)
	}
	if !post.SetLiked(user, liked) {
		return post, nil
	}

	updated, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE entities SET body = ?, updated_at = ? WHERE kind = ? AND id = ?",
		string(updated), time.Now().UnixNano(), string(models.KindPost), postID,
	); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return post, nil
}

func expectOneRow(res sql.Result, kind models.Kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}


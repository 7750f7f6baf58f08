package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "brainbox-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTask(id, owner, subject string) *models.Task {
	task := &models.Task{Subject: subject, Priority: models.PriorityMedium, Deadline: "2025-09-01"}
	task.Assign(id, owner, time.Now())
	return task
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateEntity and GetEntity round trip", func(t *testing.T) {
		original := newTask("t1", "alice@example.com", "Algebra")
		if err := store.CreateEntity(ctx, original); err != nil {
			t.Fatalf("CreateEntity failed: %v", err)
		}

		got, err := store.GetEntity(ctx, models.KindTask, "t1")
		if err != nil {
			t.Fatalf("GetEntity failed: %v", err)
		}
		task, ok := got.(*models.Task)
		if !ok {
			t.Fatalf("expected *models.Task, got %T", got)
		}
		if task.Subject != "Algebra" || task.OwnerID != "alice@example.com" {
			t.Errorf("round trip mismatch: %+v", task)
		}
	})

	t.Run("GetEntity returns ErrNotFound for nonexistent entity", func(t *testing.T) {
		_, err := store.GetEntity(ctx, models.KindTask, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListEntities is scoped to owner", func(t *testing.T) {
		if err := store.CreateEntity(ctx, newTask("t2", "bob@example.com", "Biology")); err != nil {
			t.Fatalf("CreateEntity failed: %v", err)
		}
		if err := store.CreateEntity(ctx, newTask("t3", "alice@example.com", "Chemistry")); err != nil {
			t.Fatalf("CreateEntity failed: %v", err)
		}

		alice, err := store.ListEntities(ctx, models.KindTask, "alice@example.com")
		if err != nil {
			t.Fatalf("ListEntities failed: %v", err)
		}
		if len(alice) != 2 {
			t.Fatalf("expected 2 tasks for alice, got %d", len(alice))
		}
		for _, e := range alice {
			if e.OwnerKey() != "alice@example.com" {
				t.Errorf("foreign entity in alice's list: %+v", e)
			}
		}

		all, err := store.ListEntities(ctx, models.KindTask, "")
		if err != nil {
			t.Fatalf("ListEntities failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 tasks overall, got %d", len(all))
		}
	})

	t.Run("UpdateEntity replaces document", func(t *testing.T) {
		task := newTask("t4", "alice@example.com", "Draft")
		if err := store.CreateEntity(ctx, task); err != nil {
			t.Fatalf("CreateEntity failed: %v", err)
		}
		task.Subject = "Final"
		task.IsCompleted = true
		if err := store.UpdateEntity(ctx, task); err != nil {
			t.Fatalf("UpdateEntity failed: %v", err)
		}

		got, _ := store.GetEntity(ctx, models.KindTask, "t4")
		if got.(*models.Task).Subject != "Final" || !got.(*models.Task).IsCompleted {
			t.Errorf("update not persisted: %+v", got)
		}

		missing := newTask("ghost", "alice@example.com", "x")
		if err := store.UpdateEntity(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound updating missing entity, got %v", err)
		}
	})

	t.Run("DeleteEntity twice yields ErrNotFound", func(t *testing.T) {
		if err := store.CreateEntity(ctx, newTask("t5", "alice@example.com", "Temp")); err != nil {
			t.Fatalf("CreateEntity failed: %v", err)
		}
		if err := store.DeleteEntity(ctx, models.KindTask, "t5"); err != nil {
			t.Fatalf("DeleteEntity failed: %v", err)
		}
		if err := store.DeleteEntity(ctx, models.KindTask, "t5"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestSavedPostUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.SavedPost{OriginalPostID: "p1"}
	first.Assign("s1", "viewer@example.com", time.Now())
	if err := store.CreateEntity(ctx, first); err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}

	dup := &models.SavedPost{OriginalPostID: "p1"}
	dup.Assign("s2", "viewer@example.com", time.Now())
	if err := store.CreateEntity(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate save, got %v", err)
	}

	other := &models.SavedPost{OriginalPostID: "p1"}
	other.Assign("s3", "someone@example.com", time.Now())
	if err := store.CreateEntity(ctx, other); err != nil {
		t.Errorf("another viewer may save the same post: %v", err)
	}
}

func TestSetLike(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	post := &models.Post{AuthorName: "Alice", Message: "hello", Category: "General"}
	post.Assign("p1", "alice@example.com", time.Now())
	if err := store.CreateEntity(ctx, post); err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}

	got, err := store.SetLike(ctx, "p1", "bob@example.com", true)
	if err != nil {
		t.Fatalf("SetLike failed: %v", err)
	}
	if got.LikeCount() != 1 || !got.IsLikedBy("bob@example.com") {
		t.Errorf("expected bob in likedBy, got %v", got.LikedBy)
	}

	// Setting the same state again is idempotent.
	got, err = store.SetLike(ctx, "p1", "bob@example.com", true)
	if err != nil {
		t.Fatalf("SetLike failed: %v", err)
	}
	if got.LikeCount() != 1 {
		t.Errorf("duplicate like recorded: %v", got.LikedBy)
	}

	got, err = store.SetLike(ctx, "p1", "bob@example.com", false)
	if err != nil {
		t.Fatalf("SetLike failed: %v", err)
	}
	if got.LikeCount() != 0 {
		t.Errorf("expected no likes, got %v", got.LikedBy)
	}

	if _, err := store.SetLike(ctx, "missing", "bob@example.com", true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("carol@example.com", "Carol", "hash")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byEmail, err := store.GetUserByEmail(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.DisplayName != "Carol" {
		t.Errorf("unexpected user: %+v", byEmail)
	}

	if _, err := store.GetUserByID(ctx, user.ID); err != nil {
		t.Errorf("GetUserByID failed: %v", err)
	}

	if _, err := store.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	user.DisplayName = "Carol K."
	user.PhotoURL = "https://img.example.com/carol.png"
	user.UpdatedAt++
	if err := store.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	updated, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if updated.DisplayName != "Carol K." || updated.PhotoURL != "https://img.example.com/carol.png" || updated.UpdatedAt != user.UpdatedAt {
		t.Errorf("profile not updated: %+v", updated)
	}
	if updated.Email != "carol@example.com" || updated.PasswordHash != "hash" {
		t.Errorf("UpdateUser touched login fields: %+v", updated)
	}

	ghost := models.NewUser("ghost@example.com", "Ghost", "hash")
	if err := store.UpdateUser(ctx, ghost); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}

	dup := models.NewUser("carol@example.com", "Carol Again", "hash")
	if err := store.CreateUser(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate email, got %v", err)
	}
}

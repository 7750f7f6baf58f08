package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/storage"
)

// newTestStore connects to BRAINBOX_TEST_DATABASE_URL or skips.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("BRAINBOX_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BRAINBOX_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := New(ctx, url, 4)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New().String() + "@example.com"

	task := &models.Task{Subject: "Thermodynamics", Priority: models.PriorityHigh, Deadline: "2025-10-01"}
	task.Assign(uuid.New().String(), owner, time.Now())
	if err := store.CreateEntity(ctx, task); err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}

	list, err := store.ListEntities(ctx, models.KindTask, owner)
	if err != nil {
		t.Fatalf("ListEntities failed: %v", err)
	}
	if len(list) != 1 || list[0].EntityID() != task.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := store.DeleteEntity(ctx, models.KindTask, task.ID); err != nil {
		t.Fatalf("DeleteEntity failed: %v", err)
	}
	if err := store.DeleteEntity(ctx, models.KindTask, task.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresSavedPostConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	viewer := uuid.New().String() + "@example.com"

	first := &models.SavedPost{OriginalPostID: "p-" + viewer}
	first.Assign(uuid.New().String(), viewer, time.Now())
	if err := store.CreateEntity(ctx, first); err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}

	dup := &models.SavedPost{OriginalPostID: first.OriginalPostID}
	dup.Assign(uuid.New().String(), viewer, time.Now())
	if err := store.CreateEntity(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPostgresUpdateUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser(uuid.New().String()+"@example.com", "Dana", "hash")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user.DisplayName = "Dana S."
	user.PhotoURL = "https://img.example.com/dana.png"
	if err := store.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	got, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.DisplayName != "Dana S." || got.PhotoURL != "https://img.example.com/dana.png" {
		t.Errorf("profile not updated: %+v", got)
	}

	ghost := models.NewUser(uuid.New().String()+"@example.com", "Ghost", "hash")
	if err := store.UpdateUser(ctx, ghost); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

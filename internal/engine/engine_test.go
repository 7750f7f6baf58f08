package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/brainbox-app/brainbox/internal/auth"
	"github.com/brainbox-app/brainbox/internal/changefeed"
	"github.com/brainbox-app/brainbox/internal/confirm"
	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/mutation"
	"github.com/brainbox-app/brainbox/internal/optimistic"
	"github.com/brainbox-app/brainbox/internal/remote"
	"github.com/brainbox-app/brainbox/internal/service"
	"github.com/brainbox-app/brainbox/internal/session"
	"github.com/brainbox-app/brainbox/internal/storage/sqlite"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newBackend(t *testing.T) string {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	server := httptest.NewServer(service.NewHandler(service.Options{
		Store:  store,
		JWT:    auth.NewJWTManager("test-secret", time.Hour),
		Logger: quiet,
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func signUp(t *testing.T, baseURL, email, name string) *session.Session {
	t.Helper()
	sess, err := remote.NewAuthClient(baseURL, nil).Register(context.Background(), email, name, "", "password123")
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return sess
}

func newEngine(baseURL string, sess *session.Session, gate confirm.Gate) *Engine {
	return New(Config{
		Remote: remote.New(baseURL, sess),
		Gate:   gate,
		Logger: quiet,
	})
}

func newTask(subject string) *models.Task {
	return &models.Task{Subject: subject, Priority: models.PriorityMedium, Deadline: "2025-12-01"}
}

func ids(entities []models.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.EntityID()
	}
	return out
}

func TestCreateThenList(t *testing.T) {
	baseURL := newBackend(t)
	eng := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	ctx := context.Background()

	before, err := eng.List(ctx, models.KindTask, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if before.Len() != 0 {
		t.Fatalf("expected empty list, got %v", ids(before.Entities))
	}

	created, err := eng.Add(ctx, newTask("Thermodynamics"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	after, err := eng.List(ctx, models.KindTask, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if after == before {
		t.Fatal("the create should have invalidated the cached list")
	}
	got, ok := after.Find(created.EntityID())
	if !ok {
		t.Fatalf("created task %s missing from %v", created.EntityID(), ids(after.Entities))
	}
	if got.OwnerKey() != "alice@example.com" || got.(*models.Task).Subject != "Thermodynamics" {
		t.Errorf("unexpected task: %+v", got)
	}

	again, _ := eng.List(ctx, models.KindTask, nil)
	if again != after {
		t.Error("a second read without changes should return the same snapshot")
	}
}

func TestOwnershipIsolation(t *testing.T) {
	baseURL := newBackend(t)
	alice := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), confirm.Static(true))
	bob := newEngine(baseURL, signUp(t, baseURL, "bob@example.com", "Bob"), confirm.Static(true))
	ctx := context.Background()

	task, err := alice.Add(ctx, newTask("Private"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	snap, err := bob.List(ctx, models.KindTask, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("bob sees alice's tasks: %v", ids(snap.Entities))
	}

	if _, err := bob.Edit(ctx, models.KindTask, task.EntityID(), models.Patch{"subject": "Mine now"}); !remote.IsNotFound(err) {
		t.Errorf("editing a foreign task: expected NotFound, got %v", err)
	}
	if err := bob.Remove(ctx, models.KindTask, task.EntityID()); !remote.IsNotFound(err) {
		t.Errorf("deleting a foreign task: expected NotFound, got %v", err)
	}

	mine, _ := alice.List(ctx, models.KindTask, nil)
	got, ok := mine.Find(task.EntityID())
	if !ok || got.(*models.Task).Subject != "Private" {
		t.Errorf("alice's task changed: %+v", got)
	}
}

func TestSecondDeleteIsNotFound(t *testing.T) {
	baseURL := newBackend(t)
	eng := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), confirm.Static(true))
	ctx := context.Background()

	task, err := eng.Add(ctx, newTask("Temp"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := eng.Remove(ctx, models.KindTask, task.EntityID()); err != nil {
		t.Fatalf("first Remove failed: %v", err)
	}
	if err := eng.Remove(ctx, models.KindTask, task.EntityID()); !remote.IsNotFound(err) {
		t.Errorf("second Remove: expected NotFound, got %v", err)
	}
}

func TestDeleteDeclined(t *testing.T) {
	baseURL := newBackend(t)
	var asked string
	gate := confirm.Func(func(_ context.Context, message string) (bool, error) {
		asked = message
		return false, nil
	})
	sess := signUp(t, baseURL, "alice@example.com", "Alice")
	eng := newEngine(baseURL, sess, gate)
	ctx := context.Background()

	exam, err := eng.Add(ctx, &models.ExamRoutineEntry{
		CourseName: "Chemistry", CourseCode: "CH101", ExamDate: "2025-06-10", ExamTime: "10:00",
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	before, _ := eng.List(ctx, models.KindExamRoutine, nil)

	if err := eng.Remove(ctx, models.KindExamRoutine, exam.EntityID()); !errors.Is(err, mutation.ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if asked == "" {
		t.Error("the gate was never asked")
	}

	after, _ := eng.List(ctx, models.KindExamRoutine, nil)
	if after != before {
		t.Error("a declined delete must leave the cache untouched")
	}

	// The server still has it.
	fresh := newEngine(baseURL, sess, nil)
	snap, err := fresh.List(ctx, models.KindExamRoutine, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if _, ok := snap.Find(exam.EntityID()); !ok {
		t.Error("declined delete reached the server")
	}
}

// Two devices signed in as the same user edit the same task. Partial updates
// merge on the server, and a change notification makes the second device see
// the first device's edit.
func TestConcurrentEdits(t *testing.T) {
	baseURL := newBackend(t)
	sess := signUp(t, baseURL, "alice@example.com", "Alice")
	laptop := newEngine(baseURL, sess, nil)
	phone := newEngine(baseURL, sess, nil)
	ctx := context.Background()

	task, err := laptop.Add(ctx, newTask("Draft essay"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id := task.EntityID()

	if _, err := laptop.Edit(ctx, models.KindTask, id, models.Patch{"subject": "Final essay"}); err != nil {
		t.Fatalf("laptop Edit failed: %v", err)
	}
	if _, err := laptop.List(ctx, models.KindTask, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	updated, err := phone.Edit(ctx, models.KindTask, id, models.Patch{"priority": "High"})
	if err != nil {
		t.Fatalf("phone Edit failed: %v", err)
	}
	got := updated.(*models.Task)
	if got.Subject != "Final essay" || got.Priority != models.PriorityHigh {
		t.Errorf("edits did not merge: %+v", got)
	}

	snap, _ := laptop.List(ctx, models.KindTask, nil)
	stale, _ := snap.Find(id)
	if stale.(*models.Task).Priority == models.PriorityHigh {
		t.Fatal("laptop should still hold its cached list before the notification")
	}

	laptop.HandleChange(changefeed.Event{Kind: models.KindTask, ID: id, Owner: sess.OwnerKey, Action: changefeed.ActionUpdated})

	snap, err = laptop.List(ctx, models.KindTask, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	fresh, _ := snap.Find(id)
	if fresh.(*models.Task).Priority != models.PriorityHigh {
		t.Errorf("laptop did not refetch after the notification: %+v", fresh)
	}
}

func TestLikeToggle(t *testing.T) {
	baseURL := newBackend(t)
	alice := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	bob := newEngine(baseURL, signUp(t, baseURL, "bob@example.com", "Bob"), nil)
	ctx := context.Background()

	post, err := alice.Add(ctx, &models.Post{Message: "Study group at 6?", Category: "Events"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id := post.EntityID()

	if _, err := bob.ToggleLike(ctx, id); !errors.Is(err, optimistic.ErrNotLoaded) {
		t.Errorf("liking an unloaded post: expected ErrNotLoaded, got %v", err)
	}

	if _, err := bob.Feed(ctx, ""); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	liked, err := bob.ToggleLike(ctx, id)
	if err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}
	if !liked.IsLikedBy("bob@example.com") || liked.LikeCount() != 1 {
		t.Errorf("after like: %v", liked.LikedBy)
	}

	snap, _ := bob.Feed(ctx, "")
	cached, _ := snap.Find(id)
	if cached.(*models.Post).LikeCount() != 1 {
		t.Errorf("feed cache not updated: %v", cached.(*models.Post).LikedBy)
	}

	unliked, err := bob.ToggleLike(ctx, id)
	if err != nil {
		t.Fatalf("second ToggleLike failed: %v", err)
	}
	if unliked.LikeCount() != 0 {
		t.Errorf("after unlike: %v", unliked.LikedBy)
	}
}

func TestSavePost(t *testing.T) {
	baseURL := newBackend(t)
	alice := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	bobSess := signUp(t, baseURL, "bob@example.com", "Bob")
	bob := newEngine(baseURL, bobSess, nil)
	ctx := context.Background()

	post, err := alice.Add(ctx, &models.Post{Message: "Notes for chapter 3", Category: "Study Tips"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id := post.EntityID()

	if _, err := bob.Feed(ctx, ""); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if _, err := bob.List(ctx, models.KindSavedPost, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	saved, err := bob.SavePost(ctx, id)
	if err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}
	if saved.OriginalPostID != id || saved.ViewerID != "bob@example.com" || saved.Message != "Notes for chapter 3" {
		t.Errorf("unexpected saved post: %+v", saved)
	}

	snap, _ := bob.List(ctx, models.KindSavedPost, nil)
	if snap.Len() != 1 || snap.Entities[0].EntityID() != saved.ID {
		t.Errorf("saved list = %v, want [%s]", ids(snap.Entities), saved.ID)
	}

	if _, err := bob.SavePost(ctx, id); !errors.Is(err, optimistic.ErrAlreadySaved) {
		t.Errorf("second save: expected ErrAlreadySaved, got %v", err)
	}

	// A second device that has not loaded the saved list learns from the server.
	other := newEngine(baseURL, bobSess, nil)
	if _, err := other.Feed(ctx, ""); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if _, err := other.SavePost(ctx, id); !errors.Is(err, optimistic.ErrAlreadySaved) || remote.KindOf(err) != remote.Conflict {
		t.Errorf("save from another device: expected ErrAlreadySaved from a conflict, got %v", err)
	}
	snap, err = other.List(ctx, models.KindSavedPost, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Len() != 1 {
		t.Errorf("rolled back save left %v", ids(snap.Entities))
	}

	// Alice edits her post; the saved copy keeps the old text.
	if _, err := alice.Edit(ctx, models.KindPost, id, models.Patch{"message": "Edited"}); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	bob.HandleChange(changefeed.Event{Kind: models.KindSavedPost, Action: changefeed.ActionUpdated})
	snap, _ = bob.List(ctx, models.KindSavedPost, nil)
	if snap.Entities[0].(*models.SavedPost).Message != "Notes for chapter 3" {
		t.Error("saved snapshot followed the edit of the original")
	}
}

func TestToggleDone(t *testing.T) {
	baseURL := newBackend(t)
	eng := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	ctx := context.Background()

	skill, err := eng.Add(ctx, &models.SkillGoal{Name: "Go", GoalText: "Write a CLI", ProgressPercent: 80})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	task, err := eng.Add(ctx, newTask("Lab report"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := eng.List(ctx, models.KindSkill, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if _, err := eng.List(ctx, models.KindTask, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	got, err := eng.ToggleDone(ctx, models.KindSkill, skill.EntityID())
	if err != nil {
		t.Fatalf("ToggleDone(skill) failed: %v", err)
	}
	if got.(*models.SkillGoal).Status != models.SkillCompleted {
		t.Errorf("skill status = %s, want completed", got.(*models.SkillGoal).Status)
	}

	got, err = eng.ToggleDone(ctx, models.KindTask, task.EntityID())
	if err != nil {
		t.Fatalf("ToggleDone(task) failed: %v", err)
	}
	if !got.(*models.Task).IsCompleted {
		t.Error("task should be completed")
	}
	got, err = eng.ToggleDone(ctx, models.KindTask, task.EntityID())
	if err != nil {
		t.Fatalf("ToggleDone(task) failed: %v", err)
	}
	if got.(*models.Task).IsCompleted {
		t.Error("second toggle should reopen the task")
	}

	if _, err := eng.ToggleDone(ctx, models.KindTransaction, "x"); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("expected ErrInvalid for transactions, got %v", err)
	}
}

func TestToggleDoneDropsDeletedEntity(t *testing.T) {
	baseURL := newBackend(t)
	sess := signUp(t, baseURL, "alice@example.com", "Alice")
	eng := newEngine(baseURL, sess, nil)
	other := newEngine(baseURL, sess, confirm.Static(true))
	ctx := context.Background()

	task, err := eng.Add(ctx, newTask("Gone soon"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := eng.List(ctx, models.KindTask, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if err := other.Remove(ctx, models.KindTask, task.EntityID()); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := eng.ToggleDone(ctx, models.KindTask, task.EntityID()); !remote.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	snap, _ := eng.cache.Get(eng.Key(models.KindTask, nil))
	if _, ok := snap.Find(task.EntityID()); ok {
		t.Error("a task the server reports gone should be dropped from the cache")
	}
}

func TestSummaries(t *testing.T) {
	baseURL := newBackend(t)
	eng := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	ctx := context.Background()
	eng.now = func() time.Time { return time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC) }

	for _, tx := range []*models.Transaction{
		{Type: models.Income, Category: "Scholarship", Amount: 300, Date: "2025-11-01"},
		{Type: models.Expense, Category: "Books", Amount: 45, Date: "2025-11-03"},
	} {
		if _, err := eng.Add(ctx, tx); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	budget, err := eng.BudgetSummary(ctx, "2025-11")
	if err != nil {
		t.Fatalf("BudgetSummary failed: %v", err)
	}
	if budget.Balance != 255 || budget.Count != 2 {
		t.Errorf("budget = %+v", budget)
	}

	hours := 8.0
	task := newTask("Term paper")
	task.EstimatedHours = &hours
	if _, err := eng.Add(ctx, task); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	w, err := eng.Workload(ctx)
	if err != nil {
		t.Fatalf("Workload failed: %v", err)
	}
	// Deadline 2025-12-01 is four days away including today.
	if len(w.Tasks) != 1 || w.Tasks[0].PerDay != 2 {
		t.Errorf("workload = %+v", w)
	}
}

func TestForeignPostCannotBeEditedOrDeleted(t *testing.T) {
	baseURL := newBackend(t)
	alice := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	prompted := false
	bob := newEngine(baseURL, signUp(t, baseURL, "bob@example.com", "Bob"), confirm.Func(func(context.Context, string) (bool, error) {
		prompted = true
		return true, nil
	}))
	ctx := context.Background()

	post, err := alice.Add(ctx, &models.Post{Message: "Lab partners wanted", Category: "Events"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id := post.EntityID()
	before, err := bob.Feed(ctx, "")
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}

	if _, err := bob.Edit(ctx, models.KindPost, id, models.Patch{"message": "Hijacked"}); !errors.Is(err, mutation.ErrNotOwner) {
		t.Errorf("Edit: expected ErrNotOwner, got %v", err)
	}
	if err := bob.Remove(ctx, models.KindPost, id); !errors.Is(err, mutation.ErrNotOwner) {
		t.Errorf("Remove: expected ErrNotOwner, got %v", err)
	}
	if prompted {
		t.Error("bob was asked to confirm deleting alice's post")
	}

	after, err := bob.Feed(ctx, "")
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if after != before || after.Len() != 1 {
		t.Errorf("feed changed after rejected writes: %v", ids(after.Entities))
	}
}

func TestForeignTaskCannotBeToggled(t *testing.T) {
	baseURL := newBackend(t)
	alice := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	bob := newEngine(baseURL, signUp(t, baseURL, "bob@example.com", "Bob"), nil)
	ctx := context.Background()

	task, err := alice.Add(ctx, newTask("Alice's essay"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	key := bob.Key(models.KindTask, nil)
	bob.cache.Set(key, []models.Entity{task})
	before, _ := bob.cache.Get(key)

	if _, err := bob.ToggleDone(ctx, models.KindTask, task.EntityID()); !errors.Is(err, mutation.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if after, _ := bob.cache.Get(key); after != before {
		t.Error("a rejected toggle must leave the cache untouched")
	}

	snap, err := alice.List(ctx, models.KindTask, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Entities[0].(*models.Task).IsCompleted {
		t.Error("alice's task was changed by bob")
	}
}

func TestToggleDoneRefreshesFilteredLists(t *testing.T) {
	baseURL := newBackend(t)
	eng := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	ctx := context.Background()

	exam, err := eng.Add(ctx, &models.ExamRoutineEntry{CourseName: "Chemistry", CourseCode: "CH101", ExamDate: "2025-06-10", ExamTime: "10:00"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	pendingFilter := models.Filter{"status": "pending"}
	doneFilter := models.Filter{"status": "completed"}

	pending, err := eng.List(ctx, models.KindExamRoutine, pendingFilter)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if pending.Len() != 1 {
		t.Fatalf("pending = %v, want the new exam", ids(pending.Entities))
	}
	done, err := eng.List(ctx, models.KindExamRoutine, doneFilter)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if done.Len() != 0 {
		t.Fatalf("completed = %v, want empty", ids(done.Entities))
	}
	if _, err := eng.List(ctx, models.KindExamRoutine, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if _, err := eng.ToggleDone(ctx, models.KindExamRoutine, exam.EntityID()); err != nil {
		t.Fatalf("ToggleDone failed: %v", err)
	}

	pending, err = eng.List(ctx, models.KindExamRoutine, pendingFilter)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if pending.Len() != 0 {
		t.Errorf("pending list still shows %v after completing the exam", ids(pending.Entities))
	}
	done, err = eng.List(ctx, models.KindExamRoutine, doneFilter)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if done.Len() != 1 || done.Entities[0].EntityID() != exam.EntityID() {
		t.Errorf("completed = %v, want [%s]", ids(done.Entities), exam.EntityID())
	}
	all, _ := eng.cache.Get(eng.Key(models.KindExamRoutine, nil))
	if all == nil {
		t.Fatal("unfiltered list should stay cached")
	}
	if e, _ := all.Find(exam.EntityID()); e.(*models.ExamRoutineEntry).Status != models.ExamCompleted {
		t.Error("unfiltered list should hold the completed exam")
	}
}

func TestEditRefreshesFilteredLists(t *testing.T) {
	baseURL := newBackend(t)
	eng := newEngine(baseURL, signUp(t, baseURL, "alice@example.com", "Alice"), nil)
	ctx := context.Background()

	task, err := eng.Add(ctx, newTask("Problem set"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	medium := models.Filter{"priority": "Medium"}
	snap, err := eng.List(ctx, models.KindTask, medium)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Len() != 1 {
		t.Fatalf("medium = %v, want the new task", ids(snap.Entities))
	}

	if _, err := eng.Edit(ctx, models.KindTask, task.EntityID(), models.Patch{"priority": "High"}); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	snap, err = eng.List(ctx, models.KindTask, medium)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("medium list still shows %v after raising the priority", ids(snap.Entities))
	}
	snap, err = eng.List(ctx, models.KindTask, models.Filter{"priority": "High"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Len() != 1 {
		t.Errorf("high = %v, want [%s]", ids(snap.Entities), task.EntityID())
	}
}

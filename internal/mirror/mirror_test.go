package mirror

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/brainbox-app/brainbox/internal/metrics"
	"github.com/brainbox-app/brainbox/internal/models"
)

func task(id, subject string) *models.Task {
	return &models.Task{ID: id, OwnerID: "alice@example.com", Subject: subject, Priority: models.PriorityLow, Deadline: "2025-09-01"}
}

// countingLoader returns a loader that counts calls and optionally blocks until release is closed.
func countingLoader(calls *atomic.Int32, release <-chan struct{}, entities ...models.Entity) Loader {
	return func(ctx context.Context) ([]models.Entity, error) {
		calls.Add(1)
		if release != nil {
			<-release
		}
		return entities, nil
	}
}

func TestLoadReturnsIdenticalSnapshot(t *testing.T) {
	c := New(nil)
	key := NewKey(models.KindTask, "alice@example.com", nil)
	var calls atomic.Int32
	loader := countingLoader(&calls, nil, task("t1", "Algebra"))

	first, err := c.Load(context.Background(), key, loader)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := c.Load(context.Background(), key, loader)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if first != second {
		t.Error("expected the identical snapshot pointer on repeated reads")
	}
	if calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", calls.Load())
	}

	c.Invalidate(key)
	third, _ := c.Load(context.Background(), key, loader)
	if third == first {
		t.Error("invalidation must force a new snapshot")
	}
	if calls.Load() != 2 {
		t.Errorf("loader called %d times after invalidation, want 2", calls.Load())
	}
}

func TestLoadCoalescesConcurrentReaders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSync(reg)
	c := New(m)
	key := NewKey(models.KindSkill, "alice@example.com", models.Filter{"status": "completed"})

	var calls atomic.Int32
	release := make(chan struct{})
	loader := countingLoader(&calls, release)

	const readers = 8
	results := make([]*Snapshot, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Load(context.Background(), key, loader)
			if err != nil {
				t.Errorf("Load failed: %v", err)
				return
			}
			results[i] = s
		}(i)
	}

	// Let every reader join before the single fetch completes.
	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.CacheMisses)+testutil.ToFloat64(m.CacheCoalesced) < readers {
		if time.Now().After(deadline) {
			t.Fatal("readers did not all reach the cache")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("loader called %d times, want exactly 1", calls.Load())
	}
	for i := 1; i < readers; i++ {
		if results[i] != results[0] {
			t.Fatalf("reader %d got a different snapshot", i)
		}
	}
	if got := testutil.ToFloat64(m.CacheMisses); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
}

func TestReleaseDiscardsInFlightResult(t *testing.T) {
	c := New(nil)
	key := NewKey(models.KindTask, "alice@example.com", nil)

	var calls atomic.Int32
	release := make(chan struct{})
	done := make(chan *Snapshot, 1)
	go func() {
		s, _ := c.Load(context.Background(), key, countingLoader(&calls, release, task("t1", "Stale")))
		done <- s
	}()

	// Wait for the load to start, then navigate away.
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	c.Release(key)
	close(release)
	<-done

	if _, ok := c.Get(key); ok {
		t.Error("result of a released load must not be cached")
	}
}

func TestInvalidateDuringLoadStartsFreshFetch(t *testing.T) {
	c := New(nil)
	key := NewKey(models.KindTask, "alice@example.com", nil)

	var staleCalls atomic.Int32
	release := make(chan struct{})
	go c.Load(context.Background(), key, countingLoader(&staleCalls, release, task("t1", "Before")))
	for staleCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// A write lands while the stale list is in flight.
	c.InvalidateKind(models.KindTask)

	var freshCalls atomic.Int32
	fresh, err := c.Load(context.Background(), key, countingLoader(&freshCalls, nil, task("t1", "After")))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	close(release)

	if freshCalls.Load() != 1 {
		t.Fatal("read after invalidation must not join the stale in-flight list")
	}
	e, _ := fresh.Find("t1")
	if e.(*models.Task).Subject != "After" {
		t.Errorf("got %q, want the post-write value", e.(*models.Task).Subject)
	}

	// The stale result must not overwrite the fresh one.
	time.Sleep(20 * time.Millisecond)
	cached, _ := c.Get(key)
	if cached != fresh {
		t.Error("stale in-flight result replaced the fresh snapshot")
	}
}

func TestLoadErrorIsNotCached(t *testing.T) {
	c := New(nil)
	key := NewKey(models.KindTransaction, "alice@example.com", nil)
	boom := errors.New("boom")

	_, err := c.Load(context.Background(), key, func(context.Context) ([]models.Entity, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Fatal("failed load must not be cached")
	}

	var calls atomic.Int32
	if _, err := c.Load(context.Background(), key, countingLoader(&calls, nil)); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Error("retry after error should fetch again")
	}
}

func TestCanceledCallerStillPopulatesCache(t *testing.T) {
	c := New(nil)
	key := NewKey(models.KindTask, "alice@example.com", nil)

	var calls atomic.Int32
	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := c.Load(ctx, key, countingLoader(&calls, release, task("t1", "Kept")))
		errc <- err
	}()
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.Get(key); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("loader result was never cached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInvalidateKindIsCoarse(t *testing.T) {
	c := New(nil)
	all := NewKey(models.KindExamRoutine, "alice@example.com", nil)
	pending := NewKey(models.KindExamRoutine, "alice@example.com", models.Filter{"status": "pending"})
	tasks := NewKey(models.KindTask, "alice@example.com", nil)
	c.Set(all, nil)
	c.Set(pending, nil)
	c.Set(tasks, nil)

	c.InvalidateKind(models.KindExamRoutine)

	if _, ok := c.Get(all); ok {
		t.Error("unfiltered exam list should be invalidated")
	}
	if _, ok := c.Get(pending); ok {
		t.Error("filtered exam list should be invalidated")
	}
	if _, ok := c.Get(tasks); !ok {
		t.Error("other kinds must survive")
	}
}

func TestCopyOnWriteEdits(t *testing.T) {
	c := New(nil)
	key := NewKey(models.KindTask, "alice@example.com", nil)
	before := c.Set(key, []models.Entity{task("t1", "One"), task("t2", "Two")})

	edited := task("t1", "One (edited)")
	if !c.ReplaceEntity(edited) {
		t.Fatal("ReplaceEntity reported no change")
	}
	after, _ := c.Get(key)
	if after == before {
		t.Fatal("edit must produce a new snapshot")
	}
	if e, _ := before.Find("t1"); e.(*models.Task).Subject != "One" {
		t.Error("old snapshot was mutated")
	}
	if e, _ := after.Find("t1"); e.(*models.Task).Subject != "One (edited)" {
		t.Error("new snapshot missing the edit")
	}

	if !c.RemoveEntity(models.KindTask, "t2") {
		t.Fatal("RemoveEntity reported no change")
	}
	after, _ = c.Get(key)
	if after.Len() != 1 {
		t.Errorf("Len = %d after removal, want 1", after.Len())
	}
	if c.RemoveEntity(models.KindTask, "missing") {
		t.Error("removing an unknown id should report no change")
	}

	if e, ok := c.Find(models.KindTask, "t1"); !ok || e != edited {
		t.Error("Find should return the cached entity")
	}
}

func TestAppendAndRemoveFunc(t *testing.T) {
	c := New(nil)
	all := NewKey(models.KindExamRoutine, "alice@example.com", nil)
	pending := NewKey(models.KindExamRoutine, "alice@example.com", models.Filter{"status": "pending"})
	done := NewKey(models.KindExamRoutine, "alice@example.com", models.Filter{"status": "completed"})
	bobs := NewKey(models.KindExamRoutine, "bob@example.com", nil)
	for _, k := range []Key{all, pending, done, bobs} {
		c.Set(k, nil)
	}

	exam := &models.ExamRoutineEntry{ID: "e1", OwnerID: "alice@example.com", CourseName: "Chemistry", Status: models.ExamPending}
	if !c.AppendEntity(exam) {
		t.Fatal("AppendEntity reported no change")
	}

	lens := map[Key]int{all: 1, pending: 1, done: 0, bobs: 0}
	for k, want := range lens {
		s, _ := c.Get(k)
		if s.Len() != want {
			t.Errorf("%s: Len = %d, want %d", k, s.Len(), want)
		}
	}

	if c.AppendEntity(exam) {
		t.Error("appending an entity already present should be a no-op")
	}

	found, ok := c.FindFunc(models.KindExamRoutine, func(e models.Entity) bool {
		return e.(*models.ExamRoutineEntry).CourseName == "Chemistry"
	})
	if !ok || found.EntityID() != "e1" {
		t.Errorf("FindFunc = %v, %v", found, ok)
	}

	c.RemoveFunc(models.KindExamRoutine, func(e models.Entity) bool { return e.EntityID() == "e1" })
	if _, ok := c.Find(models.KindExamRoutine, "e1"); ok {
		t.Error("RemoveFunc left the entity behind")
	}
}

func TestSettleMovesEntityBetweenFilters(t *testing.T) {
	c := New(nil)
	all := NewKey(models.KindExamRoutine, "alice@example.com", nil)
	pending := NewKey(models.KindExamRoutine, "alice@example.com", models.Filter{"status": "pending"})
	done := NewKey(models.KindExamRoutine, "alice@example.com", models.Filter{"status": "completed"})
	bobsDone := NewKey(models.KindExamRoutine, "bob@example.com", models.Filter{"status": "completed"})

	exam := &models.ExamRoutineEntry{ID: "e1", OwnerID: "alice@example.com", CourseName: "Chemistry", Status: models.ExamPending}
	c.Set(all, []models.Entity{exam})
	c.Set(pending, []models.Entity{exam})
	c.Set(done, nil)
	c.Set(bobsDone, nil)

	sat := &models.ExamRoutineEntry{ID: "e1", OwnerID: "alice@example.com", CourseName: "Chemistry", Status: models.ExamCompleted}
	if !c.Settle(sat) {
		t.Fatal("Settle reported no change")
	}

	s, ok := c.Get(all)
	if !ok {
		t.Fatal("unfiltered list should be kept")
	}
	if e, _ := s.Find("e1"); e != sat {
		t.Error("unfiltered list should hold the settled copy")
	}
	if _, ok := c.Get(pending); ok {
		t.Error("pending list no longer matches and should be dropped")
	}
	if _, ok := c.Get(done); ok {
		t.Error("completed list is missing the exam and should be dropped")
	}
	if _, ok := c.Get(bobsDone); !ok {
		t.Error("another owner's list must survive")
	}

	if c.Settle(&models.Task{ID: "t9", OwnerID: "alice@example.com"}) {
		t.Error("settling a kind with no snapshots should be a no-op")
	}
}

func TestSettleReloadsAfterDrop(t *testing.T) {
	c := New(nil)
	pending := NewKey(models.KindExamRoutine, "alice@example.com", models.Filter{"status": "pending"})
	exam := &models.ExamRoutineEntry{ID: "e1", OwnerID: "alice@example.com", Status: models.ExamPending}
	c.Set(pending, []models.Entity{exam})

	c.Settle(&models.ExamRoutineEntry{ID: "e1", OwnerID: "alice@example.com", Status: models.ExamCompleted})

	var calls atomic.Int32
	s, err := c.Load(context.Background(), pending, countingLoader(&calls, nil))
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 || s.Len() != 0 {
		t.Errorf("calls = %d, Len = %d; want a fresh empty list", calls.Load(), s.Len())
	}
}

func TestFindPrefersNewestSnapshot(t *testing.T) {
	c := New(nil)
	clock := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	old := NewKey(models.KindTask, "alice@example.com", models.Filter{"priority": "low"})
	fresh := NewKey(models.KindTask, "alice@example.com", nil)
	c.Set(old, []models.Entity{task("t1", "Stale")})
	clock = clock.Add(time.Minute)
	c.Set(fresh, []models.Entity{task("t1", "Fresh")})

	for range 20 {
		e, ok := c.Find(models.KindTask, "t1")
		if !ok || e.(*models.Task).Subject != "Fresh" {
			t.Fatalf("Find = %v, %v; want the copy from the newest snapshot", e, ok)
		}
	}

	clock = clock.Add(time.Minute)
	c.Set(old, []models.Entity{task("t1", "Refetched")})
	if e, _ := c.Find(models.KindTask, "t1"); e.(*models.Task).Subject != "Refetched" {
		t.Errorf("Find = %q after refetch, want Refetched", e.(*models.Task).Subject)
	}
}

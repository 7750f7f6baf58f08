package planner

import (
	"sort"
	"sync"
	"time"
)

// Board keeps one timer per task.
type Board struct {
	mu     sync.Mutex
	timers map[string]*Timer
}

func NewBoard() *Board {
	return &Board{timers: make(map[string]*Timer)}
}

// Timer returns the task's timer, creating it with duration d if missing.
func (b *Board) Timer(taskID string, d time.Duration) *Timer {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.timers[taskID]
	if !ok {
		t = NewTimer(d)
		b.timers[taskID] = t
	}
	return t
}

// Tick advances every running timer and returns the ids that finished.
func (b *Board) Tick(elapsed time.Duration) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var done []string
	for id, t := range b.timers {
		if t.Tick(elapsed) {
			done = append(done, id)
		}
	}
	sort.Strings(done)
	return done
}

// Remove drops a task's timer.
func (b *Board) Remove(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.timers, taskID)
}

// Active lists the ids of running timers.
func (b *Board) Active() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for id, t := range b.timers {
		if t.Running() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

package models

import "time"

// Priority ranks study tasks.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Task is a study planner item.
type Task struct {
	ID       string   `json:"id"`
	OwnerID  string   `json:"ownerId"`
	Subject  string   `json:"subject"`
	Priority Priority `json:"priority"`
	Deadline Date     `json:"deadline"`

	// EstimatedHours is optional; nil means "not estimated".
	EstimatedHours *float64 `json:"estimatedHours,omitempty"`

	IsCompleted bool `json:"isCompleted"`
}

func (t *Task) Kind() Kind { return KindTask }
func (t *Task) EntityID() string { return t.ID }
func (t *Task) OwnerKey() string { return t.OwnerID }

func (t *Task) Assign(id, owner string, _ time.Time) {
	t.ID = id
	t.OwnerID = owner
}

func (t *Task) Validate() error {
	if err := required("subject", t.Subject); err != nil {
		return err
	}
	if err := oneOf("priority", t.Priority, PriorityLow, PriorityMedium, PriorityHigh); err != nil {
		return err
	}
	if err := t.Deadline.check("deadline", false); err != nil {
		return err
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return invalid("estimatedHours must be non-negative")
	}
	return nil
}

// Clone returns an independent copy of t.
func (t *Task) Clone() *Task {
	c := *t
	if t.EstimatedHours != nil {
		h := *t.EstimatedHours
		c.EstimatedHours = &h
	}
	return &c
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid entity")

// Kind names an entity type. It doubles as the REST path segment.
type Kind string

const (
	KindPost        Kind = "posts"
	KindSavedPost   Kind = "saved-posts"
	KindSchedule    Kind = "schedules"
	KindTransaction Kind = "transactions"
	KindTask        Kind = "tasks"
	KindSkill       Kind = "skills"
	KindExamRoutine Kind = "exam-routines"
)

// Entity is implemented by every synchronized record.
type Entity interface {
	// Kind reports the entity type.
	Kind() Kind

	// EntityID returns the server-assigned identifier (empty before creation).
	EntityID() string

	// OwnerKey returns the owner (or viewer) the entity is scoped to.
	OwnerKey() string

	// Validate checks the client-supplied fields.
	Validate() error

	// Assign stamps the server-owned fields: id, owner and creation time.
	Assign(id, owner string, now time.Time)
}

type kindSpec struct {
	new     func() Entity
	mutable []string
	unique  func(Entity) string
}

var registry = map[Kind]kindSpec{
	KindPost: {
		new:     func() Entity { return &Post{} },
		mutable: []string{"message", "category", "imageUrl", "authorName", "authorImage"},
	},
	KindSavedPost: {
		new: func() Entity { return &SavedPost{} },
		unique: func(e Entity) string {
			if sp, ok := e.(*SavedPost); ok {
				return sp.OriginalPostID
			}
			return ""
		},
	},
	KindSchedule: {
		new:     func() Entity { return &ScheduleEntry{} },
		mutable: []string{"subject", "code", "room", "day", "timeRange", "instructor", "colorTag"},
	},
	KindTransaction: {
		new:     func() Entity { return &Transaction{} },
		mutable: []string{"kind", "category", "amount", "date"},
	},
	KindTask: {
		new:     func() Entity { return &Task{} },
		mutable: []string{"subject", "priority", "deadline", "estimatedHours", "isCompleted"},
	},
	KindSkill: {
		new:     func() Entity { return &SkillGoal{} },
		mutable: []string{"name", "goalText", "milestone", "progressPercent", "startDate", "endDate", "status"},
	},
	KindExamRoutine: {
		new:     func() Entity { return &ExamRoutineEntry{} },
		mutable: []string{"courseName", "courseCode", "examDate", "examTime", "building", "room", "status"},
	},
}

// Kinds lists every registered kind in display order.
func Kinds() []Kind {
	return []Kind{KindPost, KindSavedPost, KindSchedule, KindTransaction, KindTask, KindSkill, KindExamRoutine}
}

// Valid reports whether k is a registered kind.
func (k Kind) Valid() bool {
	_, ok := registry[k]
	return ok
}

// ParseKind converts a path segment into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalid, s)
	}
	return k, nil
}

// New returns an empty entity of the given kind.
func New(kind Kind) (Entity, error) {
	spec, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
	}
	return spec.new(), nil
}

// Decode unmarshals a JSON document into an entity of the given kind.
func Decode(kind Kind, data []byte) (Entity, error) {
	e, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalid, kind, err)
	}
	return e, nil
}

// Clone returns a deep copy of e.
func Clone(e Entity) (Entity, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", e.Kind(), err)
	}
	return Decode(e.Kind(), data)
}

// MutableFields returns the JSON fields a Patch may touch for kind.
func MutableFields(kind Kind) []string {
	return append([]string(nil), registry[kind].mutable...)
}

// UniqueKey returns the per-owner uniqueness key of e, or "" when the kind has none.
func UniqueKey(e Entity) string {
	spec, ok := registry[e.Kind()]
	if !ok || spec.unique == nil {
		return ""
	}
	return spec.unique(e)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

func required(field, value string) error {
	if value == "" {
		return invalid("%s is required", field)
	}
	return nil
}

func oneOf[T ~string](field string, value T, allowed ...T) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalid("%s must be one of %v, got %q", field, allowed, value)
}

package models

import "time"

// ExamStatus marks whether an exam has been sat.
type ExamStatus string

const (
	ExamPending   ExamStatus = "pending"
	ExamCompleted ExamStatus = "completed"
)

// ExamRoutineEntry is one scheduled exam.
type ExamRoutineEntry struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	CourseName string     `json:"courseName"`
	CourseCode string     `json:"courseCode"`
	ExamDate   Date       `json:"examDate"`
	ExamTime   string     `json:"examTime"`
	Building   string     `json:"building"`
	Room       string     `json:"room"`
	Status     ExamStatus `json:"status"`
}

func (e *ExamRoutineEntry) Kind() Kind { return KindExamRoutine }
func (e *ExamRoutineEntry) EntityID() string { return e.ID }
func (e *ExamRoutineEntry) OwnerKey() string { return e.OwnerID }

// Assign also defaults a new exam to pending.
func (e *ExamRoutineEntry) Assign(id, owner string, _ time.Time) {
	e.ID = id
	e.OwnerID = owner
	if e.Status == "" {
		e.Status = ExamPending
	}
}

func (e *ExamRoutineEntry) Validate() error {
	if err := required("courseName", e.CourseName); err != nil {
		return err
	}
	if err := required("courseCode", e.CourseCode); err != nil {
		return err
	}
	if err := e.ExamDate.check("examDate", false); err != nil {
		return err
	}
	if err := required("examTime", e.ExamTime); err != nil {
		return err
	}
	if e.Status != "" {
		return oneOf("status", e.Status, ExamPending, ExamCompleted)
	}
	return nil
}

// Clone returns a copy of e.
func (e *ExamRoutineEntry) Clone() *ExamRoutineEntry {
	c := *e
	return &c
}

package models

import "time"

// SkillStatus tracks whether a goal is still being worked on.
type SkillStatus string

const (
	SkillInProgress SkillStatus = "in-progress"
	SkillCompleted  SkillStatus = "completed"
)

// SkillGoal is a skill progress tracker entry.
type SkillGoal struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"ownerId"`
	Name            string      `json:"name"`
	GoalText        string      `json:"goalText"`
	Milestone       string      `json:"milestone,omitempty"`
	ProgressPercent int         `json:"progressPercent"`
	StartDate       Date        `json:"startDate,omitempty"`
	EndDate         Date        `json:"endDate,omitempty"`
	Status          SkillStatus `json:"status"`
}

func (s *SkillGoal) Kind() Kind { return KindSkill }
func (s *SkillGoal) EntityID() string { return s.ID }
func (s *SkillGoal) OwnerKey() string { return s.OwnerID }

// Assign also defaults a new goal to in-progress, as the add form does.
func (s *SkillGoal) Assign(id, owner string, _ time.Time) {
	s.ID = id
	s.OwnerID = owner
	if s.Status == "" {
		s.Status = SkillInProgress
	}
}

func (s *SkillGoal) Validate() error {
	if err := required("name", s.Name); err != nil {
		return err
	}
	if err := required("goalText", s.GoalText); err != nil {
		return err
	}
	if s.ProgressPercent < 0 || s.ProgressPercent > 100 {
		return invalid("progressPercent must be within [0,100], got %d", s.ProgressPercent)
	}
	if s.Status != "" {
		if err := oneOf("status", s.Status, SkillInProgress, SkillCompleted); err != nil {
			return err
		}
	}
	if err := s.StartDate.check("startDate", true); err != nil {
		return err
	}
	if err := s.EndDate.check("endDate", true); err != nil {
		return err
	}
	if !s.StartDate.IsZero() && !s.EndDate.IsZero() && s.EndDate < s.StartDate {
		return invalid("endDate %s is before startDate %s", s.EndDate, s.StartDate)
	}
	return nil
}

// Clone returns a copy of s.
func (s *SkillGoal) Clone() *SkillGoal {
	c := *s
	return &c
}

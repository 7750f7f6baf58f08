package models

import "time"

// Weekday is a day of the class week, spelled out ("Sunday" .. "Saturday").
type Weekday string

// Weekdays in schedule order.
var Weekdays = []Weekday{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DefaultColorTag is the gray used when a schedule entry has no color.
const DefaultColorTag = "#6B7280"

// ScheduleEntry is one recurring class slot.
type ScheduleEntry struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"ownerId"`
	Subject    string  `json:"subject"`
	Code       string  `json:"code"`
	Room       string  `json:"room"`
	Day        Weekday `json:"day"`
	TimeRange  string  `json:"timeRange"`
	Instructor string  `json:"instructor"`
	ColorTag   string  `json:"colorTag"`
}

func (s *ScheduleEntry) Kind() Kind { return KindSchedule }
func (s *ScheduleEntry) EntityID() string { return s.ID }
func (s *ScheduleEntry) OwnerKey() string { return s.OwnerID }

func (s *ScheduleEntry) Assign(id, owner string, _ time.Time) {
	s.ID = id
	s.OwnerID = owner
	if s.ColorTag == "" {
		s.ColorTag = DefaultColorTag
	}
}

// Validate requires every field of the class form.
func (s *ScheduleEntry) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"subject", s.Subject},
		{"code", s.Code},
		{"room", s.Room},
		{"timeRange", s.TimeRange},
		{"instructor", s.Instructor},
	} {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}
	return oneOf("day", s.Day, Weekdays...)
}

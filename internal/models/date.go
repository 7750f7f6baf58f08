package models

import "time"

// DateLayout is the civil date format used on the wire.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time zone, e.g. "2025-07-21".
type Date string

// NewDate formats t as a Date.
func NewDate(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s and returns it as a Date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", invalid("date %q must be YYYY-MM-DD", s)
	}
	return Date(s), nil
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == "" }

// Time parses the date at midnight UTC.
func (d Date) Time() (time.Time, error) {
	return time.Parse(DateLayout, string(d))
}

func (d Date) check(field string, optional bool) error {
	if d.IsZero() {
		if optional {
			return nil
		}
		return invalid("%s is required", field)
	}
	if _, err := d.Time(); err != nil {
		return invalid("%s %q must be YYYY-MM-DD", field, string(d))
	}
	return nil
}

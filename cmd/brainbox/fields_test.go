package main

import (
	"testing"
	"time"

	"github.com/brainbox-app/brainbox/internal/models"
)

var monday = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want models.Date
	}{
		{"2025-04-01", "2025-04-01"},
		{" 2025-04-01 ", "2025-04-01"},
		{"tomorrow", "2025-03-11"},
		{"today", "2025-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in, monday)
			if err != nil {
				t.Fatalf("parseDate(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseDate(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}

	if _, err := parseDate("banana", monday); err == nil {
		t.Error("expected error for a non-date")
	}
}

func TestParseAssignments(t *testing.T) {
	fields, err := parseAssignments([]string{
		"subject=Physics",
		"deadline=2025-03-14",
		"estimatedHours=6.5",
		"progressPercent=40%",
		"isCompleted=false",
		"message=a=b",
	}, monday)
	if err != nil {
		t.Fatalf("parseAssignments failed: %v", err)
	}

	want := map[string]any{
		"subject":         "Physics",
		"deadline":        "2025-03-14",
		"estimatedHours":  6.5,
		"progressPercent": 40,
		"isCompleted":     false,
		"message":         "a=b",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s = %#v, want %#v", k, fields[k], v)
		}
	}
}

func TestParseAssignmentsErrors(t *testing.T) {
	tests := []struct {
		name string
		pair string
	}{
		{"missing equals", "subject"},
		{"empty key", "=x"},
		{"bad number", "amount=lots"},
		{"bad int", "progressPercent=half"},
		{"bad bool", "isCompleted=maybe"},
		{"bad date", "deadline=banana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseAssignments([]string{tt.pair}, monday); err == nil {
				t.Errorf("expected error for %q", tt.pair)
			}
		})
	}
}

func TestBuildEntity(t *testing.T) {
	fields, err := parseAssignments([]string{
		"subject=Physics", "priority=High", "deadline=tomorrow", "estimatedHours=3",
	}, monday)
	if err != nil {
		t.Fatalf("parseAssignments failed: %v", err)
	}
	ent, err := buildEntity(models.KindTask, fields)
	if err != nil {
		t.Fatalf("buildEntity failed: %v", err)
	}
	task, ok := ent.(*models.Task)
	if !ok {
		t.Fatalf("expected *models.Task, got %T", ent)
	}
	if task.Subject != "Physics" || task.Deadline != "2025-03-11" {
		t.Errorf("unexpected task: %+v", task)
	}
	if task.EstimatedHours == nil || *task.EstimatedHours != 3 {
		t.Errorf("expected 3 estimated hours, got %v", task.EstimatedHours)
	}
	if err := task.Validate(); err != nil {
		t.Errorf("expected valid task: %v", err)
	}
}

func TestParseFilter(t *testing.T) {
	f, err := parseFilter([]string{"status=pending", "examDate=tomorrow"}, monday)
	if err != nil {
		t.Fatalf("parseFilter failed: %v", err)
	}
	if f["status"] != "pending" || f["examDate"] != "2025-03-11" {
		t.Errorf("unexpected filter: %v", f)
	}

	f, err = parseFilter(nil, monday)
	if err != nil || f != nil {
		t.Errorf("expected nil filter, got %v, %v", f, err)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want models.Kind
	}{
		{"tasks", models.KindTask},
		{"Task", models.KindTask},
		{"classes", models.KindSchedule},
		{"budget", models.KindTransaction},
		{"exams", models.KindExamRoutine},
		{"saved", models.KindSavedPost},
		{"exam-routines", models.KindExamRoutine},
	}
	for _, tt := range tests {
		got, err := parseKind(tt.in)
		if err != nil {
			t.Errorf("parseKind(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := parseKind("groups"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParseMonth(t *testing.T) {
	timeNow = func() time.Time { return monday }
	t.Cleanup(func() { timeNow = time.Now })

	for in, want := range map[string]string{"2025-01": "2025-01", "today": "2025-03"} {
		got, err := parseMonth(in)
		if err != nil {
			t.Fatalf("parseMonth(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("parseMonth(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := parseMonth("banana"); err == nil {
		t.Error("expected error for a non-month")
	}
}

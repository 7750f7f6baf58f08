package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brainbox-app/brainbox/internal/calculator"
	"github.com/brainbox-app/brainbox/internal/models"
)

func withOutput(t *testing.T, format string) {
	t.Helper()
	prev := outputFmt
	outputFmt = format
	t.Cleanup(func() { outputFmt = prev })
}

func sampleTasks() []models.Entity {
	h := 4.0
	return []models.Entity{
		&models.Task{ID: "t1", Subject: "Physics", Priority: models.PriorityHigh, Deadline: "2025-03-14", EstimatedHours: &h},
		&models.Task{ID: "t2", Subject: strings.Repeat("x", 60), Priority: models.PriorityLow, Deadline: "2025-03-20", IsCompleted: true},
	}
}

func TestRenderJSON(t *testing.T) {
	withOutput(t, "json")

	var buf bytes.Buffer
	if err := renderEntities(&buf, models.KindTask, sampleTasks()); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	var docs []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &docs); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(docs) != 2 || docs[0]["subject"] != "Physics" || docs[1]["isCompleted"] != true {
		t.Errorf("unexpected docs: %v", docs)
	}
}

func TestRenderYAML(t *testing.T) {
	withOutput(t, "yaml")

	var buf bytes.Buffer
	if err := renderEntities(&buf, models.KindTask, sampleTasks()); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	var docs []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &docs); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if len(docs) != 2 || docs[0]["deadline"] != "2025-03-14" {
		t.Errorf("unexpected docs: %v", docs)
	}
}

func TestRenderTable(t *testing.T) {
	withOutput(t, "table")

	var buf bytes.Buffer
	if err := renderEntities(&buf, models.KindTask, sampleTasks()); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"subject", "Physics", "High", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, strings.Repeat("x", 60)) {
		t.Error("expected long cell to be truncated")
	}

	buf.Reset()
	if err := renderEntities(&buf, models.KindTask, nil); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Nothing here yet.") {
		t.Errorf("unexpected empty output: %q", buf.String())
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	withOutput(t, "xml")

	if err := renderEntities(&bytes.Buffer{}, models.KindTask, sampleTasks()); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRenderBudgetJSON(t *testing.T) {
	withOutput(t, "json")

	summary := calculator.BudgetSummary{
		Income: 100, Expense: 33.333, Balance: 66.667, Count: 3,
		Categories: []calculator.CategoryTotal{{Category: "Food", Expense: 33.333, Net: -33.333}},
	}
	var buf bytes.Buffer
	if err := renderBudget(&buf, summary); err != nil {
		t.Fatalf("renderBudget failed: %v", err)
	}
	var docs []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &docs); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if docs[0]["balance"] != 66.67 || docs[0]["expense"] != 33.33 {
		t.Errorf("expected rounded totals, got %v", docs[0])
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{25 * time.Minute, "25:00"},
		{90 * time.Second, "01:30"},
		{59600 * time.Millisecond, "01:00"},
		{0, "00:00"},
	}
	for _, tt := range tests {
		if got := formatClock(tt.in); got != tt.want {
			t.Errorf("formatClock(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/brainbox-app/brainbox/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	doneStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("8"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// columns lists the JSON fields shown per kind in table output.
var columns = map[models.Kind][]string{
	models.KindPost:        {"id", "authorName", "category", "message", "likedBy", "createdAt"},
	models.KindSavedPost:   {"id", "originalPostId", "authorName", "category", "message", "savedAt"},
	models.KindSchedule:    {"id", "day", "timeRange", "subject", "code", "room", "instructor"},
	models.KindTransaction: {"id", "date", "kind", "category", "amount"},
	models.KindTask:        {"id", "deadline", "priority", "subject", "estimatedHours", "isCompleted"},
	models.KindSkill:       {"id", "name", "goalText", "progressPercent", "status", "endDate"},
	models.KindExamRoutine: {"id", "examDate", "examTime", "courseCode", "courseName", "building", "room", "status"},
}

// render writes items in the selected output format. Table output shows
// only cols; yaml and json show every field.
func render(w io.Writer, cols []string, items []any) error {
	docs := make([]map[string]any, 0, len(items))
	for _, it := range items {
		doc, err := toDoc(it)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	switch strings.ToLower(outputFmt) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(docs)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	case "table", "":
		if len(docs) == 0 {
			_, err := fmt.Fprintln(w, "Nothing here yet.")
			return err
		}
		_, err := fmt.Fprintln(w, renderTable(cols, docs))
		return err
	}
	return fmt.Errorf("unknown output format %q (want table, yaml or json)", outputFmt)
}

func renderEntities(w io.Writer, kind models.Kind, entities []models.Entity) error {
	items := make([]any, len(entities))
	for i, e := range entities {
		items[i] = e
	}
	return render(w, columns[kind], items)
}

func renderTable(cols []string, docs []map[string]any) string {
	rows := make([][]string, len(docs))
	done := make([]bool, len(docs))
	for i, doc := range docs {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = cell(doc[c])
		}
		rows[i] = row
		done[i] = doc["isCompleted"] == true || doc["status"] == "completed"
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(cols...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(done) && done[row]:
				return doneStyle
			}
			return cellStyle
		}).
		String()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []any:
		return fmt.Sprintf("%d", len(x))
	case float64:
		return fmt.Sprintf("%g", x)
	case string:
		if r := []rune(x); len(r) > 48 {
			return string(r[:45]) + "..."
		}
		return x
	}
	return fmt.Sprint(v)
}

// toDoc converts v to a generic map keyed by its JSON field names.
func toDoc(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

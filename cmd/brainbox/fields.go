package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/brainbox-app/brainbox/internal/models"
)

var (
	dateFields   = map[string]bool{"date": true, "deadline": true, "examDate": true, "startDate": true, "endDate": true}
	numberFields = map[string]bool{"amount": true, "estimatedHours": true}
	intFields    = map[string]bool{"progressPercent": true}
	boolFields   = map[string]bool{"isCompleted": true}
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate accepts YYYY-MM-DD or English phrases such as "next friday" or
// "in 3 days", resolved against now.
func parseDate(s string, now time.Time) (models.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := models.ParseDate(s); err == nil {
		return d, nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("not a date: %q (use YYYY-MM-DD or e.g. \"next friday\")", s)
	}
	return models.NewDate(r.Time), nil
}

// parseAssignments turns key=value pairs into typed field values.
func parseAssignments(pairs []string, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		v, err := coerce(key, raw, now)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func coerce(key, raw string, now time.Time) (any, error) {
	switch {
	case dateFields[key]:
		if raw == "" {
			return "", nil
		}
		d, err := parseDate(raw, now)
		return string(d), err
	case numberFields[key]:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number, got %q", key, raw)
		}
		return f, nil
	case intFields[key]:
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(raw, "%")))
		if err != nil {
			return nil, fmt.Errorf("%s must be a whole number, got %q", key, raw)
		}
		return n, nil
	case boolFields[key]:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false, got %q", key, raw)
		}
		return b, nil
	}
	return raw, nil
}

// buildEntity decodes assignments into a new entity of kind.
func buildEntity(kind models.Kind, fields map[string]any) (models.Entity, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return models.Decode(kind, data)
}

// parseFilter turns key=value pairs into a list filter. Dates are normalized
// like assignments.
func parseFilter(pairs []string, now time.Time) (models.Filter, error) {
	fields, err := parseAssignments(pairs, now)
	if err != nil || len(fields) == 0 {
		return nil, err
	}
	f := make(models.Filter, len(fields))
	for k, v := range fields {
		f[k] = fmt.Sprint(v)
	}
	return f, nil
}

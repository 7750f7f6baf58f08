package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
)

// Patch is a partial edit: JSON field name to new value.
type Patch map[string]any

// CheckPatch rejects empty patches and patches touching immutable fields.
func CheckPatch(kind Kind, p Patch) error {
	spec, ok := registry[kind]
	if !ok {
		return invalid("unknown kind %q", kind)
	}
	if len(spec.mutable) == 0 {
		return invalid("%s cannot be edited", kind)
	}
	if len(p) == 0 {
		return invalid("empty patch")
	}
	for field := range p {
		if !slices.Contains(spec.mutable, field) {
			return invalid("field %q of %s is not editable", field, kind)
		}
	}
	return nil
}

// ApplyPatch overlays p on a copy of e and validates the result.
// e itself is never modified.
func ApplyPatch(e Entity, p Patch) (Entity, error) {
	if err := CheckPatch(e.Kind(), p); err != nil {
		return nil, err
	}

	doc, err := toMap(e)
	if err != nil {
		return nil, err
	}
	for k, v := range p {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patched %s: %w", e.Kind(), err)
	}
	out, err := Decode(e.Kind(), data)
	if err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func toMap(e Entity) (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", e.Kind(), err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", e.Kind(), err)
	}
	return doc, nil
}

// Filter narrows a list to entities whose JSON fields equal the given values,
// e.g. {"status": "completed"} or {"day": "Monday"}.
type Filter map[string]string

// FilterFromQuery builds a Filter from URL query parameters.
func FilterFromQuery(q url.Values) Filter {
	if len(q) == 0 {
		return nil
	}
	f := make(Filter, len(q))
	for k, v := range q {
		if len(v) > 0 && v[0] != "" {
			f[k] = v[0]
		}
	}
	return f
}

// Query encodes the filter as URL query parameters.
func (f Filter) Query() url.Values {
	q := make(url.Values, len(f))
	for k, v := range f {
		q.Set(k, v)
	}
	return q
}

// Signature is the canonical form of the filter, stable across map ordering.
func (f Filter) Signature() string {
	return f.Query().Encode()
}

// Match reports whether e satisfies every condition of the filter.
func (f Filter) Match(e Entity) bool {
	if len(f) == 0 {
		return true
	}
	doc, err := toMap(e)
	if err != nil {
		return false
	}
	for k, want := range f {
		got, ok := doc[k]
		if !ok || got == nil {
			if want != "" {
				return false
			}
			continue
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

package model

import (
	"encoding/json"
	"reflect"
)

// Career is one employment entry in a resume record. EndDate is empty for
// currently-held positions.
type Career struct {
	Company   string `json:"company"`
	Title     string `json:"title,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	IsCurrent bool   `json:"is_current,omitempty"`
}

// Education is one schooling entry in a resume record.
type Education struct {
	School         string `json:"school"`
	Major          string `json:"major,omitempty"`
	Degree         string `json:"degree,omitempty"`
	GraduationYear any    `json:"graduation_year,omitempty"`
}

// AsCareers coerces an untyped field value (as decoded from provider JSON)
// into typed career entries. Returns nil when the value has no usable shape.
func AsCareers(v any) []Career {
	var out []Career
	if !coerce(v, &out) {
		return nil
	}
	return out
}

// AsEducations coerces an untyped field value into typed education entries.
func AsEducations(v any) []Education {
	var out []Education
	if !coerce(v, &out) {
		return nil
	}
	return out
}

func coerce(v any, target any) bool {
	if v == nil {
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

// HasValue reports whether a field value counts as present. Nil, empty
// strings, and empty lists/maps are absent.
func HasValue(v any) bool {
	if v == nil {
		return false
	}
	switch x := v.(type) {
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case []Career:
		return len(x) > 0
	case []Education:
		return len(x) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr:
		return !rv.IsNil() && HasValue(rv.Elem().Interface())
	}
	return true
}

// Package validation carries field-level request errors.
package validation

import (
	"sort"
	"strconv"
	"strings"
)

// Errors maps a request field to the problems found with it. The JSON form
// ({"phone_number": ["..."]}) is what clients receive on a 400.
type Errors map[string][]string

// Add records a message against a field.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Required records the standard message for a missing field when value is blank.
func (e Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "This field is required.")
		return false
	}
	return true
}

// MaxLength records a length violation when value exceeds max runes.
func (e Errors) MaxLength(field, value string, max int) bool {
	if len([]rune(value)) > max {
		e.Add(field, "Ensure this field has no more than "+strconv.Itoa(max)+" characters.")
		return false
	}
	return true
}

// Merge copies every message of other into e, prefixing fields with prefix.
func (e Errors) Merge(prefix string, other Errors) {
	for field, msgs := range other {
		for _, m := range msgs {
			e.Add(prefix+field, m)
		}
	}
}

// Empty reports whether no field failed.
func (e Errors) Empty() bool { return len(e) == 0 }

// Err returns e as an error, or nil when nothing failed.
func (e Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

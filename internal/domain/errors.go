package domain

import (
	"fmt"
	"sort"
	"strings"
)

// NonFieldErrors is the key of validation errors not bound to a single field.
const NonFieldErrors = "non_field_errors"

// ValidationError collects error messages per field name.
type ValidationError map[string][]string

func (e ValidationError) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e ValidationError) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Err returns nil when no errors were collected.
func (e ValidationError) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f, strings.Join(e[f], " "))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

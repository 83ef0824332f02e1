package coach

import (
	"fmt"
	"strings"
)

// FormatError reports a malformed pace or time string. It is user-correctable
// and its message is safe to surface verbatim.
type FormatError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid format %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// OrderError reports phases that do not appear as base, build, peak, taper.
type OrderError struct {
	Got []string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("phase order must be %s, got [%s]",
		strings.Join(phaseNames(), ","), strings.Join(e.Got, ","))
}

// SchemaViolation reports the first structural problem found in a generated plan.
type SchemaViolation struct {
	Field    string
	Expected string
	Actual   string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation at %s: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

// PrerequisiteError lists every input that must exist before an operation can run.
type PrerequisiteError struct {
	Operation string
	Missing   []string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s requires: %s", e.Operation, strings.Join(e.Missing, ", "))
}

// ConflictError reports a duplicate natural key whose stored row could not be
// read back. A duplicate that re-queries cleanly is not an error.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.Key)
}

func violation(field, expected string, actual any) *SchemaViolation {
	return &SchemaViolation{Field: field, Expected: expected, Actual: fmt.Sprint(actual)}
}

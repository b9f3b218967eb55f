package plan

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind discriminates structural plan errors.
type ErrorKind string

const (
	ErrMissingSection       ErrorKind = "missing_section"
	ErrMissingField         ErrorKind = "missing_field"
	ErrInvalidEnumValue     ErrorKind = "invalid_enum_value"
	ErrEmptyRequiredField   ErrorKind = "empty_required_field"
	ErrUnresolvedDependency ErrorKind = "unresolved_dependency"
	ErrCircularDependency   ErrorKind = "circular_dependency"
)

// Error is a structural plan error. Parsing and validation abort on the
// first violation; nothing is partially committed.
type Error struct {
	Kind    ErrorKind
	Section string
	Feature string
	Field   string
	Detail  string

	// Cycle holds the offending feature names when Kind is
	// ErrCircularDependency, in traversal order ending at the repeat.
	Cycle []string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plan: %s", e.Kind)
	if e.Section != "" {
		fmt.Fprintf(&b, " section=%q", e.Section)
	}
	if e.Feature != "" {
		fmt.Fprintf(&b, " feature=%q", e.Feature)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%q", e.Field)
	}
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, " cycle=%s", strings.Join(e.Cycle, " -> "))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// KindOf returns the plan error kind, or "" when err is not a plan error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

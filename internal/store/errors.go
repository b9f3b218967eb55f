package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a queried id does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports the first required-field or enum-domain violation
// found while validating an entity create or update.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: field %q %s", e.Entity, e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func required(entity, field, value string) error {
	if value == "" {
		return &ValidationError{Entity: entity, Field: field, Reason: "is required"}
	}
	return nil
}

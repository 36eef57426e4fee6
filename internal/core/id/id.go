// Package id generates the identifiers used across the system.
// Movements are keyed by UUIDv7: time-ordered, so same-day rows still
// sort by insertion order when a query tie-breaks on id.
package id

import (
	"github.com/google/uuid"
)

// ID aliases uuid.UUID so callers never import the uuid package directly.
type ID = uuid.UUID

// New returns a fresh UUIDv7.
func New() ID {
	v7, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the entropy source does; fall back to v4
		// rather than panic in a request path.
		return uuid.New()
	}
	return v7
}

// Parse validates and converts a string form.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// IsNil reports whether id is the zero value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}

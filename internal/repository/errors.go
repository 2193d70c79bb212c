// Package repository implements persistence over MySQL. Sentinel errors let
// handlers map failures onto the HTTP error taxonomy without inspecting
// driver-specific values.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registration collides with an existing
// account in the same namespace.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when a compare-and-set update loses the race, e.g.
// two concurrent quote status transitions.
var ErrConflict = errors.New("conflict")

// ErrRevoked is returned when a refresh token exists but has been revoked.
// Presenting a revoked token is treated as reuse and triggers family-wide
// revocation at the auth layer.
var ErrRevoked = errors.New("token revoked")

// isDuplicate reports whether err is a MySQL duplicate-key violation (1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

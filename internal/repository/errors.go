// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers to distinguish
// between failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, e.g. a
// username that is already taken.
var ErrDuplicate = errors.New("duplicate key")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own, detected inside a transaction.
var ErrForbidden = errors.New("forbidden")

// ErrLocked is returned when the latest coaching log is locked and
// therefore immutable.
var ErrLocked = errors.New("locked")

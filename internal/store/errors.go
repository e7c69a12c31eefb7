package store

import "errors"

// ErrNotFound is returned when a record does not exist or is not visible
// to the caller (ownership-scoped queries fold both cases together).
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

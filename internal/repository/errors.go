package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist (or, for the
// news cache, when no valid entry exists for the key).
var ErrNotFound = errors.New("record not found")

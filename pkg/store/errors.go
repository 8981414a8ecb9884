package store

import "errors"

// ErrCovenantNotFound is returned when a covenant ID has no matching row.
var ErrCovenantNotFound = errors.New("covenant not found")

package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrQuotaExceeded is returned by transactional quota-checked inserts when
// the caller's period allotment is already spent.
var ErrQuotaExceeded = errors.New("quota exceeded")

package storage

import "errors"

// Errors shared by every audit record store. Backends wrap them so callers
// can test with errors.Is regardless of transport.
var (
	ErrNotFound    = errors.New("storage: record not found")
	ErrInvalidCID  = errors.New("storage: invalid record cid")
	ErrCIDMismatch = errors.New("storage: record bytes do not match cid")
	ErrImmutable   = errors.New("storage: record already stored with different bytes")
	ErrNoBackends  = errors.New("storage: no backends configured")
	ErrReadOnly    = errors.New("storage: store is read-only")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

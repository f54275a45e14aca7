package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks a command rejected before any state change.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistenceCorrupted marks a stored cart payload that cannot be restored.
	ErrPersistenceCorrupted = errors.New("persisted cart corrupted")
	// ErrPersistenceSync marks a mutation that was applied in memory but not written.
	ErrPersistenceSync = errors.New("cart persistence sync failed")
	// ErrStoreClosed is returned for commands sent to a closed cart store.
	ErrStoreClosed = errors.New("cart store closed")
)

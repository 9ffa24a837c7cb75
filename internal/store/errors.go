package store

import (
	"errors"
	"fmt"
)

// Causes reported inside a QueryError.
var (
	ErrUnknownObject = errors.New("object not found")
	ErrObjectExists  = errors.New("object already exists")
	ErrNotLocked     = errors.New("object is not locked for update")
	ErrLockHeld      = errors.New("object is locked by another user")
	ErrInvalidTarget = errors.New("invalid target")
)

// ConnectionError reports a failure to reach the store.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store connection failed during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError reports an operation the store rejected.
type QueryError struct {
	Op     string
	Target Target
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("store %s on %s: %v", e.Op, e.Target.Key(), e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

package store

import "errors"

var (
	// ErrInvalidNamespace is returned for names outside [A-Za-z0-9_.-]{1,64}.
	ErrInvalidNamespace = errors.New("store: invalid namespace name")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("store: closed")
)

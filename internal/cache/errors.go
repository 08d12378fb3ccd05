package cache

import "errors"

var (
	// ErrInvalidTTL is returned for a TTL that is neither a positive whole
	// number of milliseconds nor NoExpiration.
	ErrInvalidTTL = errors.New("ttl must be a positive integer of milliseconds or NoExpiration")

	// ErrInvalidCapacity is returned for a negative Max.
	ErrInvalidCapacity = errors.New("max must be a positive integer, or 0 for unbounded")

	// ErrInvalidDispose is returned when a dispose handler cannot be resolved.
	ErrInvalidDispose = errors.New("dispose must be a function")
)

package cache

import (
	"math"
	"time"
)

// NoExpiration is the TTL of an entry that never expires.
const NoExpiration time.Duration = math.MaxInt64

// DisposeReason tells a dispose callback why an entry left the cache.
type DisposeReason int

const (
	// ReasonSet means the value was overwritten by Set.
	ReasonSet DisposeReason = iota + 1
	// ReasonEvict means the entry was dropped to bring the cache back under Max.
	ReasonEvict
	// ReasonStale means the entry expired and was purged.
	ReasonStale
	// ReasonDelete means the entry was removed by Delete, Clear or an age check on Get.
	ReasonDelete
)

func (r DisposeReason) String() string {
	switch r {
	case ReasonSet:
		return "set"
	case ReasonEvict:
		return "evict"
	case ReasonStale:
		return "stale"
	case ReasonDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// DisposeFunc is called with every value removed from the cache.
// It runs after the removal is committed and outside the cache lock.
type DisposeFunc[K comparable, V any] func(value V, key K, reason DisposeReason)

// Cache defines the keyed TTL store API.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether the key was present.
	// Expired entries that have not been purged yet are still returned
	// unless the age check is enabled.
	Get(key K, opts ...GetOption) (V, bool)

	// Set stores the value. It fails only on an invalid TTL.
	Set(key K, value V, opts ...SetOption) error

	// Delete removes a key and reports whether it was present.
	Delete(key K) bool

	// Has reports whether a key is stored, ignoring its expiration.
	Has(key K) bool

	// Len returns the number of stored entries, including stale ones not yet purged.
	Len() int

	// RemainingTTL returns how long the entry has left to live.
	RemainingTTL(key K) time.Duration

	// Clear removes all entries and cancels the purge timer.
	Clear()

	// PurgeStale removes every entry whose expiration has passed.
	PurgeStale()
}

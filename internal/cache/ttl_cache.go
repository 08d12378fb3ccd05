package cache

import (
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/google/btree"
)

// never is the expiration recorded for entries stored with NoExpiration.
const never int64 = math.MaxInt64

// now is a small indirection to allow test stubbing if needed.
var now = time.Now

// disposal is a removed entry waiting for its Dispose call.
type disposal[K comparable, V any] struct {
	key    K
	value  V
	reason DisposeReason
}

// TTLCache is a keyed store where every entry carries an expiration.
//
// Expired entries are purged lazily by a single timer armed for the
// earliest pending expiration, so a read may observe a stale value until
// the timer fires. When Max is set, Set evicts the earliest-expiring
// entries until the cache fits again.
//
// A single mutex guards the values, the expiration index and the timer
// target. Dispose callbacks run after the lock is released.
type TTLCache[K comparable, V any] struct {
	mu   sync.Mutex
	opts Options[K, V]

	// clock is read for every expiration computation.
	clock func() time.Time

	data        map[K]V
	expirations map[K]int64

	// buckets holds finite expirations in ascending order; forever holds
	// the NoExpiration keys in insertion order.
	buckets *btree.BTreeG[*bucket[K]]
	forever *bucket[K]

	timer    *time.Timer
	timerAt  int64
	timerSeq uint64
}

// New constructs a TTLCache with the given options.
func New[K comparable, V any](opts Options[K, V]) (*TTLCache[K, V], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &TTLCache[K, V]{
		opts:        opts,
		clock:       now,
		data:        make(map[K]V),
		expirations: make(map[K]int64),
		buckets:     newIndex[K](),
		forever:     &bucket[K]{at: never},
	}, nil
}

// Set implements Cache.Set.
//
// Overwriting a key renews its TTL unless NoUpdateTTL applies, and
// disposes the old value with ReasonSet when it differs from the new one.
// Inserting past Max evicts the earliest-expiring entries.
func (c *TTLCache[K, V]) Set(key K, value V, opts ...SetOption) error {
	o := c.setOptions(opts)
	if err := ValidateTTL(o.ttl); err != nil {
		return err
	}

	c.mu.Lock()
	var pending []disposal[K, V]
	if _, ok := c.expirations[key]; ok {
		if !o.noUpdateTTL {
			c.setTTLLocked(key, o.ttl)
		}
		old := c.data[key]
		if !sameValue(old, value) {
			c.data[key] = value
			if !o.noDisposeOnSet {
				pending = append(pending, disposal[K, V]{key: key, value: old, reason: ReasonSet})
			}
		}
	} else {
		c.setTTLLocked(key, o.ttl)
		c.data[key] = value
	}

	if c.opts.Max > 0 && len(c.data) > c.opts.Max {
		pending = c.purgeToCapacityLocked(pending)
	}
	c.mu.Unlock()

	c.dispose(pending)
	return nil
}

// Get implements Cache.Get.
func (c *TTLCache[K, V]) Get(key K, opts ...GetOption) (V, bool) {
	o := c.getOptions(opts)

	c.mu.Lock()
	value, ok := c.data[key]
	if ok && o.checkAgeOnGet && c.remainingLocked(key) == 0 {
		pending := c.deleteLocked(key, nil)
		c.mu.Unlock()
		c.dispose(pending)
		var zero V
		return zero, false
	}
	if ok && o.updateAgeOnGet && ValidateTTL(o.ttl) == nil {
		c.setTTLLocked(key, o.ttl)
	}
	c.mu.Unlock()
	return value, ok
}

// Has implements Cache.Has.
func (c *TTLCache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// Delete implements Cache.Delete.
func (c *TTLCache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	if _, ok := c.expirations[key]; !ok {
		c.mu.Unlock()
		return false
	}
	pending := c.deleteLocked(key, nil)
	c.mu.Unlock()

	c.dispose(pending)
	return true
}

// Len implements Cache.Len.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// RemainingTTL implements Cache.RemainingTTL. It returns NoExpiration for
// entries that never expire and 0 for absent or expired ones; otherwise
// the time left rounded up to the millisecond.
func (c *TTLCache[K, V]) RemainingTTL(key K) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked(key)
}

// Clear implements Cache.Clear. Every entry is disposed with ReasonDelete,
// finite ones in expiration order followed by the NoExpiration ones.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	pending := make([]disposal[K, V], 0, len(c.data))
	c.buckets.Ascend(func(b *bucket[K]) bool {
		for _, k := range b.keys {
			pending = append(pending, disposal[K, V]{key: k, value: c.data[k], reason: ReasonDelete})
		}
		return true
	})
	for _, k := range c.forever.keys {
		pending = append(pending, disposal[K, V]{key: k, value: c.data[k], reason: ReasonDelete})
	}

	c.data = make(map[K]V)
	c.expirations = make(map[K]int64)
	c.buckets.Clear(false)
	c.forever.keys = nil
	c.cancelTimerLocked()
	c.mu.Unlock()

	c.dispose(pending)
}

// PurgeStale implements Cache.PurgeStale.
func (c *TTLCache[K, V]) PurgeStale() {
	c.mu.Lock()
	pending := c.purgeStaleLocked(nil)
	c.mu.Unlock()
	c.dispose(pending)
}

func (c *TTLCache[K, V]) remainingLocked(key K) time.Duration {
	at, ok := c.expirations[key]
	if !ok {
		return 0
	}
	if at == never {
		return NoExpiration
	}
	left := time.UnixMilli(at).Sub(c.clock())
	if left <= 0 {
		return 0
	}
	return (left + time.Millisecond - 1).Truncate(time.Millisecond)
}

// deleteLocked removes key from both structures and queues its disposal.
func (c *TTLCache[K, V]) deleteLocked(key K, pending []disposal[K, V]) []disposal[K, V] {
	at := c.expirations[key]
	value := c.data[key]
	delete(c.data, key)
	delete(c.expirations, key)
	c.unindexLocked(key, at)
	if c.buckets.Len() == 0 {
		c.cancelTimerLocked()
	}
	return append(pending, disposal[K, V]{key: key, value: value, reason: ReasonDelete})
}

func (c *TTLCache[K, V]) dispose(pending []disposal[K, V]) {
	if c.opts.Dispose == nil {
		return
	}
	for _, d := range pending {
		c.opts.Dispose(d.value, d.key, d.reason)
	}
}

// sameValue compares with Go equality when the dynamic values are
// comparable. Anything else counts as a different value.
func sameValue[V any](a, b V) bool {
	va := reflect.ValueOf(&a).Elem()
	vb := reflect.ValueOf(&b).Elem()
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}

// Ensure TTLCache implements Cache at compile time.
var _ Cache[any, any] = (*TTLCache[any, any])(nil)

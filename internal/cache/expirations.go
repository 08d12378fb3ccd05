package cache

import (
	"slices"
	"time"

	"github.com/google/btree"
)

// bucket holds the keys sharing one expiration, in insertion order.
// A bucket in the index is never empty.
type bucket[K comparable] struct {
	at   int64
	keys []K
}

func (b *bucket[K]) remove(key K) {
	if i := slices.Index(b.keys, key); i >= 0 {
		b.keys = slices.Delete(b.keys, i, i+1)
	}
}

func newIndex[K comparable]() *btree.BTreeG[*bucket[K]] {
	return btree.NewG(32, func(a, b *bucket[K]) bool {
		return a.at < b.at
	})
}

// expirationFor turns a TTL into an absolute unix millisecond timestamp.
func (c *TTLCache[K, V]) expirationFor(ttl time.Duration) int64 {
	if ttl == NoExpiration {
		return never
	}
	return c.clock().Add(ttl).UnixMilli()
}

// setTTLLocked moves key to the bucket matching ttl, creating the bucket
// and arming the timer when needed.
func (c *TTLCache[K, V]) setTTLLocked(key K, ttl time.Duration) {
	if at, ok := c.expirations[key]; ok {
		c.unindexLocked(key, at)
	}

	at := c.expirationFor(ttl)
	c.expirations[key] = at
	if at == never {
		c.forever.keys = append(c.forever.keys, key)
		return
	}

	b, ok := c.buckets.Get(&bucket[K]{at: at})
	if !ok {
		b = &bucket[K]{at: at}
		c.buckets.ReplaceOrInsert(b)
		c.armLocked(at)
	}
	b.keys = append(b.keys, key)
}

// unindexLocked drops key from the bucket for at, removing the bucket
// once it is empty.
func (c *TTLCache[K, V]) unindexLocked(key K, at int64) {
	if at == never {
		c.forever.remove(key)
		return
	}
	b, ok := c.buckets.Get(&bucket[K]{at: at})
	if !ok {
		return
	}
	b.remove(key)
	if len(b.keys) == 0 {
		c.buckets.Delete(b)
	}
}

// dropLocked removes keys whose index entry is already gone.
func (c *TTLCache[K, V]) dropLocked(keys []K, reason DisposeReason, pending []disposal[K, V]) []disposal[K, V] {
	for _, k := range keys {
		pending = append(pending, disposal[K, V]{key: k, value: c.data[k], reason: reason})
		delete(c.data, k)
		delete(c.expirations, k)
	}
	return pending
}

// purgeStaleLocked removes every bucket at or before now, earliest first.
// NoExpiration entries are never visited.
func (c *TTLCache[K, V]) purgeStaleLocked(pending []disposal[K, V]) []disposal[K, V] {
	cutoff := ceilMilli(c.clock())
	for {
		b, ok := c.buckets.Min()
		if !ok || b.at > cutoff {
			break
		}
		c.buckets.DeleteMin()
		pending = c.dropLocked(b.keys, ReasonStale, pending)
	}
	if c.buckets.Len() == 0 {
		c.cancelTimerLocked()
	}
	return pending
}

// purgeToCapacityLocked evicts the earliest-expiring entries until the
// cache holds at most Max entries. Whole buckets go while that still
// leaves at least Max entries; then only the oldest keys of the next
// bucket. NoExpiration entries are exempt, so the cache may stay above
// Max when nothing else is left.
func (c *TTLCache[K, V]) purgeToCapacityLocked(pending []disposal[K, V]) []disposal[K, V] {
	for len(c.data) > c.opts.Max {
		b, ok := c.buckets.Min()
		if !ok {
			break
		}
		excess := len(c.data) - c.opts.Max
		if excess >= len(b.keys) {
			c.buckets.DeleteMin()
			pending = c.dropLocked(b.keys, ReasonEvict, pending)
			continue
		}
		victims := slices.Clone(b.keys[:excess])
		b.keys = slices.Delete(b.keys, 0, excess)
		pending = c.dropLocked(victims, ReasonEvict, pending)
	}
	if c.buckets.Len() == 0 {
		c.cancelTimerLocked()
	}
	return pending
}

func ceilMilli(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}

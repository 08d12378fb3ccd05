package cache

import (
	"iter"
	"math"
	"slices"
)

// All returns the entries in ascending expiration order, followed by the
// NoExpiration entries in insertion order.
//
// The sequence is a live view, not a snapshot: the index is walked one
// bucket at a time while iterating and no lock is held while yield runs.
// Mutating the cache during iteration is allowed but the result is
// unspecified: entries may be skipped or seen twice. Keys removed before
// they are reached are skipped.
func (c *TTLCache[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		cursor := int64(math.MinInt64)
		for {
			keys, next, ok := c.nextBucket(cursor)
			for _, k := range keys {
				c.mu.Lock()
				v, present := c.data[k]
				c.mu.Unlock()
				if !present {
					continue
				}
				if !yield(k, v) {
					return
				}
			}
			if !ok {
				return
			}
			cursor = next
		}
	}
}

// Keys returns the keys in the order of All.
func (c *TTLCache[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range c.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values returns the values in the order of All.
func (c *TTLCache[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range c.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// nextBucket copies the keys of the first finite bucket at or after
// cursor. Once the finite buckets are exhausted it returns the
// NoExpiration keys with ok=false.
func (c *TTLCache[K, V]) nextBucket(cursor int64) (keys []K, next int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buckets.AscendGreaterOrEqual(&bucket[K]{at: cursor}, func(b *bucket[K]) bool {
		keys = slices.Clone(b.keys)
		next = b.at + 1
		ok = true
		return false
	})
	if !ok {
		keys = slices.Clone(c.forever.keys)
	}
	return keys, next, ok
}

// Package remember memoizes computed values in a TTL cache.
//
// A Memo stores only resolved results: a computation that fails is not
// cached, and a result never replaces one produced by a computation that
// started later.
package remember

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ttlcache-api/internal/cache"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the lifetime of remembered values when none is given.
const DefaultTTL = 2 * time.Hour

// entry is a remembered value tagged with the start sequence of the
// computation that produced it.
type entry struct {
	value any
	seq   uint64
}

// Options controls construction of a Memo.
type Options struct {
	// TTL is the default lifetime of remembered values. Zero means DefaultTTL.
	TTL time.Duration

	// Max bounds the number of remembered values. Zero means unbounded.
	Max int

	// NoCoalesce lets concurrent misses for one key compute independently
	// instead of sharing a single in-flight computation.
	NoCoalesce bool
}

// Memo is a string-keyed memoization store.
type Memo struct {
	store    *cache.TTLCache[string, entry]
	group    singleflight.Group
	coalesce bool

	seq     atomic.Uint64
	storeMu sync.Mutex
}

// New constructs a Memo.
func New(opts Options) (*Memo, error) {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	store, err := cache.New(cache.Options[string, entry]{
		TTL:            ttl,
		Max:            opts.Max,
		UpdateAgeOnGet: false,
	})
	if err != nil {
		return nil, fmt.Errorf("remember: %w", err)
	}
	return &Memo{store: store, coalesce: !opts.NoCoalesce}, nil
}

var (
	defaultMemo     *Memo
	defaultMemoOnce sync.Once
)

// Default returns the process-wide Memo with a two hour TTL.
func Default() *Memo {
	defaultMemoOnce.Do(func() {
		m, err := New(Options{})
		if err != nil {
			panic(err)
		}
		defaultMemo = m
	})
	return defaultMemo
}

// Forget drops a remembered key.
func (m *Memo) Forget(key string) bool {
	m.group.Forget(key)
	return m.store.Delete(key)
}

// Len returns the number of remembered values.
func (m *Memo) Len() int {
	return m.store.Len()
}

// Clear drops every remembered value.
func (m *Memo) Clear() {
	m.store.Clear()
}

// Remember returns the value stored under key, computing and storing it
// with fn on a miss. ttl of zero uses the Memo default.
func Remember[T any](ctx context.Context, m *Memo, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var setOpts []cache.SetOption
	if ttl != 0 {
		setOpts = append(setOpts, cache.WithTTL(ttl))
	}
	return lookup(ctx, m, key, nil, setOpts, fn)
}

func lookup[T any](
	ctx context.Context, m *Memo, key string,
	getOpts []cache.GetOption, setOpts []cache.SetOption,
	fn func(context.Context) (T, error),
) (T, error) {
	if e, ok := m.store.Get(key, getOpts...); ok {
		if v, ok := e.value.(T); ok {
			return v, nil
		}
	}

	compute := func(ctx context.Context) (any, error) {
		seq := m.seq.Add(1)
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := m.storeIfNewer(key, entry{value: v, seq: seq}, setOpts); err != nil {
			return nil, err
		}
		return v, nil
	}

	var (
		v   any
		err error
	)
	if m.coalesce {
		// The shared computation serves every waiter, so it must not end
		// when the caller that started it goes away.
		shared := context.WithoutCancel(ctx)
		v, err, _ = m.group.Do(key, func() (any, error) { return compute(shared) })
	} else {
		v, err = compute(ctx)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// storeIfNewer writes e unless the stored entry came from a computation
// that started later.
func (m *Memo) storeIfNewer(key string, e entry, opts []cache.SetOption) error {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	if cur, ok := m.store.Get(key); ok && cur.seq > e.seq {
		return nil
	}
	return m.store.Set(key, e, opts...)
}

// CacheOptions are the per-call cache options applied by a function
// wrapped with Cached.
type CacheOptions struct {
	TTL            time.Duration
	CheckAgeOnGet  bool
	UpdateAgeOnGet bool
	NoDisposeOnSet bool
	NoUpdateTTL    bool
}

// Cached wraps fn so that results are remembered per argument value. The
// key is the JSON encoding of the argument prefixed with name.
func Cached[A, R any](m *Memo, name string, fn func(context.Context, A) (R, error), opts CacheOptions) func(context.Context, A) (R, error) {
	getOpts := []cache.GetOption{
		cache.WithCheckAgeOnGet(opts.CheckAgeOnGet),
		cache.WithUpdateAgeOnGet(opts.UpdateAgeOnGet),
	}
	setOpts := []cache.SetOption{
		cache.WithNoDisposeOnSet(opts.NoDisposeOnSet),
		cache.WithNoUpdateTTL(opts.NoUpdateTTL),
	}
	if opts.TTL != 0 {
		getOpts = append(getOpts, cache.WithTTL(opts.TTL))
		setOpts = append(setOpts, cache.WithTTL(opts.TTL))
	}

	return func(ctx context.Context, arg A) (R, error) {
		raw, err := json.Marshal(arg)
		if err != nil {
			var zero R
			return zero, fmt.Errorf("remember: encode key: %w", err)
		}
		key := name + ":" + string(raw)
		return lookup(ctx, m, key, getOpts, setOpts, func(ctx context.Context) (R, error) {
			return fn(ctx, arg)
		})
	}
}

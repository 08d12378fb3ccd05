package cache

import (
	"fmt"
	"math"
	"time"
)

// Options controls construction of a TTLCache. The boolean fields are the
// defaults for the matching per-call options.
type Options[K comparable, V any] struct {
	// TTL is the default time-to-live. Zero leaves it unset, in which case
	// every Set must pass WithTTL.
	TTL time.Duration

	// Max bounds the number of entries. Zero means unbounded.
	// Entries with NoExpiration are never evicted, so Max is a soft bound
	// when they make up most of the cache.
	Max int

	// Dispose is called for every removed value. Optional.
	Dispose DisposeFunc[K, V]

	// OnPanic receives a value recovered from Dispose when it panics on
	// the purge timer goroutine. Optional.
	OnPanic func(recovered any)

	// NoUpdateTTL keeps the expiration of an existing key when it is overwritten.
	NoUpdateTTL bool

	// CheckAgeOnGet makes Get delete and miss on entries whose TTL has run out.
	CheckAgeOnGet bool

	// UpdateAgeOnGet makes Get renew the TTL of the entry it returns.
	UpdateAgeOnGet bool

	// NoDisposeOnSet skips Dispose for values replaced by Set.
	NoDisposeOnSet bool
}

// Validate checks the TTL and capacity bounds.
func (o Options[K, V]) Validate() error {
	if o.TTL != 0 {
		if err := ValidateTTL(o.TTL); err != nil {
			return err
		}
	}
	if o.Max < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, o.Max)
	}
	return nil
}

// ValidateTTL accepts NoExpiration or a positive whole number of milliseconds.
func ValidateTTL(ttl time.Duration) error {
	if ttl == NoExpiration {
		return nil
	}
	if ttl <= 0 || ttl%time.Millisecond != 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTTL, ttl)
	}
	return nil
}

// MillisToTTL converts a whole number of milliseconds to a TTL. Values
// that are not positive or do not fit in a time.Duration are rejected.
func MillisToTTL(ms int64) (time.Duration, error) {
	if ms <= 0 || ms > math.MaxInt64/int64(time.Millisecond) {
		return 0, fmt.Errorf("%w: got %dms", ErrInvalidTTL, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ValidateSetOptions reports the TTL error Set would return for opts on
// a cache whose default TTL is ttl.
func ValidateSetOptions(ttl time.Duration, opts ...SetOption) error {
	o := setOptions{ttl: ttl}
	for _, opt := range opts {
		if opt != nil {
			opt.applySet(&o)
		}
	}
	return ValidateTTL(o.ttl)
}

type setOptions struct {
	ttl            time.Duration
	noUpdateTTL    bool
	noDisposeOnSet bool
}

type getOptions struct {
	ttl            time.Duration
	checkAgeOnGet  bool
	updateAgeOnGet bool
}

// SetOption overrides a default for a single Set call.
type SetOption interface {
	applySet(*setOptions)
}

// GetOption overrides a default for a single Get call.
type GetOption interface {
	applyGet(*getOptions)
}

// TTLOption is accepted by both Set and Get.
type TTLOption interface {
	SetOption
	GetOption
}

type ttlOption time.Duration

func (o ttlOption) applySet(s *setOptions) { s.ttl = time.Duration(o) }
func (o ttlOption) applyGet(g *getOptions) { g.ttl = time.Duration(o) }

type setOptionFunc func(*setOptions)

func (f setOptionFunc) applySet(s *setOptions) { f(s) }

type getOptionFunc func(*getOptions)

func (f getOptionFunc) applyGet(g *getOptions) { f(g) }

// WithTTL overrides the default TTL. On Get it is the TTL applied when
// the age is renewed; an invalid value there leaves the entry untouched.
func WithTTL(ttl time.Duration) TTLOption {
	return ttlOption(ttl)
}

// WithNoUpdateTTL keeps the current expiration when overwriting a key.
func WithNoUpdateTTL(v bool) SetOption {
	return setOptionFunc(func(s *setOptions) { s.noUpdateTTL = v })
}

// WithNoDisposeOnSet skips disposal of the replaced value.
func WithNoDisposeOnSet(v bool) SetOption {
	return setOptionFunc(func(s *setOptions) { s.noDisposeOnSet = v })
}

// WithCheckAgeOnGet deletes and misses on an entry whose TTL has run out.
func WithCheckAgeOnGet(v bool) GetOption {
	return getOptionFunc(func(g *getOptions) { g.checkAgeOnGet = v })
}

// WithUpdateAgeOnGet renews the TTL of the returned entry.
func WithUpdateAgeOnGet(v bool) GetOption {
	return getOptionFunc(func(g *getOptions) { g.updateAgeOnGet = v })
}

func (c *TTLCache[K, V]) setOptions(opts []SetOption) setOptions {
	o := setOptions{
		ttl:            c.opts.TTL,
		noUpdateTTL:    c.opts.NoUpdateTTL,
		noDisposeOnSet: c.opts.NoDisposeOnSet,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applySet(&o)
		}
	}
	return o
}

func (c *TTLCache[K, V]) getOptions(opts []GetOption) getOptions {
	o := getOptions{
		ttl:            c.opts.TTL,
		checkAgeOnGet:  c.opts.CheckAgeOnGet,
		updateAgeOnGet: c.opts.UpdateAgeOnGet,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyGet(&o)
		}
	}
	return o
}

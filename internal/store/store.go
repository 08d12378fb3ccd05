// Package store keeps named TTL caches of JSON values and routes every
// removal to the sinks configured for its namespace.
package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"ttlcache-api/internal/cache"
	"ttlcache-api/internal/config"
	"ttlcache-api/internal/metrics"
	"ttlcache-api/internal/realtime"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Deps are the collaborators of a Store. DB, Hub and Metrics may be nil,
// which disables the matching sink.
type Deps struct {
	Config  config.Config
	DB      *gorm.DB
	Hub     *realtime.Hub
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Entry is a cached value with its remaining lifetime.
// RemainingTTL is cache.NoExpiration for entries that never expire.
type Entry struct {
	Key          string
	Value        json.RawMessage
	RemainingTTL time.Duration
}

// NamespaceInfo describes one live namespace.
type NamespaceInfo struct {
	Name      string
	Len       int
	TTL       time.Duration
	Max       int
	NextPurge *time.Time
}

type namespace struct {
	name  string
	cfg   config.NamespaceConfig
	cache *cache.TTLCache[string, json.RawMessage]
}

// Store is a registry of namespaced caches created on first write.
type Store struct {
	cfg     config.Config
	db      *gorm.DB
	hub     *realtime.Hub
	metrics *metrics.Metrics
	log     *zap.Logger

	// clock stamps disposal events.
	clock func() time.Time

	mu     sync.RWMutex
	spaces map[string]*namespace
	closed bool
}

// New returns an empty store.
func New(deps Deps) *Store {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		cfg:     deps.Config,
		db:      deps.DB,
		hub:     deps.Hub,
		metrics: deps.Metrics,
		log:     log,
		clock:   time.Now,
		spaces:  make(map[string]*namespace),
	}
}

// ValidateName checks a namespace name.
func ValidateName(name string) error {
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, name)
	}
	return nil
}

// lookup returns an existing namespace without creating it.
func (s *Store) lookup(name string) (*namespace, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.spaces[name], nil
}

// namespace returns the namespace, creating it from config when missing.
func (s *Store) namespace(name string) (*namespace, error) {
	ns, err := s.lookup(name)
	if err != nil || ns != nil {
		return ns, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if ns, ok := s.spaces[name]; ok {
		return ns, nil
	}

	nsCfg := s.cfg.Namespace(name)
	ns = &namespace{name: name, cfg: nsCfg}
	c, err := cache.New(cache.Options[string, json.RawMessage]{
		TTL:            time.Duration(nsCfg.TTL),
		Max:            nsCfg.Max,
		Dispose:        s.disposeFunc(ns),
		OnPanic:        s.onPanic(name),
		NoUpdateTTL:    nsCfg.NoUpdateTTL,
		CheckAgeOnGet:  nsCfg.CheckAgeOnGet,
		UpdateAgeOnGet: nsCfg.UpdateAgeOnGet,
		NoDisposeOnSet: nsCfg.NoDisposeOnSet,
	})
	if err != nil {
		return nil, fmt.Errorf("namespace %s: %w", name, err)
	}
	ns.cache = c
	s.spaces[name] = ns
	s.log.Info("namespace created",
		zap.String("namespace", name),
		zap.Duration("ttl", time.Duration(nsCfg.TTL)),
		zap.Int("max", nsCfg.Max),
		zap.Strings("dispose", nsCfg.Dispose),
	)
	return ns, nil
}

func (s *Store) sinks(sinkNames []string) []sink {
	var out []sink
	for _, name := range sinkNames {
		switch name {
		case config.SinkJournal:
			if s.db != nil {
				out = append(out, s.journalSink())
			}
		case config.SinkBroadcast:
			if s.hub != nil {
				out = append(out, s.broadcastSink())
			}
		case config.SinkMetrics:
			if s.metrics != nil {
				out = append(out, s.metricsSink())
			}
		}
	}
	return out
}

func (s *Store) disposeFunc(ns *namespace) cache.DisposeFunc[string, json.RawMessage] {
	sinks := s.sinks(ns.cfg.Dispose)
	return func(value json.RawMessage, key string, reason cache.DisposeReason) {
		at := s.clock()
		for _, sk := range sinks {
			sk(ns.name, key, value, reason.String(), at)
		}
		s.updateEntries(ns)
	}
}

func (s *Store) onPanic(name string) func(any) {
	return func(recovered any) {
		s.log.Error("dispose panicked",
			zap.String("namespace", name),
			zap.Any("recovered", recovered),
		)
	}
}

func (s *Store) updateEntries(ns *namespace) {
	if s.metrics != nil && ns.cache != nil {
		s.metrics.UpdateEntries(ns.name, ns.cache.Len())
	}
}

// Set stores value under key in the named namespace.
// Invalid TTLs are rejected before a missing namespace is created.
func (s *Store) Set(name, key string, value json.RawMessage, opts ...cache.SetOption) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := cache.ValidateSetOptions(time.Duration(s.cfg.Namespace(name).TTL), opts...); err != nil {
		return err
	}
	ns, err := s.namespace(name)
	if err != nil {
		return err
	}
	if err := ns.cache.Set(key, value, opts...); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordSet(name)
	}
	s.updateEntries(ns)
	return nil
}

// Get returns the entry for key. Missing namespaces are plain misses.
func (s *Store) Get(name, key string, opts ...cache.GetOption) (Entry, bool, error) {
	ns, err := s.lookup(name)
	if err != nil {
		return Entry{}, false, err
	}
	var (
		value json.RawMessage
		ok    bool
	)
	if ns != nil {
		value, ok = ns.cache.Get(key, opts...)
	}
	if s.metrics != nil {
		s.metrics.RecordGet(name, ok)
	}
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{Key: key, Value: value, RemainingTTL: ns.cache.RemainingTTL(key)}, true, nil
}

// Has reports whether key is present, without touching its TTL.
func (s *Store) Has(name, key string) (bool, error) {
	ns, err := s.lookup(name)
	if err != nil || ns == nil {
		return false, err
	}
	return ns.cache.Has(key), nil
}

// Delete removes key, reporting whether it was present.
func (s *Store) Delete(name, key string) (bool, error) {
	ns, err := s.lookup(name)
	if err != nil || ns == nil {
		return false, err
	}
	return ns.cache.Delete(key), nil
}

// Entries lists the namespace in expiration order, infinite entries last.
func (s *Store) Entries(name string) ([]Entry, error) {
	ns, err := s.lookup(name)
	if err != nil || ns == nil {
		return nil, err
	}
	var out []Entry
	for key, value := range ns.cache.All() {
		out = append(out, Entry{Key: key, Value: value, RemainingTTL: ns.cache.RemainingTTL(key)})
	}
	return out, nil
}

// Clear empties one namespace and drops it, reporting whether it existed.
func (s *Store) Clear(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	ns, ok := s.spaces[name]
	delete(s.spaces, name)
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	ns.cache.Clear()
	s.log.Info("namespace cleared", zap.String("namespace", name))
	return true, nil
}

// Namespaces returns the live namespaces sorted by name.
func (s *Store) Namespaces() []NamespaceInfo {
	s.mu.RLock()
	spaces := make([]*namespace, 0, len(s.spaces))
	for _, ns := range s.spaces {
		spaces = append(spaces, ns)
	}
	s.mu.RUnlock()

	out := make([]NamespaceInfo, 0, len(spaces))
	for _, ns := range spaces {
		info := NamespaceInfo{
			Name: ns.name,
			Len:  ns.cache.Len(),
			TTL:  time.Duration(ns.cfg.TTL),
			Max:  ns.cfg.Max,
		}
		if at, ok := ns.cache.NextPurge(); ok {
			info.NextPurge = &at
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b NamespaceInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Close clears every namespace and rejects further calls.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	spaces := s.spaces
	s.spaces = make(map[string]*namespace)
	s.mu.Unlock()

	for _, ns := range spaces {
		ns.cache.Clear()
	}
	s.log.Info("store closed", zap.Int("namespaces", len(spaces)))
}

// Package cache provides the in-process quote cache and per-source rate limits.
//
// The cache is not a durable store. It starts empty after a restart and every
// read path must cope with a miss.
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Defaults used when Options leave a field zero.
const (
	DefaultMaxEntries = 5000
	DefaultTTL        = 5 * time.Minute
)

// Options configures a Store.
type Options struct {
	MaxEntries int
	// TTL is the absolute age after which Get stops returning an entry.
	// GetStale ignores it.
	TTL time.Duration
	Now func() time.Time
}

type entry struct {
	capturedAt time.Time
	source     string
	data       []byte
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits           int64 `json:"hits"`
	StaleHits      int64 `json:"stale_hits"`
	Misses         int64 `json:"misses"`
	DecodeFailures int64 `json:"decode_failures"`
	Evictions      int64 `json:"evictions"`
	Size           int   `json:"size"`
	MaxEntries     int   `json:"max_entries"`
}

// Store is an LRU-bounded cache of msgpack-encoded values.
// Values are encoded on Set, so callers can never mutate a cached value.
type Store struct {
	entries    *lru.Cache[string, entry]
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	log        zerolog.Logger

	hits           atomic.Int64
	staleHits      atomic.Int64
	misses         atomic.Int64
	decodeFailures atomic.Int64
	evictions      atomic.Int64
}

// New creates a Store.
func New(opts Options, log zerolog.Logger) (*Store, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	entries, err := lru.New[string, entry](opts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}

	return &Store{
		entries:    entries,
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
		now:        opts.Now,
		log:        log.With().Str("component", "cache").Logger(),
	}, nil
}

// TTL returns the absolute freshness ceiling of the store.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Set encodes value and stores it under key, stamped with the current time.
func (s *Store) Set(key string, value interface{}, source string) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}

	if evicted := s.entries.Add(key, entry{capturedAt: s.now(), source: source, data: data}); evicted {
		s.evictions.Add(1)
	}
	return nil
}

// Get decodes the entry for key into dst if it is no older than maxAge and
// no older than the store TTL. A stale entry is left in place for GetStale.
// A non-positive maxAge means "use the store TTL".
func (s *Store) Get(key string, maxAge time.Duration, dst interface{}) bool {
	e, ok := s.entries.Get(key)
	if !ok {
		s.misses.Add(1)
		return false
	}

	if maxAge <= 0 || maxAge > s.ttl {
		maxAge = s.ttl
	}
	if s.now().Sub(e.capturedAt) > maxAge {
		s.misses.Add(1)
		return false
	}

	if !s.decode(key, e, dst) {
		s.misses.Add(1)
		return false
	}

	s.hits.Add(1)
	s.log.Debug().Str("key", key).Str("source", e.source).Msg("Cache hit")
	return true
}

// GetStale decodes the entry for key into dst regardless of its age.
// It is meant for failure fallbacks only and does not touch LRU recency.
func (s *Store) GetStale(key string, dst interface{}) bool {
	e, ok := s.entries.Peek(key)
	if !ok {
		return false
	}
	if !s.decode(key, e, dst) {
		return false
	}

	s.staleHits.Add(1)
	s.log.Warn().
		Str("key", key).
		Str("source", e.source).
		Dur("age", s.now().Sub(e.capturedAt)).
		Msg("Serving stale cache entry")
	return true
}

// decode treats a corrupt entry as a miss and drops it.
func (s *Store) decode(key string, e entry, dst interface{}) bool {
	if err := msgpack.Unmarshal(e.data, dst); err != nil {
		s.decodeFailures.Add(1)
		s.entries.Remove(key)
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cache entry, treating as miss")
		return false
	}
	return true
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	s.entries.Remove(key)
}

// Purge empties the store. Counters are kept.
func (s *Store) Purge() {
	s.entries.Purge()
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	return s.entries.Len()
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:           s.hits.Load(),
		StaleHits:      s.staleHits.Load(),
		Misses:         s.misses.Load(),
		DecodeFailures: s.decodeFailures.Load(),
		Evictions:      s.evictions.Load(),
		Size:           s.entries.Len(),
		MaxEntries:     s.maxEntries,
	}
}

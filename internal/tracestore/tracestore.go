// Package tracestore implements the bounded trace_id -> TracePayload map:
// one entry per cache miss, capped by TTL and by TRACE_MAX_KEEP (LRU by
// last access), with not_found semantics for an expired or unknown
// trace_id. Same hashicorp/golang-lru/v2 + TTL pattern as internal/cache;
// the two stores stay separate because traces and cache entries have
// different lifetimes and eviction pressure.
package tracestore

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yo-mi2027/manualdex/internal/provider"
	"github.com/yo-mi2027/manualdex/internal/rtypes"
)

type entry struct {
	payload   rtypes.TracePayload
	createdAt time.Time
}

// Store is the bounded trace payload map.
type Store struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *entry]
	ttl   time.Duration
	clock provider.Clock
}

// New builds a Store holding at most maxKeep entries, each valid for ttl.
func New(maxKeep int, ttl time.Duration, clock provider.Clock) *Store {
	if maxKeep <= 0 {
		maxKeep = 1
	}
	c, _ := lru.New[string, *entry](maxKeep)
	if clock == nil {
		clock = provider.SystemClock{}
	}
	return &Store{lru: c, ttl: ttl, clock: clock}
}

// Put records payload under its own TraceID, overwriting any prior entry.
func (s *Store) Put(payload rtypes.TracePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(payload.TraceID, &entry{payload: payload, createdAt: s.clock.Now()})
}

// Get returns the payload for traceID. ok is false for an unknown or
// expired trace_id: callers must map that directly onto the core's
// not_found error, never fall back to a fresh scan.
func (s *Store) Get(traceID string) (rtypes.TracePayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.lru.Get(traceID)
	if !found {
		return rtypes.TracePayload{}, false
	}
	if s.ttl > 0 && s.clock.Now().Sub(e.createdAt) > s.ttl {
		s.lru.Remove(traceID)
		return rtypes.TracePayload{}, false
	}
	return e.payload, true
}

// Len reports the number of live entries, for tests and diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// EvictManual drops every trace belonging to manualID, used by the
// invalidate() admin operation.
func (s *Store) EvictManual(manualID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, traceID := range s.lru.Keys() {
		if e, ok := s.lru.Peek(traceID); ok && e.payload.ManualID == manualID {
			s.lru.Remove(traceID)
		}
	}
}

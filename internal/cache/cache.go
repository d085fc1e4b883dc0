// Package cache implements the semantic result cache: a TTL- and
// LRU-bounded map from a query's identity to a cloned TracePayload, with
// the bypass / exact / semantic / miss / guard_revalidate mode taxonomy.
// Entries are keyed by a sha256 hash of the manual fingerprint, normalized
// query, required terms, budget and scope bits, so a content change is a
// guaranteed miss.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yo-mi2027/manualdex/internal/normalize"
	"github.com/yo-mi2027/manualdex/internal/provider"
	"github.com/yo-mi2027/manualdex/internal/rtypes"
)

// Key identifies one cacheable query shape.
type Key struct {
	ManualsFingerprint string
	Query              string
	RequiredTerms      []string
	BudgetTimeMs       int
	BudgetMaxCandidates int
	ScopeBits          string // opaque encoding of expand_scope / include_claim_graph / etc.
}

// Hash renders Key into the cache's lookup string:
// H(manuals_fingerprint, normalize(query), sorted(required_terms), budget,
// scope_bits).
func (k Key) Hash() string {
	terms := append([]string(nil), k.RequiredTerms...)
	sort.Strings(terms)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%d\x00%s",
		k.ManualsFingerprint,
		normalize.Normalize(k.Query),
		strings.Join(terms, "\x01"),
		k.BudgetTimeMs,
		k.BudgetMaxCandidates,
		k.ScopeBits,
	)
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	payload   rtypes.TracePayload
	createdAt time.Time
}

// LookupRequest carries the inputs that decide which SemCacheMode applies.
type LookupRequest struct {
	Key                     Key
	OnlyUnscannedFromTrace  bool
	IncludeClaimGraph       bool
	UseCache                bool
	CompactPublicPath       bool
	MaxGapCeiling           int
	MaxConflictCeiling      int
}

// Cache is the semantic cache: TTL- and LRU-bounded, process-memory only.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *entry]
	ttl   time.Duration
	clock provider.Clock
}

// New builds a Cache holding at most maxKeep entries, each valid for ttl.
func New(maxKeep int, ttl time.Duration, clock provider.Clock) *Cache {
	if maxKeep <= 0 {
		maxKeep = 1
	}
	c, _ := lru.New[string, *entry](maxKeep)
	if clock == nil {
		clock = provider.SystemClock{}
	}
	return &Cache{lru: c, ttl: ttl, clock: clock}
}

// Lookup evaluates the bypass rules and, absent a bypass
// condition, performs the key lookup. It returns the resolved mode, the
// cached payload (valid only when mode == SemCacheExact or
// SemCacheGuardRevalidate is reinterpreted by the caller as a miss), and
// whether a payload was actually returned.
func (c *Cache) Lookup(req LookupRequest) (rtypes.SemCacheMode, rtypes.TracePayload, bool) {
	if req.OnlyUnscannedFromTrace || req.IncludeClaimGraph || !req.UseCache || req.CompactPublicPath {
		return rtypes.SemCacheBypass, rtypes.TracePayload{}, false
	}

	c.mu.Lock()
	e, ok := c.lru.Get(req.Key.Hash())
	c.mu.Unlock()
	if !ok {
		return rtypes.SemCacheMiss, rtypes.TracePayload{}, false
	}
	if c.ttl > 0 && c.clock.Now().Sub(e.createdAt) > c.ttl {
		c.mu.Lock()
		c.lru.Remove(req.Key.Hash())
		c.mu.Unlock()
		return rtypes.SemCacheMiss, rtypes.TracePayload{}, false
	}

	if req.MaxGapCeiling >= 0 && e.payload.Summary.GapCount > req.MaxGapCeiling {
		return rtypes.SemCacheGuardRevalidate, rtypes.TracePayload{}, false
	}
	if req.MaxConflictCeiling >= 0 && e.payload.Summary.ConflictCount > req.MaxConflictCeiling {
		return rtypes.SemCacheGuardRevalidate, rtypes.TracePayload{}, false
	}

	return rtypes.SemCacheExact, e.payload.Clone(), true
}

// Insert stores a cloned payload under key, recording the current time as
// its creation time for TTL purposes.
func (c *Cache) Insert(key Key, payload rtypes.TracePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key.Hash(), &entry{payload: payload.Clone(), createdAt: c.clock.Now()})
}

// Len reports the number of live entries, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// EvictFingerprint drops every cache entry keyed under manualsFingerprint,
// used by the invalidate() admin operation when a manual's index is
// dropped.
func (c *Cache) EvictFingerprint(manualsFingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && e.payload.ManualsFingerprint == manualsFingerprint {
			c.lru.Remove(key)
		}
	}
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yo-mi2027/manualdex/internal/rtypes"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func baseKey() Key {
	return Key{ManualsFingerprint: "fp1", Query: "annual leave", RequiredTerms: []string{"leave"}, BudgetTimeMs: 5000, BudgetMaxCandidates: 50}
}

// TS01: a fresh insert is returned as an exact hit.
func TestLookup_ExactHitAfterInsert(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New(10, time.Hour, clock)
	c.Insert(baseKey(), rtypes.TracePayload{TraceID: "t1"})

	mode, payload, ok := c.Lookup(LookupRequest{Key: baseKey(), UseCache: true, MaxGapCeiling: -1, MaxConflictCeiling: -1})
	require.True(t, ok)
	assert.Equal(t, rtypes.SemCacheExact, mode)
	assert.Equal(t, "t1", payload.TraceID)
}

// TS02: use_cache=false bypasses the lookup entirely, even with an entry
// present.
func TestLookup_UseCacheFalseBypasses(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New(10, time.Hour, clock)
	c.Insert(baseKey(), rtypes.TracePayload{TraceID: "t1"})

	mode, _, ok := c.Lookup(LookupRequest{Key: baseKey(), UseCache: false})
	assert.Equal(t, rtypes.SemCacheBypass, mode)
	assert.False(t, ok)
}

// TS03: an entry older than the TTL is treated as a miss and evicted.
func TestLookup_ExpiredEntryIsMiss(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New(10, time.Minute, clock)
	c.Insert(baseKey(), rtypes.TracePayload{TraceID: "t1"})

	clock.now = time.Unix(1000+3600, 0)
	mode, _, ok := c.Lookup(LookupRequest{Key: baseKey(), UseCache: true, MaxGapCeiling: -1, MaxConflictCeiling: -1})
	assert.Equal(t, rtypes.SemCacheMiss, mode)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

// TS04: a cached payload whose gap count exceeds the caller's ceiling is
// reported as guard_revalidate rather than exact.
func TestLookup_GuardRevalidateOnExcessGaps(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New(10, time.Hour, clock)
	c.Insert(baseKey(), rtypes.TracePayload{TraceID: "t1", Summary: rtypes.Summary{GapCount: 5}})

	mode, _, ok := c.Lookup(LookupRequest{Key: baseKey(), UseCache: true, MaxGapCeiling: 2, MaxConflictCeiling: -1})
	assert.Equal(t, rtypes.SemCacheGuardRevalidate, mode)
	assert.False(t, ok)
}

// TS05: two keys differing only by required_terms order hash identically.
func TestKey_Hash_OrderInsensitiveToRequiredTerms(t *testing.T) {
	k1 := Key{ManualsFingerprint: "fp1", Query: "q", RequiredTerms: []string{"a", "b"}}
	k2 := Key{ManualsFingerprint: "fp1", Query: "q", RequiredTerms: []string{"b", "a"}}
	assert.Equal(t, k1.Hash(), k2.Hash())
}

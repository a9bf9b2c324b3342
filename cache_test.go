// cache_test.go: Two-tier cache behavior tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory CacheStore that can be forced to fail.
type fakeStore struct {
	mu       sync.Mutex
	payloads map[string][]byte
	getErr   error
	setErr   error
	getCalls int
	setCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{payloads: make(map[string][]byte)}
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	payload, ok := s.payloads[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return payload, nil
}

func (s *fakeStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	s.payloads[key] = payload
	return nil
}

func (s *fakeStore) Close() error { return nil }

// simulatedClock drives a cache's TTL logic without sleeping.
type simulatedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSimulatedClock() *simulatedClock {
	return &simulatedClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *simulatedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simulatedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedCache(config CacheConfig) (*IntelligentCache, *simulatedClock) {
	cache := NewIntelligentCache(config, NewNoOpLogger())
	clock := newSimulatedClock()
	cache.now = clock.Now
	return cache, clock
}

func sampleResult() *DecisionResult {
	return &DecisionResult{
		PrimaryDecision: map[string]any{"action": "approve"},
		Confidence:      0.9,
	}
}

func TestIntelligentCache_SetThenGet(t *testing.T) {
	cache, _ := newClockedCache(CacheConfig{TTL: time.Hour})
	dctx := testContext()
	params := map[string]any{"age": 65.0}

	cache.Set(context.Background(), "m", params, dctx, sampleResult())

	hit := cache.Get(context.Background(), "m", params, dctx)
	require.NotNil(t, hit)
	assert.True(t, hit.CacheHit)
	assert.Equal(t, "approve", hit.PrimaryDecision["action"])
}

func TestIntelligentCache_MissOnDifferentParams(t *testing.T) {
	cache, _ := newClockedCache(CacheConfig{TTL: time.Hour})
	dctx := testContext()

	cache.Set(context.Background(), "m", map[string]any{"age": 65.0}, dctx, sampleResult())

	assert.Nil(t, cache.Get(context.Background(), "m", map[string]any{"age": 66.0}, dctx))
}

func TestIntelligentCache_TTLExpiry(t *testing.T) {
	cache, clock := newClockedCache(CacheConfig{TTL: time.Hour})
	dctx := testContext()
	params := map[string]any{"age": 65.0}

	cache.Set(context.Background(), "m", params, dctx, sampleResult())

	clock.Advance(59 * time.Minute)
	assert.NotNil(t, cache.Get(context.Background(), "m", params, dctx))

	clock.Advance(2 * time.Minute)
	assert.Nil(t, cache.Get(context.Background(), "m", params, dctx), "entry past TTL must miss")
	assert.Equal(t, 0, cache.Size(), "expired entry is removed on lookup")
}

func TestIntelligentCache_EvictionBounds(t *testing.T) {
	cache, _ := newClockedCache(CacheConfig{TTL: time.Hour, MaxEntries: 10})
	dctx := testContext()

	for i := 0; i < 25; i++ {
		params := map[string]any{"i": i}
		cache.Set(context.Background(), "m", params, dctx, sampleResult())
		assert.LessOrEqual(t, cache.Size(), 10, "size never exceeds MaxEntries after Set")
	}

	stats := cache.Stats()
	assert.Greater(t, stats.Evictions, uint64(0))
}

func TestIntelligentCache_EvictionDropsToLowWater(t *testing.T) {
	cache, clock := newClockedCache(CacheConfig{TTL: time.Hour, MaxEntries: 10})
	dctx := testContext()

	for i := 0; i <= 10; i++ {
		params := map[string]any{"i": i}
		cache.Set(context.Background(), "m", params, dctx, sampleResult())
		clock.Advance(time.Second) // distinct timestamps for age ordering
	}

	// 11th insert crossed MaxEntries; trim lands at the 80% low-water mark.
	assert.Equal(t, 8, cache.Size())

	// The oldest entries were the ones removed.
	assert.Nil(t, cache.Get(context.Background(), "m", map[string]any{"i": 0}, dctx))
	assert.NotNil(t, cache.Get(context.Background(), "m", map[string]any{"i": 10}, dctx))
}

func TestIntelligentCache_EvictionPrefersExpired(t *testing.T) {
	cache, clock := newClockedCache(CacheConfig{TTL: time.Minute, MaxEntries: 10})
	dctx := testContext()

	for i := 0; i < 10; i++ {
		cache.Set(context.Background(), "m", map[string]any{"i": i}, dctx, sampleResult())
	}
	clock.Advance(2 * time.Minute) // everything above is now expired

	cache.Set(context.Background(), "m", map[string]any{"i": 99}, dctx, sampleResult())

	assert.Equal(t, 1, cache.Size(), "expired sweep removes all stale entries first")
	assert.NotNil(t, cache.Get(context.Background(), "m", map[string]any{"i": 99}, dctx))
}

func TestIntelligentCache_StatsFresh(t *testing.T) {
	cache, _ := newClockedCache(CacheConfig{TTL: time.Hour, HitRateTarget: 0.5})
	dctx := testContext()
	params := map[string]any{"age": 65.0}

	cache.Get(context.Background(), "m", params, dctx) // miss
	cache.Set(context.Background(), "m", params, dctx, sampleResult())
	cache.Get(context.Background(), "m", params, dctx) // hit

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.TotalHits)
	assert.Equal(t, uint64(1), stats.TotalMisses)
	assert.Equal(t, uint64(2), stats.TotalRequests)
	assert.Equal(t, 0.5, stats.HitRate)
	assert.True(t, stats.TargetMet)

	cache.Get(context.Background(), "m", map[string]any{"other": 1}, dctx) // miss
	updated := cache.Stats()
	assert.InDelta(t, 1.0/3.0, updated.HitRate, 1e-9, "stats recomputed on every call")
}

func TestIntelligentCache_ExternalTierWriteThrough(t *testing.T) {
	store := newFakeStore()
	cache, _ := newClockedCache(CacheConfig{TTL: time.Hour, Store: store})
	dctx := testContext()
	params := map[string]any{"age": 65.0}

	cache.Set(context.Background(), "m", params, dctx, sampleResult())
	require.Equal(t, 1, store.setCalls)

	// Fresh cache sharing the store: local miss falls through and repopulates.
	other, _ := newClockedCache(CacheConfig{TTL: time.Hour, Store: store})
	hit := other.Get(context.Background(), "m", params, dctx)
	require.NotNil(t, hit)
	assert.True(t, hit.CacheHit)
	assert.Equal(t, 1, other.Size(), "external hit repopulates the local tier")

	// Second lookup is served locally, no extra store round trip.
	prior := store.getCalls
	require.NotNil(t, other.Get(context.Background(), "m", params, dctx))
	assert.Equal(t, prior, store.getCalls)
}

func TestIntelligentCache_StoreErrorsDegradeToMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = fmt.Errorf("connection refused")
	store.setErr = fmt.Errorf("connection refused")

	logger := NewTestLogger()
	cache := NewIntelligentCache(CacheConfig{TTL: time.Hour, Store: store}, logger)
	dctx := testContext()
	params := map[string]any{"age": 65.0}

	assert.Nil(t, cache.Get(context.Background(), "m", params, dctx))
	cache.Set(context.Background(), "m", params, dctx, sampleResult())

	// Local tier still works despite the broken store.
	assert.NotNil(t, cache.Get(context.Background(), "m", params, dctx))
	assert.True(t, logger.HasMessage("WARN", "External cache store error"))
}

func TestIntelligentCache_CompressedPayloadRoundTrip(t *testing.T) {
	store := newFakeStore()
	writer, _ := newClockedCache(CacheConfig{TTL: time.Hour, Store: store, CompressionEnabled: true})
	dctx := testContext()
	params := map[string]any{"age": 65.0}

	writer.Set(context.Background(), "m", params, dctx, sampleResult())

	store.mu.Lock()
	for _, payload := range store.payloads {
		assert.Equal(t, gzipMagic, payload[:2], "compressed payloads are gzip-framed")
	}
	store.mu.Unlock()

	// A reader without compression enabled still decodes the framed payload.
	reader, _ := newClockedCache(CacheConfig{TTL: time.Hour, Store: store})
	hit := reader.Get(context.Background(), "m", params, dctx)
	require.NotNil(t, hit)
	assert.Equal(t, "approve", hit.PrimaryDecision["action"])
}

func TestCacheConfig_StrategyPresets(t *testing.T) {
	assert.Equal(t, 24*time.Hour, CacheConfigForStrategy(StrategyAggressive).TTL)
	assert.Equal(t, 4*time.Hour, CacheConfigForStrategy(StrategyModerate).TTL)
	assert.Equal(t, time.Hour, CacheConfigForStrategy(StrategyConservative).TTL)

	defaults := DefaultCacheConfig()
	assert.Equal(t, StrategyModerate, defaults.Strategy)
	assert.Equal(t, 10000, defaults.MaxEntries)
	assert.Equal(t, 0.90, defaults.HitRateTarget)
}

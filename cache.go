// cache.go: Two-tier TTL cache with hit-rate-optimized key normalization
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// Strategy TTL presets. Aggressive trades freshness for hit rate; conservative
// is the inverse.
const (
	aggressiveTTL   = 24 * time.Hour
	moderateTTL     = 4 * time.Hour
	conservativeTTL = time.Hour
)

// evictionLowWater is the fill fraction the capacity-pressure trim reduces the
// local tier to once MaxEntries is exceeded.
const evictionLowWater = 0.8

// CacheConfig configures a module's IntelligentCache.
//
// One config is owned per decision module, set at construction and immutable
// thereafter. A nil Store disables the external tier.
type CacheConfig struct {
	Strategy           CacheStrategy `json:"strategy" yaml:"strategy"`
	TTL                time.Duration `json:"ttl" yaml:"ttl"`
	MaxEntries         int           `json:"max_entries" yaml:"max_entries"`
	HitRateTarget      float64       `json:"hit_rate_target" yaml:"hit_rate_target"`
	CompressionEnabled bool          `json:"compression_enabled" yaml:"compression_enabled"`
	Store              CacheStore    `json:"-" yaml:"-"`
}

// ApplyDefaults fills unset fields with production defaults.
func (c *CacheConfig) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyModerate
	}
	if c.TTL == 0 {
		c.TTL = ttlForStrategy(c.Strategy)
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 10000
	}
	if c.HitRateTarget == 0 {
		c.HitRateTarget = 0.90
	}
}

// DefaultCacheConfig returns the moderate-strategy configuration.
func DefaultCacheConfig() CacheConfig {
	config := CacheConfig{}
	config.ApplyDefaults()
	return config
}

// CacheConfigForStrategy returns a configuration preset for the given
// strategy with the matching TTL.
func CacheConfigForStrategy(strategy CacheStrategy) CacheConfig {
	config := CacheConfig{Strategy: strategy}
	config.ApplyDefaults()
	return config
}

func ttlForStrategy(strategy CacheStrategy) time.Duration {
	switch strategy {
	case StrategyAggressive:
		return aggressiveTTL
	case StrategyConservative:
		return conservativeTTL
	default:
		return moderateTTL
	}
}

// CacheStats is a point-in-time snapshot of cache performance.
// Computed fresh on every call, never cached.
type CacheStats struct {
	HitRate       float64 `json:"hit_rate"`
	TotalHits     uint64  `json:"total_hits"`
	TotalMisses   uint64  `json:"total_misses"`
	TotalRequests uint64  `json:"total_requests"`
	Size          int     `json:"size"`
	Evictions     uint64  `json:"evictions"`
	TargetHitRate float64 `json:"target_hit_rate"`
	TargetMet     bool    `json:"target_met"`
}

type cacheEntry struct {
	result   *DecisionResult
	storedAt time.Time
}

// IntelligentCache is a two-tier TTL cache keyed by normalized parameters.
//
// The local tier is an in-process map guarded by a single mutex, so a
// concurrent reader never observes a half-written entry. External-store I/O
// happens outside that lock: a slow or failing store must not block local
// lookups. The external tier is best-effort in both directions — read errors
// degrade to misses, write errors are dropped after logging.
type IntelligentCache struct {
	config CacheConfig
	logger Logger
	store  CacheStore

	// now is the clock source; overridable in tests for TTL simulation.
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]*cacheEntry
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewIntelligentCache creates a cache for one module.
func NewIntelligentCache(config CacheConfig, logger any) *IntelligentCache {
	config.ApplyDefaults()
	return &IntelligentCache{
		config:  config,
		logger:  NewLogger(logger),
		store:   config.Store,
		now:     timecache.CachedTime,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns a cached result for the normalized key, or nil on a miss.
//
// The local tier is consulted first; an expired local entry is deleted and the
// lookup falls through to the external tier, which repopulates the local tier
// on a hit (write-through). Returned results are clones with CacheHit set, so
// the cached instance is never mutated.
func (c *IntelligentCache) Get(ctx context.Context, moduleID string, params map[string]any, dctx DecisionContext) *DecisionResult {
	key, err := cacheKey(moduleID, params, dctx)
	if err != nil {
		c.logger.Warn("Cache key generation failed, treating as miss",
			"module_id", moduleID, "error", err)
		c.recordMiss()
		return nil
	}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		if c.now().Sub(entry.storedAt) < c.config.TTL {
			c.hits++
			hit := entry.result.Clone()
			c.mu.Unlock()
			hit.CacheHit = true
			return hit
		}
		// Expired: remove and fall through to the external tier.
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if c.store != nil {
		if hit := c.externalGet(ctx, key, moduleID); hit != nil {
			return hit
		}
	}

	c.recordMiss()
	return nil
}

// externalGet queries the external tier outside the local lock. Store errors
// are swallowed: a miss must never become a propagated error.
func (c *IntelligentCache) externalGet(ctx context.Context, key, moduleID string) *DecisionResult {
	payload, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("External cache store error on get, treating as miss",
				"module_id", moduleID, "error", NewCacheStoreError("get", err))
		}
		return nil
	}

	result, err := decodeCachePayload(payload)
	if err != nil {
		c.logger.Warn("External cache payload undecodable, treating as miss",
			"module_id", moduleID, "error", err)
		return nil
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{result: result, storedAt: c.now()}
	c.hits++
	hit := result.Clone()
	c.mu.Unlock()

	hit.CacheHit = true
	return hit
}

// Set stores a result in the local tier and, when configured, the external
// tier. Local writes are unconditional; external writes are best-effort.
// Capacity pressure triggers eviction after the local write.
func (c *IntelligentCache) Set(ctx context.Context, moduleID string, params map[string]any, dctx DecisionContext, result *DecisionResult) {
	key, err := cacheKey(moduleID, params, dctx)
	if err != nil {
		c.logger.Warn("Cache key generation failed, skipping cache write",
			"module_id", moduleID, "error", err)
		return
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{result: result.Clone(), storedAt: c.now()}
	if len(c.entries) > c.config.MaxEntries {
		c.evictLocked()
	}
	c.mu.Unlock()

	if c.store != nil {
		c.externalSet(ctx, key, moduleID, result)
	}
}

func (c *IntelligentCache) externalSet(ctx context.Context, key, moduleID string, result *DecisionResult) {
	payload, err := encodeCachePayload(result, c.config.CompressionEnabled)
	if err != nil {
		c.logger.Warn("External cache payload encoding failed, skipping external write",
			"module_id", moduleID, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, payload, c.config.TTL); err != nil {
		c.logger.Warn("External cache store error on set, dropping write",
			"module_id", moduleID, "error", NewCacheStoreError("set", err))
	}
}

// evictLocked runs the two-phase eviction policy. Caller holds c.mu.
//
// Phase one removes every expired entry — free cleanup with no ordering cost.
// If the map is still above the low-water mark, phase two removes the
// oldest-by-timestamp entries until at or under it.
func (c *IntelligentCache) evictLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) > c.config.TTL {
			delete(c.entries, key)
			c.evictions++
		}
	}

	lowWater := int(float64(c.config.MaxEntries) * evictionLowWater)
	if len(c.entries) <= lowWater {
		return
	}

	type agedKey struct {
		key      string
		storedAt time.Time
	}
	aged := make([]agedKey, 0, len(c.entries))
	for key, entry := range c.entries {
		aged = append(aged, agedKey{key: key, storedAt: entry.storedAt})
	}
	sort.Slice(aged, func(i, j int) bool {
		return aged[i].storedAt.Before(aged[j].storedAt)
	})

	for _, candidate := range aged {
		if len(c.entries) <= lowWater {
			break
		}
		delete(c.entries, candidate.key)
		c.evictions++
	}
}

func (c *IntelligentCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Stats returns a fresh snapshot of cache performance counters.
func (c *IntelligentCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		HitRate:       hitRate,
		TotalHits:     c.hits,
		TotalMisses:   c.misses,
		TotalRequests: total,
		Size:          len(c.entries),
		Evictions:     c.evictions,
		TargetHitRate: c.config.HitRateTarget,
		TargetMet:     hitRate >= c.config.HitRateTarget,
	}
}

// Size returns the current number of local-tier entries.
func (c *IntelligentCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

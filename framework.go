// framework.go: Decision framework managing module registration and dispatch
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"context"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// FrameworkOptions configures a Framework instance.
type FrameworkOptions struct {
	// DefaultCacheConfig is applied to modules registered without an explicit
	// cache configuration. Zero value selects the aggressive preset, tuned
	// for the 90% hit-rate target.
	DefaultCacheConfig CacheConfig

	// DefaultCacheStore, when set, becomes the external tier for module
	// caches that do not carry their own store.
	DefaultCacheStore CacheStore

	// Logger accepts a Logger, a *logrus.Logger, or nil for silent operation.
	Logger any
}

// Framework is the core registry mapping module IDs to instances and the
// single dispatch point for decision execution.
//
// The framework holds the authoritative moduleID to instance map. It is safe
// for concurrent use; registration and unregistration only happen through the
// defined operations.
type Framework struct {
	logger             Logger
	defaultCacheConfig CacheConfig
	startTime          time.Time

	mu      sync.RWMutex
	modules map[string]*moduleRuntime
}

// NewFramework creates a decision framework.
func NewFramework(opts FrameworkOptions) *Framework {
	cacheConfig := opts.DefaultCacheConfig
	if cacheConfig.Strategy == "" && cacheConfig.TTL == 0 {
		cacheConfig = CacheConfigForStrategy(StrategyAggressive)
	}
	cacheConfig.ApplyDefaults()
	if cacheConfig.Store == nil {
		cacheConfig.Store = opts.DefaultCacheStore
	}

	return &Framework{
		logger:             NewLogger(opts.Logger),
		defaultCacheConfig: cacheConfig,
		startTime:          timecache.CachedTime(),
		modules:            make(map[string]*moduleRuntime),
	}
}

// Register adds a module under its own ID using the framework's default cache
// configuration. Registering an already-present ID is an error; unload first.
func (f *Framework) Register(module DecisionModule) error {
	return f.RegisterWithCacheConfig(module, f.defaultCacheConfig)
}

// RegisterWithCacheConfig adds a module with a module-specific cache
// configuration. The configuration is fixed for the module's lifetime.
func (f *Framework) RegisterWithCacheConfig(module DecisionModule, cacheConfig CacheConfig) error {
	moduleID := module.ModuleID()

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.modules[moduleID]; exists {
		return NewDuplicateModuleError(moduleID)
	}

	f.modules[moduleID] = newModuleRuntime(module, cacheConfig, f.logger)
	f.logger.Info("Registered module",
		"module_id", moduleID,
		"domain", module.Domain(),
		"version", module.Version())
	return nil
}

// Unregister removes a module from the framework.
func (f *Framework) Unregister(moduleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.modules[moduleID]; !exists {
		return NewModuleNotFoundError(moduleID)
	}

	delete(f.modules, moduleID)
	f.logger.Info("Unregistered module", "module_id", moduleID)
	return nil
}

// Execute dispatches a decision request to the named module through its
// cache-wrapped execution pipeline.
//
// Callers only ever see three error classes here: module-not-found, parameter
// validation, and processing failures. Cache-internal failures degrade to
// recomputation and are observable only through metrics.
func (f *Framework) Execute(ctx context.Context, moduleID string, params map[string]any, dctx DecisionContext, options map[string]any) (*DecisionResult, error) {
	f.mu.RLock()
	runtime, exists := f.modules[moduleID]
	f.mu.RUnlock()

	if !exists {
		return nil, NewModuleNotFoundError(moduleID)
	}

	return runtime.Execute(ctx, params, dctx, options)
}

// HasModule reports whether a module is registered under the given ID.
func (f *Framework) HasModule(moduleID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.modules[moduleID]
	return exists
}

// ModuleInfo returns a module's identity, parameter schema, and metrics.
func (f *Framework) ModuleInfo(moduleID string) (ModuleInfo, error) {
	f.mu.RLock()
	runtime, exists := f.modules[moduleID]
	f.mu.RUnlock()

	if !exists {
		return ModuleInfo{}, NewModuleNotFoundError(moduleID)
	}

	return ModuleInfo{
		ModuleDescriptor: runtime.Descriptor(),
		Schema:           runtime.module.Schema(),
		Metrics:          runtime.Metrics(),
	}, nil
}

// ModuleMetrics returns the metrics snapshot for one module.
func (f *Framework) ModuleMetrics(moduleID string) (ModuleMetrics, error) {
	f.mu.RLock()
	runtime, exists := f.modules[moduleID]
	f.mu.RUnlock()

	if !exists {
		return ModuleMetrics{}, NewModuleNotFoundError(moduleID)
	}
	return runtime.Metrics(), nil
}

// ListModules returns descriptors for registered modules, optionally filtered
// by domain. An empty domain matches everything.
func (f *Framework) ListModules(domain string) []ModuleDescriptor {
	f.mu.RLock()
	defer f.mu.RUnlock()

	descriptors := make([]ModuleDescriptor, 0, len(f.modules))
	for _, runtime := range f.modules {
		if domain != "" && runtime.module.Domain() != domain {
			continue
		}
		descriptors = append(descriptors, runtime.Descriptor())
	}
	return descriptors
}

// Metrics aggregates metrics across all registered modules.
//
// The overall cache hit rate is total hits over total lookups across every
// module cache — not an average of per-module rates, which would bias toward
// low-traffic modules. Average response time is request-weighted the same way.
func (f *Framework) Metrics() FrameworkMetrics {
	f.mu.RLock()
	runtimes := make([]*moduleRuntime, 0, len(f.modules))
	for _, runtime := range f.modules {
		runtimes = append(runtimes, runtime)
	}
	f.mu.RUnlock()

	metrics := FrameworkMetrics{
		TotalModules: len(runtimes),
		StartTime:    f.startTime,
		Modules:      make(map[string]ModuleMetrics, len(runtimes)),
	}

	var weightedMs float64
	var cacheHits, cacheLookups uint64

	for _, runtime := range runtimes {
		m := runtime.Metrics()
		metrics.Modules[m.ModuleID] = m
		metrics.TotalRequests += m.TotalRequests
		weightedMs += m.AvgResponseTimeMs * float64(m.TotalRequests)
		cacheHits += m.CacheStats.TotalHits
		cacheLookups += m.CacheStats.TotalRequests
	}

	if metrics.TotalRequests > 0 {
		metrics.AvgResponseTimeMs = weightedMs / float64(metrics.TotalRequests)
	}
	if cacheLookups > 0 {
		metrics.OverallCacheHitRate = float64(cacheHits) / float64(cacheLookups)
	}
	metrics.CacheTargetMet = metrics.OverallCacheHitRate >= f.defaultCacheConfig.HitRateTarget

	return metrics
}

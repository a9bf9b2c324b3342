// module.go: Decision module contract and cache-wrapped execution runtime
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// DecisionModule is the contract every pluggable decision unit implements.
//
// The framework treats the domain logic inside ComputeDecision as opaque; it
// only enforces the structural contract (validation, response shape, schema).
// Implementations must be safe for concurrent calls.
type DecisionModule interface {
	// ModuleID returns the unique identifier the module registers under.
	ModuleID() string

	// ModuleType returns the module's capability classification.
	ModuleType() ModuleType

	// Version returns the module's semantic version.
	Version() string

	// Domain returns the business domain the module serves.
	Domain() string

	// ValidateParameters checks the input parameters and returns one
	// human-readable reason per violation. An empty slice means valid.
	ValidateParameters(params map[string]any) []string

	// ComputeDecision runs the module's domain logic. Context should be
	// honored for timeouts and cancellation.
	ComputeDecision(ctx context.Context, params map[string]any, dctx DecisionContext, options map[string]any) (*DecisionResult, error)

	// Schema returns a structural description of the accepted parameters.
	Schema() map[string]any
}

// moduleRuntime wraps a registered module with its cache and performance
// metrics and implements the framework-provided execution pipeline.
//
// Exactly one runtime exists per registered module; the framework holds the
// authoritative moduleID to runtime map.
type moduleRuntime struct {
	module DecisionModule
	cache  *IntelligentCache
	logger Logger
	now    func() time.Time

	mu            sync.Mutex
	totalRequests uint64
	avgResponseMs float64
	errorCount    uint64
	lastRequest   time.Time
}

func newModuleRuntime(module DecisionModule, cacheConfig CacheConfig, logger Logger) *moduleRuntime {
	return &moduleRuntime{
		module: module,
		cache:  NewIntelligentCache(cacheConfig, logger),
		logger: logger.With("module_id", module.ModuleID()),
		now:    timecache.CachedTime,
	}
}

// Execute runs the standard pipeline: cache lookup, validation, compute,
// cache write. Side effects per call: exactly one cache write on a non-cached
// successful execution, exactly one request counted regardless of outcome.
func (rt *moduleRuntime) Execute(ctx context.Context, params map[string]any, dctx DecisionContext, options map[string]any) (*DecisionResult, error) {
	start := time.Now()
	requestID := uuid.NewString()
	moduleID := rt.module.ModuleID()

	rt.mu.Lock()
	rt.totalRequests++
	rt.mu.Unlock()

	// Cache hit short-circuits validation and compute entirely.
	if cached := rt.cache.Get(ctx, moduleID, params, dctx); cached != nil {
		elapsedMs := millisecondsSince(start)
		cached.ResponseTimeMs = elapsedMs
		rt.observeResponse(elapsedMs)
		rt.logger.Debug("Decision served from cache",
			"request_id", requestID,
			"response_time_ms", elapsedMs)
		return cached, nil
	}

	if reasons := rt.module.ValidateParameters(params); len(reasons) > 0 {
		rt.recordError()
		rt.logger.Warn("Parameter validation failed",
			"request_id", requestID,
			"validation_errors", reasons)
		return nil, NewParameterValidationError(moduleID, reasons)
	}

	result, err := rt.compute(ctx, params, dctx, options)
	if err != nil {
		rt.recordError()
		elapsed := time.Since(start)
		rt.logger.Error("Decision module error",
			"request_id", requestID,
			"response_time_ms", millisecondsSince(start),
			"error", err)
		return nil, NewProcessingError(moduleID, elapsed, err)
	}

	elapsedMs := millisecondsSince(start)
	result.ResponseTimeMs = elapsedMs
	if result.Timestamp.IsZero() {
		result.Timestamp = rt.now()
	}
	rt.observeResponse(elapsedMs)

	rt.cache.Set(ctx, moduleID, params, dctx, result)

	rt.logger.Debug("Decision computed",
		"request_id", requestID,
		"confidence", result.Confidence,
		"response_time_ms", elapsedMs)
	return result, nil
}

// compute invokes the module's domain logic with panic containment: a module
// panic must surface as a ProcessingError, never take down the dispatch path.
func (rt *moduleRuntime) compute(ctx context.Context, params map[string]any, dctx DecisionContext, options map[string]any) (result *DecisionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("module panic: %v", r)
		}
	}()
	result, err = rt.module.ComputeDecision(ctx, params, dctx, options)
	if err == nil && result == nil {
		err = fmt.Errorf("module returned no result and no error")
	}
	return result, err
}

// observeResponse folds one response time into the running incremental mean:
// avg += (x - avg) / n, with n the total request count including errored
// requests.
func (rt *moduleRuntime) observeResponse(elapsedMs float64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	n := float64(rt.totalRequests)
	if n < 1 {
		n = 1
	}
	rt.avgResponseMs += (elapsedMs - rt.avgResponseMs) / n
	rt.lastRequest = rt.now()
}

func (rt *moduleRuntime) recordError() {
	rt.mu.Lock()
	rt.errorCount++
	rt.mu.Unlock()
}

// Metrics returns a fresh snapshot of the module's performance counters.
func (rt *moduleRuntime) Metrics() ModuleMetrics {
	cacheStats := rt.cache.Stats()

	rt.mu.Lock()
	defer rt.mu.Unlock()

	errorRate := 0.0
	if rt.totalRequests > 0 {
		errorRate = float64(rt.errorCount) / float64(rt.totalRequests)
	}

	return ModuleMetrics{
		ModuleID:          rt.module.ModuleID(),
		ModuleType:        rt.module.ModuleType(),
		Domain:            rt.module.Domain(),
		Version:           rt.module.Version(),
		TotalRequests:     rt.totalRequests,
		AvgResponseTimeMs: rt.avgResponseMs,
		ErrorCount:        rt.errorCount,
		ErrorRate:         errorRate,
		LastRequest:       rt.lastRequest,
		CacheStats:        cacheStats,
	}
}

// Descriptor returns the module's identity summary.
func (rt *moduleRuntime) Descriptor() ModuleDescriptor {
	return ModuleDescriptor{
		ModuleID:   rt.module.ModuleID(),
		ModuleType: rt.module.ModuleType(),
		Domain:     rt.module.Domain(),
		Version:    rt.module.Version(),
	}
}

// safeValidate calls a module's ValidateParameters with panic containment.
// Used by the health-check loop, where one module's failure must never stop
// monitoring of the others.
func safeValidate(module DecisionModule, params map[string]any) (reasons []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reasons = nil
			err = fmt.Errorf("validation panic: %v", r)
		}
	}()
	return module.ValidateParameters(params), nil
}

func millisecondsSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// types.go: Common data types and structures for the decision framework
//
// This file contains the shared data type definitions used throughout the
// decision framework. These types represent the common data models and
// enumerations used by modules, the framework, the plugin registry, and the
// caching layer. Keeping them separate from the interface definitions improves
// code organization and maintainability.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"time"
)

// ModuleType classifies the kind of decision a module produces.
//
// Types are declarative metadata: the framework never interprets them beyond
// capability matching in service discovery. They mirror the manifest
// `module_type` field.
type ModuleType string

const (
	// ModuleTypeDiagnostic covers classification decisions (diagnosis, fraud detection).
	ModuleTypeDiagnostic ModuleType = "diagnostic"
	// ModuleTypeTherapeutic covers treatment and intervention recommendations.
	ModuleTypeTherapeutic ModuleType = "therapeutic"
	// ModuleTypeProcedural covers procedure and process optimization decisions.
	ModuleTypeProcedural ModuleType = "procedural"
	// ModuleTypeAnalytical covers performance analysis and risk assessment.
	ModuleTypeAnalytical ModuleType = "analytical"
	// ModuleTypePredictive covers forecasting and outcome prediction.
	ModuleTypePredictive ModuleType = "predictive"
	// ModuleTypeOptimization covers resource allocation and scheduling.
	ModuleTypeOptimization ModuleType = "optimization"
)

// IsValid reports whether the module type is one of the known classifications.
func (t ModuleType) IsValid() bool {
	switch t {
	case ModuleTypeDiagnostic, ModuleTypeTherapeutic, ModuleTypeProcedural,
		ModuleTypeAnalytical, ModuleTypePredictive, ModuleTypeOptimization:
		return true
	}
	return false
}

// CacheStrategy selects a TTL/hit-rate tradeoff preset for a module's cache.
type CacheStrategy string

const (
	// StrategyAggressive favors hit rate: 24h TTL.
	StrategyAggressive CacheStrategy = "aggressive"
	// StrategyModerate balances freshness and hit rate: 4h TTL.
	StrategyModerate CacheStrategy = "moderate"
	// StrategyConservative favors fresh data: 1h TTL.
	StrategyConservative CacheStrategy = "conservative"
)

// HealthState represents the current operational status of a loaded plugin.
//
// State transitions are driven exclusively by the registry's health-check loop
// and the load/unload paths:
//   - StateHealthy: probe completed within thresholds
//   - StateUnhealthy: probe latency or validation-error count exceeded thresholds
//   - StateError: the probe itself failed unexpectedly
//   - StateDisabled: plugin administratively disabled
type HealthState string

const (
	StateHealthy   HealthState = "healthy"
	StateUnhealthy HealthState = "unhealthy"
	StateDisabled  HealthState = "disabled"
	StateError     HealthState = "error"
)

// DecisionContext carries request-scoped identity and policy information
// through the whole decision pipeline.
//
// The context is immutable per call and never persisted by this subsystem.
// OrganizationID and Domain participate in cache-key scoping; UserID and
// SessionID are deliberately excluded from cache keys so that semantically
// equivalent requests from different users in the same organization share
// cached results.
type DecisionContext struct {
	UserID                 string         `json:"user_id"`
	OrganizationID         string         `json:"organization_id"`
	Domain                 string         `json:"domain"`
	Timestamp              time.Time      `json:"timestamp"`
	SessionID              string         `json:"session_id,omitempty"`
	ComplianceRequirements []string       `json:"compliance_requirements,omitempty"`
	PerformanceTargets     map[string]any `json:"performance_targets,omitempty"`
}

// DecisionResult is the standardized result format produced by every module.
//
// A module's compute step creates a fresh result; the caching layer stores it
// and returns clones with CacheHit set, so a cached instance is never mutated
// in place.
type DecisionResult struct {
	PrimaryDecision map[string]any   `json:"primary_decision"`
	Confidence      float64          `json:"confidence"`
	Alternatives    []map[string]any `json:"alternatives"`
	Metadata        map[string]any   `json:"metadata"`
	CacheHit        bool             `json:"cache_hit"`
	ResponseTimeMs  float64          `json:"response_time_ms"`
	Timestamp       time.Time        `json:"timestamp"`
}

// Clone returns a copy of the result safe to hand to a caller.
//
// Top-level maps and the alternatives slice are copied so that callers cannot
// mutate the cached instance through the returned value. Nested values are
// shared; results are treated as immutable payloads by contract.
func (r *DecisionResult) Clone() *DecisionResult {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PrimaryDecision != nil {
		clone.PrimaryDecision = make(map[string]any, len(r.PrimaryDecision))
		for k, v := range r.PrimaryDecision {
			clone.PrimaryDecision[k] = v
		}
	}
	if r.Metadata != nil {
		clone.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	if r.Alternatives != nil {
		clone.Alternatives = make([]map[string]any, len(r.Alternatives))
		copy(clone.Alternatives, r.Alternatives)
	}
	return &clone
}

// ModuleMetrics is the per-module observability surface.
//
// Counters are cumulative since registration; AvgResponseTimeMs is an
// incremental mean over every request, including requests that errored.
type ModuleMetrics struct {
	ModuleID          string     `json:"module_id"`
	ModuleType        ModuleType `json:"module_type"`
	Domain            string     `json:"domain"`
	Version           string     `json:"version"`
	TotalRequests     uint64     `json:"total_requests"`
	AvgResponseTimeMs float64    `json:"avg_response_time_ms"`
	ErrorCount        uint64     `json:"error_count"`
	ErrorRate         float64    `json:"error_rate"`
	LastRequest       time.Time  `json:"last_request"`
	CacheStats        CacheStats `json:"cache_stats"`
}

// FrameworkMetrics aggregates metrics across every registered module.
//
// OverallCacheHitRate is computed as total hits over total lookups across all
// module caches, not as an average of per-module rates, so low-traffic modules
// do not bias the figure.
type FrameworkMetrics struct {
	TotalModules        int                      `json:"total_modules"`
	TotalRequests       uint64                   `json:"total_requests"`
	AvgResponseTimeMs   float64                  `json:"avg_response_time_ms"`
	OverallCacheHitRate float64                  `json:"overall_cache_hit_rate"`
	CacheTargetMet      bool                     `json:"cache_target_met"`
	StartTime           time.Time                `json:"start_time"`
	Modules             map[string]ModuleMetrics `json:"modules"`
}

// ModuleDescriptor summarizes a registered module for listing APIs.
type ModuleDescriptor struct {
	ModuleID   string     `json:"module_id"`
	ModuleType ModuleType `json:"module_type"`
	Domain     string     `json:"domain"`
	Version    string     `json:"version"`
}

// ModuleInfo combines a module's identity, schema, and runtime metrics.
type ModuleInfo struct {
	ModuleDescriptor
	Schema  map[string]any `json:"schema"`
	Metrics ModuleMetrics  `json:"metrics"`
}

// Package godecisions provides a pluggable decision-dispatch core for Go
// applications. It caches expensive decision computations behind a
// normalized-key, TTL-based cache and discovers, dependency-orders, and
// health-monitors pluggable decision modules at runtime, automatically
// reloading modules that fail repeatedly.
//
// Key Features:
//   - Two-tier intelligent caching (in-process + optional Redis) with
//     parameter normalization tuned for high hit rates
//   - Domain-agnostic decision module contract (validate, compute, schema)
//   - Manifest-driven plugin registry with dependency-ordered loading
//   - Periodic health monitoring with automatic unload/reload recovery
//   - Capability-based service discovery over registry state
//   - Hot-reloading of per-domain configuration
//   - Comprehensive metrics and structured logging
//
// Basic Usage:
//
//	// Build the framework and register a module factory
//	framework := godecisions.NewFramework(godecisions.FrameworkOptions{})
//	registry := godecisions.NewPluginRegistry(framework, godecisions.RegistryConfig{
//		PluginDirs: []string{"./plugins"},
//	})
//	registry.RegisterFactory("modules.risk.RiskModule", newRiskModule)
//
//	// Discover manifests, resolve load order, start health monitoring
//	if err := registry.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer registry.Stop()
//
//	// Execute decisions through the cache-wrapped dispatch path
//	result, err := framework.Execute(ctx, "risk-scorer", params, decisionCtx, nil)
//
// Caching:
// Parameters are canonicalized (floats rounded, strings case-folded, lists
// sorted) before hashing so that semantically equivalent requests share cache
// entries. Cache keys are scoped to module, domain, and organization; user and
// session identity are deliberately excluded to widen sharing. The cache is an
// optimization, never a dependency: external-store failures degrade to misses.
//
// Health and Recovery:
// The registry probes every loaded module on a fixed interval with a synthetic
// validation call. Modules that stay unhealthy past the failure limit are
// unloaded and reloaded with their error counters reset. One module's failure
// never interrupts monitoring of the others.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package godecisions

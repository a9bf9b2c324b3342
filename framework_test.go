// framework_test.go: Framework registration and dispatch tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFramework() *Framework {
	return NewFramework(FrameworkOptions{})
}

func TestFramework_RegisterAndExecute(t *testing.T) {
	fw := newTestFramework()
	module := newStubModule("risk-scorer", "oncology")

	require.NoError(t, fw.Register(module))
	assert.True(t, fw.HasModule("risk-scorer"))

	result, err := fw.Execute(context.Background(), "risk-scorer",
		map[string]any{"age": 65.0}, testContext(), nil)
	require.NoError(t, err)
	assert.Equal(t, "approve", result.PrimaryDecision["action"])
}

func TestFramework_DuplicateRegistration(t *testing.T) {
	fw := newTestFramework()
	require.NoError(t, fw.Register(newStubModule("risk-scorer", "oncology")))

	err := fw.Register(newStubModule("risk-scorer", "cardiology"))
	requireErrorCode(t, err, ErrCodeDuplicateModule)
}

func TestFramework_UnregisterThenReRegister(t *testing.T) {
	fw := newTestFramework()
	require.NoError(t, fw.Register(newStubModule("risk-scorer", "oncology")))
	require.NoError(t, fw.Unregister("risk-scorer"))
	assert.False(t, fw.HasModule("risk-scorer"))

	// Replacement requires the explicit unregister-then-register sequence.
	require.NoError(t, fw.Register(newStubModule("risk-scorer", "cardiology")))
}

func TestFramework_UnknownModuleErrors(t *testing.T) {
	fw := newTestFramework()

	_, err := fw.Execute(context.Background(), "ghost", nil, testContext(), nil)
	requireErrorCode(t, err, ErrCodeModuleNotFound)

	require.Error(t, fw.Unregister("ghost"))
	_, err = fw.ModuleInfo("ghost")
	require.Error(t, err)
	_, err = fw.ModuleMetrics("ghost")
	require.Error(t, err)
}

func TestFramework_ModuleInfo(t *testing.T) {
	fw := newTestFramework()
	module := newStubModule("risk-scorer", "oncology")
	module.schema = map[string]any{
		"type":     "object",
		"required": []string{"age"},
	}
	require.NoError(t, fw.Register(module))

	info, err := fw.ModuleInfo("risk-scorer")
	require.NoError(t, err)
	assert.Equal(t, "risk-scorer", info.ModuleID)
	assert.Equal(t, ModuleTypeDiagnostic, info.ModuleType)
	assert.Equal(t, "oncology", info.Domain)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, module.schema, info.Schema)
	assert.Equal(t, uint64(0), info.Metrics.TotalRequests)
}

func TestFramework_ListModulesByDomain(t *testing.T) {
	fw := newTestFramework()
	require.NoError(t, fw.Register(newStubModule("onco-a", "oncology")))
	require.NoError(t, fw.Register(newStubModule("onco-b", "oncology")))
	require.NoError(t, fw.Register(newStubModule("cardio-a", "cardiology")))

	assert.Len(t, fw.ListModules(""), 3)
	assert.Len(t, fw.ListModules("oncology"), 2)
	assert.Len(t, fw.ListModules("cardiology"), 1)
	assert.Empty(t, fw.ListModules("neurology"))
}

func TestFramework_MetricsAggregation(t *testing.T) {
	fw := newTestFramework()
	busy := newStubModule("busy", "oncology")
	idle := newStubModule("idle", "oncology")
	require.NoError(t, fw.Register(busy))
	require.NoError(t, fw.Register(idle))

	dctx := testContext()
	params := map[string]any{"age": 65.0}

	// busy: one miss (compute) then two hits on the same key.
	for i := 0; i < 3; i++ {
		_, err := fw.Execute(context.Background(), "busy", params, dctx, nil)
		require.NoError(t, err)
	}

	metrics := fw.Metrics()
	assert.Equal(t, 2, metrics.TotalModules)
	assert.Equal(t, uint64(3), metrics.TotalRequests)
	assert.Len(t, metrics.Modules, 2)

	// Overall hit rate is hits over lookups across every cache, so the idle
	// module contributes nothing rather than dragging an average down.
	assert.InDelta(t, 2.0/3.0, metrics.OverallCacheHitRate, 1e-9)
	assert.False(t, metrics.CacheTargetMet, "2/3 is below the 90% default target")
	assert.False(t, metrics.StartTime.IsZero())
}

func TestFramework_MetricsEmpty(t *testing.T) {
	fw := newTestFramework()

	metrics := fw.Metrics()
	assert.Equal(t, 0, metrics.TotalModules)
	assert.Equal(t, uint64(0), metrics.TotalRequests)
	assert.Equal(t, 0.0, metrics.OverallCacheHitRate)
	assert.Equal(t, 0.0, metrics.AvgResponseTimeMs)
}

func TestFramework_PerModuleCacheConfig(t *testing.T) {
	fw := newTestFramework()
	module := newStubModule("fresh", "oncology")
	require.NoError(t, fw.RegisterWithCacheConfig(module, CacheConfigForStrategy(StrategyConservative)))

	metrics, err := fw.ModuleMetrics("fresh")
	require.NoError(t, err)
	assert.Equal(t, 0.90, metrics.CacheStats.TargetHitRate)
}

// End-to-end: two requests that differ only by float noise and string casing
// resolve to one computation and one cache hit.
func TestFramework_EquivalentRequestsShareCache(t *testing.T) {
	fw := newTestFramework()
	module := newStubModule("staging", "oncology")
	require.NoError(t, fw.Register(module))

	dctx := testContext()

	first, err := fw.Execute(context.Background(), "staging",
		map[string]any{"age": 65.001, "Stage": "T2"}, dctx, nil)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := fw.Execute(context.Background(), "staging",
		map[string]any{"age": 65.0, "stage": "t2"}, dctx, nil)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, int64(1), module.computeCalls.Load())
}

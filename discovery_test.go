// discovery_test.go: Service discovery tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taggedManifestJSON(pluginID, domain, moduleType, entryPoint string, tags ...string) string {
	tagList := ""
	for i, tag := range tags {
		if i > 0 {
			tagList += ","
		}
		tagList += fmt.Sprintf("%q", tag)
	}
	return fmt.Sprintf(`{
  "plugin_id": %q,
  "name": %q,
  "version": "1.0.0",
  "domain": %q,
  "module_type": %q,
  "entry_point": %q,
  "tags": [%s]
}`, pluginID, pluginID, domain, moduleType, entryPoint, tagList)
}

func newDiscoveryFixture(t *testing.T) (*registryFixture, *ServiceDiscovery, *simulatedClock) {
	t.Helper()

	dir := writePluginDir(t, map[string]string{
		"onco-diag":  taggedManifestJSON("onco-diag", "oncology", "diagnostic", "modules.onco-diag", "imaging"),
		"onco-plan":  taggedManifestJSON("onco-plan", "oncology", "therapeutic", "modules.onco-plan", "chemo", "planning"),
		"cardio-dx":  taggedManifestJSON("cardio-dx", "cardiology", "diagnostic", "modules.cardio-dx"),
		"onco-sched": taggedManifestJSON("onco-sched", "oncology", "procedural", "modules.onco-sched", "planning"),
	})
	fixture := newRegistryFixture(t, dir, map[string]DecisionModule{
		"modules.onco-diag":  newStubModule("onco-diag", "oncology"),
		"modules.onco-plan":  newStubModule("onco-plan", "oncology"),
		"modules.cardio-dx":  newStubModule("cardio-dx", "cardiology"),
		"modules.onco-sched": newStubModule("onco-sched", "oncology"),
	})
	fixture.registry.discoverPlugins()
	fixture.registry.loadPlugins(context.Background())

	discovery := NewServiceDiscovery(fixture.registry, 300*time.Second)
	clock := newSimulatedClock()
	discovery.now = clock.Now
	return fixture, discovery, clock
}

func TestServiceDiscovery_FilterByTypeAndDomain(t *testing.T) {
	_, discovery, _ := newDiscoveryFixture(t)

	assert.Equal(t, []string{"onco-diag"}, discovery.FindDiagnosticServices("oncology"))
	assert.Equal(t, []string{"onco-plan"}, discovery.FindTherapeuticServices("oncology"))
	assert.Equal(t, []string{"onco-sched"}, discovery.FindProceduralServices("oncology"))
	assert.Equal(t, []string{"cardio-dx"}, discovery.FindDiagnosticServices("cardiology"))
	assert.Empty(t, discovery.FindDiagnosticServices("neurology"))
}

func TestServiceDiscovery_FilterByTags(t *testing.T) {
	_, discovery, _ := newDiscoveryFixture(t)

	// Any-tag semantics: one matching tag suffices.
	planners := discovery.FindServices(DiscoveryQuery{
		Domain: "oncology",
		Tags:   []string{"planning", "nonexistent"},
	})
	assert.ElementsMatch(t, []string{"onco-plan", "onco-sched"}, planners)

	assert.Empty(t, discovery.FindServices(DiscoveryQuery{Tags: []string{"nonexistent"}}))
}

func TestServiceDiscovery_EmptyQueryMatchesAllHealthy(t *testing.T) {
	_, discovery, _ := newDiscoveryFixture(t)

	all := discovery.FindServices(DiscoveryQuery{})
	assert.ElementsMatch(t, []string{"onco-diag", "onco-plan", "cardio-dx", "onco-sched"}, all)
}

func TestServiceDiscovery_ExcludesUnhealthy(t *testing.T) {
	fixture, discovery, _ := newDiscoveryFixture(t)

	// Force one plugin unhealthy, then invalidate so the query re-scans.
	fixture.registry.mu.Lock()
	fixture.registry.health["onco-diag"].Status = StateUnhealthy
	fixture.registry.mu.Unlock()
	discovery.InvalidateCache()

	assert.Empty(t, discovery.FindDiagnosticServices("oncology"))
}

func TestServiceDiscovery_LookupCacheTTL(t *testing.T) {
	fixture, discovery, clock := newDiscoveryFixture(t)

	require.Equal(t, []string{"onco-diag"}, discovery.FindDiagnosticServices("oncology"))

	// Topology changes are invisible while the lookup cache is fresh.
	fixture.registry.unloadPlugin("onco-diag")
	assert.Equal(t, []string{"onco-diag"}, discovery.FindDiagnosticServices("oncology"),
		"cached result served within TTL")

	clock.Advance(301 * time.Second)
	assert.Empty(t, discovery.FindDiagnosticServices("oncology"),
		"expired cache re-scans the registry")
}

func TestServiceDiscovery_InvalidateCache(t *testing.T) {
	fixture, discovery, _ := newDiscoveryFixture(t)

	require.Equal(t, []string{"onco-diag"}, discovery.FindDiagnosticServices("oncology"))

	fixture.registry.unloadPlugin("onco-diag")
	discovery.InvalidateCache()

	assert.Empty(t, discovery.FindDiagnosticServices("oncology"))
}

func TestServiceDiscovery_TagOrderSharesCacheEntry(t *testing.T) {
	_, _, _ = newDiscoveryFixture(t)

	a := DiscoveryQuery{Domain: "oncology", Tags: []string{"chemo", "planning"}}
	b := DiscoveryQuery{Domain: "oncology", Tags: []string{"planning", "chemo"}}
	assert.Equal(t, a.cacheKey(), b.cacheKey())
}

func TestServiceDiscovery_GetServiceInfo(t *testing.T) {
	_, discovery, _ := newDiscoveryFixture(t)

	info, err := discovery.GetServiceInfo("onco-plan")
	require.NoError(t, err)
	assert.Equal(t, ModuleTypeTherapeutic, info.Manifest.ModuleType)
	assert.True(t, info.Manifest.HasTag("chemo"))

	_, err = discovery.GetServiceInfo("ghost")
	requireErrorCode(t, err, ErrCodePluginNotRegistered)
}

// discovery.go: Service discovery over the plugin registry
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// defaultLookupTTL is how long a discovery result stays valid before the
// registry is consulted again.
const defaultLookupTTL = 300 * time.Second

// DiscoveryQuery selects plugins by capability. Zero-valued fields match
// everything; Tags matches when the plugin carries at least one of them.
type DiscoveryQuery struct {
	ModuleType ModuleType `json:"module_type,omitempty"`
	Domain     string     `json:"domain,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

type lookupEntry struct {
	pluginIDs []string
	cachedAt  time.Time
}

// ServiceDiscovery answers capability queries against the plugin registry,
// returning only plugins that are both loaded and healthy. Results are cached
// per query for a TTL; callers needing an immediate re-read after a topology
// change call InvalidateCache.
type ServiceDiscovery struct {
	registry *PluginRegistry
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]lookupEntry
}

// NewServiceDiscovery creates a discovery layer over a registry. A zero ttl
// selects the default of 300 seconds.
func NewServiceDiscovery(registry *PluginRegistry, ttl time.Duration) *ServiceDiscovery {
	if ttl == 0 {
		ttl = defaultLookupTTL
	}
	return &ServiceDiscovery{
		registry: registry,
		ttl:      ttl,
		now:      timecache.CachedTime,
		cache:    make(map[string]lookupEntry),
	}
}

// FindServices returns the plugin IDs matching the query, in discovery order.
func (d *ServiceDiscovery) FindServices(query DiscoveryQuery) []string {
	key := query.cacheKey()

	d.mu.Lock()
	entry, ok := d.cache[key]
	if ok && d.now().Sub(entry.cachedAt) < d.ttl {
		ids := append([]string(nil), entry.pluginIDs...)
		d.mu.Unlock()
		return ids
	}
	d.mu.Unlock()

	pluginIDs := d.scan(query)

	d.mu.Lock()
	d.cache[key] = lookupEntry{pluginIDs: pluginIDs, cachedAt: d.now()}
	d.mu.Unlock()

	return append([]string(nil), pluginIDs...)
}

// scan evaluates the query against live registry state.
func (d *ServiceDiscovery) scan(query DiscoveryQuery) []string {
	infos := d.registry.ListPlugins(query.Domain, StateHealthy)

	pluginIDs := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.Loaded {
			continue
		}
		if query.ModuleType != "" && info.Manifest.ModuleType != query.ModuleType {
			continue
		}
		if len(query.Tags) > 0 && !hasAnyTag(info.Manifest, query.Tags) {
			continue
		}
		pluginIDs = append(pluginIDs, info.Manifest.PluginID)
	}
	return pluginIDs
}

func hasAnyTag(manifest *PluginManifest, tags []string) bool {
	for _, tag := range tags {
		if manifest.HasTag(tag) {
			return true
		}
	}
	return false
}

// FindDiagnosticServices returns healthy diagnostic plugins in a domain.
func (d *ServiceDiscovery) FindDiagnosticServices(domain string) []string {
	return d.FindServices(DiscoveryQuery{ModuleType: ModuleTypeDiagnostic, Domain: domain})
}

// FindTherapeuticServices returns healthy therapeutic plugins in a domain.
func (d *ServiceDiscovery) FindTherapeuticServices(domain string) []string {
	return d.FindServices(DiscoveryQuery{ModuleType: ModuleTypeTherapeutic, Domain: domain})
}

// FindProceduralServices returns healthy procedural plugins in a domain.
func (d *ServiceDiscovery) FindProceduralServices(domain string) []string {
	return d.FindServices(DiscoveryQuery{ModuleType: ModuleTypeProcedural, Domain: domain})
}

// GetServiceInfo returns full plugin info for one service.
func (d *ServiceDiscovery) GetServiceInfo(pluginID string) (*PluginInfo, error) {
	return d.registry.GetPluginInfo(pluginID)
}

// InvalidateCache drops every cached lookup, forcing the next queries to hit
// the registry.
func (d *ServiceDiscovery) InvalidateCache() {
	d.mu.Lock()
	d.cache = make(map[string]lookupEntry)
	d.mu.Unlock()
}

// cacheKey builds a canonical key: tag order never affects caching.
func (q DiscoveryQuery) cacheKey() string {
	tags := append([]string(nil), q.Tags...)
	sort.Strings(tags)
	return string(q.ModuleType) + "|" + q.Domain + "|" + strings.Join(tags, ",")
}

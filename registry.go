// registry.go: Plugin registry with discovery, lifecycle, and health monitoring
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Manifest descriptor file names searched for during discovery.
var manifestFileNames = map[string]bool{
	"plugin.json": true,
	"plugin.yaml": true,
	"plugin.yml":  true,
}

// healthProbeParams is the canned parameter map used for synthetic health
// checks. Modules are expected to reject it cheaply; the probe measures the
// validation path, not domain logic.
func healthProbeParams() map[string]any {
	return map[string]any{"test": true}
}

// RegistryConfig configures plugin registry behavior.
type RegistryConfig struct {
	// PluginDirs are the directories scanned for manifest descriptors.
	PluginDirs []string `json:"plugin_dirs" yaml:"plugin_dirs"`

	// HealthCheckInterval is the period of the health-check loop.
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`

	// HealthFailureLimit is the error count a plugin must exceed while
	// non-healthy before it is automatically reloaded.
	HealthFailureLimit int `json:"health_failure_limit" yaml:"health_failure_limit"`

	// UnhealthyLatency marks a probe as unhealthy when exceeded.
	UnhealthyLatency time.Duration `json:"unhealthy_latency" yaml:"unhealthy_latency"`

	// ValidationErrorLimit marks a probe as unhealthy when the synthetic
	// call returns more validation errors than this.
	ValidationErrorLimit int `json:"validation_error_limit" yaml:"validation_error_limit"`

	// ReloadSettleDelay is the pause between unload and load during an
	// automatic reload.
	ReloadSettleDelay time.Duration `json:"reload_settle_delay" yaml:"reload_settle_delay"`

	// Logger accepts a Logger, a *logrus.Logger, or nil for silent operation.
	Logger any `json:"-" yaml:"-"`
}

// setRegistryDefaults sets default values for unspecified config fields.
func setRegistryDefaults(config *RegistryConfig) {
	if len(config.PluginDirs) == 0 {
		config.PluginDirs = []string{"plugins", "modules"}
	}
	if config.HealthCheckInterval == 0 {
		config.HealthCheckInterval = 300 * time.Second
	}
	if config.HealthFailureLimit == 0 {
		config.HealthFailureLimit = 5
	}
	if config.UnhealthyLatency == 0 {
		config.UnhealthyLatency = time.Second
	}
	if config.ValidationErrorLimit == 0 {
		config.ValidationErrorLimit = 10
	}
	if config.ReloadSettleDelay == 0 {
		config.ReloadSettleDelay = time.Second
	}
}

// PluginHealth is the runtime health record for a loaded plugin.
//
// It is mutated only by the health-check loop and the load/unload paths.
// ErrorCount is monotonic per plugin: a healthy check never resets it, only
// an explicit reload does. Resetting on recovery would make the auto-reload
// threshold unreachable under intermittent failures.
type PluginHealth struct {
	PluginID       string      `json:"plugin_id"`
	Status         HealthState `json:"status"`
	LastCheck      time.Time   `json:"last_check"`
	ResponseTimeMs float64     `json:"response_time_ms"`
	ErrorCount     int         `json:"error_count"`
	UptimeSeconds  float64     `json:"uptime_seconds"`
}

func (h *PluginHealth) clone() *PluginHealth {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}

// PluginInfo combines a plugin's manifest, health, and module metrics.
type PluginInfo struct {
	Manifest      *PluginManifest `json:"manifest"`
	Health        *PluginHealth   `json:"health,omitempty"`
	Loaded        bool            `json:"loaded"`
	ModuleMetrics *ModuleMetrics  `json:"module_metrics,omitempty"`
}

// RegistryStats is the registry-level observability surface.
type RegistryStats struct {
	TotalPlugins      int       `json:"total_plugins"`
	LoadedPlugins     int       `json:"loaded_plugins"`
	HealthyPlugins    int       `json:"healthy_plugins"`
	UnhealthyPlugins  int       `json:"unhealthy_plugins"`
	LoadSuccessRate   float64   `json:"load_success_rate"`
	HealthSuccessRate float64   `json:"health_success_rate"`
	Domains           []string  `json:"domains"`
	UptimeSeconds     float64   `json:"uptime_seconds"`
	LastHealthCheck   time.Time `json:"last_health_check"`
}

// PluginRegistry discovers plugin manifests, resolves dependency load order,
// loads module instances into a Framework, and health-monitors them with
// automatic unload/reload recovery.
//
// Per-plugin lifecycle:
//
//	discovered -> loading -> loaded(healthy|unhealthy|error) -> [reloading -> loading] -> unloaded
//
// The registry owns the pluginID -> manifest/health maps and the pluginID ->
// moduleID binding; the Framework owns the authoritative moduleID -> instance
// map. A plugin may register its module under a different internal ID than
// its pluginID.
type PluginRegistry struct {
	framework *Framework
	config    RegistryConfig
	logger    Logger
	factories *FactoryTable

	// now is the clock source; overridable in tests.
	now       func() time.Time
	startTime time.Time

	mu             sync.RWMutex
	manifests      map[string]*PluginManifest
	discoveryOrder []string
	schemas        map[string]*jsonschema.Schema
	health         map[string]*PluginHealth
	moduleIDs      map[string]string // pluginID -> registered moduleID
	domainConfigs  map[string]map[string]any
	lastHealthScan time.Time

	running  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewPluginRegistry creates a plugin registry bound to a framework.
func NewPluginRegistry(framework *Framework, config RegistryConfig) *PluginRegistry {
	setRegistryDefaults(&config)

	return &PluginRegistry{
		framework:     framework,
		config:        config,
		logger:        NewLogger(config.Logger),
		factories:     NewFactoryTable(),
		now:           timecache.CachedTime,
		startTime:     timecache.CachedTime(),
		manifests:     make(map[string]*PluginManifest),
		schemas:       make(map[string]*jsonschema.Schema),
		health:        make(map[string]*PluginHealth),
		moduleIDs:     make(map[string]string),
		domainConfigs: make(map[string]map[string]any),
	}
}

// RegisterFactory binds a manifest entry point to a config-accepting module
// constructor. Must be called before Start for plugins to resolve.
func (r *PluginRegistry) RegisterFactory(entryPoint string, factory ModuleFactory) error {
	return r.factories.Register(entryPoint, factory)
}

// RegisterSimpleFactory binds an entry point to a constructor that does not
// accept per-domain configuration.
func (r *PluginRegistry) RegisterSimpleFactory(entryPoint string, factory SimpleModuleFactory) error {
	return r.factories.RegisterSimple(entryPoint, factory)
}

// SetDomainConfig sets the opaque configuration map handed to config-accepting
// factories for the given domain.
func (r *PluginRegistry) SetDomainConfig(domain string, config map[string]any) {
	r.mu.Lock()
	r.domainConfigs[domain] = config
	r.mu.Unlock()
	r.logger.Info("Updated domain configuration", "domain", domain)
}

// Start discovers plugins, loads them in dependency order, and starts the
// health-check loop. It is an error to start an already-running registry.
func (r *PluginRegistry) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return NewRegistryAlreadyRunningError()
	}

	r.logger.Info("Starting plugin registry", "plugin_dirs", r.config.PluginDirs)

	r.discoverPlugins()
	r.loadPlugins(ctx)

	r.stopChan = make(chan struct{})
	r.doneChan = make(chan struct{})
	go r.healthLoop()

	r.mu.RLock()
	loaded := len(r.moduleIDs)
	r.mu.RUnlock()
	r.logger.Info("Plugin registry started", "loaded_plugins", loaded)
	return nil
}

// Stop cancels the health-check loop, waits for it to finish, and unloads
// every plugin. No health check survives Stop returning.
func (r *PluginRegistry) Stop() error {
	if !r.running.CompareAndSwap(true, false) {
		return NewRegistryNotRunningError()
	}

	r.logger.Info("Stopping plugin registry")
	close(r.stopChan)
	<-r.doneChan

	r.mu.Lock()
	pluginIDs := make([]string, 0, len(r.moduleIDs))
	for pluginID := range r.moduleIDs {
		pluginIDs = append(pluginIDs, pluginID)
	}
	r.mu.Unlock()

	for _, pluginID := range pluginIDs {
		r.unloadPlugin(pluginID)
	}

	r.logger.Info("Plugin registry stopped")
	return nil
}

// IsRunning reports whether the registry has been started.
func (r *PluginRegistry) IsRunning() bool {
	return r.running.Load()
}

// discoverPlugins scans the configured directories for manifest descriptors.
// Invalid manifests are logged and skipped; a duplicate plugin_id at a
// different version is rejected with a warning, keeping the first seen.
func (r *PluginRegistry) discoverPlugins() {
	discovered := 0

	for _, dir := range r.config.PluginDirs {
		walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable subtree, keep walking the rest
			}
			if d.IsDir() || !manifestFileNames[d.Name()] {
				return nil
			}
			if r.registerManifest(path) {
				discovered++
			}
			return nil
		})
		if walkErr != nil {
			r.logger.Warn("Plugin directory scan failed", "dir", dir, "error", walkErr)
		}
	}

	r.logger.Info("Plugin discovery complete", "discovered", discovered)
}

// registerManifest parses, validates, and records one manifest descriptor.
func (r *PluginRegistry) registerManifest(path string) bool {
	manifest, err := LoadManifest(path)
	if err != nil {
		r.logger.Error("Manifest load failed", "path", path, "error", err)
		return false
	}
	if err := manifest.Validate(); err != nil {
		r.logger.Error("Manifest invalid", "path", path, "error", err)
		return false
	}
	if err := manifest.CheckCompatibility(FrameworkVersion); err != nil {
		r.logger.Error("Manifest incompatible with framework", "path", path, "error", err)
		return false
	}

	schema, err := manifest.CompileConfigSchema()
	if err != nil {
		r.logger.Error("Manifest config schema invalid", "path", path, "error", err)
		return false
	}

	manifest.DiscoveredAt = r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.manifests[manifest.PluginID]; ok {
		if existing.Version != manifest.Version {
			r.logger.Warn("Duplicate plugin ID at different version, keeping first seen",
				"plugin_id", manifest.PluginID,
				"kept_version", existing.Version,
				"rejected_version", manifest.Version,
				"path", path)
		}
		return false
	}

	r.manifests[manifest.PluginID] = manifest
	r.discoveryOrder = append(r.discoveryOrder, manifest.PluginID)
	if schema != nil {
		r.schemas[manifest.PluginID] = schema
	}
	r.logger.Info("Discovered plugin",
		"plugin_id", manifest.PluginID,
		"version", manifest.Version,
		"domain", manifest.Domain)
	return true
}

// loadPlugins loads every discovered plugin in dependency order. Load
// failures are logged and skipped; one bad plugin never aborts the rest.
func (r *PluginRegistry) loadPlugins(ctx context.Context) {
	order := r.resolveOrder()

	loaded, failed := 0, 0
	for _, pluginID := range order {
		if err := r.loadPlugin(ctx, pluginID); err != nil {
			r.logger.Error("Plugin load failed", "plugin_id", pluginID, "error", err)
			failed++
			continue
		}
		loaded++
	}

	r.logger.Info("Plugin loading complete", "loaded", loaded, "failed", failed)
}

// resolveOrder snapshots the discovered manifests in discovery order and
// computes the dependency load order.
func (r *PluginRegistry) resolveOrder() []string {
	r.mu.RLock()
	manifests := make([]*PluginManifest, 0, len(r.discoveryOrder))
	for _, pluginID := range r.discoveryOrder {
		manifests = append(manifests, r.manifests[pluginID])
	}
	r.mu.RUnlock()

	return resolveLoadOrder(manifests, r.logger)
}

// loadPlugin instantiates one plugin's module and registers it with the
// framework. Health is initialized to healthy with a zero error count.
func (r *PluginRegistry) loadPlugin(ctx context.Context, pluginID string) error {
	_ = ctx // Reserved for construction timeouts

	r.mu.RLock()
	manifest, ok := r.manifests[pluginID]
	schema := r.schemas[pluginID]
	var domainConfig map[string]any
	if ok {
		domainConfig = r.domainConfigs[manifest.Domain]
	}
	r.mu.RUnlock()
	if !ok {
		return NewPluginNotRegisteredError(pluginID)
	}

	factory, ok := r.factories.resolve(manifest.EntryPoint)
	if !ok {
		return NewEntryPointUnresolvedError(pluginID, manifest.EntryPoint)
	}

	if factory.acceptsConfig && schema != nil && domainConfig != nil {
		if err := schema.Validate(toJSONValue(domainConfig)); err != nil {
			return NewDomainConfigRejectedError(pluginID, manifest.Domain, err)
		}
	}

	var config map[string]any
	if factory.acceptsConfig {
		config = domainConfig
	}

	module, err := factory.create(config)
	if err != nil {
		return NewModuleConstructionError(pluginID, err)
	}
	if module == nil {
		return NewModuleConstructionError(pluginID, nil)
	}

	if err := r.framework.Register(module); err != nil {
		return NewModuleConstructionError(pluginID, err)
	}

	r.mu.Lock()
	r.moduleIDs[pluginID] = module.ModuleID()
	r.health[pluginID] = &PluginHealth{
		PluginID:  pluginID,
		Status:    StateHealthy,
		LastCheck: r.now(),
	}
	r.mu.Unlock()

	r.logger.Info("Loaded plugin",
		"plugin_id", pluginID,
		"module_id", module.ModuleID(),
		"entry_point", manifest.EntryPoint)
	return nil
}

// unloadPlugin unregisters a plugin's module and drops its tracking state.
func (r *PluginRegistry) unloadPlugin(pluginID string) {
	r.mu.Lock()
	moduleID, loaded := r.moduleIDs[pluginID]
	delete(r.moduleIDs, pluginID)
	delete(r.health, pluginID)
	r.mu.Unlock()

	if !loaded {
		return
	}

	if err := r.framework.Unregister(moduleID); err != nil {
		r.logger.Warn("Module unregister failed during unload",
			"plugin_id", pluginID, "module_id", moduleID, "error", err)
	}
	r.logger.Info("Unloaded plugin", "plugin_id", pluginID)
}

// ReloadPlugin unloads and loads a plugin, resetting its health and error
// count to the just-loaded state. A failed reload leaves the plugin absent
// until the next load pass or a manual retry.
func (r *PluginRegistry) ReloadPlugin(ctx context.Context, pluginID string) error {
	r.logger.Info("Reloading plugin", "plugin_id", pluginID)

	r.unloadPlugin(pluginID)
	r.settle()

	if err := r.loadPlugin(ctx, pluginID); err != nil {
		r.logger.Error("Plugin reload failed", "plugin_id", pluginID, "error", err)
		return err
	}

	r.logger.Info("Reloaded plugin", "plugin_id", pluginID)
	return nil
}

// settle pauses between unload and load, bailing early on shutdown.
func (r *PluginRegistry) settle() {
	timer := time.NewTimer(r.config.ReloadSettleDelay)
	defer timer.Stop()

	if r.stopChan == nil {
		<-timer.C
		return
	}
	select {
	case <-timer.C:
	case <-r.stopChan:
	}
}

// ReloadDomain reloads every loaded plugin belonging to a domain. Used after
// a domain configuration change.
func (r *PluginRegistry) ReloadDomain(ctx context.Context, domain string) {
	r.mu.RLock()
	var pluginIDs []string
	for pluginID, manifest := range r.manifests {
		if manifest.Domain != domain {
			continue
		}
		if _, loaded := r.moduleIDs[pluginID]; loaded {
			pluginIDs = append(pluginIDs, pluginID)
		}
	}
	r.mu.RUnlock()

	for _, pluginID := range pluginIDs {
		if err := r.ReloadPlugin(ctx, pluginID); err != nil {
			r.logger.Error("Domain reload: plugin reload failed",
				"domain", domain, "plugin_id", pluginID, "error", err)
		}
	}
}

// healthLoop runs periodic health checks until Stop.
func (r *PluginRegistry) healthLoop() {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.performHealthChecks(context.Background())
		case <-r.stopChan:
			return
		}
	}
}

// performHealthChecks probes every loaded plugin once and applies the
// auto-reload policy. One plugin's failure never stops checking the others.
func (r *PluginRegistry) performHealthChecks(ctx context.Context) {
	r.mu.Lock()
	r.lastHealthScan = r.now()
	pluginIDs := make([]string, 0, len(r.moduleIDs))
	for pluginID := range r.moduleIDs {
		pluginIDs = append(pluginIDs, pluginID)
	}
	r.mu.Unlock()
	sort.Strings(pluginIDs)

	for _, pluginID := range pluginIDs {
		health := r.checkPluginHealth(pluginID)
		if health == nil {
			continue // unloaded concurrently
		}

		r.mu.Lock()
		if _, stillLoaded := r.moduleIDs[pluginID]; stillLoaded {
			r.health[pluginID] = health
		}
		r.mu.Unlock()

		if health.Status != StateHealthy && health.ErrorCount > r.config.HealthFailureLimit {
			r.logger.Warn("Plugin exceeded health failure limit, auto-reloading",
				"plugin_id", pluginID,
				"status", health.Status,
				"error_count", health.ErrorCount)
			if err := r.ReloadPlugin(ctx, pluginID); err != nil {
				r.logger.Error("Automatic reload failed", "plugin_id", pluginID, "error", err)
			}
		}
	}
}

// checkPluginHealth issues the synthetic validation probe against one plugin
// and classifies the outcome.
//
// Classification:
//   - error: the probe itself failed (panic in validation)
//   - unhealthy: probe latency exceeded UnhealthyLatency, or the probe
//     returned more than ValidationErrorLimit validation errors
//   - healthy: everything else
//
// Every non-healthy outcome increments the plugin's monotonic error count.
func (r *PluginRegistry) checkPluginHealth(pluginID string) *PluginHealth {
	r.mu.RLock()
	moduleID, loaded := r.moduleIDs[pluginID]
	previous := r.health[pluginID]
	r.mu.RUnlock()
	if !loaded {
		return nil
	}

	runtime := r.frameworkRuntime(moduleID)
	if runtime == nil {
		return nil
	}

	errorCount := 0
	if previous != nil {
		errorCount = previous.ErrorCount
	}

	start := time.Now()
	reasons, probeErr := safeValidate(runtime.module, healthProbeParams())
	latency := time.Since(start)

	health := &PluginHealth{
		PluginID:       pluginID,
		LastCheck:      r.now(),
		ResponseTimeMs: float64(latency.Microseconds()) / 1000.0,
		ErrorCount:     errorCount,
		UptimeSeconds:  r.now().Sub(r.startTime).Seconds(),
	}

	switch {
	case probeErr != nil:
		health.Status = StateError
		health.ErrorCount++
		r.logger.Warn("Health check error",
			"plugin_id", pluginID,
			"error", NewHealthCheckFailedError(pluginID, probeErr))
	case latency > r.config.UnhealthyLatency:
		health.Status = StateUnhealthy
		health.ErrorCount++
	case len(reasons) > r.config.ValidationErrorLimit:
		health.Status = StateUnhealthy
		health.ErrorCount++
	default:
		health.Status = StateHealthy
	}

	return health
}

// frameworkRuntime fetches the module runtime registered under moduleID.
func (r *PluginRegistry) frameworkRuntime(moduleID string) *moduleRuntime {
	r.framework.mu.RLock()
	defer r.framework.mu.RUnlock()
	return r.framework.modules[moduleID]
}

// GetPluginInfo returns manifest, health, and module metrics for one plugin.
func (r *PluginRegistry) GetPluginInfo(pluginID string) (*PluginInfo, error) {
	r.mu.RLock()
	manifest, ok := r.manifests[pluginID]
	health := r.health[pluginID].clone()
	moduleID, loaded := r.moduleIDs[pluginID]
	r.mu.RUnlock()

	if !ok {
		return nil, NewPluginNotRegisteredError(pluginID)
	}

	info := &PluginInfo{
		Manifest: manifest,
		Health:   health,
		Loaded:   loaded,
	}
	if loaded {
		if metrics, err := r.framework.ModuleMetrics(moduleID); err == nil {
			info.ModuleMetrics = &metrics
		}
	}
	return info, nil
}

// ListPlugins returns info for every discovered plugin, optionally filtered
// by domain and health status. Empty filter values match everything.
func (r *PluginRegistry) ListPlugins(domain string, status HealthState) []*PluginInfo {
	r.mu.RLock()
	pluginIDs := append([]string(nil), r.discoveryOrder...)
	r.mu.RUnlock()

	infos := make([]*PluginInfo, 0, len(pluginIDs))
	for _, pluginID := range pluginIDs {
		info, err := r.GetPluginInfo(pluginID)
		if err != nil {
			continue
		}
		if domain != "" && info.Manifest.Domain != domain {
			continue
		}
		if status != "" && (info.Health == nil || info.Health.Status != status) {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// GetDomainPlugins returns the IDs of every discovered plugin in a domain.
func (r *PluginRegistry) GetDomainPlugins(domain string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pluginIDs []string
	for _, pluginID := range r.discoveryOrder {
		if r.manifests[pluginID].Domain == domain {
			pluginIDs = append(pluginIDs, pluginID)
		}
	}
	return pluginIDs
}

// GetHealthyPlugins returns the IDs of every currently healthy plugin.
func (r *PluginRegistry) GetHealthyPlugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pluginIDs []string
	for _, pluginID := range r.discoveryOrder {
		if health, ok := r.health[pluginID]; ok && health.Status == StateHealthy {
			pluginIDs = append(pluginIDs, pluginID)
		}
	}
	return pluginIDs
}

// GetPluginHealth returns a snapshot of one plugin's health record.
func (r *PluginRegistry) GetPluginHealth(pluginID string) (*PluginHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	health, ok := r.health[pluginID]
	return health.clone(), ok
}

// GetStats returns registry-level statistics.
func (r *PluginRegistry) GetStats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		TotalPlugins:    len(r.manifests),
		LoadedPlugins:   len(r.moduleIDs),
		UptimeSeconds:   r.now().Sub(r.startTime).Seconds(),
		LastHealthCheck: r.lastHealthScan,
	}

	for _, health := range r.health {
		if health.Status == StateHealthy {
			stats.HealthyPlugins++
		}
	}
	stats.UnhealthyPlugins = stats.LoadedPlugins - stats.HealthyPlugins

	if stats.TotalPlugins > 0 {
		stats.LoadSuccessRate = float64(stats.LoadedPlugins) / float64(stats.TotalPlugins)
	}
	if stats.LoadedPlugins > 0 {
		stats.HealthSuccessRate = float64(stats.HealthyPlugins) / float64(stats.LoadedPlugins)
	}

	domains := make(map[string]bool)
	for _, manifest := range r.manifests {
		domains[manifest.Domain] = true
	}
	for domain := range domains {
		stats.Domains = append(stats.Domains, domain)
	}
	sort.Strings(stats.Domains)

	return stats
}

// domain_config_watcher.go: Argus-backed live reload of domain configurations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// DomainConfigOptions configures the domain configuration watcher.
type DomainConfigOptions struct {
	// PollInterval is how often Argus polls the file for changes.
	PollInterval time.Duration `json:"poll_interval"`

	// CacheTTL bounds stat caching inside Argus; should be <= PollInterval.
	CacheTTL time.Duration `json:"cache_ttl"`

	// ReloadOnChange triggers a domain plugin reload after a changed domain
	// configuration is applied, so config-accepting factories re-run with the
	// new values. When false, new configs only affect future loads.
	ReloadOnChange bool `json:"reload_on_change"`

	// AuditConfig for the Argus audit trail.
	AuditConfig argus.AuditConfig `json:"audit_config"`
}

// DefaultDomainConfigOptions returns defaults tuned for infrequent,
// operator-edited configuration files.
func DefaultDomainConfigOptions() DomainConfigOptions {
	return DomainConfigOptions{
		PollInterval:   5 * time.Second,
		CacheTTL:       2 * time.Second,
		ReloadOnChange: true,
		AuditConfig: argus.AuditConfig{
			Enabled:       true,
			OutputFile:    "go-decisions-config-audit.jsonl",
			MinLevel:      argus.AuditInfo,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		},
	}
}

// DomainConfigWatcher watches a single JSON or YAML file mapping domain names
// to configuration maps, pushes changed domains into the registry via
// SetDomainConfig, and optionally reloads the affected domains' plugins.
//
// File shape:
//
//	{
//	  "oncology":   {"threshold": 0.8},
//	  "cardiology": {"guideline_set": "acc-2024"}
//	}
type DomainConfigWatcher struct {
	registry   *PluginRegistry
	watcher    *argus.Watcher
	configPath string
	options    DomainConfigOptions
	logger     Logger

	mu      sync.Mutex
	current map[string]map[string]any

	enabled  int32
	stopped  atomic.Bool
	stopOnce sync.Once
}

// NewDomainConfigWatcher creates a watcher for one domain configuration file.
func NewDomainConfigWatcher(registry *PluginRegistry, configPath string, options DomainConfigOptions, logger any) *DomainConfigWatcher {
	internalLogger := NewLogger(logger)

	argusConfig := argus.Config{
		PollInterval:         options.PollInterval,
		CacheTTL:             options.CacheTTL,
		MaxWatchedFiles:      10,
		Audit:                options.AuditConfig,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, filepath string) {
			internalLogger.Error("Argus file watching error", "error", err, "file", filepath)
		},
	}

	return &DomainConfigWatcher{
		registry:   registry,
		watcher:    argus.New(argusConfig),
		configPath: configPath,
		options:    options,
		logger:     internalLogger,
	}
}

// Start loads the initial configuration, applies every domain to the
// registry, and begins watching for changes. A stopped watcher cannot be
// restarted.
func (w *DomainConfigWatcher) Start(ctx context.Context) error {
	_ = ctx // Reserved for startup deadlines

	if w.stopped.Load() {
		return NewWatcherStoppedError()
	}
	if !atomic.CompareAndSwapInt32(&w.enabled, 0, 1) {
		return NewWatcherRunningError()
	}

	initial, err := loadDomainConfigs(w.configPath)
	if err != nil {
		atomic.StoreInt32(&w.enabled, 0)
		return err
	}

	w.mu.Lock()
	w.current = initial
	w.mu.Unlock()

	for domain, config := range initial {
		w.registry.SetDomainConfig(domain, config)
	}

	if err := w.watcher.Watch(w.configPath, w.handleChange); err != nil {
		atomic.StoreInt32(&w.enabled, 0)
		return NewWatcherStartError(err)
	}
	if err := w.watcher.Start(); err != nil {
		atomic.StoreInt32(&w.enabled, 0)
		return NewWatcherStartError(err)
	}

	w.logger.Info("Domain configuration watcher started",
		"config_path", w.configPath,
		"domains", len(initial),
		"poll_interval", w.options.PollInterval)
	return nil
}

// Stop permanently stops the watcher. Safe to call concurrently; the Argus
// watcher is stopped exactly once.
func (w *DomainConfigWatcher) Stop() error {
	if w.stopped.Load() {
		return NewWatcherStoppedError()
	}

	var stopErr error
	w.stopOnce.Do(func() {
		if !atomic.CompareAndSwapInt32(&w.enabled, 1, 0) {
			stopErr = NewWatcherStoppedError()
			return
		}
		w.stopped.Store(true)

		if err := w.watcher.Stop(); err != nil {
			stopErr = NewWatcherStartError(err)
			return
		}
		w.logger.Info("Domain configuration watcher stopped")
	})
	return stopErr
}

// IsStopped reports whether the watcher has been permanently stopped.
func (w *DomainConfigWatcher) IsStopped() bool {
	return w.stopped.Load()
}

// handleChange processes a file change event from Argus: parse, diff against
// the current state, apply only the changed domains.
func (w *DomainConfigWatcher) handleChange(event argus.ChangeEvent) {
	w.logger.Info("Domain configuration change detected",
		"path", event.Path,
		"mod_time", event.ModTime,
		"is_create", event.IsCreate,
		"is_delete", event.IsDelete,
		"is_modify", event.IsModify)

	if event.IsDelete {
		w.logger.Warn("Domain configuration file was deleted, keeping last applied state",
			"path", event.Path)
		return
	}

	updated, err := loadDomainConfigs(event.Path)
	if err != nil {
		w.logger.Error("Failed to load domain configurations", "error", err, "path", event.Path)
		return
	}

	w.mu.Lock()
	changed := diffDomains(w.current, updated)
	w.current = updated
	w.mu.Unlock()

	if len(changed) == 0 {
		w.logger.Debug("Domain configuration unchanged after reload", "path", event.Path)
		return
	}

	for _, domain := range changed {
		w.registry.SetDomainConfig(domain, updated[domain])
		if w.options.ReloadOnChange {
			w.registry.ReloadDomain(context.Background(), domain)
		}
	}

	w.logger.Info("Applied domain configuration changes",
		"path", event.Path,
		"changed_domains", changed)
}

// loadDomainConfigs parses a domain -> config map from a JSON or YAML file.
func loadDomainConfigs(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is operator-configured
	if err != nil {
		return nil, NewDomainConfigParseError(path, err)
	}

	raw := make(map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, NewDomainConfigFormatError(path)
	}
	if err != nil {
		return nil, NewDomainConfigParseError(path, err)
	}

	configs := make(map[string]map[string]any, len(raw))
	for domain, value := range raw {
		config, ok := value.(map[string]any)
		if !ok {
			return nil, NewDomainConfigFormatError(path)
		}
		configs[domain] = config
	}
	return configs, nil
}

// diffDomains returns the domains whose configuration was added, removed, or
// modified, in sorted order. A removed domain is reported so its entry can be
// cleared; the updated map simply lacks it.
func diffDomains(previous, updated map[string]map[string]any) []string {
	seen := make(map[string]bool)
	var changed []string

	for domain, config := range updated {
		if !reflect.DeepEqual(previous[domain], config) {
			changed = append(changed, domain)
		}
		seen[domain] = true
	}
	for domain := range previous {
		if !seen[domain] {
			changed = append(changed, domain)
		}
	}

	sort.Strings(changed)
	return changed
}

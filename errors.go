// errors.go: structured error definitions for the decision framework
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"fmt"
	"time"

	"github.com/agilira/go-errors"
)

// Error codes for the decision framework
const (
	// Validation errors (1100-1199)
	ErrCodeParameterValidation = "DECISION_1101"
	ErrCodeInvalidModuleType   = "DECISION_1102"

	// Module execution errors (1200-1299)
	ErrCodeModuleNotFound   = "DECISION_1201"
	ErrCodeProcessingFailed = "DECISION_1202"
	ErrCodeDuplicateModule  = "DECISION_1203"

	// Cache errors (1300-1399)
	ErrCodeCacheStoreError = "CACHE_1301"
	ErrCodeCacheEncoding   = "CACHE_1302"

	// Manifest and plugin loading errors (1400-1499)
	ErrCodeManifestParse        = "PLUGIN_1401"
	ErrCodeManifestInvalid      = "PLUGIN_1402"
	ErrCodeEntryPointUnresolved = "PLUGIN_1403"
	ErrCodeModuleConstruction   = "PLUGIN_1404"
	ErrCodeIncompatibleVersion  = "PLUGIN_1405"
	ErrCodeConfigSchemaInvalid  = "PLUGIN_1406"
	ErrCodeDomainConfigRejected = "PLUGIN_1407"
	ErrCodePluginNotRegistered  = "PLUGIN_1408"

	// Health monitoring errors (1500-1599)
	ErrCodeHealthCheckFailed = "HEALTH_1501"

	// Registry errors (1600-1699)
	ErrCodeRegistryNotRunning     = "REGISTRY_1601"
	ErrCodeRegistryAlreadyRunning = "REGISTRY_1602"
	ErrCodeFactoryRegistration    = "REGISTRY_1603"

	// Configuration watcher errors (1700-1799)
	ErrCodeWatcherStart       = "WATCHER_1701"
	ErrCodeWatcherStopped     = "WATCHER_1702"
	ErrCodeDomainConfigParse  = "WATCHER_1703"
	ErrCodeDomainConfigFormat = "WATCHER_1704"
	ErrCodeWatcherRunning     = "WATCHER_1705"
)

// Validation error constructors

// NewParameterValidationError reports that a module rejected its input
// parameters. The individual reasons are attached verbatim so callers can
// surface them without unwrapping.
func NewParameterValidationError(moduleID string, reasons []string) *errors.Error {
	return errors.New(ErrCodeParameterValidation, "Parameter validation failed").
		WithUserMessage(fmt.Sprintf("Module %q rejected the supplied parameters", moduleID)).
		WithContext("module_id", moduleID).
		WithContext("validation_errors", reasons).
		WithSeverity("error")
}

func NewInvalidModuleTypeError(moduleType string) *errors.Error {
	return errors.New(ErrCodeInvalidModuleType, "Invalid module type").
		WithUserMessage("Module type must be one of the supported classifications").
		WithContext("module_type", moduleType).
		WithSeverity("error")
}

// Module execution error constructors

func NewModuleNotFoundError(moduleID string) *errors.Error {
	return errors.New(ErrCodeModuleNotFound, "Module not found").
		WithUserMessage(fmt.Sprintf("No module registered under ID %q", moduleID)).
		WithContext("module_id", moduleID).
		WithSeverity("error")
}

// NewProcessingError wraps a failure inside a module's compute step, attaching
// the module ID and elapsed time for diagnostics.
func NewProcessingError(moduleID string, elapsed time.Duration, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeProcessingFailed, "Decision processing failed").
		WithUserMessage(fmt.Sprintf("Module %q failed while computing a decision", moduleID)).
		WithContext("module_id", moduleID).
		WithContext("elapsed_ms", float64(elapsed.Microseconds())/1000.0).
		WithSeverity("error")
}

func NewDuplicateModuleError(moduleID string) *errors.Error {
	return errors.New(ErrCodeDuplicateModule, "Duplicate module ID").
		WithUserMessage("A module with this ID is already registered").
		WithContext("module_id", moduleID).
		WithSeverity("error")
}

// Cache error constructors
//
// Cache errors are logged and recovered internally; they never propagate to
// callers of Execute. The constructors exist so the logs carry stable codes.

func NewCacheStoreError(operation string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeCacheStoreError, "External cache store operation failed").
		WithContext("operation", operation).
		WithSeverity("warning")
}

func NewCacheEncodingError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeCacheEncoding, "Cache payload encoding failed").
		WithSeverity("warning")
}

// Plugin loading error constructors

func NewManifestParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeManifestParse, "Manifest parse failed").
		WithUserMessage("The plugin manifest could not be parsed").
		WithContext("manifest_path", path).
		WithSeverity("error")
}

func NewManifestInvalidError(path string, missing []string) *errors.Error {
	return errors.New(ErrCodeManifestInvalid, "Manifest validation failed").
		WithUserMessage("The plugin manifest is missing required fields").
		WithContext("manifest_path", path).
		WithContext("missing_fields", missing).
		WithSeverity("error")
}

func NewEntryPointUnresolvedError(pluginID, entryPoint string) *errors.Error {
	return errors.New(ErrCodeEntryPointUnresolved, "Entry point unresolved").
		WithUserMessage("No factory is registered for the manifest entry point").
		WithContext("plugin_id", pluginID).
		WithContext("entry_point", entryPoint).
		WithSeverity("error")
}

func NewModuleConstructionError(pluginID string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeModuleConstruction, "Module construction failed").
		WithUserMessage("The plugin factory returned an error").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewIncompatibleVersionError(pluginID, required, actual string) *errors.Error {
	return errors.New(ErrCodeIncompatibleVersion, "Incompatible framework version").
		WithUserMessage("The plugin requires a newer framework version").
		WithContext("plugin_id", pluginID).
		WithContext("min_framework_version", required).
		WithContext("framework_version", actual).
		WithSeverity("error")
}

func NewConfigSchemaInvalidError(pluginID string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigSchemaInvalid, "Config schema invalid").
		WithUserMessage("The manifest config_schema is not a valid JSON schema").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewDomainConfigRejectedError(pluginID, domain string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDomainConfigRejected, "Domain config rejected").
		WithUserMessage("The domain configuration does not satisfy the plugin's config schema").
		WithContext("plugin_id", pluginID).
		WithContext("domain", domain).
		WithSeverity("error")
}

func NewPluginNotRegisteredError(pluginID string) *errors.Error {
	return errors.New(ErrCodePluginNotRegistered, "Plugin not registered").
		WithUserMessage(fmt.Sprintf("No plugin discovered under ID %q", pluginID)).
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

// Health monitoring error constructors

func NewHealthCheckFailedError(pluginID string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeHealthCheckFailed, "Health check failed").
		WithContext("plugin_id", pluginID).
		WithSeverity("warning")
}

// Registry error constructors

func NewRegistryNotRunningError() *errors.Error {
	return errors.New(ErrCodeRegistryNotRunning, "Registry not running").
		WithUserMessage("The plugin registry has not been started").
		WithSeverity("error")
}

func NewRegistryAlreadyRunningError() *errors.Error {
	return errors.New(ErrCodeRegistryAlreadyRunning, "Registry already running").
		WithUserMessage("The plugin registry is already started").
		WithSeverity("error")
}

func NewFactoryRegistrationError(entryPoint string) *errors.Error {
	return errors.New(ErrCodeFactoryRegistration, "Invalid factory registration").
		WithUserMessage("Entry point and factory function are both required").
		WithContext("entry_point", entryPoint).
		WithSeverity("error")
}

// Configuration watcher error constructors

func NewWatcherStartError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeWatcherStart, "Config watcher start failed").
		WithSeverity("error")
}

func NewWatcherRunningError() *errors.Error {
	return errors.New(ErrCodeWatcherRunning, "Config watcher already running").
		WithSeverity("error")
}

func NewWatcherStoppedError() *errors.Error {
	return errors.New(ErrCodeWatcherStopped, "Config watcher stopped").
		WithUserMessage("The watcher has been permanently stopped and cannot be restarted").
		WithSeverity("error")
}

func NewDomainConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDomainConfigParse, "Domain config parse failed").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewDomainConfigFormatError(path string) *errors.Error {
	return errors.New(ErrCodeDomainConfigFormat, "Unsupported domain config format").
		WithUserMessage("Domain configuration must be a JSON or YAML file").
		WithContext("config_path", path).
		WithSeverity("error")
}

// manifest.go: Plugin manifest parsing and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// FrameworkVersion is the version manifests are checked against via their
// min_framework_version field.
const FrameworkVersion = "3.1.0"

// defaultMinFrameworkVersion is assumed when a manifest omits the field.
const defaultMinFrameworkVersion = "3.0.0"

// PluginManifest is the declarative metadata describing a pluggable decision
// module. Manifests are file-sourced (JSON or YAML), loaded once per
// discovery pass, and immutable afterwards.
//
// Example JSON manifest:
//
//	{
//	  "plugin_id": "oncology-risk-scorer",
//	  "name": "Oncology Risk Scorer",
//	  "version": "2.1.0",
//	  "domain": "oncology",
//	  "module_type": "analytical",
//	  "dependencies": ["oncology-staging"],
//	  "config_schema": {"type": "object", "properties": {"threshold": {"type": "number"}}},
//	  "entry_point": "modules.oncology.RiskScorer",
//	  "min_framework_version": "3.0.0",
//	  "tags": ["risk", "surgical"]
//	}
//
// The entry_point never names code to import: it resolves through the
// embedding application's factory table. No dynamic code execution happens
// inside this core.
type PluginManifest struct {
	PluginID            string         `json:"plugin_id" yaml:"plugin_id"`
	Name                string         `json:"name" yaml:"name"`
	Version             string         `json:"version" yaml:"version"`
	Domain              string         `json:"domain" yaml:"domain"`
	ModuleType          ModuleType     `json:"module_type" yaml:"module_type"`
	Author              string         `json:"author,omitempty" yaml:"author,omitempty"`
	Description         string         `json:"description,omitempty" yaml:"description,omitempty"`
	Dependencies        []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	ConfigSchema        map[string]any `json:"config_schema,omitempty" yaml:"config_schema,omitempty"`
	EntryPoint          string         `json:"entry_point" yaml:"entry_point"`
	MinFrameworkVersion string         `json:"min_framework_version,omitempty" yaml:"min_framework_version,omitempty"`
	Tags                []string       `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Discovery metadata, filled by the registry.
	ManifestPath string    `json:"manifest_path,omitempty" yaml:"-"`
	DiscoveredAt time.Time `json:"discovered_at,omitempty" yaml:"-"`
}

// LoadManifest reads and parses a manifest descriptor. The format is chosen
// by file extension: .json, .yaml, or .yml.
func LoadManifest(path string) (*PluginManifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 - paths come from configured plugin directories
	if err != nil {
		return nil, NewManifestParseError(path, err)
	}

	manifest := &PluginManifest{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, manifest)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, manifest)
	default:
		err = os.ErrInvalid
	}
	if err != nil {
		return nil, NewManifestParseError(path, err)
	}

	if manifest.MinFrameworkVersion == "" {
		manifest.MinFrameworkVersion = defaultMinFrameworkVersion
	}
	manifest.ManifestPath = path
	return manifest, nil
}

// Validate checks the manifest's required fields and field formats.
func (m *PluginManifest) Validate() error {
	var missing []string
	for field, value := range map[string]string{
		"plugin_id":   m.PluginID,
		"name":        m.Name,
		"version":     m.Version,
		"domain":      m.Domain,
		"entry_point": m.EntryPoint,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return NewManifestInvalidError(m.ManifestPath, missing)
	}

	if m.ModuleType != "" && !m.ModuleType.IsValid() {
		return NewInvalidModuleTypeError(string(m.ModuleType))
	}

	if _, err := semver.NewVersion(m.Version); err != nil {
		return NewManifestInvalidError(m.ManifestPath, []string{"version (not semver: " + m.Version + ")"})
	}

	return nil
}

// CheckCompatibility verifies the manifest's min_framework_version against
// the running framework version.
func (m *PluginManifest) CheckCompatibility(frameworkVersion string) error {
	required, err := semver.NewVersion(m.MinFrameworkVersion)
	if err != nil {
		return NewManifestInvalidError(m.ManifestPath,
			[]string{"min_framework_version (not semver: " + m.MinFrameworkVersion + ")"})
	}

	actual, err := semver.NewVersion(frameworkVersion)
	if err != nil {
		return NewIncompatibleVersionError(m.PluginID, m.MinFrameworkVersion, frameworkVersion)
	}

	if actual.LessThan(required) {
		return NewIncompatibleVersionError(m.PluginID, m.MinFrameworkVersion, frameworkVersion)
	}
	return nil
}

// CompileConfigSchema compiles the manifest's config_schema into a validator
// for per-domain configuration. Returns nil when the manifest declares no
// schema.
func (m *PluginManifest) CompileConfigSchema() (*jsonschema.Schema, error) {
	if len(m.ConfigSchema) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(m.ConfigSchema)
	if err != nil {
		return nil, NewConfigSchemaInvalidError(m.PluginID, err)
	}

	schema, err := jsonschema.CompileString("manifest://"+m.PluginID+"/config_schema.json", string(raw))
	if err != nil {
		return nil, NewConfigSchemaInvalidError(m.PluginID, err)
	}
	return schema, nil
}

// toJSONValue round-trips a Go value through JSON so schema validation sees
// canonical JSON types (float64 numbers, map[string]any objects) regardless
// of how the configuration map was built.
func toJSONValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// HasTag reports whether the manifest carries the given tag.
func (m *PluginManifest) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

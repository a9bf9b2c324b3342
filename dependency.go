// dependency.go: Plugin dependency resolution and load ordering
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

// resolveLoadOrder computes a topological load order over the manifests'
// dependency edges, preserving discovery order among independent plugins.
//
// The resolver is deliberately permissive so the registry always makes
// progress on bad manifests:
//   - a dependency that is not in the registered set is treated as externally
//     satisfied and ignored
//   - when no plugin qualifies in a pass (a cycle among the remainder), the
//     remaining plugins are force-ordered in discovery order and a warning is
//     logged
//
// A stricter resolver would reject the offending set outright; this one loads
// everything it can and leaves the diagnosis to the warning log.
func resolveLoadOrder(manifests []*PluginManifest, logger Logger) []string {
	registered := make(map[string]bool, len(manifests))
	for _, m := range manifests {
		registered[m.PluginID] = true
	}

	ordered := make([]string, 0, len(manifests))
	placed := make(map[string]bool, len(manifests))
	remaining := append([]*PluginManifest(nil), manifests...)

	for len(remaining) > 0 {
		ready := make([]*PluginManifest, 0, len(remaining))
		deferred := make([]*PluginManifest, 0, len(remaining))

		for _, m := range remaining {
			if dependenciesSatisfied(m, registered, placed) {
				ready = append(ready, m)
			} else {
				deferred = append(deferred, m)
			}
		}

		if len(ready) == 0 {
			// Cycle among the remainder: force-order in discovery order.
			ids := make([]string, len(deferred))
			for i, m := range deferred {
				ids[i] = m.PluginID
			}
			logger.Warn("Circular or missing dependencies, forcing load order",
				"plugins", ids)
			ready = deferred
			deferred = nil
		}

		for _, m := range ready {
			ordered = append(ordered, m.PluginID)
			placed[m.PluginID] = true
		}
		remaining = deferred
	}

	return ordered
}

func dependenciesSatisfied(m *PluginManifest, registered, placed map[string]bool) bool {
	for _, dep := range m.Dependencies {
		if registered[dep] && !placed[dep] {
			return false
		}
	}
	return true
}

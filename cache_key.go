// cache_key.go: Cache key normalization and generation
//
// Cache keys are derived from a canonicalized view of the request parameters
// so that semantically equivalent requests collide on the same key. This is
// what drives the cache hit-rate target: float precision noise, string casing,
// and list ordering never produce distinct entries.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// cacheKeyLength is the number of hex characters kept from the SHA-256 digest.
// Truncation keeps keys compact; at expected cache sizes (tens of thousands of
// entries) 128 bits leave collision risk negligible.
const cacheKeyLength = 32

// normalizeParameters canonicalizes a parameter map to increase cache hit
// probability:
//   - keys are lower-cased and trimmed
//   - floats are rounded to 2 decimals
//   - strings are lower-cased and trimmed
//   - lists are sorted, with string elements lower-cased first
//   - everything else passes through unchanged
//
// When key folding makes two keys collide, the surviving value is unspecified;
// parameter names differing only by case are treated as the same parameter.
func normalizeParameters(params map[string]any) map[string]any {
	normalized := make(map[string]any, len(params))
	for key, value := range params {
		normalized[strings.ToLower(strings.TrimSpace(key))] = normalizeValue(value)
	}
	return normalized
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case float64:
		return math.Round(v*100) / 100
	case float32:
		return math.Round(float64(v)*100) / 100
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []string:
		elems := make([]string, len(v))
		for i, e := range v {
			elems[i] = strings.ToLower(e)
		}
		sort.Strings(elems)
		return elems
	case []any:
		elems := make([]any, len(v))
		for i, e := range v {
			if s, ok := e.(string); ok {
				elems[i] = strings.ToLower(s)
			} else {
				elems[i] = e
			}
		}
		// Mixed-type lists are ordered by string form; ordering only has to
		// be deterministic, not meaningful.
		sort.SliceStable(elems, func(i, j int) bool {
			return fmt.Sprint(elems[i]) < fmt.Sprint(elems[j])
		})
		return elems
	default:
		return value
	}
}

// cacheKey builds the cache key for a module execution.
//
// The key covers (moduleID, normalized parameters, domain, organization).
// UserID and SessionID are deliberately excluded so that users within the
// same organization and domain share cached results.
//
// The serialized form uses sorted map keys, so equal canonical maps always
// produce equal keys regardless of insertion order.
func cacheKey(moduleID string, params map[string]any, dctx DecisionContext) (string, error) {
	keyData := map[string]any{
		"module_id":  moduleID,
		"parameters": normalizeParameters(params),
		"domain":     dctx.Domain,
		"org_id":     dctx.OrganizationID,
	}

	raw, err := json.Marshal(keyData)
	if err != nil {
		return "", NewCacheEncodingError(err)
	}

	digest := sha256.Sum256(raw)
	return hex.EncodeToString(digest[:])[:cacheKeyLength], nil
}

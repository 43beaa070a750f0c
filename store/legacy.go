package store

import "github.com/scpipe/scpipe/pipeline"

// normalizeLegacy rewrites persisted-state names from older layouts to
// their current equivalents, per spec.md §6's backward-compatible-read
// requirement:
//   - a *_pca group's boolean "weight"/"block" flags become the current
//     "block_method" string ("project"/"regress"),
//   - a marker group's flat "clusters" results key becomes the keyed
//     "per_cluster" layout,
//   - a cell_filtering group's "identity" results key (the historical name
//     for the retained-column reordering, back when no reordering besides
//     the identity permutation was ever persisted) becomes "permutation".
func normalizeLegacy(c *Container) {
	for _, g := range c.Steps {
		normalizeLegacyParameters(g.Parameters)
		normalizeLegacyResults(g.Results)
	}
}

func normalizeLegacyParameters(params map[string]any) {
	if params == nil {
		return
	}
	if v, ok := params["weight"]; ok {
		if isTruthy(v) {
			params["block_method"] = "project"
		}
		delete(params, "weight")
	}
	if v, ok := params["block"]; ok {
		if isTruthy(v) {
			params["block_method"] = "regress"
		}
		delete(params, "block")
	}
	if v, ok := params["block_method"]; ok {
		if s, ok := v.(string); ok {
			params["block_method"] = pipeline.TranslateBlockMethod(s)
		}
	}
}

func normalizeLegacyResults(results map[string]any) {
	if results == nil {
		return
	}
	if v, ok := results["clusters"]; ok {
		if _, exists := results["per_cluster"]; !exists {
			results["per_cluster"] = v
		}
		delete(results, "clusters")
	}
	if v, ok := results["identity"]; ok {
		if _, exists := results["permutation"]; !exists {
			results["permutation"] = v
		}
		delete(results, "identity")
	}
}

func isTruthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// Package reference loads the external, species-keyed reference panels and
// feature-set collections that CellLabelling and FeatureSetEnrichment
// consume. Downloading and parsing these assets is explicitly out of this
// engine's scope; this package is the external collaborator the pipeline
// steps depend on through a narrow interface, the same shape kernels.go
// uses for the numeric collaborators.
package reference

import (
	"encoding/json"
	"fmt"
)

// Profile is a downloaded cell-type reference: a set of named label
// profiles (e.g. cell types) each with a mean expression vector over a
// fixed gene vocabulary.
type Profile struct {
	GeneIDs    []string
	Labels     []string
	Expression [][]float64 // len(Labels) rows, each len(GeneIDs)
}

type profileWire struct {
	GeneIDs    []string    `json:"gene_ids"`
	Labels     []string    `json:"labels"`
	Expression [][]float64 `json:"expression"`
}

// ParseProfile decodes a downloaded reference panel.
func ParseProfile(data []byte) (Profile, error) {
	var w profileWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Profile{}, fmt.Errorf("reference: decode profile: %w", err)
	}
	if len(w.Expression) != len(w.Labels) {
		return Profile{}, fmt.Errorf("reference: profile has %d labels but %d expression rows", len(w.Labels), len(w.Expression))
	}
	for i, row := range w.Expression {
		if len(row) != len(w.GeneIDs) {
			return Profile{}, fmt.Errorf("reference: profile row %d has %d values, want %d", i, len(row), len(w.GeneIDs))
		}
	}
	return Profile{GeneIDs: w.GeneIDs, Labels: w.Labels, Expression: w.Expression}, nil
}

// Collection is a downloaded feature-set collection: named gene sets over a
// gene-ID vocabulary, used for hypergeometric enrichment testing.
type Collection struct {
	GeneIDs []string
	Sets    map[string][]string // set name -> member gene IDs
}

type collectionWire struct {
	GeneIDs []string            `json:"gene_ids"`
	Sets    map[string][]string `json:"sets"`
}

// ParseCollection decodes a downloaded feature-set collection.
func ParseCollection(data []byte) (Collection, error) {
	var w collectionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Collection{}, fmt.Errorf("reference: decode collection: %w", err)
	}
	return Collection{GeneIDs: w.GeneIDs, Sets: w.Sets}, nil
}

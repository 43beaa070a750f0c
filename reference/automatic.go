package reference

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DetectColumn implements automatic-mode scoring: for every species the
// catalogue offers at least one reference for, it downloads that
// reference's gene vocabulary and measures each candidate feature
// annotation column's overlap fraction against it, returning the
// (species, column) pair with the highest overlap. geneIDType is inferred
// from the winning column's name. Iteration order is sorted so that ties
// resolve deterministically.
func DetectColumn(ctx context.Context, loader *Loader, columns map[string][]string) (species, column, geneIDType string, err error) {
	colNames := make([]string, 0, len(columns))
	for name := range columns {
		colNames = append(colNames, name)
	}
	sort.Strings(colNames)

	bestOverlap := -1.0
	for _, sp := range loader.Catalogue().Species() {
		refs := loader.Catalogue().References(sp)
		if len(refs) == 0 {
			continue
		}
		profile, loadErr := loader.LoadReference(ctx, sp, refs[0].Name)
		if loadErr != nil {
			continue
		}
		vocab := make(map[string]bool, len(profile.GeneIDs))
		for _, g := range profile.GeneIDs {
			vocab[g] = true
		}
		for _, name := range colNames {
			values := columns[name]
			if len(values) == 0 {
				continue
			}
			hits := 0
			for _, v := range values {
				if vocab[v] {
					hits++
				}
			}
			overlap := float64(hits) / float64(len(values))
			if overlap > bestOverlap {
				bestOverlap, species, column = overlap, sp, name
			}
		}
	}
	if species == "" {
		return "", "", "", fmt.Errorf("reference: automatic mode found no usable gene-id column")
	}
	return species, column, inferGeneIDType(column), nil
}

func inferGeneIDType(column string) string {
	s := strings.ToLower(column)
	for _, token := range []string{"ensembl", "ens_id", "ensg"} {
		if strings.Contains(s, token) {
			return "ensembl"
		}
	}
	return "symbol"
}

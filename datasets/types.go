// Package datasets provides the dataset-loading collaborator the
// specification treats as external: format-specific readers are out of
// scope, so this package defines the typed handoff shape (RawMatrix,
// RawColumn, Dataset) plus a Loader interface and a manifest-backed default
// implementation, the way the teacher project keeps workload/config loading
// in its own package behind a yaml.v3-decoded struct.
package datasets

// RawFactor is a categorical column as handed off by a Loader: ordered
// unique level strings plus a per-row level index (-1 for null).
type RawFactor struct {
	Levels  []string `yaml:"levels"`
	Indices []int32  `yaml:"indices"`
}

// RawColumn is either a RawFactor or a plain numeric array.
type RawColumn struct {
	Factor  *RawFactor `yaml:"factor,omitempty"`
	Numeric []float64  `yaml:"numeric,omitempty"`
}

// Len returns the number of rows this column covers.
func (c RawColumn) Len() int {
	if c.Factor != nil {
		return len(c.Factor.Indices)
	}
	return len(c.Numeric)
}

// RawMatrix is a sparse integer count matrix in compressed-sparse-column
// form, as handed off by a Loader, independent of the pipeline package's
// in-memory CSCMatrix so this package never needs to import pipeline.
type RawMatrix struct {
	NumRows int     `yaml:"num_rows"`
	NumCols int     `yaml:"num_cols"`
	RowIDs  []int32 `yaml:"row_ids"`
	Indptr  []int   `yaml:"indptr"`
	Indices []int32 `yaml:"indices"`
	Data    []float64 `yaml:"data"`
}

// Dataset is one loaded dataset: its modalities (keyed by detected type —
// "RNA", "ADT", "CRISPR" — case-insensitively matched from the source's own
// sub-assay naming), per-cell annotations, and per-modality per-feature
// annotations.
type Dataset struct {
	Key        string
	Modalities map[string]RawMatrix
	// FeatureGeneIDs holds every candidate stable-ID column a loader can
	// offer per modality (symbol, Ensembl, Entrez, ...), each row-aligned
	// with that modality's RawMatrix: modality -> id type -> per-feature
	// ID. A multi-dataset merge picks whichever id type overlaps best
	// across datasets before intersecting on it (spec.md §4.2), the same
	// candidate-scoring shape reference.DetectColumn uses to pick an
	// annotation column against a reference vocabulary.
	FeatureGeneIDs     map[string]map[string][]string
	CellAnnotations    map[string]RawColumn
	FeatureAnnotations map[string]map[string]RawColumn // modality -> column name -> column
	Fingerprint        string
}

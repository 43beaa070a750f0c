package pipeline

import "github.com/samber/lo"

// Annotation is a tagged variant replacing the dynamic "factor-or-array"
// shape of the original implementation (see SPEC_FULL.md design notes):
// a per-cell or per-feature column is either a categorical Factor or a
// Numeric array.
type Annotation struct {
	Factor  *FactorColumn
	Numeric []float64
}

// FactorColumn is a categorical column: Levels holds the ordered unique
// string values, Indices references a level per row (or -1 for null).
type FactorColumn struct {
	Levels  []string
	Indices []int32
}

// IsFactor reports whether this Annotation is categorical.
func (a Annotation) IsFactor() bool { return a.Factor != nil }

// Len returns the number of rows (cells or features) this column covers.
func (a Annotation) Len() int {
	if a.Factor != nil {
		return len(a.Factor.Indices)
	}
	return len(a.Numeric)
}

// Subset returns a new Annotation retaining only the given row indices, in
// order. For a factor column, level strings are preserved verbatim (no
// re-compaction) since downstream code indexes levels by integer.
func (a Annotation) Subset(rows []int) Annotation {
	if a.Factor != nil {
		idx := make([]int32, len(rows))
		for i, r := range rows {
			idx[i] = a.Factor.Indices[r]
		}
		return Annotation{Factor: &FactorColumn{Levels: a.Factor.Levels, Indices: idx}}
	}
	return Annotation{Numeric: lo.Map(rows, func(r, _ int) float64 { return a.Numeric[r] })}
}

// Annotations is a mapping from field name to a typed column, used for both
// per-cell and per-feature metadata depending on context.
type Annotations struct {
	order   []string
	columns map[string]Annotation
}

// NewAnnotations builds an empty Annotations table.
func NewAnnotations() *Annotations {
	return &Annotations{columns: make(map[string]Annotation)}
}

// Set inserts or replaces a column, preserving first-seen insertion order.
func (a *Annotations) Set(name string, col Annotation) {
	if _, ok := a.columns[name]; !ok {
		a.order = append(a.order, name)
	}
	a.columns[name] = col
}

// Get returns a column and whether it is present.
func (a *Annotations) Get(name string) (Annotation, bool) {
	c, ok := a.columns[name]
	return c, ok
}

// Names returns column names in insertion order.
func (a *Annotations) Names() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Subset returns a new Annotations table with every column re-indexed to
// the given row indices, used by CellFiltering.fetch_filtered_annotations.
func (a *Annotations) Subset(rows []int) *Annotations {
	out := NewAnnotations()
	for _, name := range a.order {
		out.Set(name, a.columns[name].Subset(rows))
	}
	return out
}

// FeatureAnnotations is a per-modality table of per-feature metadata (gene
// IDs, symbols, types).
type FeatureAnnotations struct {
	modality string
	table    *Annotations
}

// NewFeatureAnnotations wraps a per-feature Annotations table for a
// modality.
func NewFeatureAnnotations(modality string, table *Annotations) *FeatureAnnotations {
	return &FeatureAnnotations{modality: modality, table: table}
}

func (f *FeatureAnnotations) Modality() string     { return f.modality }
func (f *FeatureAnnotations) Table() *Annotations  { return f.table }

// Column is a convenience accessor for a named feature column's string
// values, used for gene ID / symbol lookups. Only meaningful for factor
// columns; non-factor columns return ok=false.
func (f *FeatureAnnotations) Column(name string) ([]string, bool) {
	col, ok := f.table.Get(name)
	if !ok || col.Factor == nil {
		return nil, false
	}
	out := make([]string, len(col.Factor.Indices))
	for i, idx := range col.Factor.Indices {
		if idx < 0 {
			continue
		}
		out[i] = col.Factor.Levels[idx]
	}
	return out, true
}

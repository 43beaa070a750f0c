package pipeline

// CSCMatrix is a minimal compressed-sparse-column matrix, the storage format
// Inputs produces for a freshly loaded dataset and normalization keeps for
// its log-normalized output. The
// specification treats the on-disk format reader as an external
// collaborator (see datasets.Loader); this type is the in-memory shape that
// reader hands back.
type CSCMatrix struct {
	nrow, ncol int
	// Indptr has length ncol+1: column c's entries are
	// Indices[Indptr[c]:Indptr[c+1]] / Data[Indptr[c]:Indptr[c+1]].
	Indptr  []int
	Indices []int32
	Data    []float64
}

// NewCSCMatrix validates and wraps CSC buffers.
func NewCSCMatrix(nrow, ncol int, indptr []int, indices []int32, data []float64) *CSCMatrix {
	if len(indptr) != ncol+1 {
		panic("pipeline: indptr length must be ncol+1")
	}
	if len(indices) != len(data) {
		panic("pipeline: indices and data length must match")
	}
	return &CSCMatrix{nrow: nrow, ncol: ncol, Indptr: indptr, Indices: indices, Data: data}
}

func (c *CSCMatrix) NumRows() int { return c.nrow }
func (c *CSCMatrix) NumCols() int { return c.ncol }

// At returns the value at (row, col); O(nnz_col).
func (c *CSCMatrix) At(row, col int) float64 {
	start, end := c.Indptr[col], c.Indptr[col+1]
	for i := start; i < end; i++ {
		if int(c.Indices[i]) == row {
			return c.Data[i]
		}
	}
	return 0
}

// ColumnSums returns the per-column sum of non-zero entries.
func (c *CSCMatrix) ColumnSums() []float64 {
	out := make([]float64, c.ncol)
	for col := 0; col < c.ncol; col++ {
		var s float64
		for i := c.Indptr[col]; i < c.Indptr[col+1]; i++ {
			s += c.Data[i]
		}
		out[col] = s
	}
	return out
}

// ColumnDetected returns, per column, the count of non-zero entries.
func (c *CSCMatrix) ColumnDetected() []float64 {
	out := make([]float64, c.ncol)
	for col := 0; col < c.ncol; col++ {
		out[col] = float64(c.Indptr[col+1] - c.Indptr[col])
	}
	return out
}

// RowSubsetSums sums only the rows in rowSet, per column; used for
// mitochondrial / IgG / guide-count aggregates in QC.
func (c *CSCMatrix) RowSubsetSums(rowSet map[int]bool) []float64 {
	out := make([]float64, c.ncol)
	for col := 0; col < c.ncol; col++ {
		var s float64
		for i := c.Indptr[col]; i < c.Indptr[col+1]; i++ {
			if rowSet[int(c.Indices[i])] {
				s += c.Data[i]
			}
		}
		out[col] = s
	}
	return out
}

// SubsetColumns returns a new CSCMatrix retaining only the given columns, in
// order.
func (c *CSCMatrix) SubsetColumns(cols []int) *CSCMatrix {
	indptr := make([]int, len(cols)+1)
	var indices []int32
	var data []float64
	for j, col := range cols {
		start, end := c.Indptr[col], c.Indptr[col+1]
		indices = append(indices, c.Indices[start:end]...)
		data = append(data, c.Data[start:end]...)
		indptr[j+1] = len(indices)
	}
	return &CSCMatrix{nrow: c.nrow, ncol: len(cols), Indptr: indptr, Indices: indices, Data: data}
}

// SubsetRows returns a new CSCMatrix retaining only the given rows, in
// order, remapping indices accordingly. O(nnz * len(rows)) — acceptable for
// the feature-mask sizes this engine deals with.
func (c *CSCMatrix) SubsetRows(rows []int) *CSCMatrix {
	remap := make(map[int]int32, len(rows))
	for newIdx, oldIdx := range rows {
		remap[oldIdx] = int32(newIdx)
	}
	indptr := make([]int, c.ncol+1)
	var indices []int32
	var data []float64
	for col := 0; col < c.ncol; col++ {
		for i := c.Indptr[col]; i < c.Indptr[col+1]; i++ {
			if nr, ok := remap[int(c.Indices[i])]; ok {
				indices = append(indices, nr)
				data = append(data, c.Data[i])
			}
		}
		indptr[col+1] = len(indices)
	}
	return &CSCMatrix{nrow: len(rows), ncol: c.ncol, Indptr: indptr, Indices: indices, Data: data}
}

// ToDense materializes the sparse matrix as a dense row-major slice,
// primarily for feeding external kernels that require dense input (PCA on
// small feature sets).
func (c *CSCMatrix) ToDense() []float64 {
	out := make([]float64, c.nrow*c.ncol)
	for col := 0; col < c.ncol; col++ {
		for i := c.Indptr[col]; i < c.Indptr[col+1]; i++ {
			out[int(c.Indices[i])*c.ncol+col] = c.Data[i]
		}
	}
	return out
}

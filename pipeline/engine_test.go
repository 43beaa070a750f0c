package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scpipe/scpipe/datasets"
)

// fixtureEngine wires every step with the fake kernels used throughout this
// package's tests, bypassing NewEngine (whose *KernelFunc factory variables
// are only populated by kernels/numeric's init, unreachable here without an
// import cycle). The dataset is small (4 genes x 6 cells) but every value is
// nonzero and close enough in magnitude that the default QC thresholds
// discard nothing, so RunAnalysis exercises the full step chain.
func fixtureEngine(t *testing.T) (*Engine, datasets.Loader) {
	t.Helper()
	rm := datasets.RawMatrix{
		NumRows: 4,
		NumCols: 6,
		Indptr:  []int{0, 4, 8, 12, 16, 20, 24},
		Indices: []int32{0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3},
		Data: []float64{
			10, 12, 14, 16,
			11, 13, 15, 17,
			12, 14, 16, 18,
			10, 12, 14, 16,
			11, 13, 15, 17,
			12, 14, 16, 18,
		},
	}
	loader := mapLoader{
		"a": {
			Key:         "a",
			Modalities:  map[string]datasets.RawMatrix{"RNA": rm},
			Fingerprint: "fp-a",
		},
	}

	e := &Engine{
		loader: loader,
		sink:   nil,

		inputs: NewInputs(loader),

		rnaQC:    NewRNAQualityControl(fakeQCKernel{}),
		adtQC:    NewADTQualityControl(fakeQCKernel{}),
		crisprQC: NewCRISPRQualityControl(fakeQCKernel{}),

		cellFiltering: NewCellFiltering(),

		rnaNorm:    NewRNANormalization(),
		adtNorm:    NewADTNormalization(&fakePCAKernel{}, &fakeKMeansKernel{}),
		crisprNorm: NewCRISPRNormalization(),

		featureSelection: NewFeatureSelection(),

		rnaPCA:    NewPCA(ModalityRNA, &fakePCAKernel{}),
		adtPCA:    NewPCA(ModalityADT, &fakePCAKernel{}),
		crisprPCA: NewPCA(ModalityCRISPR, &fakePCAKernel{}),

		combine:       NewCombineEmbeddings(&fakeNeighborKernel{}),
		correction:    NewBatchCorrection(&fakeMNNKernel{}),
		neighborIndex: NewNeighborIndex(&fakeNeighborKernel{}),

		tsne: NewTSNEEmbedding(&fakeTSNEKernel{}, nil),
		umap: NewUMAPEmbedding(&fakeUMAPKernel{}, nil),

		kmeans: NewKMeansCluster(&fakeKMeansKernel{}),
		snn:    NewSnnGraphCluster(&fakeNeighborKernel{}, &fakeSNNKernel{}),
		choose: NewChooseClustering(),

		rnaMarkers:    NewMarkerDetection(ModalityRNA, fakeMeanMarkerKernel{}),
		adtMarkers:    NewMarkerDetection(ModalityADT, fakeMeanMarkerKernel{}),
		crisprMarkers: NewMarkerDetection(ModalityCRISPR, fakeMeanMarkerKernel{}),

		customSelections: NewCustomSelections(fakeMeanMarkerKernel{}),

		cellLabelling:        NewCellLabelling(nil),
		featureSetEnrichment: NewFeatureSetEnrichment(nil, fakeHypergeometricKernel{}),
	}
	return e, loader
}

func TestEngine_RunAnalysis_HappyPath_PopulatesEveryStep(t *testing.T) {
	e, _ := fixtureEngine(t)
	params := e.DefaultParams()
	params.TSNE.Animate = false
	params.UMAP.Animate = false

	descriptors := []datasets.Descriptor{{Key: "a"}}
	require.NoError(t, e.RunAnalysis(context.Background(), descriptors, params))

	assert.True(t, e.rnaQC.Valid())
	assert.Equal(t, 6, e.cellFiltering.NumCols(), "the mild, uniform fixture matrix should survive default QC thresholds")
	assert.True(t, e.rnaNorm.Valid())
	assert.True(t, e.featureSelection.Valid())
	assert.True(t, e.rnaPCA.Valid())
	assert.NotNil(t, e.combine.FetchCombined())
	assert.NotNil(t, e.correction.FetchCorrected())
	labels := e.choose.FetchLabels()
	assert.Len(t, labels, 6)
	assert.True(t, e.rnaMarkers.Valid())

	assert.Equal(t, descriptors, e.Descriptors())
	assert.Equal(t, params, e.RetrieveParameters())
}

func TestEngine_RunAnalysis_SnnMethod_RunsSnnNotKMeans(t *testing.T) {
	e, _ := fixtureEngine(t)
	params := e.DefaultParams()
	params.TSNE.Animate = false
	params.UMAP.Animate = false
	params.ChooseClustering.Method = "snn_graph"

	require.NoError(t, e.RunAnalysis(context.Background(), []datasets.Descriptor{{Key: "a"}}, params))

	assert.Nil(t, e.kmeans.FetchLabels(), "kmeans was never selected, so it should not have run")
	assert.Len(t, e.snn.FetchLabels(), 6)
	assert.Equal(t, e.snn.FetchLabels(), e.choose.FetchLabels())
}

func TestEngine_FreeAll_ClearsEveryStep(t *testing.T) {
	e, _ := fixtureEngine(t)
	params := e.DefaultParams()
	params.TSNE.Animate = false
	params.UMAP.Animate = false
	require.NoError(t, e.RunAnalysis(context.Background(), []datasets.Descriptor{{Key: "a"}}, params))

	e.FreeAll()

	assert.False(t, e.rnaQC.Valid())
	assert.False(t, e.rnaNorm.Valid())
	assert.False(t, e.featureSelection.Valid())
	assert.False(t, e.rnaPCA.Valid())
	assert.Nil(t, e.choose.FetchLabels())
	assert.False(t, e.rnaMarkers.Valid())
}

func TestEngine_ApplyParameters_PrimesWithoutRunning(t *testing.T) {
	e, _ := fixtureEngine(t)
	params := e.DefaultParams()
	params.ChooseClustering.Method = "snn_graph"
	e.ApplyParameters(params)
	assert.Equal(t, params, e.RetrieveParameters())
	assert.False(t, e.rnaQC.Valid(), "ApplyParameters must not run any step")
}

func TestEngine_Steps_ListsEveryStepOnce(t *testing.T) {
	e, _ := fixtureEngine(t)
	steps := e.Steps()
	assert.Len(t, steps, 26)
}

func TestEngine_SubsetInputs_BuildsIndependentEngineOverSubsetColumns(t *testing.T) {
	e, loader := fixtureEngine(t)
	params := e.DefaultParams()
	params.TSNE.Animate = false
	params.UMAP.Animate = false
	require.NoError(t, e.RunAnalysis(context.Background(), []datasets.Descriptor{{Key: "a"}}, params))

	sub, err := e.SubsetInputs(context.Background(), []int{0, 1}, true)
	require.NoError(t, err)
	rna, ok := sub.Inputs().FetchModality(ModalityRNA)
	require.True(t, ok)
	assert.Equal(t, 2, rna.NumCols())

	// The subset engine is independent: it owns its own loader reference
	// and has not run its own analysis yet.
	assert.NotSame(t, e, sub)
	_ = loader
}

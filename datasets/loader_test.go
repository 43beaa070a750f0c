package datasets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestManifestLoader_Load_DecodesModalitiesAndAnnotations(t *testing.T) {
	path := writeManifest(t, `
modalities:
  RNA:
    num_rows: 2
    num_cols: 2
    row_ids: [0, 1]
    indptr: [0, 1, 2]
    indices: [0, 1]
    data: [3.0, 4.0]
feature_gene_ids:
  RNA:
    symbol: ["g0", "g1"]
    ensembl: ["ENSG0", "ENSG1"]
cell_annotations:
  sample:
    factor:
      levels: ["a", "b"]
      indices: [0, 1]
`)
	l := NewManifestLoader()
	ds, err := l.Load(context.Background(), Descriptor{Key: "fixture", Source: path})
	require.NoError(t, err)

	assert.Equal(t, "fixture", ds.Key)
	assert.Equal(t, 2, ds.Modalities["RNA"].NumCols)
	assert.Equal(t, []string{"g0", "g1"}, ds.FeatureGeneIDs["RNA"]["symbol"])
	assert.Equal(t, []string{"ENSG0", "ENSG1"}, ds.FeatureGeneIDs["RNA"]["ensembl"])
	assert.Equal(t, []string{"a", "b"}, ds.CellAnnotations["sample"].Factor.Levels)
	assert.NotEmpty(t, ds.Fingerprint)
}

func TestManifestLoader_Load_MissingFileReturnsError(t *testing.T) {
	l := NewManifestLoader()
	_, err := l.Load(context.Background(), Descriptor{Key: "missing", Source: "/no/such/manifest.yaml"})
	assert.Error(t, err)
}

func TestManifestLoader_Load_RejectsUnknownFields(t *testing.T) {
	path := writeManifest(t, "bogus_field: 1\n")
	l := NewManifestLoader()
	_, err := l.Load(context.Background(), Descriptor{Key: "fixture", Source: path})
	assert.Error(t, err)
}

func TestManifestLoader_Load_SameContentsFingerprintToSameValue(t *testing.T) {
	contents := `
modalities:
  RNA:
    num_rows: 1
    num_cols: 1
    row_ids: [0]
    indptr: [0, 1]
    indices: [0]
    data: [1.0]
`
	path1 := writeManifest(t, contents)
	path2 := writeManifest(t, contents)

	l := NewManifestLoader()
	ds1, err := l.Load(context.Background(), Descriptor{Key: "a", Source: path1})
	require.NoError(t, err)
	ds2, err := l.Load(context.Background(), Descriptor{Key: "b", Source: path2})
	require.NoError(t, err)

	assert.Equal(t, ds1.Fingerprint, ds2.Fingerprint)
}

func TestManifestLoader_Load_DifferentContentsFingerprintDiffers(t *testing.T) {
	path1 := writeManifest(t, "modalities: {}\n")
	path2 := writeManifest(t, "modalities: {}\ncell_annotations: {}\n")

	l := NewManifestLoader()
	ds1, err := l.Load(context.Background(), Descriptor{Key: "a", Source: path1})
	require.NoError(t, err)
	ds2, err := l.Load(context.Background(), Descriptor{Key: "b", Source: path2})
	require.NoError(t, err)

	assert.NotEqual(t, ds1.Fingerprint, ds2.Fingerprint)
}

func TestManifestLoader_Load_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := writeManifest(t, "modalities: {}\n")
	l := NewManifestLoader()
	_, err := l.Load(ctx, Descriptor{Key: "a", Source: path})
	assert.ErrorIs(t, err, context.Canceled)
}

package datasets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Descriptor names a dataset to load. Source is a manifest path for the
// default Loader; a production reader for a specific on-disk format (mtx,
// h5ad, ...) would interpret it differently, which is why this is a
// collaborator interface rather than a concrete parser.
type Descriptor struct {
	Key    string
	Source string
}

// Loader loads a Descriptor into a Dataset. Production readers for
// specific on-disk formats are out of this engine's scope; ManifestLoader
// below is the default, manifest-driven implementation used by tests and
// small deployments.
type Loader interface {
	Load(ctx context.Context, d Descriptor) (Dataset, error)
}

// manifest is the on-disk shape a ManifestLoader reads: a single dataset's
// modalities and annotations expressed directly in YAML, decoded strictly
// the way the teacher project decodes its workload specs.
type manifest struct {
	Modalities         map[string]RawMatrix             `yaml:"modalities"`
	FeatureGeneIDs     map[string]map[string][]string    `yaml:"feature_gene_ids,omitempty"`
	CellAnnotations    map[string]RawColumn              `yaml:"cell_annotations,omitempty"`
	FeatureAnnotations map[string]map[string]RawColumn   `yaml:"feature_annotations,omitempty"`
}

// ManifestLoader reads a dataset from a YAML manifest file. It is the
// default datasets.Loader: a stand-in for format-specific readers (mtx,
// h5ad, loom, ...) that keeps the engine's Inputs step exercisable without
// depending on any particular on-disk count-matrix format.
type ManifestLoader struct{}

// NewManifestLoader constructs the default manifest-backed loader.
func NewManifestLoader() *ManifestLoader { return &ManifestLoader{} }

func (l *ManifestLoader) Load(ctx context.Context, d Descriptor) (Dataset, error) {
	select {
	case <-ctx.Done():
		return Dataset{}, ctx.Err()
	default:
	}
	raw, err := os.ReadFile(d.Source)
	if err != nil {
		return Dataset{}, fmt.Errorf("reading dataset manifest %s: %w", d.Source, err)
	}
	var m manifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Dataset{}, fmt.Errorf("parsing dataset manifest %s: %w", d.Source, err)
	}
	return Dataset{
		Key:                d.Key,
		Modalities:         m.Modalities,
		FeatureGeneIDs:     m.FeatureGeneIDs,
		CellAnnotations:    m.CellAnnotations,
		FeatureAnnotations: m.FeatureAnnotations,
		Fingerprint:        fingerprint(raw),
	}, nil
}

// fingerprint hashes a loaded manifest's raw bytes so Inputs.compute can
// short-circuit reloading when invoked with an equivalent descriptor.
func fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PipelineBundle holds a partial override of EngineParams, loadable from a
// YAML file, directly modeled on the teacher project's PolicyBundle /
// LoadPolicyBundle / Validate. Nil pointer fields mean "not set in YAML";
// ApplyTo only overwrites fields the operator actually named, leaving the
// rest of the base EngineParams (typically engine.DefaultParams(), or a
// restored container's parameters) untouched.
type PipelineBundle struct {
	RNAQualityControl    *RNAQCOverride        `yaml:"rna_quality_control"`
	ADTQualityControl    *ADTQCOverride        `yaml:"adt_quality_control"`
	CRISPRQualityControl *CRISPRQCOverride     `yaml:"crispr_quality_control"`
	CellFiltering        *CellFilteringParams  `yaml:"cell_filtering"`
	RNAPCA               *PCAOverride          `yaml:"rna_pca"`
	ADTPCA               *PCAOverride          `yaml:"adt_pca"`
	CRISPRPCA            *PCAOverride          `yaml:"crispr_pca"`
	CombineEmbeddings    *CombineEmbeddingsParams `yaml:"combine_embeddings"`
	BatchCorrection      *BatchCorrectionOverride `yaml:"batch_correction"`
	ChooseClustering     *ChooseClusteringParams  `yaml:"choose_clustering"`
}

// RNAQCOverride mirrors RNAQualityControlParams with pointer numerics so a
// bundle can leave Nmads unset while still naming MitoPrefix, etc.
type RNAQCOverride struct {
	UseMitoDefault *bool    `yaml:"use_mito_default"`
	MitoPrefix     *string  `yaml:"mito_prefix"`
	Nmads          *float64 `yaml:"nmads"`
}

type ADTQCOverride struct {
	IggPrefix       *string  `yaml:"igg_prefix"`
	Nmads           *float64 `yaml:"nmads"`
	MinDetectedDrop *float64 `yaml:"min_detected_drop"`
}

type CRISPRQCOverride struct {
	Nmads *float64 `yaml:"nmads"`
}

type PCAOverride struct {
	NumHVGs     *int    `yaml:"num_hvgs"`
	NumPCs      *int    `yaml:"num_pcs"`
	BlockMethod *string `yaml:"block_method"`
}

type BatchCorrectionOverride struct {
	Method       *string `yaml:"method"`
	NumNeighbors *int    `yaml:"num_neighbors"`
	Approximate  *bool   `yaml:"approximate"`
}

// LoadPipelineBundle reads and strictly parses a YAML parameter bundle.
// Unrecognized keys (typos) are rejected, matching the teacher's
// LoadPolicyBundle decoding discipline.
func LoadPipelineBundle(path string) (*PipelineBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading parameter bundle: %w", err)
	}
	var bundle PipelineBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("pipeline: parsing parameter bundle: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ApplyTo overlays this bundle's set fields onto base, returning the
// merged EngineParams. base is typically engine.DefaultParams() or a
// restored container's decoded parameters.
func (b *PipelineBundle) ApplyTo(base EngineParams) EngineParams {
	out := base
	if b == nil {
		return out
	}
	if o := b.RNAQualityControl; o != nil {
		if o.UseMitoDefault != nil {
			out.RNAQC.UseMitoDefault = *o.UseMitoDefault
		}
		if o.MitoPrefix != nil {
			out.RNAQC.MitoPrefix = *o.MitoPrefix
		}
		if o.Nmads != nil {
			out.RNAQC.Nmads = *o.Nmads
		}
	}
	if o := b.ADTQualityControl; o != nil {
		if o.IggPrefix != nil {
			out.ADTQC.IggPrefix = *o.IggPrefix
		}
		if o.Nmads != nil {
			out.ADTQC.Nmads = *o.Nmads
		}
		if o.MinDetectedDrop != nil {
			out.ADTQC.MinDetectedDrop = *o.MinDetectedDrop
		}
	}
	if o := b.CRISPRQualityControl; o != nil && o.Nmads != nil {
		out.CRISPRQC.Nmads = *o.Nmads
	}
	if b.CellFiltering != nil {
		out.CellFiltering = *b.CellFiltering
	}
	applyPCA(&out.RNAPCA, b.RNAPCA)
	applyPCA(&out.ADTPCA, b.ADTPCA)
	applyPCA(&out.CRISPRPCA, b.CRISPRPCA)
	if b.CombineEmbeddings != nil {
		out.CombineEmbeddings = *b.CombineEmbeddings
	}
	if o := b.BatchCorrection; o != nil {
		if o.Method != nil {
			out.BatchCorrection.Method = *o.Method
		}
		if o.NumNeighbors != nil {
			out.BatchCorrection.NumNeighbors = *o.NumNeighbors
		}
		if o.Approximate != nil {
			out.BatchCorrection.Approximate = *o.Approximate
		}
	}
	if b.ChooseClustering != nil {
		out.ChooseClustering = *b.ChooseClustering
	}
	return out
}

func applyPCA(dst *PCAParams, o *PCAOverride) {
	if o == nil {
		return
	}
	if o.NumHVGs != nil {
		dst.NumHVGs = *o.NumHVGs
	}
	if o.NumPCs != nil {
		dst.NumPCs = *o.NumPCs
	}
	if o.BlockMethod != nil {
		dst.BlockMethod = *o.BlockMethod
	}
}

// Valid *_method / *_scheme name registries, used by Validate and by
// IsValidX/ValidXNames helpers callers (cmd, tests) use to build friendly
// error and help messages.
var (
	validBlockMethods      = map[string]bool{"none": true, "regress": true, "project": true}
	validCorrectionMethods = map[string]bool{"none": true, "mnn": true}
	validSNNSchemes        = map[string]bool{"rank": true, "number": true, "jaccard": true}
	validClusteringMethods = map[string]bool{"kmeans": true, "snn_graph": true}
)

func IsValidBlockMethod(name string) bool      { return validBlockMethods[name] }
func IsValidCorrectionMethod(name string) bool { return validCorrectionMethods[name] }
func IsValidSNNScheme(name string) bool        { return validSNNSchemes[name] }
func IsValidClusteringMethod(name string) bool { return validClusteringMethods[name] }

func ValidBlockMethodNames() []string      { return validNamesList(validBlockMethods) }
func ValidCorrectionMethodNames() []string { return validNamesList(validCorrectionMethods) }
func ValidSNNSchemeNames() []string        { return validNamesList(validSNNSchemes) }
func ValidClusteringMethodNames() []string { return validNamesList(validClusteringMethods) }

func validNamesList(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func validNames(m map[string]bool) string {
	return strings.Join(validNamesList(m), ", ")
}

// Validate checks enum fields and parameter ranges named in this bundle,
// surfacing ErrInvalidParameter on any violation so LoadPipelineBundle can
// fail fast instead of letting an invalid value reach a step's Compute.
func (b *PipelineBundle) Validate() error {
	if o := b.RNAPCA; o != nil {
		if err := validateBlockMethodOverride(o); err != nil {
			return err
		}
	}
	if o := b.ADTPCA; o != nil {
		if err := validateBlockMethodOverride(o); err != nil {
			return err
		}
	}
	if o := b.CRISPRPCA; o != nil {
		if err := validateBlockMethodOverride(o); err != nil {
			return err
		}
	}
	if o := b.BatchCorrection; o != nil && o.Method != nil {
		method := TranslateBlockMethod(*o.Method) // no-op for correction methods, but keeps aliasing logic in one place
		if !validCorrectionMethods[*o.Method] && !validCorrectionMethods[method] {
			return fmt.Errorf("batch_correction.method %q invalid; valid options: %s: %w", *o.Method, validNames(validCorrectionMethods), ErrInvalidParameter)
		}
	}
	if b.ChooseClustering != nil {
		if !validClusteringMethods[b.ChooseClustering.Method] {
			return fmt.Errorf("choose_clustering.method %q invalid; valid options: %s: %w", b.ChooseClustering.Method, validNames(validClusteringMethods), ErrInvalidParameter)
		}
	}
	if o := b.RNAQualityControl; o != nil {
		if err := validateFiniteNonNegative("rna_quality_control.nmads", o.Nmads); err != nil {
			return err
		}
	}
	if o := b.ADTQualityControl; o != nil {
		if err := validateFiniteNonNegative("adt_quality_control.nmads", o.Nmads); err != nil {
			return err
		}
		if err := validateFiniteNonNegative("adt_quality_control.min_detected_drop", o.MinDetectedDrop); err != nil {
			return err
		}
	}
	if o := b.CRISPRQualityControl; o != nil {
		if err := validateFiniteNonNegative("crispr_quality_control.nmads", o.Nmads); err != nil {
			return err
		}
	}
	return nil
}

func validateBlockMethodOverride(o *PCAOverride) error {
	if o.BlockMethod == nil {
		return nil
	}
	translated := TranslateBlockMethod(*o.BlockMethod)
	if !validBlockMethods[translated] {
		return fmt.Errorf("block_method %q invalid; valid options: %s: %w", *o.BlockMethod, validNames(validBlockMethods), ErrInvalidParameter)
	}
	return nil
}

func validateFiniteNonNegative(name string, val *float64) error {
	if val == nil {
		return nil
	}
	if math.IsNaN(*val) || math.IsInf(*val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f: %w", name, *val, ErrInvalidParameter)
	}
	if *val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f: %w", name, *val, ErrInvalidParameter)
	}
	return nil
}

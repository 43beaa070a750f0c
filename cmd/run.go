// cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scpipe/scpipe/datasets"
	_ "github.com/scpipe/scpipe/kernels/embed"
	_ "github.com/scpipe/scpipe/kernels/graph"
	_ "github.com/scpipe/scpipe/kernels/numeric"
	"github.com/scpipe/scpipe/pipeline"
	"github.com/scpipe/scpipe/reference"
	"github.com/scpipe/scpipe/store"
)

var (
	runDatasets   []string
	runParamsPath string
	runStatePath  string
	runOutPath    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the incremental analysis pipeline over one or more datasets",
	Long:  "Load one or more dataset manifests, restore prior state if given, run the pipeline, and write the resulting state to --out.",
	Run: func(cmd *cobra.Command, args []string) {
		descriptors, err := parseDatasetFlags(runDatasets)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		engine := pipeline.NewEngine(datasets.NewManifestLoader(), emptyReferenceLoader(), nil)
		params := engine.DefaultParams()

		if runStatePath != "" {
			data, err := os.ReadFile(runStatePath)
			if err != nil {
				logrus.Fatalf("reading state file: %v", err)
			}
			container, err := store.Unmarshal(data)
			if err != nil {
				logrus.Fatalf("parsing state file: %v", err)
			}
			// Load inputs first so RestoreEngine can validate the restored
			// cell count against them before staging parameters and
			// setting the _loaded tripwire (spec.md §5's ordering
			// guarantee for restored state).
			if err := engine.Inputs().Compute(context.Background(), descriptors, params.Inputs); err != nil {
				logrus.Fatalf("loading inputs: %v", err)
			}
			if params, err = store.RestoreEngine(engine, container); err != nil {
				logrus.Fatalf("restoring state: %v", err)
			}
		}

		if runParamsPath != "" {
			bundle, err := pipeline.LoadPipelineBundle(runParamsPath)
			if err != nil {
				logrus.Fatalf("loading parameter bundle: %v", err)
			}
			params = bundle.ApplyTo(params)
		}

		if err := engine.RunAnalysis(context.Background(), descriptors, params); err != nil {
			logrus.Fatalf("run_analysis failed: %v", err)
		}

		for _, step := range engine.Steps() {
			logrus.Infof("%s: changed=%v", step.Name(), step.Changed())
		}

		container, err := store.SaveEngine(engine)
		if err != nil {
			logrus.Fatalf("saving state: %v", err)
		}
		out, err := store.Marshal(container)
		if err != nil {
			logrus.Fatalf("marshaling state: %v", err)
		}
		if runOutPath == "" {
			fmt.Print(string(out))
			return
		}
		if err := os.WriteFile(runOutPath, out, 0o644); err != nil {
			logrus.Fatalf("writing state file: %v", err)
		}
	},
}

// parseDatasetFlags turns repeated --dataset key=path flags into
// datasets.Descriptor values, the only dataset-selection surface the CLI
// exposes; a production deployment would resolve descriptors from a
// catalogue instead of the command line.
func parseDatasetFlags(flags []string) ([]datasets.Descriptor, error) {
	if len(flags) == 0 {
		return nil, fmt.Errorf("at least one --dataset key=path flag is required")
	}
	out := make([]datasets.Descriptor, len(flags))
	for i, f := range flags {
		key, path, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("--dataset %q must be in key=path form", f)
		}
		out[i] = datasets.Descriptor{Key: key, Source: path}
	}
	return out, nil
}

// emptyReferenceLoader builds a reference.Loader over an empty catalogue, so
// CellLabelling/FeatureSetEnrichment remain constructible (and a no-op)
// when the operator has not configured a reference downloader; any run that
// actually requests references needs NewReferenceLoader instead.
func emptyReferenceLoader() *reference.Loader {
	return reference.NewLoader(reference.NewCatalogue(nil, nil), reference.DownloaderFunc(func(_ context.Context, url string) ([]byte, error) {
		return nil, fmt.Errorf("scpipe: no downloader configured for %q", url)
	}))
}

func init() {
	runCmd.Flags().StringArrayVar(&runDatasets, "dataset", nil, "Dataset descriptor as key=path (can be repeated)")
	runCmd.Flags().StringVar(&runParamsPath, "params", "", "Path to a PipelineBundle YAML file of parameter overrides")
	runCmd.Flags().StringVar(&runStatePath, "state", "", "Path to a previously saved state file to restore before running")
	runCmd.Flags().StringVar(&runOutPath, "out", "", "Path to write the resulting state file (stdout if omitted)")
	_ = runCmd.MarkFlagRequired("dataset")

	rootCmd.AddCommand(runCmd)
}

// cmd/convert.go
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scpipe/scpipe/store"
)

var (
	convertInPath  string
	convertOutPath string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Upgrade a state file written against legacy key names to the current layout",
	Long: "Reads a state file that may carry legacy parameter/result keys (pca's " +
		"weight/block flags, a marker step's flat clusters results, cell_filtering's " +
		"identity key) and rewrites it with the current names, per spec.md §6's " +
		"backward-compatible-read requirement. Output is written to stdout if --out is omitted.",
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(convertInPath)
		if err != nil {
			logrus.Fatalf("reading state file: %v", err)
		}
		// Unmarshal already normalizes legacy keys (store/legacy.go); this
		// command's only job is to persist that normalization back out.
		container, err := store.Unmarshal(data)
		if err != nil {
			logrus.Fatalf("parsing state file: %v", err)
		}
		out, err := store.Marshal(container)
		if err != nil {
			logrus.Fatalf("marshaling state file: %v", err)
		}
		if convertOutPath == "" {
			os.Stdout.Write(out)
			return
		}
		if err := os.WriteFile(convertOutPath, out, 0o644); err != nil {
			logrus.Fatalf("writing state file: %v", err)
		}
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertInPath, "in", "", "Path to a legacy-layout state file")
	convertCmd.Flags().StringVar(&convertOutPath, "out", "", "Path to write the converted state file (stdout if omitted)")
	_ = convertCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(convertCmd)
}

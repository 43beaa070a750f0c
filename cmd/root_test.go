package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_DefaultLogLevel_IsWarn(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("log")
	assert.NotNil(t, flag, "log flag must be registered")
	assert.Equal(t, "warn", flag.DefValue, "default log level must be 'warn'")
}

func TestRunCmd_RegistersDatasetAndOutputFlags(t *testing.T) {
	assert.NotNil(t, runCmd.Flags().Lookup("dataset"), "run must register --dataset")
	assert.NotNil(t, runCmd.Flags().Lookup("params"), "run must register --params")
	assert.NotNil(t, runCmd.Flags().Lookup("state"), "run must register --state")
	assert.NotNil(t, runCmd.Flags().Lookup("out"), "run must register --out")
}

func TestInspectCmd_RegistersStateFlag(t *testing.T) {
	assert.NotNil(t, inspectCmd.Flags().Lookup("state"), "inspect must register --state")
}

func TestConvertCmd_RegistersInOutFlags(t *testing.T) {
	assert.NotNil(t, convertCmd.Flags().Lookup("in"), "convert must register --in")
	assert.NotNil(t, convertCmd.Flags().Lookup("out"), "convert must register --out")
}

func TestParseDatasetFlags_RejectsMissingEquals(t *testing.T) {
	_, err := parseDatasetFlags([]string{"no-equals-sign"})
	assert.Error(t, err)
}

func TestParseDatasetFlags_RejectsEmpty(t *testing.T) {
	_, err := parseDatasetFlags(nil)
	assert.Error(t, err)
}

func TestParseDatasetFlags_SplitsKeyAndPath(t *testing.T) {
	descriptors, err := parseDatasetFlags([]string{"d1=/tmp/d1.yaml", "d2=/tmp/d2.yaml"})
	assert.NoError(t, err)
	assert.Len(t, descriptors, 2)
	assert.Equal(t, "d1", descriptors[0].Key)
	assert.Equal(t, "/tmp/d1.yaml", descriptors[0].Source)
	assert.Equal(t, "d2", descriptors[1].Key)
	assert.Equal(t, "/tmp/d2.yaml", descriptors[1].Source)
}

func TestEmptyReferenceLoader_HasNoCatalogueEntries(t *testing.T) {
	loader := emptyReferenceLoader()
	assert.Empty(t, loader.Catalogue().Species())
}

package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := parseOptions(flag.NewFlagSet("inspect", flag.ContinueOnError), nil)
	require.NoError(t, err)
	assert.Equal(t, "mnist", opts.Dataset)
	assert.Equal(t, 64, opts.BatchSize)
	assert.Equal(t, 35, opts.BPTT)
	assert.False(t, opts.Fit)
}

func TestConfigFileYieldsToExplicitFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataset: corpus
batch_size: 20
bptt: 10
seed: 3
training:
  enabled: true
  epochs: 7
  learning_rate: 0.2
`), 0o644))

	opts, err := parseOptions(flag.NewFlagSet("inspect", flag.ContinueOnError),
		[]string{"-config", path, "-batch-size", "8", "-epochs", "2"})
	require.NoError(t, err)
	assert.Equal(t, "corpus", opts.Dataset)
	assert.Equal(t, 8, opts.BatchSize)
	assert.Equal(t, 10, opts.BPTT)
	assert.Equal(t, int64(3), opts.Seed)
	assert.True(t, opts.Fit)
	assert.Equal(t, 2, opts.Epochs)
	assert.Equal(t, 0.2, opts.LearningRate)
}

func TestConfigFileErrors(t *testing.T) {
	_, err := parseOptions(flag.NewFlagSet("inspect", flag.ContinueOnError),
		[]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: [1, 2"), 0o644))
	_, err = parseOptions(flag.NewFlagSet("inspect", flag.ContinueOnError), []string{"-config", path})
	assert.Error(t, err)
}

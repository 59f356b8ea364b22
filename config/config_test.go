package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_PassesValidate(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Storage.Path, cfg.Storage.Path)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
storage:
  path: custom.db
search:
  fuzzy_algorithm: levenshtein
  max_results: 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".arbor.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Storage.Path)
	assert.Equal(t, "levenshtein", cfg.Search.FuzzyAlgorithm)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	// Untouched fields keep their defaults.
	assert.Equal(t, NewConfig().Indexer.ChunkSize, cfg.Indexer.ChunkSize)
}

func TestValidate_RejectsBadChunkOverlap(t *testing.T) {
	cfg := NewConfig()
	cfg.Indexer.ChunkOverlap = cfg.Indexer.ChunkSize
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownFuzzyAlgorithm(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.FuzzyAlgorithm = "soundex"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangePrefix(t *testing.T) {
	cfg := NewConfig()
	cfg.Indexer.FTS.Prefix = []int{5}
	assert.Error(t, cfg.Validate())
}

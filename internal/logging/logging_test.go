package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		IndexName:     "books",
		Level:         "info",
		FilePath:      filepath.Join(dir, "books.log"),
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("index opened")

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "index opened")
	assert.Contains(t, string(data), "books")
}

func TestDefaultConfig_DerivesPerIndexPath(t *testing.T) {
	cfg := DefaultConfig("books")
	assert.Equal(t, "info", cfg.Level)
	assert.Contains(t, cfg.FilePath, "books.log")
}

func TestDebugConfig_OverridesLevel(t *testing.T) {
	cfg := DebugConfig("books")
	assert.Equal(t, "debug", cfg.Level)
}

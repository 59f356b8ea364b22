package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.arbor/logs, falling back to the OS temp
// directory when the home directory can't be resolved (e.g. a minimal
// container image with no HOME set).
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".arbor", "logs")
	}
	return filepath.Join(home, ".arbor", "logs")
}

// DefaultLogPath returns the default log file path for indexName, so an
// embedder running several named indices gets one rotating file per index
// instead of a single shared log. An empty indexName logs to "arbor.log".
func DefaultLogPath(indexName string) string {
	if indexName == "" {
		indexName = "arbor"
	}
	return filepath.Join(DefaultLogDir(), indexName+".log")
}

// EnsureLogDir creates the log directory if it doesn't already exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}

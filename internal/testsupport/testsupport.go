package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vinobench/internal/config"
)

// NewConfig returns a configuration rooted entirely under dir, so tests
// never touch the user's cache or home directory.
func NewConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(dir, "cache")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.ReportDir = filepath.Join(dir, "reports")
	cfg.MetadataCache.Path = filepath.Join(dir, "cache", "metadata_cache.json")
	return &cfg
}

// WriteConfig persists cfg as a TOML file under dir and returns its path,
// for commands that take --config.
func WriteConfig(t *testing.T, dir string, cfg *config.Config) string {
	t.Helper()
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(dir, "vinobench.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

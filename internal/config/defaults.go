package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default returns a configuration populated with default values.
func Default() Config {
	cacheDir := defaultCacheDir()
	return Config{
		Paths: Paths{
			CacheDir:  cacheDir,
			LogDir:    "~/.local/share/vinobench/logs",
			ReportDir: "~/.local/share/vinobench/reports",
		},
		Catalog: Catalog{
			BaseURL:        "https://api.testing.vivino.com",
			TimeoutSeconds: 5,
		},
		Scan: Scan{
			Env:            "testing",
			TimeoutSeconds: 10,
			FetchRetries:   100,
			FetchDelayMS:   500,
			Workers:        5,
			InjectOCR:      false,
			PreCrop:        false,
		},
		Compare: Compare{
			Workers: 4,
			Strict:  false,
		},
		MetadataCache: MetadataCache{
			Enabled: true,
			Path:    filepath.Join(cacheDir, "metadata_cache.json"),
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "vinobench")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/vinobench"
	}
	return filepath.Join(home, ".cache", "vinobench")
}

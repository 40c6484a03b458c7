package config

import (
	"path/filepath"
	"strings"
)

// normalize expands paths and fills derived defaults after decoding.
func (c *Config) normalize() error {
	var err error
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return err
	}

	if strings.TrimSpace(c.MetadataCache.Path) == "" {
		c.MetadataCache.Path = filepath.Join(c.Paths.CacheDir, "metadata_cache.json")
	}
	if c.MetadataCache.Path, err = expandPath(c.MetadataCache.Path); err != nil {
		return err
	}

	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	c.Scan.Env = strings.ToLower(strings.TrimSpace(c.Scan.Env))
	c.Scan.BaseURL = strings.TrimRight(strings.TrimSpace(c.Scan.BaseURL), "/")
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = 5
	}
	if c.Scan.TimeoutSeconds <= 0 {
		c.Scan.TimeoutSeconds = 10
	}
	if c.Scan.FetchRetries <= 0 {
		c.Scan.FetchRetries = 100
	}
	if c.Scan.FetchDelayMS <= 0 {
		c.Scan.FetchDelayMS = 500
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = 5
	}
	if c.Compare.Workers <= 0 {
		c.Compare.Workers = 4
	}
	return nil
}

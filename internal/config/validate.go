package config

import (
	"fmt"
	"strings"
)

var validScanEnvs = map[string]bool{
	"testing": true,
	"stable":  true,
	"prod":    true,
}

var scanBaseURLs = map[string]string{
	"testing": "https://api.testing.vivino.com",
	"stable":  "https://api.stable.vivino.com",
	"prod":    "https://api.vivino.com",
}

// ScanBaseURL returns the scan API endpoint: the explicit override when
// set, otherwise the well-known URL for the configured environment.
func (c *Config) ScanBaseURL() string {
	if c.Scan.BaseURL != "" {
		return c.Scan.BaseURL
	}
	return scanBaseURLs[c.Scan.Env]
}

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return fmt.Errorf("config: paths.cache_dir must not be empty")
	}
	if !validScanEnvs[c.Scan.Env] {
		return fmt.Errorf("config: scan.env must be one of testing, stable, prod (got %q)", c.Scan.Env)
	}
	if c.Scan.BaseURL != "" && !strings.HasPrefix(c.Scan.BaseURL, "http://") && !strings.HasPrefix(c.Scan.BaseURL, "https://") {
		return fmt.Errorf("config: scan.base_url must be an http(s) URL (got %q)", c.Scan.BaseURL)
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("config: catalog.base_url must not be empty")
	}
	if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		return fmt.Errorf("config: catalog.base_url must be an http(s) URL (got %q)", c.Catalog.BaseURL)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}

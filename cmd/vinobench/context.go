package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"vinobench/internal/catalog"
	"vinobench/internal/config"
	"vinobench/internal/logging"
	"vinobench/internal/metacache"
	"vinobench/internal/results"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// openCache opens the metadata cache unless disabled; a disabled cache is
// an in-memory one, so callers never branch on nil.
func (c *commandContext) openCache(logger *slog.Logger) (*metacache.Cache, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.MetadataCache.Path
	if !cfg.MetadataCache.Enabled {
		path = ""
	}
	return metacache.New(path, logger), nil
}

func (c *commandContext) openStore(ctx context.Context) (*results.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return results.Open(ctx, cfg.RunDBPath())
}

func (c *commandContext) catalogClient() (*catalog.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second}
	return catalog.NewClient(cfg.Catalog.BaseURL, catalog.WithHTTPClient(httpClient)), nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

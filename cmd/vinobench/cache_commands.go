package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vinobench/internal/metacache"
)

func newCacheCommand(cmdCtx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the wine metadata cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(cmdCtx))
	cacheCmd.AddCommand(newCacheStatsCommand(cmdCtx))
	cacheCmd.AddCommand(newCacheRemoveCommand(cmdCtx))
	cacheCmd.AddCommand(newCacheClearCommand(cmdCtx))

	return cacheCmd
}

func (c *commandContext) withCache(fn func(*metacache.Cache) error) error {
	logger, err := c.newLogger()
	if err != nil {
		return err
	}
	cache, err := c.openCache(logger)
	if err != nil {
		return err
	}
	if err := fn(cache); err != nil {
		return err
	}
	return cache.Flush()
}

func newCacheListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached wine and vintage records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withCache(func(cache *metacache.Cache) error {
				entries := cache.List()
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.Key.String(),
						entry.Record.WineName,
						entry.Record.WineryName,
						entry.Record.Region,
						entry.Record.Year,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Key", "Wine", "Winery", "Region", "Year"},
					rows, nil))
				return nil
			})
		},
	}
}

func newCacheStatsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and location",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			return cmdCtx.withCache(func(cache *metacache.Cache) error {
				var wines, vintages int
				for _, entry := range cache.List() {
					switch entry.Key.Kind {
					case metacache.KindWine:
						wines++
					case metacache.KindVintage:
						vintages++
					}
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Path:     %s\n", cfg.MetadataCache.Path)
				fmt.Fprintf(out, "Enabled:  %s\n", yesNo(cfg.MetadataCache.Enabled))
				fmt.Fprintf(out, "Entries:  %d (%d wines, %d vintages)\n", cache.Len(), wines, vintages)
				return nil
			})
		},
	}
}

func newCacheRemoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <kind:id>",
		Short: "Remove one cached record, e.g. vintage:166888",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := metacache.ParseKey(args[0])
			if err != nil {
				return err
			}
			return cmdCtx.withCache(func(cache *metacache.Cache) error {
				if err := cache.Remove(key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", key.String())
				return nil
			})
		},
	}
}

func newCacheClearCommand(cmdCtx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("pass --yes to confirm clearing the cache")
			}
			return cmdCtx.withCache(func(cache *metacache.Cache) error {
				count := cache.Len()
				cache.Clear()
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the clear")
	return cmd
}

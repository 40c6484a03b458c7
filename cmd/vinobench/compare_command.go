package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vinobench/internal/compare"
	"vinobench/internal/metacache"
	"vinobench/internal/report"
	"vinobench/internal/results"
)

// matchURLBase prefixes vintage ids in report match links.
const matchURLBase = "https://www.vivino.com/vintages/"

func newCompareCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		outputFlag  string
		noCacheFlag bool
		strictFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "compare <left> <right>",
		Short: "Compare two scan runs image by image",
		Long: `Compare aligns the outcomes of two scan runs by image, enriches matched
ids with wine metadata, and classifies every pair. Each side is either a
results CSV file or "run:LABEL" referring to a stored run (the most
recent run with that label).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				cfg.Compare.Strict = strictFlag
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, err := cmdCtx.newLogger()
			if err != nil {
				return err
			}

			left, err := loadCompareInput(ctx, cmdCtx, args[0])
			if err != nil {
				return fmt.Errorf("left input: %w", err)
			}
			right, err := loadCompareInput(ctx, cmdCtx, args[1])
			if err != nil {
				return fmt.Errorf("right input: %w", err)
			}

			var cache *metacache.Cache
			if noCacheFlag {
				cache = metacache.New("", logger)
			} else {
				cache, err = cmdCtx.openCache(logger)
				if err != nil {
					return err
				}
			}
			lookup, err := cmdCtx.catalogClient()
			if err != nil {
				return err
			}
			enricher := compare.NewEnricher(cache, lookup, cfg.Compare.Workers, logger)

			result, err := compare.Run(ctx,
				results.ToScanOutcomes(left.rows),
				results.ToScanOutcomes(right.rows),
				enricher, cfg.Compare.Strict, logger)
			if err != nil {
				return err
			}

			if !noCacheFlag {
				if err := cache.Flush(); err != nil {
					return fmt.Errorf("persist metadata cache: %w", err)
				}
			}

			output := outputFlag
			if output == "" {
				output = filepath.Join(cfg.Paths.ReportDir,
					fmt.Sprintf("compare_%s_vs_%s_%s.csv", left.label, right.label, time.Now().Format("20060102_150405")))
			}
			opts := report.Options{
				LeftLabel:    left.label,
				RightLabel:   right.label,
				MatchURLBase: matchURLBase,
			}
			if err := report.WriteCSVFile(output, result, opts); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Compared %d images (%s vs %s)\n", len(result.Pairs), left.label, right.label)
			if len(result.InputErrors) > 0 {
				fmt.Fprintf(out, "Skipped %d malformed records\n", len(result.InputErrors))
			}
			fmt.Fprintln(out, renderCategorySummary(result))
			fmt.Fprintf(out, "Report: %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Report CSV output path")
	cmd.Flags().BoolVar(&noCacheFlag, "no-cache", false, "Skip the metadata cache for this comparison")
	cmd.Flags().BoolVar(&strictFlag, "strict", false, "Abort on malformed input instead of skipping records")
	return cmd
}

type compareInput struct {
	label string
	rows  []results.Row
}

// loadCompareInput resolves one comparison side: "run:LABEL" loads the
// stored run, anything else is read as a results CSV file.
func loadCompareInput(ctx context.Context, cmdCtx *commandContext, arg string) (compareInput, error) {
	if ref, ok := strings.CutPrefix(arg, "run:"); ok {
		store, err := cmdCtx.openStore(ctx)
		if err != nil {
			return compareInput{}, err
		}
		defer store.Close()

		run, err := store.FindRun(ctx, ref)
		if err != nil {
			return compareInput{}, err
		}
		rows, err := store.RunOutcomes(ctx, run.ID)
		if err != nil {
			return compareInput{}, err
		}
		return compareInput{label: run.Label, rows: rows}, nil
	}

	rows, err := results.ReadCSVFile(arg)
	if err != nil {
		return compareInput{}, err
	}
	label := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
	return compareInput{label: label, rows: rows}, nil
}

func renderCategorySummary(result *compare.Result) string {
	summaries := report.Summarize(result)
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			string(s.Category),
			strconv.Itoa(s.Count),
			report.FormatPercent(s.Percent),
		})
	}
	return renderTable(
		[]string{"Category", "Count", "Share"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	)
}

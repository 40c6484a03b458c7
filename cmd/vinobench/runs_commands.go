package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vinobench/internal/report"
	"vinobench/internal/results"
)

func newRunsCommand(cmdCtx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored scan runs",
	}

	runsCmd.AddCommand(newRunsListCommand(cmdCtx))
	runsCmd.AddCommand(newRunsShowCommand(cmdCtx))
	runsCmd.AddCommand(newRunsExportCommand(cmdCtx))
	runsCmd.AddCommand(newRunsDeleteCommand(cmdCtx))

	return runsCmd
}

func (c *commandContext) withStore(cmd *cobra.Command, fn func(*results.Store) error) error {
	store, err := c.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newRunsListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd, func(store *results.Store) error {
				runs, err := store.ListRuns(cmd.Context())
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored runs")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					finished := "running"
					if !run.FinishedAt.IsZero() {
						finished = run.FinishedAt.Local().Format(time.RFC3339)
					}
					rows = append(rows, []string{
						run.Label,
						run.ID,
						run.Env,
						run.StartedAt.Local().Format(time.RFC3339),
						finished,
						strconv.Itoa(run.ImageCount),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Label", "ID", "Env", "Started", "Finished", "Images"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newRunsShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|label>",
		Short: "Show the per-image outcomes of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd, func(store *results.Store) error {
				run, err := store.FindRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows, err := store.RunOutcomes(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s, env %s, %d images)\n", report.TitleLabel(run.Label), run.ID, run.Env, run.ImageCount)
				tableRows := make([][]string, 0, len(rows))
				for _, row := range rows {
					tableRows = append(tableRows, []string{
						row.ImageID,
						row.MatchStatus,
						row.VintageID,
						row.Confidence,
						row.ExpectedVintageID,
						strconv.FormatInt(row.TotalDurationMS, 10),
						row.Error,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Image", "Status", "Vintage", "Confidence", "Expected", "Total ms", "Error"},
					tableRows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}))
				return nil
			})
		},
	}
}

func newRunsExportCommand(cmdCtx *commandContext) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "export <id|label>",
		Short: "Export a stored run as a results CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd, func(store *results.Store) error {
				run, err := store.FindRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows, err := store.RunOutcomes(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				output := outputFlag
				if output == "" {
					output = fmt.Sprintf("results_%s_%s.csv", run.Label, run.StartedAt.Format("20060102_150405"))
				}
				if err := results.WriteCSVFile(output, rows, run.Label); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", len(rows), output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "CSV output path")
	return cmd
}

func newRunsDeleteCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|label>",
		Short: "Delete a stored run and its outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(cmd, func(store *results.Store) error {
				run, err := store.FindRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := store.DeleteRun(cmd.Context(), run.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s (%s)\n", run.Label, run.ID)
				return nil
			})
		},
	}
}

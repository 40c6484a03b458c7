package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vinobench/internal/corpus"
	"vinobench/internal/groundtruth"
	"vinobench/internal/logging"
	"vinobench/internal/results"
	"vinobench/internal/scanapi"
)

func newScanCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		dirFlag       string
		indexURLFlag  string
		watchFlag     bool
		labelFlag     string
		truthFlag     string
		outputFlag    string
		emailFlag     string
		passwordFlag  string
		injectOCRFlag bool
		preCropFlag   bool
		integrityFlag bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan an image corpus against the configured backend",
		Long: `Scan uploads every image in a corpus to the label scanning API, waits
for each result, and records the outcomes both as a CSV file and as a
named run in the local run database. Two runs with different labels are
the inputs of the compare command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if labelFlag == "" {
				return errors.New("--label is required")
			}
			if (dirFlag == "") == (indexURLFlag == "") {
				return errors.New("exactly one of --dir or --index-url is required")
			}
			if watchFlag && dirFlag == "" {
				return errors.New("--watch requires --dir")
			}

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("inject-ocr") {
				cfg.Scan.InjectOCR = injectOCRFlag
			}
			if cmd.Flags().Changed("pre-crop") {
				cfg.Scan.PreCrop = preCropFlag
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			startedAt := time.Now()
			logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("scan_%s_%s.log", labelFlag, startedAt.Format("20060102_150405")))
			logger, closeLog, err := logging.NewFileLogger(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			}, logPath)
			if err != nil {
				return err
			}
			defer closeLog()

			var labels *groundtruth.Set
			if truthFlag != "" {
				labels, err = groundtruth.LoadJSONL(truthFlag)
				if err != nil {
					return fmt.Errorf("load ground truth: %w", err)
				}
			}

			creds, err := resolveCredentials(emailFlag, passwordFlag, cfg.Scan.ClientID, cfg.Scan.ClientSecret)
			if err != nil {
				return err
			}
			httpClient := &http.Client{Timeout: time.Duration(cfg.Scan.TimeoutSeconds) * time.Second}
			client := scanapi.NewClient(cfg.ScanBaseURL(), scanapi.WithHTTPClient(httpClient))
			if err := client.Authenticate(ctx, creds); err != nil {
				return err
			}

			runner := scanapi.NewRunner(client, labels, scanapi.RunnerOptions{
				Workers:        cfg.Scan.Workers,
				FetchRetries:   cfg.Scan.FetchRetries,
				FetchDelay:     time.Duration(cfg.Scan.FetchDelayMS) * time.Millisecond,
				InjectOCR:      cfg.Scan.InjectOCR,
				PreCrop:        cfg.Scan.PreCrop,
				CheckIntegrity: integrityFlag,
			}, logger)

			store, err := cmdCtx.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			run, err := store.CreateRun(ctx, labelFlag, cfg.Scan.Env)
			if err != nil {
				return err
			}

			var rows []results.Row
			if watchFlag {
				rows, err = scanWatched(ctx, cmd, runner, store, run, dirFlag, logger)
			} else {
				rows, err = scanOnce(ctx, cmdCtx, runner, store, run, dirFlag, indexURLFlag)
			}
			if err != nil {
				return err
			}
			// Finalize even when the watch loop ended on Ctrl-C.
			if err := store.FinishRun(context.WithoutCancel(ctx), run.ID, len(rows)); err != nil {
				return err
			}

			output := outputFlag
			if output == "" {
				output = filepath.Join(cfg.Paths.ReportDir, fmt.Sprintf("results_%s_%s.csv", labelFlag, startedAt.Format("20060102_150405")))
			}
			if err := results.WriteCSVFile(output, rows, labelFlag); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s) scanned %d images in %s\n", labelFlag, run.ID, len(rows), time.Since(startedAt).Round(time.Millisecond))
			fmt.Fprintf(out, "Results: %s\n", output)
			fmt.Fprintln(out, renderScanSummary(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&dirFlag, "dir", "", "Local image directory to scan")
	cmd.Flags().StringVar(&indexURLFlag, "index-url", "", "HTML directory index listing remote images")
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Keep running and scan images dropped into --dir")
	cmd.Flags().StringVarP(&labelFlag, "label", "l", "", "Run label, e.g. the backend under test")
	cmd.Flags().StringVar(&truthFlag, "groundtruth", "", "Ground-truth JSONL file")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "CSV output path")
	cmd.Flags().StringVar(&emailFlag, "email", "", "API account email (or VINOBENCH_EMAIL)")
	cmd.Flags().StringVar(&passwordFlag, "password", "", "API account password (or VINOBENCH_PASSWORD)")
	cmd.Flags().BoolVar(&injectOCRFlag, "inject-ocr", false, "Send ground-truth OCR text with each upload")
	cmd.Flags().BoolVar(&preCropFlag, "pre-crop", false, "Crop images locally before upload instead of forwarding crop parameters")
	cmd.Flags().BoolVar(&integrityFlag, "check-integrity", false, "Cross-reference each scan's label and user vintage records")
	return cmd
}

func scanOnce(ctx context.Context, cmdCtx *commandContext, runner *scanapi.Runner, store *results.Store, run results.Run, dir, indexURL string) ([]results.Row, error) {
	var (
		images []corpus.Image
		err    error
	)
	if dir != "" {
		images, err = corpus.FromDir(dir)
	} else {
		images, err = corpus.FromIndexURL(ctx, nil, indexURL)
	}
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, errors.New("no images found in the corpus")
	}

	rows, err := runner.ProcessAll(ctx, images)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := store.AppendOutcome(ctx, run.ID, i, row); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func scanWatched(ctx context.Context, cmd *cobra.Command, runner *scanapi.Runner, store *results.Store, run results.Run, dir string, logger *slog.Logger) ([]results.Row, error) {
	images, err := corpus.Watch(ctx, dir, logger)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for new images (Ctrl-C to stop)\n", dir)
	var rows []results.Row
	for img := range images {
		row := runner.ProcessOne(ctx, img)
		if err := store.AppendOutcome(ctx, run.ID, len(rows), row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", row.ImageID, scanRowStatus(row))
	}
	return rows, nil
}

func scanRowStatus(row results.Row) string {
	switch {
	case row.Error != "":
		return "error: " + row.Error
	case row.Matched():
		return "matched vintage " + row.VintageID
	default:
		return "no match"
	}
}

func renderScanSummary(rows []results.Row) string {
	var matched, failed int
	var totalMS, maxMS int64
	timed := 0
	vintages := make(map[string]struct{})
	for _, row := range rows {
		switch {
		case row.Error != "":
			failed++
		case row.Matched():
			matched++
			if row.VintageID != "" {
				vintages[row.VintageID] = struct{}{}
			}
		}
		if row.TotalDurationMS > 0 {
			totalMS += row.TotalDurationMS
			timed++
			if row.TotalDurationMS > maxMS {
				maxMS = row.TotalDurationMS
			}
		}
	}

	avg := "n/a"
	max := "n/a"
	if timed > 0 {
		avg = fmt.Sprintf("%d ms", totalMS/int64(timed))
		max = fmt.Sprintf("%d ms", maxMS)
	}
	return renderTable(
		[]string{"Images", "Matched", "Failed", "Unique vintages", "Avg time", "Max time"},
		[][]string{{
			strconv.Itoa(len(rows)), strconv.Itoa(matched), strconv.Itoa(failed),
			strconv.Itoa(len(vintages)), avg, max,
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func resolveCredentials(email, password, clientID, clientSecret string) (scanapi.Credentials, error) {
	if email == "" {
		email = os.Getenv("VINOBENCH_EMAIL")
	}
	if password == "" {
		password = os.Getenv("VINOBENCH_PASSWORD")
	}
	if email == "" || password == "" {
		return scanapi.Credentials{}, errors.New("scan credentials required: pass --email/--password or set VINOBENCH_EMAIL/VINOBENCH_PASSWORD")
	}
	if clientID == "" || clientSecret == "" {
		return scanapi.Credentials{}, errors.New("scan.client_id and scan.client_secret must be set in the configuration")
	}
	return scanapi.Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     email,
		Password:     password,
	}, nil
}

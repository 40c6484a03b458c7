package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vinobench/internal/corpus"
	"vinobench/internal/groundtruth"
	"vinobench/internal/ocr"
)

func newGroundtruthCommand(cmdCtx *commandContext) *cobra.Command {
	groundtruthCmd := &cobra.Command{
		Use:   "groundtruth",
		Short: "Build and maintain ground-truth label files",
	}

	groundtruthCmd.AddCommand(newGroundtruthFromCSVCommand(cmdCtx))
	groundtruthCmd.AddCommand(newGroundtruthFromCurlsCommand())
	groundtruthCmd.AddCommand(newGroundtruthOCRCommand())

	return groundtruthCmd
}

func newGroundtruthFromCSVCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		csvFlag      string
		outDirFlag   string
		addedByFlag  string
		skipDownload bool
	)

	cmd := &cobra.Command{
		Use:   "from-csv",
		Short: "Convert a label verification export into a ground-truth JSONL file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvFlag == "" || outDirFlag == "" {
				return errors.New("--csv and --out-dir are required")
			}
			logger, err := cmdCtx.newLogger()
			if err != nil {
				return err
			}

			entries, err := groundtruth.FromCSVFile(cmd.Context(), csvFlag, groundtruth.CSVOptions{
				AddedBy:      addedByFlag,
				ImageDir:     filepath.Join(outDirFlag, "images"),
				SkipDownload: skipDownload,
			}, logger)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("no usable rows in the export")
			}

			path, err := groundtruth.WriteJSONLFile(outDirFlag, entries, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entries to %s\n", len(entries), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvFlag, "csv", "", "Verification export CSV file")
	cmd.Flags().StringVar(&outDirFlag, "out-dir", "", "Directory for the JSONL file and downloaded images")
	cmd.Flags().StringVar(&addedByFlag, "added-by", defaultAddedBy(), "Author tag for the entries")
	cmd.Flags().BoolVar(&skipDownload, "skip-download", false, "Generate metadata only, without downloading images")
	return cmd
}

func newGroundtruthFromCurlsCommand() *cobra.Command {
	var (
		curlsFlag   string
		outDirFlag  string
		addedByFlag string
	)

	cmd := &cobra.Command{
		Use:         "from-curls",
		Short:       "Reconstruct ground-truth entries from captured curl uploads",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if curlsFlag == "" || outDirFlag == "" {
				return errors.New("--curls and --out-dir are required")
			}

			entries, err := groundtruth.FromCurlLogFile(curlsFlag, addedByFlag, nil)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("no curl commands found in the capture")
			}

			path, err := groundtruth.WriteJSONLFile(outDirFlag, entries, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entries to %s\n", len(entries), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&curlsFlag, "curls", "", "File with captured curl upload commands")
	cmd.Flags().StringVar(&outDirFlag, "out-dir", "", "Directory for the JSONL file")
	cmd.Flags().StringVar(&addedByFlag, "added-by", defaultAddedBy(), "Author tag for the entries")
	return cmd
}

func newGroundtruthOCRCommand() *cobra.Command {
	var (
		dirFlag     string
		outDirFlag  string
		addedByFlag string
		langFlag    string
	)

	cmd := &cobra.Command{
		Use:         "ocr",
		Short:       "Extract label text from images into ground-truth entries",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dirFlag == "" {
				return errors.New("--dir is required")
			}
			images, err := corpus.FromDir(dirFlag)
			if err != nil {
				return err
			}
			if len(images) == 0 {
				return errors.New("no images found")
			}

			engine := &ocr.TesseractEngine{Language: langFlag}
			now := time.Now().UTC().Format(time.RFC3339)
			out := cmd.OutOrStdout()

			var entries []groundtruth.Entry
			for _, img := range images {
				text, err := engine.ExtractText(img.Path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", img.Name, err)
					continue
				}
				fmt.Fprintf(out, "%s: %s\n", img.Name, text)
				if text == "" {
					continue
				}
				entries = append(entries, groundtruth.Entry{
					Filename: img.Name,
					OCRText:  text,
					Tags:     []string{"ocr"},
					AddedBy:  addedByFlag,
					AddedAt:  now,
					Source:   "local_ocr",
				})
			}

			if outDirFlag != "" && len(entries) > 0 {
				path, err := groundtruth.WriteJSONLFile(outDirFlag, entries, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %d entries to %s\n", len(entries), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dirFlag, "dir", "", "Image directory to run OCR over")
	cmd.Flags().StringVar(&outDirFlag, "out-dir", "", "Directory for a JSONL file with the extracted text")
	cmd.Flags().StringVar(&addedByFlag, "added-by", defaultAddedBy(), "Author tag for the entries")
	cmd.Flags().StringVar(&langFlag, "lang", "", "Tesseract language pack (default eng)")
	return cmd
}

func defaultAddedBy() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

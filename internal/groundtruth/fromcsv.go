package groundtruth

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"vinobench/internal/logging"
)

// CSVOptions controls conversion of a verification export into entries.
type CSVOptions struct {
	// AddedBy tags each entry with its author.
	AddedBy string
	// ImageDir receives downloaded images when SkipDownload is false.
	ImageDir string
	// SkipDownload generates metadata only.
	SkipDownload bool
	// HTTPClient is used for image downloads; http.DefaultClient when nil.
	HTTPClient *http.Client
	// Now supplies timestamps for rows without a created_at column.
	Now func() time.Time
}

func (o CSVOptions) normalized() CSVOptions {
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// FromCSV converts a label verification export into ground-truth entries.
// Rows without an image or expected vintage are skipped; a failed image
// download skips the row with a warning rather than aborting the batch.
func FromCSV(ctx context.Context, r io.Reader, opts CSVOptions, logger *slog.Logger) ([]Entry, error) {
	opts = opts.normalized()
	logger = logging.NewComponentLogger(logger, "groundtruth")

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if field(record, "image") == "" || field(record, "expected_vintage_id") == "" {
			continue
		}
		vintageID, err := strconv.ParseInt(field(record, "expected_vintage_id"), 10, 64)
		if err != nil {
			logger.Warn("skipping row with unparseable vintage id",
				logging.String("value", field(record, "expected_vintage_id")))
			continue
		}

		imageURL := field(record, "image_url")
		filename := baseFilename(imageURL)
		if !opts.SkipDownload {
			if err := downloadImage(ctx, opts.HTTPClient, imageURL, filepath.Join(opts.ImageDir, filename)); err != nil {
				logger.Warn("image download failed",
					logging.String("url", imageURL),
					logging.Error(err))
				continue
			}
		}

		addedAt := field(record, "created_at")
		if addedAt == "" {
			addedAt = opts.Now().UTC().Format(time.RFC3339)
		}
		entries = append(entries, Entry{
			Filename:          filename,
			ImageURL:          imageURL,
			ExpectedVintageID: vintageID,
			Tags:              []string{"verified"},
			AddedBy:           opts.AddedBy,
			AddedAt:           addedAt,
			Source:            "label_scan_verifications",
			Notes:             "verification_id: " + field(record, "label_scan_verifications_id"),
		})
	}
	return entries, nil
}

// FromCSVFile converts an export file into entries.
func FromCSVFile(ctx context.Context, csvPath string, opts CSVOptions, logger *slog.Logger) ([]Entry, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", csvPath, err)
	}
	defer file.Close()
	return FromCSV(ctx, file, opts, logger)
}

func baseFilename(imageURL string) string {
	if parsed, err := url.Parse(imageURL); err == nil && parsed.Path != "" {
		return path.Base(parsed.Path)
	}
	return path.Base(imageURL)
}

func downloadImage(ctx context.Context, client *http.Client, imageURL, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", imageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", imageURL, resp.StatusCode)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return file.Close()
}

package scanapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"vinobench/internal/corpus"
	"vinobench/internal/groundtruth"
	"vinobench/internal/imageprep"
	"vinobench/internal/logging"
	"vinobench/internal/results"
)

// RunnerOptions tune one scan run over a corpus.
type RunnerOptions struct {
	// Workers bounds concurrent uploads.
	Workers int
	// FetchRetries and FetchDelay form the per-image polling budget.
	FetchRetries int
	FetchDelay   time.Duration
	// InjectOCR forwards ground-truth OCR text as the label_ocr hint.
	InjectOCR bool
	// PreCrop applies ground-truth crop rectangles locally before upload
	// instead of forwarding them as query parameters.
	PreCrop bool
	// CheckIntegrity cross-references each completed scan's label and
	// user vintage records.
	CheckIntegrity bool
	// HTTPClient downloads remote corpus images; http.DefaultClient
	// when nil.
	HTTPClient *http.Client
}

func (o RunnerOptions) normalized() RunnerOptions {
	if o.Workers <= 0 {
		o.Workers = 5
	}
	if o.FetchRetries <= 0 {
		o.FetchRetries = 100
	}
	if o.FetchDelay <= 0 {
		o.FetchDelay = 500 * time.Millisecond
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	return o
}

// Runner uploads a corpus against one backend and collects outcome rows.
type Runner struct {
	client *Client
	labels *groundtruth.Set
	opts   RunnerOptions
	logger *slog.Logger
}

// NewRunner creates a runner. labels may be nil when the corpus has no
// ground truth.
func NewRunner(client *Client, labels *groundtruth.Set, opts RunnerOptions, logger *slog.Logger) *Runner {
	if labels == nil {
		labels = groundtruth.NewSet(nil)
	}
	return &Runner{
		client: client,
		labels: labels,
		opts:   opts.normalized(),
		logger: logging.NewComponentLogger(logger, "scan"),
	}
}

// ProcessAll scans every corpus image with bounded concurrency. Rows come
// back in corpus order regardless of completion order; a failed image
// yields a row with its error recorded rather than failing the run.
func (r *Runner) ProcessAll(ctx context.Context, images []corpus.Image) ([]results.Row, error) {
	rows := make([]results.Row, len(images))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.opts.Workers)
	for i, img := range images {
		group.Go(func() error {
			rows[i] = r.ProcessOne(groupCtx, img)
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ProcessOne uploads a single image, waits for its scan result, and
// renders the outcome row. Errors are captured in the row.
func (r *Runner) ProcessOne(ctx context.Context, img corpus.Image) results.Row {
	row := results.Row{ImageID: img.Name}
	entry, hasEntry := r.labels.Lookup(img.Name)
	if hasEntry {
		row.ExpectedVintageID = entry.ExpectedVintage()
	}

	data, err := r.loadImage(ctx, img)
	if err != nil {
		r.logger.Warn("image load failed",
			logging.String(logging.FieldImageID, img.Name),
			logging.Error(err))
		row.Error = err.Error()
		return row
	}

	upload := UploadRequest{Filename: img.Name, Image: data}
	if hasEntry {
		if r.opts.InjectOCR && entry.OCRText != "" {
			upload.OCRText = entry.OCRText
			row.LabelOCRText = entry.OCRText
		}
		if entry.Crop != nil {
			if r.opts.PreCrop {
				cropped, err := imageprep.CropJPEG(data, *entry.Crop)
				if err != nil {
					r.logger.Warn("crop failed, uploading original",
						logging.String(logging.FieldImageID, img.Name),
						logging.Error(err))
				} else {
					upload.Image = cropped
				}
			} else {
				upload.Crop = &CropRect{X: entry.Crop.X, Y: entry.Crop.Y, Width: entry.Crop.Width, Height: entry.Crop.Height}
			}
		}
	}

	start := time.Now()
	processingID, err := r.client.Upload(ctx, upload)
	uploadDuration := time.Since(start)
	if err != nil {
		r.logger.Warn("upload failed",
			logging.String(logging.FieldImageID, img.Name),
			logging.Error(err))
		row.Error = err.Error()
		return row
	}
	row.ProcessingID = processingID
	row.UploadDurationMS = uploadDuration.Milliseconds()

	fetchStart := time.Now()
	result, err := r.client.WaitForResult(ctx, processingID, r.opts.FetchRetries, r.opts.FetchDelay)
	if err != nil {
		r.logger.Warn("scan did not complete",
			logging.String(logging.FieldImageID, img.Name),
			logging.Error(err))
		row.Error = err.Error()
		return row
	}
	row.FetchDurationMS = time.Since(fetchStart).Milliseconds()
	row.TotalDurationMS = time.Since(start).Milliseconds()

	row.HTTPStatus = "200"
	row.UploadStatus = result.UploadStatus
	row.MatchStatus = result.MatchStatus
	row.VintageID = result.VintageID
	row.WineID = result.WineID
	row.Confidence = result.Confidence
	row.MatchMessage = result.MatchMessage
	row.ImageLocation = result.ImageLocation
	row.Contradiction = DetectContradictions(result)
	if r.opts.CheckIntegrity && result.LabelID != "" && result.UserVintageID != "" {
		row.IntegrityIssue = r.client.VerifyIntegrity(ctx, result.LabelID, result.UserVintageID)
	}

	r.logger.Info("image scanned",
		logging.String(logging.FieldImageID, img.Name),
		logging.String("match_status", row.MatchStatus),
		logging.Int64("total_ms", row.TotalDurationMS))
	return row
}

func (r *Runner) loadImage(ctx context.Context, img corpus.Image) ([]byte, error) {
	if img.Path != "" {
		data, err := os.ReadFile(img.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", img.Path, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", img.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %d", img.URL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

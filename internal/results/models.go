package results

import (
	"strconv"
	"strings"
	"time"

	"vinobench/internal/compare"
)

// Run describes one scan run of a backend over an image corpus.
type Run struct {
	ID         string
	Label      string
	Env        string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
	ImageCount int
}

// Row is one scan outcome as recorded by the scan client. Empty strings
// mean the field was not reported; Row is a raw I/O surface and is
// projected into compare.ScanOutcome (which uses explicit optionals)
// before any comparison logic sees it.
type Row struct {
	ImageID           string
	ProcessingID      string
	MatchStatus       string
	VintageID         string
	WineID            string
	Confidence        string
	ExpectedVintageID string
	LabelOCRText      string
	ImageLocation     string
	UploadStatus      string
	HTTPStatus        string
	MatchMessage      string
	Contradiction     string
	IntegrityIssue    string
	UploadDurationMS  int64
	FetchDurationMS   int64
	TotalDurationMS   int64
	Error             string
}

// Matched reports whether the backend returned a match for this row.
func (r Row) Matched() bool {
	return r.MatchStatus == "Matched"
}

// ToScanOutcome projects the row down to the comparator's shape. Empty
// identifier columns become absent fields; a non-numeric confidence is
// treated as absent.
func (r Row) ToScanOutcome() compare.ScanOutcome {
	outcome := compare.ScanOutcome{
		ImageID: r.ImageID,
		Matched: r.Matched(),
	}
	if v := strings.TrimSpace(r.VintageID); v != "" {
		outcome.VintageID = &v
	}
	if w := strings.TrimSpace(r.WineID); w != "" {
		outcome.WineID = &w
	}
	if c := strings.TrimSpace(r.Confidence); c != "" {
		if parsed, err := strconv.ParseFloat(c, 64); err == nil {
			outcome.Confidence = &parsed
		}
	}
	if e := strings.TrimSpace(r.ExpectedVintageID); e != "" {
		outcome.ExpectedVintageID = &e
	}
	return outcome
}

// ToScanOutcomes projects a slice of rows.
func ToScanOutcomes(rows []Row) []compare.ScanOutcome {
	outcomes := make([]compare.ScanOutcome, len(rows))
	for i, row := range rows {
		outcomes[i] = row.ToScanOutcome()
	}
	return outcomes
}

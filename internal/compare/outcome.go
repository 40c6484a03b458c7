package compare

import (
	"errors"
	"fmt"
	"strings"
)

// Side names one of the two result sets under comparison.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ScanOutcome is one backend's scan result for one image. Optional fields
// are nil when the backend did not supply them; empty strings are never
// used as absence sentinels.
type ScanOutcome struct {
	ImageID    string
	Matched    bool
	WineID     *string
	VintageID  *string
	Confidence *float64

	// ExpectedVintageID carries ground truth from input metadata. It is
	// reported but never consulted during classification.
	ExpectedVintageID *string
}

// EnrichedOutcome is a ScanOutcome plus the descriptive fields resolved
// from the metadata catalog. Each field is nil when its backing identifier
// is absent or the lookup failed.
type EnrichedOutcome struct {
	ScanOutcome

	WineName    *string
	Producer    *string
	Region      *string
	VintageYear *string
}

// AlignedPair is the aligner's output: both sides' raw outcomes for one
// image id. At least one side is always present.
type AlignedPair struct {
	ImageID string
	Left    *ScanOutcome
	Right   *ScanOutcome
}

// ComparisonPair is the unit the classifier consumes.
type ComparisonPair struct {
	ImageID string
	Left    *EnrichedOutcome
	Right   *EnrichedOutcome
}

// ErrMalformedInput tags ingestion diagnostics.
var ErrMalformedInput = errors.New("malformed input")

// InputError describes one malformed input record. The comparator reports
// these and leaves the skip-or-abort policy to the caller.
type InputError struct {
	Side    Side
	ImageID string
	Reason  string
}

func (e InputError) Error() string {
	return fmt.Sprintf("%s: %s record %q: %s", ErrMalformedInput, e.Side, e.ImageID, e.Reason)
}

func (e InputError) Unwrap() error { return ErrMalformedInput }

// validateOutcome enforces the identifier invariant: wine/vintage ids are
// present if and only if the outcome matched.
func validateOutcome(side Side, outcome ScanOutcome) *InputError {
	if strings.TrimSpace(outcome.ImageID) == "" {
		return &InputError{Side: side, ImageID: outcome.ImageID, Reason: "empty image id"}
	}
	hasID := outcome.WineID != nil || outcome.VintageID != nil
	if outcome.Matched && !hasID {
		return &InputError{Side: side, ImageID: outcome.ImageID, Reason: "matched outcome carries no identifiers"}
	}
	if !outcome.Matched && hasID {
		return &InputError{Side: side, ImageID: outcome.ImageID, Reason: "unmatched outcome carries identifiers"}
	}
	return nil
}

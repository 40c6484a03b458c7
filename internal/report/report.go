package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"vinobench/internal/compare"
)

// Options controls report rendering.
type Options struct {
	// LeftLabel and RightLabel name the two systems; they suffix the
	// side-by-side columns (wine_name_clip, wine_name_vuforia, ...).
	LeftLabel  string
	RightLabel string
	// ImageBaseURL, when set, derives original_image_url per row.
	ImageBaseURL string
	// MatchURLBase, when set, derives per-side match URLs from vintage ids.
	MatchURLBase string
}

func (o Options) normalized() Options {
	if o.LeftLabel == "" {
		o.LeftLabel = "A"
	}
	if o.RightLabel == "" {
		o.RightLabel = "B"
	}
	return o
}

// Header returns the report's column names in output order.
func Header(opts Options) []string {
	opts = opts.normalized()
	l, r := opts.LeftLabel, opts.RightLabel
	return []string{
		"file", "category",
		"wine_name_" + l, "wine_name_" + r,
		"year_" + l, "year_" + r,
		"winery_name_" + l, "winery_name_" + r,
		"region_" + l, "region_" + r,
		"vintage_id_" + l, "vintage_id_" + r,
		"wine_id_" + l, "wine_id_" + r,
		"confidence_" + l, "confidence_" + r,
		"expected_vintage_id",
		"original_image_url",
		l + "_match_url", r + "_match_url",
	}
}

// Rows renders classified pairs in comparator order. Absent fields render
// as empty cells.
func Rows(result *compare.Result, opts Options) [][]string {
	opts = opts.normalized()
	rows := make([][]string, 0, len(result.Pairs))
	for _, classified := range result.Pairs {
		rows = append(rows, buildRow(classified, opts))
	}
	return rows
}

func buildRow(classified compare.Classified, opts Options) []string {
	pair := classified.Pair
	left, right := pair.Left, pair.Right

	imageURL := ""
	if opts.ImageBaseURL != "" {
		imageURL = opts.ImageBaseURL + pair.ImageID
	}

	return []string{
		pair.ImageID,
		string(classified.Category),
		optional(sideField(left, func(e *compare.EnrichedOutcome) *string { return e.WineName })),
		optional(sideField(right, func(e *compare.EnrichedOutcome) *string { return e.WineName })),
		optional(sideField(left, func(e *compare.EnrichedOutcome) *string { return e.VintageYear })),
		optional(sideField(right, func(e *compare.EnrichedOutcome) *string { return e.VintageYear })),
		optional(sideField(left, func(e *compare.EnrichedOutcome) *string { return e.Producer })),
		optional(sideField(right, func(e *compare.EnrichedOutcome) *string { return e.Producer })),
		optional(sideField(left, func(e *compare.EnrichedOutcome) *string { return e.Region })),
		optional(sideField(right, func(e *compare.EnrichedOutcome) *string { return e.Region })),
		optional(sideField(left, func(e *compare.EnrichedOutcome) *string { return e.VintageID })),
		optional(sideField(right, func(e *compare.EnrichedOutcome) *string { return e.VintageID })),
		optional(sideField(left, func(e *compare.EnrichedOutcome) *string { return e.WineID })),
		optional(sideField(right, func(e *compare.EnrichedOutcome) *string { return e.WineID })),
		confidence(left),
		confidence(right),
		expectedVintage(pair),
		imageURL,
		matchURL(left, opts.MatchURLBase),
		matchURL(right, opts.MatchURLBase),
	}
}

func sideField(side *compare.EnrichedOutcome, get func(*compare.EnrichedOutcome) *string) *string {
	if side == nil {
		return nil
	}
	return get(side)
}

func optional(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func confidence(side *compare.EnrichedOutcome) string {
	if side == nil || side.Confidence == nil {
		return ""
	}
	return strconv.FormatFloat(*side.Confidence, 'f', -1, 64)
}

func expectedVintage(pair compare.ComparisonPair) string {
	// Ground truth is identical for both sides when present; prefer left.
	if pair.Left != nil && pair.Left.ExpectedVintageID != nil {
		return *pair.Left.ExpectedVintageID
	}
	if pair.Right != nil && pair.Right.ExpectedVintageID != nil {
		return *pair.Right.ExpectedVintageID
	}
	return ""
}

func matchURL(side *compare.EnrichedOutcome, base string) string {
	if base == "" || side == nil || side.VintageID == nil {
		return ""
	}
	return base + *side.VintageID
}

// WriteCSV writes the full report.
func WriteCSV(w io.Writer, result *compare.Result, opts Options) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(opts)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range Rows(result, opts) {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the full report to a file path.
func WriteCSVFile(path string, result *compare.Result, opts Options) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()
	return WriteCSV(file, result, opts)
}

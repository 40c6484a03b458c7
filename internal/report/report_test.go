package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"vinobench/internal/compare"
)

func strPtr(s string) *string { return &s }

func enriched(imageID, vintageID, wineID, wineName string) *compare.EnrichedOutcome {
	out := &compare.EnrichedOutcome{
		ScanOutcome: compare.ScanOutcome{ImageID: imageID, Matched: true},
	}
	if vintageID != "" {
		out.VintageID = strPtr(vintageID)
	}
	if wineID != "" {
		out.WineID = strPtr(wineID)
	}
	if wineName != "" {
		out.WineName = strPtr(wineName)
	}
	return out
}

func sampleResult() *compare.Result {
	return &compare.Result{
		Pairs: []compare.Classified{
			{
				Pair: compare.ComparisonPair{
					ImageID: "img1.jpg",
					Left:    enriched("img1.jpg", "166888", "5432", "Margaux 2015"),
					Right:   enriched("img1.jpg", "166888", "5432", "Margaux 2015"),
				},
				Category: compare.CategoryExactMatch,
			},
			{
				Pair: compare.ComparisonPair{
					ImageID: "img2.jpg",
					Left:    enriched("img2.jpg", "111", "9", "Barolo"),
				},
				Category: compare.CategoryOnlyScannedByLeft,
			},
		},
	}
}

func TestHeaderUsesLabels(t *testing.T) {
	header := Header(Options{LeftLabel: "clip", RightLabel: "vuforia"})
	if header[2] != "wine_name_clip" || header[3] != "wine_name_vuforia" {
		t.Errorf("labels should suffix columns: %v", header[:4])
	}
	if header[len(header)-2] != "clip_match_url" {
		t.Errorf("match url column mislabeled: %q", header[len(header)-2])
	}
}

func TestWriteCSVSideBySide(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{
		LeftLabel:    "clip",
		RightLabel:   "vuforia",
		MatchURLBase: "https://www.vivino.com/w/",
	}
	if err := WriteCSV(&buf, sampleResult(), opts); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}

	header := records[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %q missing from header %v", name, header)
		return -1
	}

	row1 := records[1]
	if row1[col("file")] != "img1.jpg" || row1[col("category")] != string(compare.CategoryExactMatch) {
		t.Errorf("row 1 identity: %v", row1)
	}
	if row1[col("vintage_id_clip")] != "166888" || row1[col("vintage_id_vuforia")] != "166888" {
		t.Errorf("vintage ids should appear on both sides: %v", row1)
	}
	if row1[col("clip_match_url")] != "https://www.vivino.com/w/166888" {
		t.Errorf("match url: %q", row1[col("clip_match_url")])
	}

	row2 := records[2]
	if row2[col("wine_name_vuforia")] != "" || row2[col("vuforia_match_url")] != "" {
		t.Errorf("absent side should render empty cells: %v", row2)
	}
	if row2[col("wine_name_clip")] != "Barolo" {
		t.Errorf("present side lost: %v", row2)
	}
}

func TestRowsPreserveOrder(t *testing.T) {
	rows := Rows(sampleResult(), Options{})
	if rows[0][0] != "img1.jpg" || rows[1][0] != "img2.jpg" {
		t.Errorf("rows must follow pair order: %v %v", rows[0][0], rows[1][0])
	}
}

func TestSummarizeCountsAndPercents(t *testing.T) {
	summaries := Summarize(sampleResult())
	if len(summaries) != 9 {
		t.Fatalf("summary should cover the full taxonomy, got %d lines", len(summaries))
	}

	byCategory := make(map[compare.MatchCategory]CategorySummary)
	for _, s := range summaries {
		byCategory[s.Category] = s
	}
	if got := byCategory[compare.CategoryExactMatch]; got.Count != 1 || got.Percent != 50 {
		t.Errorf("exact match summary: %+v", got)
	}
	if got := byCategory[compare.CategoryBothNoMatch]; got.Count != 0 || got.Percent != 0 {
		t.Errorf("zero category should still appear: %+v", got)
	}
}

func TestSummarizeEmptyResult(t *testing.T) {
	summaries := Summarize(&compare.Result{})
	for _, s := range summaries {
		if s.Count != 0 || s.Percent != 0 {
			t.Errorf("empty result should produce zero lines: %+v", s)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(42.857); got != "42.9%" {
		t.Errorf("FormatPercent: %q", got)
	}
}

func TestConfidenceFormatting(t *testing.T) {
	conf := 0.875
	result := &compare.Result{
		Pairs: []compare.Classified{{
			Pair: compare.ComparisonPair{
				ImageID: "img.jpg",
				Left: &compare.EnrichedOutcome{
					ScanOutcome: compare.ScanOutcome{ImageID: "img.jpg", Matched: true, VintageID: strPtr("1"), Confidence: &conf},
				},
			},
			Category: compare.CategoryOnlyScannedByLeft,
		}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, result, Options{LeftLabel: "a", RightLabel: "b"}); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if !strings.Contains(buf.String(), "0.875") {
		t.Errorf("confidence should render plainly: %s", buf.String())
	}
}

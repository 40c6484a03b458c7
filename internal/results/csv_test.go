package results

import (
	"bytes"
	"strings"
	"testing"
)

func TestCSVRoundTrip(t *testing.T) {
	rows := []Row{
		{
			ImageID:          "label1.jpg",
			ProcessingID:     "proc-1",
			MatchStatus:      "Matched",
			VintageID:        "166888",
			WineID:           "5432",
			Confidence:       "0.87",
			LabelOCRText:     "CHATEAU MARGAUX 2015",
			UploadDurationMS: 340,
			TotalDurationMS:  1210,
		},
		{ImageID: "label2.jpg", MatchStatus: "None", Error: "Timeout after max retries"},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, "clip"); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	parsed, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(parsed))
	}
	if parsed[0].VintageID != "166888" || parsed[0].Confidence != "0.87" {
		t.Errorf("row 0 mismatch: %+v", parsed[0])
	}
	if parsed[0].LabelOCRText != "CHATEAU MARGAUX 2015" {
		t.Errorf("OCR text mismatch: %q", parsed[0].LabelOCRText)
	}
	if parsed[0].TotalDurationMS != 1210 {
		t.Errorf("duration mismatch: %d", parsed[0].TotalDurationMS)
	}
	if parsed[1].Error != "Timeout after max retries" {
		t.Errorf("error column mismatch: %q", parsed[1].Error)
	}
}

func TestReadCSVForeignColumnOrder(t *testing.T) {
	input := strings.Join([]string{
		"vintage_id,file,match_status,extra",
		"123,img.jpg,Matched,ignored",
	}, "\n")

	rows, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].ImageID != "img.jpg" || rows[0].VintageID != "123" {
		t.Errorf("columns should be resolved by header: %+v", rows[0])
	}
}

func TestReadCSVFirstColumnAsImageID(t *testing.T) {
	input := "image,match_status\nphoto.jpg,None\n"

	rows, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if rows[0].ImageID != "photo.jpg" {
		t.Errorf("first column should serve as image id, got %q", rows[0].ImageID)
	}
}

func TestToScanOutcomeProjection(t *testing.T) {
	matched := Row{ImageID: "a.jpg", MatchStatus: "Matched", VintageID: "1", WineID: "2", Confidence: "0.5", ExpectedVintageID: "1"}
	outcome := matched.ToScanOutcome()
	if !outcome.Matched {
		t.Error("Matched status should project to true")
	}
	if outcome.VintageID == nil || *outcome.VintageID != "1" {
		t.Errorf("VintageID projection: %v", outcome.VintageID)
	}
	if outcome.Confidence == nil || *outcome.Confidence != 0.5 {
		t.Errorf("Confidence projection: %v", outcome.Confidence)
	}
	if outcome.ExpectedVintageID == nil || *outcome.ExpectedVintageID != "1" {
		t.Errorf("ExpectedVintageID projection: %v", outcome.ExpectedVintageID)
	}

	unmatchedRow := Row{ImageID: "b.jpg", MatchStatus: "None"}
	outcome = unmatchedRow.ToScanOutcome()
	if outcome.Matched {
		t.Error("non-Matched status should project to false")
	}
	if outcome.VintageID != nil || outcome.WineID != nil || outcome.Confidence != nil {
		t.Errorf("empty columns should project to absent fields: %+v", outcome)
	}

	badConfidence := Row{ImageID: "c.jpg", MatchStatus: "Matched", VintageID: "9", Confidence: "n/a"}
	if got := badConfidence.ToScanOutcome(); got.Confidence != nil {
		t.Errorf("unparseable confidence should be absent, got %v", *got.Confidence)
	}
}

package groundtruth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"vinobench/internal/logging"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func TestJSONLRoundTrip(t *testing.T) {
	entries := []Entry{
		{
			Filename:          "margaux.jpg",
			ImageURL:          "https://images.example.com/margaux.jpg",
			ExpectedVintageID: 166888,
			Tags:              []string{"verified"},
			AddedBy:           "patrick",
			AddedAt:           "2026-01-02T00:00:00Z",
			Source:            "label_scan_verifications",
		},
		{
			Filename: "2024-05-01T10:00:00_image.JPG",
			OCRText:  "BAROLO DOCG",
			Crop:     &Crop{X: 0.1, Y: 0.2, Width: 0.8, Height: 0.6},
			Tags:     []string{"ocr", "requires_crop"},
			AddedBy:  "patrick",
			AddedAt:  "2026-01-02T00:00:00Z",
			Source:   "curl_test",
		},
	}

	dir := t.TempDir()
	path, err := WriteJSONLFile(dir, entries, fixedNow())
	if err != nil {
		t.Fatalf("WriteJSONLFile failed: %v", err)
	}
	if filepath.Base(path) != "labels_20260314_092653.jsonl" {
		t.Errorf("output filename: %q", filepath.Base(path))
	}

	set, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL failed: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", set.Len())
	}

	got, ok := set.Lookup("margaux.jpg")
	if !ok {
		t.Fatal("margaux.jpg should be present")
	}
	if got.ExpectedVintageID != 166888 || got.ExpectedVintage() != "166888" {
		t.Errorf("expected vintage lost: %+v", got)
	}

	cropped, _ := set.Lookup("2024-05-01T10:00:00_image.JPG")
	if cropped.Crop == nil || cropped.Crop.Width != 0.8 {
		t.Errorf("crop lost: %+v", cropped.Crop)
	}
}

func TestReadJSONLSkipsBlankLines(t *testing.T) {
	input := `{"filename":"a.jpg","expected_vintage_id":1,"tags":[],"added_by":"p","added_at":"t"}

{"filename":"b.jpg","tags":[],"added_by":"p","added_at":"t"}
`
	entries, err := ReadJSONL(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestSetLaterEntryWins(t *testing.T) {
	set := NewSet([]Entry{
		{Filename: "a.jpg", ExpectedVintageID: 1},
		{Filename: "a.jpg", ExpectedVintageID: 2},
	})
	got, _ := set.Lookup("a.jpg")
	if got.ExpectedVintageID != 2 {
		t.Errorf("corrected entry should override: %d", got.ExpectedVintageID)
	}
}

func TestFromCSVSkipDownload(t *testing.T) {
	csvInput := strings.Join([]string{
		"image,image_url,expected_vintage_id,created_at,label_scan_verifications_id",
		"yes,https://img.example.com/uploads/chianti.jpg,4242,2025-11-03T08:00:00Z,991",
		",https://img.example.com/skipme.jpg,1,2025-11-03T08:00:00Z,992",
		"yes,https://img.example.com/novintage.jpg,,2025-11-03T08:00:00Z,993",
	}, "\n")

	entries, err := FromCSV(context.Background(), strings.NewReader(csvInput),
		CSVOptions{AddedBy: "patrick", SkipDownload: true, Now: fixedNow}, logging.NewNop())
	if err != nil {
		t.Fatalf("FromCSV failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("rows missing image or vintage should be skipped, got %d entries", len(entries))
	}

	entry := entries[0]
	if entry.Filename != "chianti.jpg" {
		t.Errorf("filename should be the URL basename: %q", entry.Filename)
	}
	if entry.ExpectedVintageID != 4242 || entry.AddedAt != "2025-11-03T08:00:00Z" {
		t.Errorf("entry fields: %+v", entry)
	}
	if entry.Source != "label_scan_verifications" || !reflect.DeepEqual(entry.Tags, []string{"verified"}) {
		t.Errorf("provenance fields: %+v", entry)
	}
	if entry.Notes != "verification_id: 991" {
		t.Errorf("notes: %q", entry.Notes)
	}
}

func TestFromCSVDownloadsImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.jpg") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("jpegbytes"))
	}))
	defer server.Close()

	csvInput := strings.Join([]string{
		"image,image_url,expected_vintage_id",
		"yes," + server.URL + "/uploads/ok.jpg,7",
		"yes," + server.URL + "/uploads/missing.jpg,8",
	}, "\n")

	dir := t.TempDir()
	entries, err := FromCSV(context.Background(), strings.NewReader(csvInput),
		CSVOptions{AddedBy: "p", ImageDir: dir, Now: fixedNow}, logging.NewNop())
	if err != nil {
		t.Fatalf("FromCSV failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Filename != "ok.jpg" {
		t.Fatalf("failed download should skip its row: %+v", entries)
	}
	data, err := os.ReadFile(filepath.Join(dir, "ok.jpg"))
	if err != nil || string(data) != "jpegbytes" {
		t.Errorf("downloaded image content: %q err=%v", data, err)
	}
}

func TestParseCurlLineFull(t *testing.T) {
	line := `curl -X POST 'https://api.testing.example.com/scans?label_ocr=CHATEAU+MARGAUX&label_ocr_source=vision&crop_x=0.05&crop_y=0.1&crop_width=0.9&crop_height=0.75' -F 'image=@/tmp/2024-05-01T10:00:00_image'`

	entry := ParseCurlLine(line, "patrick", fixedNow())
	if entry.Filename != "2024-05-01T10:00:00_image.JPG" {
		t.Errorf("filename: %q", entry.Filename)
	}
	if entry.OCRText != "CHATEAU+MARGAUX" {
		t.Errorf("ocr text: %q", entry.OCRText)
	}
	if entry.Crop == nil || entry.Crop.X != 0.05 || entry.Crop.Height != 0.75 {
		t.Errorf("crop: %+v", entry.Crop)
	}
	if !reflect.DeepEqual(entry.Tags, []string{"ocr", "requires_crop"}) {
		t.Errorf("tags should be sorted and deduped: %v", entry.Tags)
	}
	if entry.Source != "curl_test" {
		t.Errorf("source: %q", entry.Source)
	}
}

func TestParseCurlLinePartialCropDefaults(t *testing.T) {
	line := `curl 'https://api.example.com/scans?crop_width=0.5' -F 'image=@./10:30:00_image'`

	entry := ParseCurlLine(line, "p", fixedNow())
	if entry.Crop == nil {
		t.Fatal("crop param should produce a crop")
	}
	if entry.Crop.X != 0 || entry.Crop.Y != 0 || entry.Crop.Width != 0.5 || entry.Crop.Height != 1 {
		t.Errorf("missing crop fields should default to full frame: %+v", entry.Crop)
	}
}

func TestParseCurlLineNoFilename(t *testing.T) {
	entry := ParseCurlLine("curl https://api.example.com/scans", "p", fixedNow())
	if !strings.HasPrefix(entry.Filename, "unknown_image_") || !strings.HasSuffix(entry.Filename, ".JPG") {
		t.Errorf("fallback filename: %q", entry.Filename)
	}
}

func TestFromCurlLogFiltersNonCurlLines(t *testing.T) {
	input := strings.Join([]string{
		"# captured 2026-01-10",
		"",
		`curl 'https://api.example.com/scans?label_ocr=BAROLO' -F 'image=@./11:00:00_image'`,
		"some unrelated line",
		`curl 'https://api.example.com/scans' -F 'image=@./12:00:00_image'`,
	}, "\n")

	entries, err := FromCurlLog(strings.NewReader(input), "p", fixedNow)
	if err != nil {
		t.Fatalf("FromCurlLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 curl entries, got %d", len(entries))
	}
	if entries[0].OCRText != "BAROLO" || entries[1].OCRText != "" {
		t.Errorf("entries parsed wrong: %+v", entries)
	}
}

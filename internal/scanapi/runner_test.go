package scanapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vinobench/internal/corpus"
	"vinobench/internal/groundtruth"
	"vinobench/internal/logging"
)

// scanServer fakes the upload and fetch endpoints. Each upload is handed
// a processing id derived from its filename; the fetch responds 204 once
// before completing.
type scanServer struct {
	mu       sync.Mutex
	fetches  map[string]int
	queries  map[string]string
	failFile string
}

func newScanServer() *scanServer {
	return &scanServer{fetches: make(map[string]int), queries: make(map[string]string)}
}

func (s *scanServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v/10.0.0/scans/label"):
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("multipart parse: %v", err)
			}
			_, header, err := r.FormFile("image")
			if err != nil {
				t.Fatalf("image part: %v", err)
			}
			s.mu.Lock()
			s.queries[header.Filename] = r.URL.RawQuery
			fail := header.Filename == s.failFile
			s.mu.Unlock()
			if fail {
				http.Error(w, "bad image", http.StatusUnprocessableEntity)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"processing_id": "proc-" + header.Filename})
		case strings.HasPrefix(r.URL.Path, "/v/9.0.0/scans/v2/label/"):
			id := strings.TrimPrefix(r.URL.Path, "/v/9.0.0/scans/v2/label/")
			s.mu.Lock()
			s.fetches[id]++
			ready := s.fetches[id] > 1
			s.mu.Unlock()
			if !ready {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			name := strings.TrimPrefix(id, "proc-")
			json.NewEncoder(w).Encode(map[string]any{
				"upload_status": "Completed",
				"match_status":  "Matched",
				"vintage_id":    fmt.Sprintf("%d", 1000+len(name)),
			})
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func writeCorpus(t *testing.T, names ...string) ([]corpus.Image, string) {
	t.Helper()
	dir := t.TempDir()
	images := make([]corpus.Image, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("jpegbytes-"+name), 0o644); err != nil {
			t.Fatal(err)
		}
		images[i] = corpus.Image{Name: name, Path: path}
	}
	return images, dir
}

func testRunnerOptions() RunnerOptions {
	return RunnerOptions{Workers: 3, FetchRetries: 10, FetchDelay: time.Millisecond}
}

func TestProcessAllKeepsCorpusOrder(t *testing.T) {
	server := newScanServer()
	ts := httptest.NewServer(server.handler(t))
	defer ts.Close()

	images, _ := writeCorpus(t, "a.jpg", "bb.jpg", "ccc.jpg")
	client := NewClient(ts.URL, WithHTTPClient(ts.Client()), WithToken("tok"))
	runner := NewRunner(client, nil, testRunnerOptions(), logging.NewNop())

	rows, err := runner.ProcessAll(context.Background(), images)
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, name := range []string{"a.jpg", "bb.jpg", "ccc.jpg"} {
		if rows[i].ImageID != name {
			t.Errorf("row %d out of order: %q", i, rows[i].ImageID)
		}
	}
	if rows[0].MatchStatus != "Matched" || rows[0].VintageID != "1005" {
		t.Errorf("row 0 result: %+v", rows[0])
	}
	if rows[0].ProcessingID != "proc-a.jpg" {
		t.Errorf("processing id: %q", rows[0].ProcessingID)
	}
}

func TestProcessAllRecordsPerImageErrors(t *testing.T) {
	server := newScanServer()
	server.failFile = "bad.jpg"
	ts := httptest.NewServer(server.handler(t))
	defer ts.Close()

	images, _ := writeCorpus(t, "bad.jpg", "good.jpg")
	client := NewClient(ts.URL, WithHTTPClient(ts.Client()), WithToken("tok"))
	runner := NewRunner(client, nil, testRunnerOptions(), logging.NewNop())

	rows, err := runner.ProcessAll(context.Background(), images)
	if err != nil {
		t.Fatalf("one bad image should not fail the run: %v", err)
	}
	if rows[0].Error == "" || rows[0].MatchStatus != "" {
		t.Errorf("failed upload should yield an error row: %+v", rows[0])
	}
	if rows[1].Error != "" || rows[1].MatchStatus != "Matched" {
		t.Errorf("good image should still scan: %+v", rows[1])
	}
}

func TestProcessOneAttachesGroundTruth(t *testing.T) {
	server := newScanServer()
	ts := httptest.NewServer(server.handler(t))
	defer ts.Close()

	images, _ := writeCorpus(t, "margaux.jpg")
	labels := groundtruth.NewSet([]groundtruth.Entry{{
		Filename:          "margaux.jpg",
		ExpectedVintageID: 166888,
		OCRText:           "CHATEAU MARGAUX 2015",
	}})

	client := NewClient(ts.URL, WithHTTPClient(ts.Client()), WithToken("tok"))
	opts := testRunnerOptions()
	opts.InjectOCR = true
	runner := NewRunner(client, labels, opts, logging.NewNop())

	row := runner.ProcessOne(context.Background(), images[0])
	if row.ExpectedVintageID != "166888" {
		t.Errorf("expected vintage missing: %+v", row)
	}
	if row.LabelOCRText != "CHATEAU MARGAUX 2015" {
		t.Errorf("ocr text not recorded: %+v", row)
	}
	query := server.queries["margaux.jpg"]
	if !strings.Contains(query, "label_ocr=CHATEAU+MARGAUX+2015") || !strings.Contains(query, "label_ocr_source=vision") {
		t.Errorf("ocr hint not forwarded: %q", query)
	}
}

func TestProcessOneForwardsCropParams(t *testing.T) {
	server := newScanServer()
	ts := httptest.NewServer(server.handler(t))
	defer ts.Close()

	images, _ := writeCorpus(t, "crop.jpg")
	labels := groundtruth.NewSet([]groundtruth.Entry{{
		Filename: "crop.jpg",
		Crop:     &groundtruth.Crop{X: 0.1, Y: 0.2, Width: 0.8, Height: 0.6},
	}})

	client := NewClient(ts.URL, WithHTTPClient(ts.Client()), WithToken("tok"))
	runner := NewRunner(client, labels, testRunnerOptions(), logging.NewNop())

	runner.ProcessOne(context.Background(), images[0])
	query := server.queries["crop.jpg"]
	if !strings.Contains(query, "crop_x=0.1") || !strings.Contains(query, "crop_height=0.6") {
		t.Errorf("crop params not forwarded: %q", query)
	}
}

func TestProcessOneMissingFile(t *testing.T) {
	ts := httptest.NewServer(newScanServer().handler(t))
	defer ts.Close()

	client := NewClient(ts.URL, WithHTTPClient(ts.Client()), WithToken("tok"))
	runner := NewRunner(client, nil, testRunnerOptions(), logging.NewNop())

	row := runner.ProcessOne(context.Background(), corpus.Image{Name: "gone.jpg", Path: filepath.Join(t.TempDir(), "gone.jpg")})
	if row.Error == "" {
		t.Error("unreadable image should record an error")
	}
}

func TestProcessAllDownloadsRemoteImages(t *testing.T) {
	server := newScanServer()
	mux := http.NewServeMux()
	mux.Handle("/", server.handler(t))
	mux.HandleFunc("/images/remote.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remotebytes"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := NewClient(ts.URL, WithHTTPClient(ts.Client()), WithToken("tok"))
	opts := testRunnerOptions()
	opts.HTTPClient = ts.Client()
	runner := NewRunner(client, nil, opts, logging.NewNop())

	rows, err := runner.ProcessAll(context.Background(), []corpus.Image{{Name: "remote.jpg", URL: ts.URL + "/images/remote.jpg"}})
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
	if rows[0].Error != "" || rows[0].MatchStatus != "Matched" {
		t.Errorf("remote image should scan: %+v", rows[0])
	}
}

package groundtruth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Crop is a normalized crop rectangle with coordinates in [0, 1].
type Crop struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Entry is one ground-truth label: an image filename plus the vintage a
// human verified for it, and any upload hints (OCR text, crop) the image
// needs to reproduce the original scan.
type Entry struct {
	Filename          string   `json:"filename"`
	ImageURL          string   `json:"image_url,omitempty"`
	ExpectedVintageID int64    `json:"expected_vintage_id,omitempty"`
	OCRText           string   `json:"ocr_text,omitempty"`
	Crop              *Crop    `json:"crop,omitempty"`
	Tags              []string `json:"tags"`
	AddedBy           string   `json:"added_by"`
	AddedAt           string   `json:"added_at"`
	Source            string   `json:"source,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// ExpectedVintage renders the id as the string form the comparator uses,
// or "" when no expectation is recorded.
func (e Entry) ExpectedVintage() string {
	if e.ExpectedVintageID == 0 {
		return ""
	}
	return strconv.FormatInt(e.ExpectedVintageID, 10)
}

// Set indexes entries by filename for per-image lookup during a scan run.
type Set struct {
	entries []Entry
	byFile  map[string]Entry
}

// NewSet builds a lookup set. Later entries for the same filename win, so
// a corrected label appended to a JSONL file overrides the original.
func NewSet(entries []Entry) *Set {
	byFile := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		byFile[entry.Filename] = entry
	}
	return &Set{entries: entries, byFile: byFile}
}

// Lookup returns the entry for a filename.
func (s *Set) Lookup(filename string) (Entry, bool) {
	entry, ok := s.byFile[filename]
	return entry, ok
}

// Entries returns all entries in load order.
func (s *Set) Entries() []Entry { return s.entries }

// Len reports the number of distinct filenames.
func (s *Set) Len() int { return len(s.byFile) }

// ReadJSONL parses one entry per line, skipping blank lines.
func ReadJSONL(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(text, &entry); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return entries, nil
}

// LoadJSONL reads a label file and indexes it by filename.
func LoadJSONL(path string) (*Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	entries, err := ReadJSONL(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewSet(entries), nil
}

// WriteJSONL writes entries one per line.
func WriteJSONL(w io.Writer, entries []Entry) error {
	encoder := json.NewEncoder(w)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("encode entry %s: %w", entry.Filename, err)
		}
	}
	return nil
}

// WriteJSONLFile writes entries to a timestamped labels file under dir and
// returns the path written.
func WriteJSONLFile(dir string, entries []Entry, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("labels_%s.jsonl", now.UTC().Format("20060102_150405")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()
	if err := WriteJSONL(file, entries); err != nil {
		return "", err
	}
	return path, nil
}

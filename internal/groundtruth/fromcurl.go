package groundtruth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Patterns for reconstructing upload metadata from captured curl commands.
// The filename comes from the -F 'image=@...' form part; upload hints from
// the request's query string.
var (
	curlFilePattern  = regexp.MustCompile(`-F\s+'image=@.*?([\\/]?([\w:-]+_image))'`)
	curlQueryPattern = regexp.MustCompile(`[?&]([^=]+)=([^&'"]+)`)
)

// ParseCurlLine reconstructs a ground-truth entry from one captured curl
// upload. Entries from curl captures carry no expected vintage; they record
// the upload hints (OCR text, crop) needed to replay the scan.
func ParseCurlLine(line, addedBy string, now time.Time) Entry {
	entry := Entry{
		AddedBy: addedBy,
		AddedAt: now.UTC().Format(time.RFC3339),
		Tags:    []string{},
		Source:  "curl_test",
	}

	if m := curlFilePattern.FindStringSubmatch(line); m != nil {
		entry.Filename = m[2] + ".JPG"
	} else {
		entry.Filename = fmt.Sprintf("unknown_image_%s.JPG", now.UTC().Format("20060102150405.000000"))
	}

	crop := map[string]float64{}
	for _, param := range curlQueryPattern.FindAllStringSubmatch(line, -1) {
		key, value := param[1], param[2]
		switch {
		case key == "label_ocr":
			entry.OCRText = value
			entry.Tags = append(entry.Tags, "ocr")
		case key == "label_ocr_source" && strings.EqualFold(value, "vision"):
			entry.Tags = append(entry.Tags, "ocr")
		case strings.HasPrefix(key, "crop_"):
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				crop[strings.TrimPrefix(key, "crop_")] = f
			}
		}
	}

	if len(crop) > 0 {
		entry.Crop = &Crop{
			X:      cropValue(crop, "x", 0),
			Y:      cropValue(crop, "y", 0),
			Width:  cropValue(crop, "width", 1),
			Height: cropValue(crop, "height", 1),
		}
		entry.Tags = append(entry.Tags, "requires_crop")
	}

	entry.Tags = dedupeSorted(entry.Tags)
	return entry
}

func cropValue(crop map[string]float64, key string, fallback float64) float64 {
	if v, ok := crop[key]; ok {
		return v
	}
	return fallback
}

func dedupeSorted(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// FromCurlLog parses every curl command in a capture file. Lines without
// "curl" (comments, blank lines) are ignored.
func FromCurlLog(r io.Reader, addedBy string, now func() time.Time) ([]Entry, error) {
	if now == nil {
		now = time.Now
	}
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.Contains(line, "curl") {
			continue
		}
		entries = append(entries, ParseCurlLine(line, addedBy, now()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return entries, nil
}

// FromCurlLogFile parses a capture file from disk.
func FromCurlLogFile(path, addedBy string, now func() time.Time) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return FromCurlLog(file, addedBy, now)
}

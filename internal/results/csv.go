package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// csvHeader is the canonical column order, matching the files the scan
// command writes so comparison inputs and scan outputs round-trip.
var csvHeader = []string{
	"file", "processing_id", "match_status", "vintage_id", "wine_id",
	"confidence", "expected_vintage_id", "label_ocr_text", "image_location",
	"upload_status", "status", "match_message", "contradiction",
	"integrity_issue", "upload_duration_ms", "fetch_duration_ms",
	"total_duration_ms", "run_label", "error",
}

// WriteCSV writes outcome rows with the canonical header. runLabel is
// repeated per row so a file is self-describing when shared.
func WriteCSV(w io.Writer, rows []Row, runLabel string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ImageID, row.ProcessingID, row.MatchStatus, row.VintageID, row.WineID,
			row.Confidence, row.ExpectedVintageID, row.LabelOCRText, row.ImageLocation,
			row.UploadStatus, row.HTTPStatus, row.MatchMessage, row.Contradiction,
			row.IntegrityIssue,
			strconv.FormatInt(row.UploadDurationMS, 10),
			strconv.FormatInt(row.FetchDurationMS, 10),
			strconv.FormatInt(row.TotalDurationMS, 10),
			runLabel, row.Error,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes rows to a file path.
func WriteCSVFile(path string, rows []Row, runLabel string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()
	return WriteCSV(file, rows, runLabel)
}

// ReadCSV parses outcome rows. Columns are resolved by header name so
// files with reordered or extra columns (other tools' exports) still load;
// the first column is treated as the image id when no "file" column exists.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	fileCol, ok := index["file"]
	if !ok {
		fileCol = 0
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	intField := func(record []string, name string) int64 {
		v, err := strconv.ParseInt(field(record, name), 10, 64)
		if err != nil {
			return 0
		}
		return v
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		imageID := ""
		if fileCol < len(record) {
			imageID = record[fileCol]
		}
		rows = append(rows, Row{
			ImageID:           imageID,
			ProcessingID:      field(record, "processing_id"),
			MatchStatus:       field(record, "match_status"),
			VintageID:         field(record, "vintage_id"),
			WineID:            field(record, "wine_id"),
			Confidence:        field(record, "confidence"),
			ExpectedVintageID: field(record, "expected_vintage_id"),
			LabelOCRText:      field(record, "label_ocr_text"),
			ImageLocation:     field(record, "image_location"),
			UploadStatus:      field(record, "upload_status"),
			HTTPStatus:        field(record, "status"),
			MatchMessage:      field(record, "match_message"),
			Contradiction:     field(record, "contradiction"),
			IntegrityIssue:    field(record, "integrity_issue"),
			UploadDurationMS:  intField(record, "upload_duration_ms"),
			FetchDurationMS:   intField(record, "fetch_duration_ms"),
			TotalDurationMS:   intField(record, "total_duration_ms"),
			Error:             field(record, "error"),
		})
	}
	return rows, nil
}

// ReadCSVFile parses outcome rows from a file path.
func ReadCSVFile(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return ReadCSV(file)
}

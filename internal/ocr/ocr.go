package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine extracts label text from image files. The scan command uses it
// to build the label_ocr hint when a ground-truth entry has none.
type Engine interface {
	ExtractText(path string) (string, error)
}

// TesseractEngine runs the system Tesseract installation via gosseract.
type TesseractEngine struct {
	// Language is the Tesseract language pack, "eng" when empty.
	Language string
}

// ExtractText runs a single OCR pass over the image at path and returns
// the normalized text.
func (e *TesseractEngine) ExtractText(path string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	language := e.Language
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("set language %q: %w", language, err)
	}
	if err := client.SetImage(path); err != nil {
		return "", fmt.Errorf("set image %s: %w", path, err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", path, err)
	}
	return Normalize(text), nil
}

// Normalize collapses OCR output into the single-line form the scan API
// accepts as a label_ocr hint: whitespace runs become single spaces and
// empty lines disappear.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

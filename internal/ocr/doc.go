// Package ocr extracts label text from images with Tesseract. Extracted
// text feeds the scan API's OCR hint so both backends receive the same
// input a production mobile client would send.
package ocr

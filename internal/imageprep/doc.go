// Package imageprep prepares label images for upload, applying the
// normalized crop rectangles recorded in ground-truth entries.
package imageprep

// Package report renders comparison results as side-by-side CSV files
// and category summaries. Columns for the two systems carry the run
// labels as suffixes so a report file is readable without its command
// line.
package report

// Package results persists and loads per-image scan outcomes.
//
// A scan run writes its outcome rows both to a CSV file (the interchange
// format the comparator accepts) and to a SQLite database under the cache
// directory, so past runs can be compared by label without keeping CSV
// files around. Rows are a raw I/O surface; ToScanOutcome projects them
// into the comparator's optional-field shape.
package results

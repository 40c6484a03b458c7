// Package groundtruth manages human-verified label expectations. Entries
// live in JSONL files and can be generated from label verification
// exports or from captured curl uploads. A scan run looks entries up by
// image filename to attach expected vintage ids and upload hints.
package groundtruth

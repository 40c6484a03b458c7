// Package compare implements the scan result comparator: it aligns two
// backends' per-image scan outcomes, enriches each side with wine and
// vintage metadata through the cache, and assigns every pair one category
// from a fixed taxonomy using an ordered rule list.
//
// Alignment and classification are pure functions. Enrichment is the only
// step that touches the network and it degrades to absent fields on any
// lookup failure; it may fan out across a bounded worker pool while the
// final output preserves alignment order.
package compare

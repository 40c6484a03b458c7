// Package metacache provides the persistent wine/vintage metadata cache
// used during scan result comparison.
//
// The cache maps tagged identifiers ("wine:123", "vintage:456") to the
// descriptive record fetched from the catalog API, so repeated comparison
// runs over the same corpus do not repeat lookups. It is pure storage: on a
// miss the enricher performs the external lookup and stores the result.
//
// # Storage
//
// A single JSON object file (default ~/.cache/vinobench/metadata_cache.json)
// mapping "<kind>:<id>" keys to record fields. The file is read once at
// start of run and written once on Flush at end of run.
package metacache

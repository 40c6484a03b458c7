package compare

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"vinobench/internal/catalog"
	"vinobench/internal/logging"
	"vinobench/internal/metacache"
)

// Lookup resolves wine/vintage identifiers to metadata records. Implemented
// by catalog.Client.
type Lookup interface {
	LookupVintage(ctx context.Context, id string) (metacache.Record, error)
	LookupWine(ctx context.Context, id string) (metacache.Record, error)
}

// Enricher resolves scan outcomes to enriched outcomes using the metadata
// cache with read-through lookups. Enrichment failure is never fatal: a
// failed or not-found lookup leaves descriptive fields absent.
type Enricher struct {
	cache   *metacache.Cache
	lookup  Lookup
	workers int
	logger  *slog.Logger
	flight  singleflight.Group
}

// NewEnricher constructs an enricher. workers bounds concurrent lookups
// during EnrichPairs; values below 1 mean sequential.
func NewEnricher(cache *metacache.Cache, lookup Lookup, workers int, logger *slog.Logger) *Enricher {
	if workers < 1 {
		workers = 1
	}
	return &Enricher{
		cache:   cache,
		lookup:  lookup,
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "enrich"),
	}
}

// Enrich resolves a single outcome. Unmatched outcomes never touch the
// cache or the lookup service.
func (e *Enricher) Enrich(ctx context.Context, outcome ScanOutcome) EnrichedOutcome {
	enriched := EnrichedOutcome{ScanOutcome: outcome}
	if !outcome.Matched {
		return enriched
	}

	if outcome.VintageID != nil {
		if record, ok := e.resolve(ctx, metacache.KindVintage, *outcome.VintageID); ok {
			setIfPresent(&enriched.WineName, record.WineName)
			setIfPresent(&enriched.Producer, record.WineryName)
			setIfPresent(&enriched.Region, record.Region)
			setIfPresent(&enriched.VintageYear, record.Year)
			if enriched.WineID == nil && record.WineID != "" {
				wineID := record.WineID
				enriched.WineID = &wineID
			}
		}
	}

	// Wine-derived fields fill whatever the vintage record left open;
	// vintage-scoped attributes already set take precedence.
	if outcome.WineID != nil {
		if record, ok := e.resolve(ctx, metacache.KindWine, *outcome.WineID); ok {
			setIfPresent(&enriched.WineName, record.WineName)
			setIfPresent(&enriched.Producer, record.WineryName)
			setIfPresent(&enriched.Region, record.Region)
		}
	}

	return enriched
}

// EnrichPairs enriches aligned pairs, fanning out across the worker bound.
// Output order always matches input order regardless of completion order;
// results are collected by position. The only error returned is context
// cancellation.
func (e *Enricher) EnrichPairs(ctx context.Context, pairs []AlignedPair) ([]ComparisonPair, error) {
	enriched := make([]ComparisonPair, len(pairs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)

	for i := range pairs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			enriched[i] = e.enrichPair(groupCtx, pairs[i])
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return enriched, nil
}

func (e *Enricher) enrichPair(ctx context.Context, pair AlignedPair) ComparisonPair {
	out := ComparisonPair{ImageID: pair.ImageID}
	if pair.Left != nil {
		left := e.Enrich(ctx, *pair.Left)
		out.Left = &left
	}
	if pair.Right != nil {
		right := e.Enrich(ctx, *pair.Right)
		out.Right = &right
	}
	return out
}

// resolve returns the record for (kind, id) from the cache, falling back to
// the lookup service on miss. Racing misses for the same key collapse into
// one in-flight lookup; the winner's Put is visible to all callers.
func (e *Enricher) resolve(ctx context.Context, kind metacache.Kind, id string) (metacache.Record, bool) {
	key := metacache.Key{Kind: kind, ID: id}
	if record, ok := e.cache.Get(key); ok {
		return record, true
	}
	if e.lookup == nil {
		return metacache.Record{}, false
	}

	value, err, _ := e.flight.Do(key.String(), func() (any, error) {
		if record, ok := e.cache.Get(key); ok {
			return record, nil
		}
		var (
			record metacache.Record
			err    error
		)
		switch kind {
		case metacache.KindVintage:
			record, err = e.lookup.LookupVintage(ctx, id)
		default:
			record, err = e.lookup.LookupWine(ctx, id)
		}
		if err != nil {
			return metacache.Record{}, err
		}
		e.cache.Put(key, record)
		return record, nil
	})
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			e.logger.Debug("metadata not found",
				logging.String("key", key.String()))
		} else {
			e.logger.Warn("metadata lookup failed",
				logging.String(logging.FieldEventType, "enrich_lookup_failed"),
				logging.String("key", key.String()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "descriptive fields stay absent for this record"))
		}
		return metacache.Record{}, false
	}
	return value.(metacache.Record), true
}

func setIfPresent(dst **string, value string) {
	if *dst != nil || value == "" {
		return
	}
	v := value
	*dst = &v
}

package compare

import (
	"context"
	"fmt"
	"log/slog"

	"vinobench/internal/logging"
)

// Classified couples a comparison pair with its assigned category.
type Classified struct {
	Pair     ComparisonPair
	Category MatchCategory
}

// Result is the comparator's output: classified pairs in aligner order plus
// the ingestion diagnostics for malformed records.
type Result struct {
	Pairs       []Classified
	InputErrors []InputError
}

// CategoryCounts tallies pairs per category.
func (r *Result) CategoryCounts() map[MatchCategory]int {
	counts := make(map[MatchCategory]int)
	for _, classified := range r.Pairs {
		counts[classified.Category]++
	}
	return counts
}

// Run executes the full comparison: align, enrich, classify. When strict is
// set, any malformed input aborts the run; otherwise offending records are
// skipped and reported in Result.InputErrors.
func Run(ctx context.Context, left, right []ScanOutcome, enricher *Enricher, strict bool, logger *slog.Logger) (*Result, error) {
	logger = logging.NewComponentLogger(logger, "compare")

	aligned, inputErrs := Align(left, right)
	if len(inputErrs) > 0 {
		if strict {
			return nil, fmt.Errorf("%d malformed input records, first: %w", len(inputErrs), inputErrs[0])
		}
		for _, ie := range inputErrs {
			logger.Warn("skipping malformed record",
				logging.String(logging.FieldEventType, "compare_malformed_input"),
				logging.String("side", string(ie.Side)),
				logging.String(logging.FieldImageID, ie.ImageID),
				logging.String("reason", ie.Reason))
		}
	}

	pairs, err := enricher.EnrichPairs(ctx, aligned)
	if err != nil {
		return nil, err
	}

	classified := make([]Classified, len(pairs))
	for i, pair := range pairs {
		classified[i] = Classified{Pair: pair, Category: Classify(pair)}
	}

	logger.Info("comparison complete",
		logging.Int("pair_count", len(classified)),
		logging.Int("malformed_count", len(inputErrs)))

	return &Result{Pairs: classified, InputErrors: inputErrs}, nil
}

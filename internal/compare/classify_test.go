package compare

import (
	"testing"
)

func enrichedMatched(wineID, vintageID, producer string) *EnrichedOutcome {
	out := &EnrichedOutcome{ScanOutcome: ScanOutcome{ImageID: "img", Matched: true}}
	if wineID != "" {
		out.WineID = strPtr(wineID)
	}
	if vintageID != "" {
		out.VintageID = strPtr(vintageID)
	}
	if producer != "" {
		out.Producer = strPtr(producer)
	}
	return out
}

func enrichedUnmatched() *EnrichedOutcome {
	return &EnrichedOutcome{ScanOutcome: ScanOutcome{ImageID: "img"}}
}

func TestClassifyTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		pair ComparisonPair
		want MatchCategory
	}{
		{
			name: "right absent",
			pair: ComparisonPair{ImageID: "img4", Left: enrichedUnmatched()},
			want: CategoryOnlyScannedByLeft,
		},
		{
			name: "left absent",
			pair: ComparisonPair{ImageID: "img", Right: enrichedMatched("W1", "V1", "")},
			want: CategoryOnlyScannedByRight,
		},
		{
			name: "neither matched",
			pair: ComparisonPair{ImageID: "img", Left: enrichedUnmatched(), Right: enrichedUnmatched()},
			want: CategoryBothNoMatch,
		},
		{
			name: "only left matched",
			pair: ComparisonPair{ImageID: "img3", Left: enrichedMatched("W1", "V1", ""), Right: enrichedUnmatched()},
			want: CategoryOnlyLeftMatched,
		},
		{
			name: "only right matched",
			pair: ComparisonPair{ImageID: "img", Left: enrichedUnmatched(), Right: enrichedMatched("W1", "V1", "")},
			want: CategoryOnlyRightMatched,
		},
		{
			name: "exact vintage",
			pair: ComparisonPair{ImageID: "img1", Left: enrichedMatched("W1", "V1", ""), Right: enrichedMatched("W1", "V1", "")},
			want: CategoryExactMatch,
		},
		{
			name: "same wine different vintage",
			pair: ComparisonPair{ImageID: "img2", Left: enrichedMatched("W1", "V1", ""), Right: enrichedMatched("W1", "V2", "")},
			want: CategorySameWine,
		},
		{
			name: "same producer different wine",
			pair: ComparisonPair{ImageID: "img5", Left: enrichedMatched("W1", "V1", "P1"), Right: enrichedMatched("W2", "V2", "P1")},
			want: CategorySameProducer,
		},
		{
			name: "different wine",
			pair: ComparisonPair{ImageID: "img", Left: enrichedMatched("W1", "V1", "P1"), Right: enrichedMatched("W2", "V2", "P2")},
			want: CategoryDifferentWine,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.pair); got != tc.want {
				t.Errorf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyExactMatchIgnoresDescriptiveFields(t *testing.T) {
	left := enrichedMatched("W1", "V1", "Producer A")
	left.WineName = strPtr("Name A")
	right := enrichedMatched("W9", "V1", "Producer B")
	right.WineName = strPtr("Name B")
	conf := 0.12
	right.Confidence = &conf

	pair := ComparisonPair{ImageID: "img", Left: left, Right: right}
	if got := Classify(pair); got != CategoryExactMatch {
		t.Errorf("equal vintage ids must classify as exact match regardless of other fields, got %q", got)
	}
}

func TestClassifyAbsentProducerNeverSatisfiesRule(t *testing.T) {
	// Producer resolved on one side only: the producer rule must fall
	// through, never infer equality from partial data.
	left := enrichedMatched("W1", "V1", "P1")
	right := enrichedMatched("W2", "V2", "")

	pair := ComparisonPair{ImageID: "img", Left: left, Right: right}
	if got := Classify(pair); got != CategoryDifferentWine {
		t.Errorf("absent producer should fall through to different wine, got %q", got)
	}
}

func TestClassifyIdentifierComparisonIsCaseSensitive(t *testing.T) {
	pair := ComparisonPair{
		ImageID: "img",
		Left:    enrichedMatched("w1", "v1", ""),
		Right:   enrichedMatched("W1", "V1", ""),
	}
	if got := Classify(pair); got != CategoryDifferentWine {
		t.Errorf("identifier equality is case-sensitive, got %q", got)
	}
}

func TestClassifyVintageMissingOnOneSideFallsThrough(t *testing.T) {
	// Left matched on wine only, right on wine+vintage: the vintage rule
	// does not apply, the wine rule does.
	pair := ComparisonPair{
		ImageID: "img",
		Left:    enrichedMatched("W1", "", ""),
		Right:   enrichedMatched("W1", "V2", ""),
	}
	if got := Classify(pair); got != CategorySameWine {
		t.Errorf("expected same wine, got %q", got)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	pair := ComparisonPair{
		ImageID: "img",
		Left:    enrichedMatched("W1", "V1", "P1"),
		Right:   enrichedMatched("W1", "V2", "P1"),
	}
	first := Classify(pair)
	second := Classify(pair)
	if first != second {
		t.Errorf("classification must be deterministic: %q vs %q", first, second)
	}
}

package compare

// MatchCategory is one of the fixed taxonomy of comparison outcomes. The
// taxonomy is closed: Classify never synthesizes other values.
type MatchCategory string

const (
	CategoryOnlyScannedByLeft  MatchCategory = "Only-scanned-by-left"
	CategoryOnlyScannedByRight MatchCategory = "Only-scanned-by-right"
	CategoryBothNoMatch        MatchCategory = "Both-no-match"
	CategoryOnlyLeftMatched    MatchCategory = "Only-left-matched"
	CategoryOnlyRightMatched   MatchCategory = "Only-right-matched"
	CategoryExactMatch         MatchCategory = "Exact match"
	CategorySameWine           MatchCategory = "Same wine, different vintage"
	CategorySameProducer       MatchCategory = "Same producer, different wine"
	CategoryDifferentWine      MatchCategory = "Different wine"
)

// classifyRule is one predicate in the ordered decision procedure. It
// reports the category and whether the rule applied.
type classifyRule func(ComparisonPair) (MatchCategory, bool)

// classifyRules is evaluated in order; the first applicable rule wins.
// The order mirrors the decision table: one-sided presence, match status,
// then identifier equality from most to least specific.
var classifyRules = []classifyRule{
	ruleOneSideAbsent,
	ruleNeitherMatched,
	ruleOneSideMatched,
	ruleExactVintage,
	ruleSameWine,
	ruleSameProducer,
}

// Classify assigns the match category for a pair. It is a pure, total
// function: every pair with at least one side present maps to exactly one
// category. Identifier comparison is case-sensitive exact equality with no
// normalization; a rule that needs a descriptive field absent on either
// side simply does not apply.
func Classify(pair ComparisonPair) MatchCategory {
	for _, rule := range classifyRules {
		if category, ok := rule(pair); ok {
			return category
		}
	}
	return CategoryDifferentWine
}

func ruleOneSideAbsent(pair ComparisonPair) (MatchCategory, bool) {
	switch {
	case pair.Right == nil:
		return CategoryOnlyScannedByLeft, true
	case pair.Left == nil:
		return CategoryOnlyScannedByRight, true
	}
	return "", false
}

func ruleNeitherMatched(pair ComparisonPair) (MatchCategory, bool) {
	if !pair.Left.Matched && !pair.Right.Matched {
		return CategoryBothNoMatch, true
	}
	return "", false
}

func ruleOneSideMatched(pair ComparisonPair) (MatchCategory, bool) {
	switch {
	case pair.Left.Matched && !pair.Right.Matched:
		return CategoryOnlyLeftMatched, true
	case !pair.Left.Matched && pair.Right.Matched:
		return CategoryOnlyRightMatched, true
	}
	return "", false
}

func ruleExactVintage(pair ComparisonPair) (MatchCategory, bool) {
	if bothPresentEqual(pair.Left.VintageID, pair.Right.VintageID) {
		return CategoryExactMatch, true
	}
	return "", false
}

func ruleSameWine(pair ComparisonPair) (MatchCategory, bool) {
	if bothPresentEqual(pair.Left.WineID, pair.Right.WineID) {
		return CategorySameWine, true
	}
	return "", false
}

func ruleSameProducer(pair ComparisonPair) (MatchCategory, bool) {
	if bothPresentEqual(pair.Left.Producer, pair.Right.Producer) {
		return CategorySameProducer, true
	}
	return "", false
}

// bothPresentEqual is true only when both values are present and identical.
// Partial data never counts as equal or unequal; the rule falls through.
func bothPresentEqual(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

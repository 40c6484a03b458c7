package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vinobench/internal/compare"
)

// categoryOrder fixes the display order of the taxonomy, from least to
// most agreement between the two systems.
var categoryOrder = []compare.MatchCategory{
	compare.CategoryOnlyScannedByLeft,
	compare.CategoryOnlyScannedByRight,
	compare.CategoryBothNoMatch,
	compare.CategoryOnlyLeftMatched,
	compare.CategoryOnlyRightMatched,
	compare.CategoryDifferentWine,
	compare.CategorySameProducer,
	compare.CategorySameWine,
	compare.CategoryExactMatch,
}

// CategorySummary is one line of the run summary.
type CategorySummary struct {
	Category compare.MatchCategory
	Count    int
	Percent  float64
}

// Summarize tallies pairs per category in fixed taxonomy order. Categories
// with zero pairs are included so summaries from different runs line up.
func Summarize(result *compare.Result) []CategorySummary {
	counts := result.CategoryCounts()
	total := len(result.Pairs)

	summaries := make([]CategorySummary, 0, len(categoryOrder))
	for _, category := range categoryOrder {
		count := counts[category]
		percent := 0.0
		if total > 0 {
			percent = float64(count) / float64(total) * 100
		}
		summaries = append(summaries, CategorySummary{
			Category: category,
			Count:    count,
			Percent:  percent,
		})
	}
	return summaries
}

// FormatPercent renders a percentage with one decimal, as in "42.9%".
func FormatPercent(percent float64) string {
	return fmt.Sprintf("%.1f%%", percent)
}

var labelCaser = cases.Title(language.English)

// TitleLabel renders a run label as a display heading: underscores become
// spaces and words are title-cased, so "clip_v2" reads as "Clip V2".
func TitleLabel(label string) string {
	return labelCaser.String(strings.ReplaceAll(label, "_", " "))
}

package catalog

import (
	"brewsync/internal"
	"brewsync/internal/pipeline"
)

type AnalyzedItem struct {
	Ingredient internal.CanonicalIngredient
	Result     internal.MatchResult
}

// MatchAnalysis previews how an invoice would line up with the catalog
// without changing anything.
type MatchAnalysis struct {
	Items     []AnalyzedItem
	Exact     int
	Partial   int
	Unmatched int
	// CategoryErrors lists categories that could not be read.
	CategoryErrors map[internal.IngredientType]error
}

func AnalyzeMatches(ings []internal.CanonicalIngredient, snap *Snapshot) MatchAnalysis {
	m := pipeline.NewMatcher(pipeline.AnalysisPrefixLen)
	out := MatchAnalysis{Items: []AnalyzedItem{}, CategoryErrors: map[internal.IngredientType]error{}}
	if snap != nil {
		for t, err := range snap.Errors {
			out.CategoryErrors[t] = err
		}
	}

	for _, ing := range ings {
		res := m.Match(ing, snap.For(ing.Type))
		switch {
		case !res.Found:
			out.Unmatched++
		case res.Confidence == internal.ConfidenceHigh:
			out.Exact++
		default:
			out.Partial++
		}
		out.Items = append(out.Items, AnalyzedItem{Ingredient: ing, Result: res})
	}
	return out
}

// UnmatchedByType groups the names of unmatched ingredients by category.
// Categories without misses are left out.
func (a MatchAnalysis) UnmatchedByType() map[internal.IngredientType][]string {
	out := map[internal.IngredientType][]string{}
	for _, item := range a.Items {
		if item.Result.Found {
			continue
		}
		out[item.Ingredient.Type] = append(out[item.Ingredient.Type], item.Ingredient.Name)
	}
	return out
}

// Recommendation is the follow-up advice printed for a category that has
// unmatched items.
func Recommendation(t internal.IngredientType) string {
	switch t {
	case internal.TypeFermentable:
		return "Add the missing fermentables in Brewfather (Inventory → Fermentables) using the invoice names, then re-run the sync."
	case internal.TypeHop:
		return "Add the missing hops in Brewfather (Inventory → Hops); include the variety name so later invoices match."
	case internal.TypeYeast:
		return "Add the missing yeasts in Brewfather (Inventory → Yeasts) with the lab product code, e.g. US-05 or WLP001."
	default:
		return "Add the missing items in Brewfather (Inventory → Miscs), or ignore equipment lines that are not brewing ingredients."
	}
}

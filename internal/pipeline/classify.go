package pipeline

import (
	"strings"

	"brewsync/internal"
)

const (
	RuleFermentable  = "fermentable"
	RuleHop          = "hop"
	RuleYeast        = "yeast"
	RuleWaterMineral = "water_mineral"
	RuleClarifier    = "clarifier"
	RuleDefault      = "default"
)

type Classification struct {
	Type internal.IngredientType
	Rule string
}

// Classify assigns an ingredient category from the item name. Rules are
// evaluated in priority order and the first hit wins; names nothing matches
// fall back to misc.
func Classify(name string) Classification {
	lower := strings.ToLower(name)

	switch {
	case isFermentable(lower):
		return Classification{Type: internal.TypeFermentable, Rule: RuleFermentable}
	case hopSet.Contains(lower):
		return Classification{Type: internal.TypeHop, Rule: RuleHop}
	case yeastSet.Contains(lower):
		return Classification{Type: internal.TypeYeast, Rule: RuleYeast}
	case waterMineralSet.Contains(lower):
		return Classification{Type: internal.TypeMisc, Rule: RuleWaterMineral}
	case clarifierSet.Contains(lower):
		return Classification{Type: internal.TypeMisc, Rule: RuleClarifier}
	default:
		return Classification{Type: internal.TypeMisc, Rule: RuleDefault}
	}
}

// isFermentable rejects equipment names before looking for grain keywords.
func isFermentable(lower string) bool {
	if exclusionSet.Contains(lower) {
		return false
	}
	return fermentableSet.Contains(lower)
}

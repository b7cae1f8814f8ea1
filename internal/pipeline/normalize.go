package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"brewsync/internal"
	"brewsync/internal/config"
	"brewsync/internal/util"
)

type NormalizeOptions struct {
	Supplier string
}

func NormalizeOptionsFromConfig(cfg config.Config) NormalizeOptions {
	return NormalizeOptions{Supplier: cfg.InvoiceSupplier}
}

const (
	defaultCrystalColor = 60
	defaultHopAlpha     = 5.0
	unknownValue        = "Unknown"
)

var (
	reColor     = regexp.MustCompile(`(?i)(\d+)\s*(?:l|ebc|lovibond)\b`)
	reAlpha     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%?\s*(?:alpha|aa)\b`)
	reProductID = regexp.MustCompile(`(?i)\b(?:WLP|US-|BE-|S-|Wyeast\s+)\d+|\bK-97\b`)
)

type fermentableRule struct {
	words   []string
	subType string
	color   float64
}

// Checked in order; crystal colour comes from the name when present.
var fermentableRules = []fermentableRule{
	{words: []string{"crystal", "caramel"}, subType: "Crystal", color: defaultCrystalColor},
	{words: []string{"chocolate", "brown"}, subType: "Roasted", color: 400},
	{words: []string{"black", "roasted", "patent"}, subType: "Roasted", color: 500},
	{words: []string{"wheat", "weizen"}, subType: "Wheat", color: 3},
	{words: []string{"munich", "vienna", "amber", "biscuit", "victory", "aromatic"}, subType: "Specialty", color: 10},
}

type origin struct {
	pattern *regexp.Regexp
	display string
}

var origins = []origin{
	{regexp.MustCompile(`(?i)\bgerman\b`), "German"},
	{regexp.MustCompile(`(?i)\benglish\b`), "English"},
	{regexp.MustCompile(`(?i)\bamerican\b`), "American"},
	{regexp.MustCompile(`(?i)\buk\b`), "UK"},
	{regexp.MustCompile(`(?i)\busa\b`), "USA"},
	{regexp.MustCompile(`(?i)\bczech\b`), "Czech"},
	{regexp.MustCompile(`(?i)\bbelgian\b`), "Belgian"},
	{regexp.MustCompile(`(?i)\bnew zealand\b`), "New Zealand"},
	{regexp.MustCompile(`(?i)\baustralian\b`), "Australian"},
	{regexp.MustCompile(`(?i)\bslovenian\b`), "Slovenian"},
	{regexp.MustCompile(`(?i)\bfrench\b`), "French"},
}

var laboratories = []struct {
	word    string
	display string
}{
	{"wyeast", "Wyeast"},
	{"white labs", "White Labs"},
	{"fermentis", "Fermentis"},
	{"lallemand", "Lallemand"},
}

// Normalize classifies a raw line item and converts it into the canonical
// record for its category.
func Normalize(item internal.RawLineItem, opts NormalizeOptions) internal.CanonicalIngredient {
	return NormalizeAs(Classify(item.Name).Type, item, opts)
}

// NormalizeAs converts an item into the canonical record of a known category.
func NormalizeAs(t internal.IngredientType, item internal.RawLineItem, opts NormalizeOptions) internal.CanonicalIngredient {
	base := internal.CanonicalIngredient{
		Type:     t,
		Name:     item.Name,
		Supplier: opts.Supplier,
		Notes:    "Imported from invoice. Original: " + item.RawLine,
		RawLine:  item.RawLine,
	}
	lower := strings.ToLower(item.Name)

	switch t {
	case internal.TypeFermentable:
		return normalizeFermentable(base, lower, item)
	case internal.TypeHop:
		return normalizeHop(base, lower, item)
	case internal.TypeYeast:
		return normalizeYeast(base, lower, item)
	default:
		return normalizeMisc(base, lower, item)
	}
}

func NormalizeAll(items []internal.RawLineItem, opts NormalizeOptions) []internal.CanonicalIngredient {
	out := make([]internal.CanonicalIngredient, 0, len(items))
	for _, item := range items {
		out = append(out, Normalize(item, opts))
	}
	return out
}

func normalizeFermentable(ing internal.CanonicalIngredient, lower string, item internal.RawLineItem) internal.CanonicalIngredient {
	subType, color := "Base", 2.0
	for _, rule := range fermentableRules {
		if containsAny(lower, rule.words...) {
			subType, color = rule.subType, rule.color
			if subType == "Crystal" {
				if c, ok := lastNumber(reColor, item.Name); ok {
					color = c
				}
			}
			break
		}
	}

	ing.SubType = subType
	ing.Attrs = internal.FermentableAttrs{Color: color}
	ing.Unit = internal.UnitKg
	ing.Amount = roundAmount(util.ToKg(item.Quantity, string(item.Unit)))
	ing.Cost = CostPerUnit(item.Price, ing.Amount)
	ing.Origin = extractOrigin(item.Name)
	return ing
}

func normalizeHop(ing internal.CanonicalIngredient, lower string, item internal.RawLineItem) internal.CanonicalIngredient {
	form := "Pellet"
	switch {
	case containsAny(lower, "leaf", "whole"):
		form = "Leaf"
	case strings.Contains(lower, "extract"):
		form = "Extract"
	}
	alpha := defaultHopAlpha
	if a, ok := firstNumber(reAlpha, item.Name); ok {
		alpha = a
	}

	ing.SubType = form
	ing.Attrs = internal.HopAttrs{Form: form, Alpha: alpha}
	ing.Unit = internal.UnitG
	ing.Amount = roundAmount(util.ToGrams(item.Quantity, string(item.Unit)))
	ing.Cost = CostPerUnit(item.Price, ing.Amount)
	ing.Origin = extractOrigin(item.Name)
	return ing
}

func normalizeYeast(ing internal.CanonicalIngredient, lower string, item internal.RawLineItem) internal.CanonicalIngredient {
	form := "Dry"
	if strings.Contains(lower, "liquid") {
		form = "Liquid"
	}

	subType := "Ale"
	switch {
	case strings.Contains(lower, "lager"):
		subType = "Lager"
	case containsAny(lower, "wheat", "weizen"):
		subType = "Wheat"
	case containsAny(lower, "wild", "brett"):
		subType = "Wild"
	}

	lab := unknownValue
	for _, l := range laboratories {
		if strings.Contains(lower, l.word) {
			lab = l.display
			break
		}
	}

	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	if isYeastNutrient(lower) {
		ing.Unit = internal.UnitG
		ing.Amount = roundAmount(util.ToGrams(qty, string(item.Unit)))
	} else {
		ing.Unit = internal.UnitPkg
		ing.Amount = roundAmount(qty)
	}

	ing.SubType = subType
	ing.Attrs = internal.YeastAttrs{Form: form, Laboratory: lab, ProductID: reProductID.FindString(item.Name)}
	ing.Cost = CostPerUnit(item.Price, ing.Amount)
	return ing
}

func normalizeMisc(ing internal.CanonicalIngredient, lower string, item internal.RawLineItem) internal.CanonicalIngredient {
	subType, use := "Other", "Boil"
	switch {
	case waterMineralSet.Contains(lower) || strings.Contains(lower, "acid"):
		subType, use = "Water Agent", "Mash"
	case clarifierSet.Contains(lower):
		subType, use = "Fining", "Secondary"
	case strings.Contains(lower, "nutrient"):
		subType, use = "Yeast Nutrient", "Primary"
	}

	ing.SubType = subType
	ing.Attrs = internal.MiscAttrs{Use: use}
	ing.Unit = internal.UnitG
	ing.Amount = roundAmount(util.ToGrams(item.Quantity, string(item.Unit)))
	ing.Cost = CostPerUnit(item.Price, ing.Amount)
	return ing
}

func isYeastNutrient(lower string) bool {
	return containsAny(lower, "nutrient", "energizer", "dap")
}

// CostPerUnit divides a line total by the canonical amount, rounded to four
// decimals. Zero or negative inputs give a zero cost.
func CostPerUnit(total, amount float64) float64 {
	if total <= 0 || amount <= 0 {
		return 0
	}
	return decimal.NewFromFloat(total).Div(decimal.NewFromFloat(amount)).Round(4).InexactFloat64()
}

func roundAmount(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return decimal.NewFromFloat(v).Round(6).InexactFloat64()
}

func extractOrigin(name string) string {
	for _, o := range origins {
		if o.pattern.MatchString(name) {
			return o.display
		}
	}
	return unknownValue
}

func firstNumber(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	return v, err == nil
}

func lastNumber(re *regexp.Regexp, s string) (float64, bool) {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(all[len(all)-1][1], 64)
	return v, err == nil
}

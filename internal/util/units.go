package util

import "strings"

const (
	gramsPerKg = 1000.0
	kgPerLb    = 0.453592
	gramsPerLb = 453.592
	kgPerOz    = 0.0283495
	gramsPerOz = 28.3495
)

// ToKg converts a quantity to kilograms. Units other than kg, g, lb and oz
// are returned unchanged.
func ToKg(qty float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "kg":
		return qty
	case "g":
		return qty / gramsPerKg
	case "lb":
		return qty * kgPerLb
	case "oz":
		return qty * kgPerOz
	default:
		return qty
	}
}

// ToGrams converts a quantity to grams. Units other than kg, g, lb and oz
// are returned unchanged.
func ToGrams(qty float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "kg":
		return qty * gramsPerKg
	case "g":
		return qty
	case "lb":
		return qty * gramsPerLb
	case "oz":
		return qty * gramsPerOz
	default:
		return qty
	}
}

// ConvertAmount converts between mass units; target must be kg or g.
func ConvertAmount(qty float64, from, to string) float64 {
	switch strings.ToLower(strings.TrimSpace(to)) {
	case "kg":
		return ToKg(qty, from)
	case "g":
		return ToGrams(qty, from)
	default:
		return qty
	}
}

// ParseUnit maps the spellings seen on invoices to the canonical unit names.
func ParseUnit(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "kg", "kgs", "kilo", "kilos":
		return "kg", true
	case "g", "gr", "gram", "grams":
		return "g", true
	case "l", "ltr", "litre", "litres", "liter", "liters":
		return "L", true
	case "ml":
		return "ml", true
	case "each", "ea":
		return "each", true
	case "pkt", "pack", "packet", "packets":
		return "pkt", true
	case "sachet", "sachets":
		return "sachet", true
	case "lb", "lbs":
		return "lb", true
	case "oz":
		return "oz", true
	case "pkg":
		return "pkg", true
	default:
		return "", false
	}
}

// IsMassUnit reports whether the unit is convertible by ToKg/ToGrams.
func IsMassUnit(unit string) bool {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "kg", "g", "lb", "oz":
		return true
	}
	return false
}

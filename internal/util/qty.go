package util

import (
	"regexp"
	"strconv"
	"strings"
)

var qtyUnitPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(kg|g|l|ml|pkt|sachets?|lb|oz)\b`)

type ParsedQty struct {
	Qty    *float64
	Unit   *string
	QtyRaw *string
}

// ParseQty finds the last quantity followed by a unit in a free text line.
// Pack sizes trail the description, so "Crystal 150L 1kg" yields 1 kg.
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, "\u00A0", " ")

	all := qtyUnitPattern.FindAllStringSubmatch(line, -1)
	if len(all) == 0 {
		return ParsedQty{}
	}
	m := all[len(all)-1]

	parsed, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return ParsedQty{}
	}
	unit, ok := ParseUnit(m[2])
	if !ok {
		return ParsedQty{}
	}
	raw := m[0]
	return ParsedQty{Qty: FloatPtr(parsed), Unit: StringPtr(unit), QtyRaw: &raw}
}

// StripQty removes the quantity+unit occurrence ParseQty would report.
func StripQty(input string) string {
	all := qtyUnitPattern.FindAllStringIndex(input, -1)
	if len(all) == 0 {
		return input
	}
	loc := all[len(all)-1]
	return NormalizeSpaces(input[:loc[0]] + " " + input[loc[1]:])
}

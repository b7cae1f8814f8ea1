package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"brewsync/internal"
	"brewsync/internal/config"
	"brewsync/internal/util"
)

// VendorTemplate describes where a supplier's invoice layout puts its items
// table. FirstItemAnchor is optional: when empty or absent from the text the
// first item starts right after the header marker.
type VendorTemplate struct {
	Name            string
	HeaderMarker    string
	TrailerMarker   string
	FirstItemAnchor string
	// SkipPrefixes are lower-cased letterhead lines ignored by the line scan.
	SkipPrefixes []string
}

var DefaultTemplate = VendorTemplate{
	Name:          "Malt Miller",
	HeaderMarker:  "Product Quantity Weight Price VAT Line Total",
	TrailerMarker: "Subtotal",
	SkipPrefixes:  []string{"the malt miller", "malt miller"},
}

// TemplateFromConfig overlays configured markers on the default template.
func TemplateFromConfig(cfg config.Config) VendorTemplate {
	tpl := DefaultTemplate
	if v := strings.TrimSpace(cfg.InvoiceHeaderMarker); v != "" {
		tpl.HeaderMarker = v
	}
	if v := strings.TrimSpace(cfg.InvoiceTrailerMarker); v != "" {
		tpl.TrailerMarker = v
	}
	tpl.FirstItemAnchor = strings.TrimSpace(cfg.InvoiceFirstItemAnchor)
	if v := strings.TrimSpace(cfg.InvoiceSupplier); v != "" {
		tpl.Name = v
		lower := strings.ToLower(v)
		tpl.SkipPrefixes = []string{lower, "the " + lower}
	}
	return tpl
}

const (
	StrategyTabular  = "tabular"
	StrategyLineScan = "line-scan"
)

type parseStrategy struct {
	name string
	run  func(text string, tpl VendorTemplate) []internal.RawLineItem
}

// strategies run in order; the first one producing items wins.
var strategies = []parseStrategy{
	{name: StrategyTabular, run: parseTabular},
	{name: StrategyLineScan, run: parseLineScan},
}

type Parser struct {
	template VendorTemplate
}

func NewParser(tpl VendorTemplate) *Parser {
	return &Parser{template: tpl}
}

// ParseInvoiceText parses with the default Malt Miller template.
func ParseInvoiceText(text string) internal.InvoiceDocument {
	return NewParser(DefaultTemplate).Parse(text)
}

// Parse never fails: missing metadata stays nil and an unrecognised layout
// yields an empty item list.
func (p *Parser) Parse(text string) internal.InvoiceDocument {
	doc := internal.InvoiceDocument{
		InvoiceNumber: extractInvoiceNumber(text),
		Date:          extractInvoiceDate(text),
		Total:         extractInvoiceTotal(text),
		Items:         []internal.RawLineItem{},
		RawText:       text,
	}

	for _, s := range strategies {
		items := s.run(text, p.template)
		if len(items) > 0 {
			doc.Items = items
			doc.Strategy = s.name
			break
		}
	}
	return doc
}

var reCurrency = regexp.MustCompile(`£\s*(\d+\.\d{2})`)

// parseTabular walks the currency amounts of the items table three at a time
// (unit price, VAT, line total). The description of each item is the text
// between the previous triple and the current one.
func parseTabular(text string, tpl VendorTemplate) []internal.RawLineItem {
	if tpl.HeaderMarker == "" {
		return nil
	}
	hi := strings.Index(text, tpl.HeaderMarker)
	if hi < 0 {
		return nil
	}
	start := hi + len(tpl.HeaderMarker)
	end := len(text)
	if tpl.TrailerMarker != "" {
		if ti := strings.Index(text[start:], tpl.TrailerMarker); ti >= 0 {
			end = start + ti
		}
	}
	section := text[start:end]

	cursor := 0
	if tpl.FirstItemAnchor != "" {
		if ai := strings.Index(section, tpl.FirstItemAnchor); ai >= 0 {
			cursor = ai
		}
	}

	amounts := reCurrency.FindAllStringSubmatchIndex(section, -1)
	items := []internal.RawLineItem{}
	for k := 0; k+2 < len(amounts); k += 3 {
		first, third := amounts[k], amounts[k+2]
		if k > 0 {
			cursor = amounts[k-1][1]
		}
		if cursor > first[0] {
			continue
		}
		span := strings.TrimSpace(section[cursor:first[0]])
		if len(span) < 3 {
			continue
		}
		total, err := strconv.ParseFloat(section[third[2]:third[3]], 64)
		if err != nil {
			continue
		}
		if item, ok := parseItemText(span, total); ok {
			items = append(items, item)
		}
	}
	return items
}

const minItemNameLen = 3

var (
	reTrailingQty = regexp.MustCompile(`(?i)(\d+)\s+(\d+(?:\.\d+)?)\s*(kg|g|l|ml|each|pkt|sachets?)\s*$`)
	reZeroWeight  = regexp.MustCompile(`(?i)(\d+)\s+0(?:\.0+)?\s*kg\s*$`)
	reProductCode = regexp.MustCompile(`^[A-Z]+-\d+-\d+$`)
	reLongDigits  = regexp.MustCompile(`^\d{7,}$`)
	reCountryCode = regexp.MustCompile(`^[A-Z]{1,3}$`)
)

// parseItemText turns one table description such as
// "Maris Otter Pale Malt EQU-11-022 3923299000 GB 2 12.5kg" into an item.
func parseItemText(span string, lineTotal float64) (internal.RawLineItem, bool) {
	rest := strings.TrimSpace(span)
	quantity := 1.0
	unit := internal.UnitEach

	// Checked first: the general pattern would read "2 0.0kg" as 0 kg.
	if m := reZeroWeight.FindStringSubmatchIndex(rest); m != nil {
		count, _ := strconv.Atoi(rest[m[2]:m[3]])
		if count > 0 {
			quantity = float64(count)
		}
		rest = rest[:m[0]]
	} else if m := reTrailingQty.FindStringSubmatchIndex(rest); m != nil {
		count, _ := strconv.Atoi(rest[m[2]:m[3]])
		weight, _ := strconv.ParseFloat(rest[m[4]:m[5]], 64)
		parsedUnit, _ := util.ParseUnit(rest[m[6]:m[7]])
		unit = internal.Unit(parsedUnit)
		if unit == internal.UnitKg || unit == internal.UnitG {
			quantity = float64(count) * weight
		} else {
			quantity = float64(count)
		}
		rest = rest[:m[0]]
	}

	name := util.NormalizeSpaces(stripTrailingCodes(rest))
	if len([]rune(name)) < minItemNameLen {
		return internal.RawLineItem{}, false
	}
	return internal.RawLineItem{
		Name:     name,
		Quantity: quantity,
		Unit:     unit,
		Price:    lineTotal,
		RawLine:  span,
	}, true
}

// stripTrailingCodes drops SKU, tariff and country-of-origin columns that
// trail the product description.
func stripTrailingCodes(s string) string {
	fields := strings.Fields(s)
	for len(fields) > 0 {
		last := fields[len(fields)-1]
		if reProductCode.MatchString(last) || reLongDigits.MatchString(last) || reCountryCode.MatchString(last) {
			fields = fields[:len(fields)-1]
			continue
		}
		break
	}
	return strings.Join(fields, " ")
}

var skipLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(invoice|date|total|subtotal|vat|delivery|payment)`),
	regexp.MustCompile(`(?i)^(address|tel|email)`),
	regexp.MustCompile(`(?i)^(page \d+|\d+/\d+)$`),
	regexp.MustCompile(`^£?\s*\d+\.\d{2}$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`(?i)^thank you`),
}

func isSkippedLine(line string, tpl VendorTemplate) bool {
	lower := strings.ToLower(line)
	for _, prefix := range tpl.SkipPrefixes {
		if prefix != "" && strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, re := range skipLinePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func looksLikeIngredient(line string) bool {
	if ingredientSet.Contains(strings.ToLower(line)) {
		return true
	}
	return util.ParseQty(line).Qty != nil
}

// parseLineScan is the fallback for layouts without a recognisable items
// table. An ingredient-looking line opens an item and the next line carrying
// a price closes it.
func parseLineScan(text string, tpl VendorTemplate) []internal.RawLineItem {
	items := []internal.RawLineItem{}
	var open *internal.RawLineItem

	flush := func() {
		if open != nil {
			items = append(items, *open)
			open = nil
		}
	}

	for _, line := range splitLines(text) {
		if isSkippedLine(line, tpl) {
			continue
		}
		price, hasPrice := findPrice(line)

		if hasPrice && open != nil {
			open.Price = price
			flush()
			continue
		}
		if !looksLikeIngredient(line) {
			continue
		}

		flush()
		item := internal.RawLineItem{Name: line, Quantity: 1, Unit: internal.UnitEach, RawLine: line}
		name := reCurrency.ReplaceAllString(line, " ")
		if q := util.ParseQty(name); q.Qty != nil {
			item.Quantity = *q.Qty
			item.Unit = internal.Unit(*q.Unit)
			name = util.StripQty(name)
		}
		item.Name = util.NormalizeSpaces(name)
		if len([]rune(item.Name)) < minItemNameLen {
			continue
		}
		open = &item

		if hasPrice {
			open.Price = price
			flush()
		}
	}
	flush()
	return items
}

func findPrice(line string) (float64, bool) {
	m := reCurrency.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var (
	reInvoiceNumber = regexp.MustCompile(`(?i)Invoice Number:\s*(\d+)`)
	reInvoiceDate   = regexp.MustCompile(`(?i)Invoice Date:[ \t]*([^\n]*)`)
	reDateShape     = []*regexp.Regexp{
		regexp.MustCompile(`^\d{1,2}(?:st|nd|rd|th)?\s+[A-Za-z]+,?\s+\d{4}`),
		regexp.MustCompile(`^[A-Za-z]+\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`),
		regexp.MustCompile(`^\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}`),
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`),
	}
	reTotals = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bTotal\s+£\s*(\d+\.\d{2})`),
		regexp.MustCompile(`(?i)Grand Total[:\s]*£\s*(\d+\.\d{2})`),
		regexp.MustCompile(`(?i)Final Total[:\s]*£\s*(\d+\.\d{2})`),
	}
)

func extractInvoiceNumber(text string) *string {
	if m := reInvoiceNumber.FindStringSubmatch(text); m != nil {
		return util.StringPtr(m[1])
	}
	return nil
}

// extractInvoiceDate takes the rest of the "Invoice Date:" line, cut down to
// a leading date when one is recognisable.
func extractInvoiceDate(text string) *string {
	m := reInvoiceDate.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value := strings.TrimSpace(m[1])
	if value == "" {
		return nil
	}
	for _, re := range reDateShape {
		if d := re.FindString(value); d != "" {
			return util.StringPtr(d)
		}
	}
	return util.StringPtr(value)
}

func extractInvoiceTotal(text string) *float64 {
	for _, re := range reTotals {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return util.FloatPtr(v)
			}
		}
	}
	return nil
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"brewsync/internal"
	"brewsync/internal/util"
)

type ReportInvoice struct {
	Number   *string  `json:"number"`
	Date     *string  `json:"date"`
	Total    *float64 `json:"total"`
	Supplier string   `json:"supplier"`
}

type ReportItem struct {
	Name        string        `json:"name"`
	Amount      float64       `json:"amount"`
	Unit        internal.Unit `json:"unit"`
	CostPerUnit float64       `json:"costPerUnit"`
	TotalCost   float64       `json:"totalCost"`
}

type TypeSummary struct {
	Count     int          `json:"count"`
	TotalCost float64      `json:"totalCost"`
	Items     []ReportItem `json:"items"`
}

type ReportSummary struct {
	TotalItems int                                      `json:"totalItems"`
	TotalCost  float64                                  `json:"totalCost"`
	ByType     map[internal.IngredientType]*TypeSummary `json:"byType"`
}

type InvoiceReport struct {
	Invoice     ReportInvoice                  `json:"invoice"`
	Ingredients []internal.CanonicalIngredient `json:"ingredients"`
	Summary     ReportSummary                  `json:"summary"`
	Timestamp   string                         `json:"timestamp"`
}

func BuildReport(doc internal.InvoiceDocument, ings []internal.CanonicalIngredient, supplier string, now time.Time) InvoiceReport {
	if ings == nil {
		ings = []internal.CanonicalIngredient{}
	}
	return InvoiceReport{
		Invoice: ReportInvoice{
			Number:   doc.InvoiceNumber,
			Date:     doc.Date,
			Total:    doc.Total,
			Supplier: supplier,
		},
		Ingredients: ings,
		Summary:     SummarizeIngredients(ings),
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
}

// SummarizeIngredients totals cost per unit times amount, overall and per type.
func SummarizeIngredients(ings []internal.CanonicalIngredient) ReportSummary {
	out := ReportSummary{TotalItems: len(ings), ByType: map[internal.IngredientType]*TypeSummary{}}
	total := decimal.Zero
	byType := map[internal.IngredientType]decimal.Decimal{}

	for _, ing := range ings {
		lineCost := lineTotal(ing)
		total = total.Add(lineCost)
		byType[ing.Type] = byType[ing.Type].Add(lineCost)

		ts, ok := out.ByType[ing.Type]
		if !ok {
			ts = &TypeSummary{Items: []ReportItem{}}
			out.ByType[ing.Type] = ts
		}
		ts.Count++
		ts.Items = append(ts.Items, ReportItem{
			Name:        ing.Name,
			Amount:      ing.Amount,
			Unit:        ing.Unit,
			CostPerUnit: ing.Cost,
			TotalCost:   lineCost.InexactFloat64(),
		})
	}

	out.TotalCost = total.InexactFloat64()
	for t, v := range byType {
		out.ByType[t].TotalCost = v.InexactFloat64()
	}
	return out
}

func lineTotal(ing internal.CanonicalIngredient) decimal.Decimal {
	return decimal.NewFromFloat(ing.Cost).Mul(decimal.NewFromFloat(ing.Amount))
}

func WriteJSONReport(w io.Writer, report InvoiceReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

type detailedCSVRow struct {
	Type        string `csv:"Type"`
	Name        string `csv:"Name"`
	Quantity    string `csv:"Quantity"`
	Unit        string `csv:"Unit"`
	CostPerUnit string `csv:"Cost per Unit (£)"`
	TotalCost   string `csv:"Total Cost (£)"`
	Supplier    string `csv:"Supplier"`
	Notes       string `csv:"Notes"`
}

type catalogImportCSVRow struct {
	Type     string  `csv:"Type"`
	Name     string  `csv:"Name"`
	Amount   float64 `csv:"Amount"`
	Unit     string  `csv:"Unit"`
	Cost     float64 `csv:"Cost"`
	CostUnit string  `csv:"Cost Unit"`
	Supplier string  `csv:"Supplier"`
}

// WriteDetailedCSV writes the inventory CSV preceded by a comment line naming
// the supplier, invoice number and date.
func WriteDetailedCSV(w io.Writer, invoice ReportInvoice, ings []internal.CanonicalIngredient) error {
	supplier := util.FirstNonEmpty(invoice.Supplier, DefaultTemplate.Name)
	if _, err := fmt.Fprintf(w, "# %s Invoice %s - %s\n", supplier, orUnknown(invoice.Number), orUnknown(invoice.Date)); err != nil {
		return err
	}

	rows := make([]*detailedCSVRow, 0, len(ings))
	for _, ing := range ings {
		rows = append(rows, &detailedCSVRow{
			Type:        string(ing.Type),
			Name:        ing.Name,
			Quantity:    decimal.NewFromFloat(ing.Amount).String(),
			Unit:        string(ing.Unit),
			CostPerUnit: decimal.NewFromFloat(ing.Cost).StringFixed(4),
			TotalCost:   lineTotal(ing).StringFixed(2),
			Supplier:    util.FirstNonEmpty(ing.Supplier, supplier),
			Notes:       ing.Notes,
		})
	}
	return gocsv.Marshal(&rows, w)
}

// WriteCatalogImportCSV writes the flat layout used for a manual Brewfather
// inventory import.
func WriteCatalogImportCSV(w io.Writer, ings []internal.CanonicalIngredient, currency string) error {
	currency = util.FirstNonEmpty(currency, "GBP")
	rows := make([]*catalogImportCSVRow, 0, len(ings))
	for _, ing := range ings {
		rows = append(rows, &catalogImportCSVRow{
			Type:     string(ing.Type),
			Name:     ing.Name,
			Amount:   ing.Amount,
			Unit:     string(ing.Unit),
			Cost:     ing.Cost,
			CostUnit: currency,
			Supplier: util.FirstNonEmpty(ing.Supplier, DefaultTemplate.Name),
		})
	}
	return gocsv.Marshal(&rows, w)
}

// ReportBaseName is "<supplier-slug>-<invoice>-<yyyy-mm-dd>".
func ReportBaseName(supplier string, invoiceNumber *string, day time.Time) string {
	slug := util.Slug(util.FirstNonEmpty(supplier, DefaultTemplate.Name))
	return fmt.Sprintf("%s-%s-%s", slug, util.SafeFileName(orUnknown(invoiceNumber)), day.Format("2006-01-02"))
}

func CatalogImportFileName(invoiceNumber *string, day time.Time) string {
	return fmt.Sprintf("brewfather-inventory-%s-%s.csv", util.SafeFileName(orUnknown(invoiceNumber)), day.Format("2006-01-02"))
}

type ReportPaths struct {
	JSON          string
	CSV           string
	CatalogImport string
}

// SaveReports writes the JSON report, the detailed CSV and the catalog-import
// CSV into dir.
func SaveReports(dir string, report InvoiceReport, currency string, now time.Time) (ReportPaths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ReportPaths{}, err
	}
	base := ReportBaseName(report.Invoice.Supplier, report.Invoice.Number, now)
	paths := ReportPaths{
		JSON:          filepath.Join(dir, base+".json"),
		CSV:           filepath.Join(dir, base+".csv"),
		CatalogImport: filepath.Join(dir, CatalogImportFileName(report.Invoice.Number, now)),
	}

	if err := writeFile(paths.JSON, func(w io.Writer) error { return WriteJSONReport(w, report) }); err != nil {
		return ReportPaths{}, err
	}
	if err := writeFile(paths.CSV, func(w io.Writer) error { return WriteDetailedCSV(w, report.Invoice, report.Ingredients) }); err != nil {
		return ReportPaths{}, err
	}
	if err := writeFile(paths.CatalogImport, func(w io.Writer) error {
		return WriteCatalogImportCSV(w, report.Ingredients, currency)
	}); err != nil {
		return ReportPaths{}, err
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func ExportRowsToXLSX(rows []internal.IngredientExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{
		"line_no", "type", "name", "sub_type", "amount", "unit", "cost_per_unit", "origin", "supplier",
		"raw_line", "sync_action", "sync_success", "sync_error", "catalog_id", "new_amount",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.LineNo)
		set(2, row.Type)
		set(3, row.Name)
		set(4, row.SubType)
		set(5, row.Amount)
		set(6, row.Unit)
		set(7, row.Cost)
		set(8, row.Origin)
		set(9, row.Supplier)
		set(10, row.RawLine)
		set(11, util.DerefString(row.SyncAction))
		set(12, derefBool(row.SyncSuccess))
		set(13, util.DerefString(row.SyncError))
		set(14, util.DerefString(row.CatalogID))
		set(15, derefFloat(row.NewAmount))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func orUnknown(v *string) string {
	if v == nil || *v == "" {
		return "unknown"
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefBool(v *bool) any {
	if v == nil {
		return ""
	}
	return *v
}

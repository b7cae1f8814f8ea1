package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"brewsync/internal"
)

// ProcessInvoiceFile runs extract, parse and normalize over one invoice file.
// PDF files go through the PDF decoder, .html/.htm through the HTML
// flattener and anything else is read as plain text.
func ProcessInvoiceFile(path string, tpl VendorTemplate, opts NormalizeOptions) (internal.InvoiceDocument, []internal.CanonicalIngredient, error) {
	text, err := readInvoiceText(path)
	if err != nil {
		return internal.InvoiceDocument{}, nil, err
	}
	doc := NewParser(tpl).Parse(text)
	return doc, NormalizeAll(doc.Items, opts), nil
}

func readInvoiceText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return ExtractPDFFile(path)
	case ".html", ".htm":
		blob, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return ExtractHTMLText(string(blob)), nil
	case ".txt", "":
		blob, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(blob), nil
	default:
		return "", fmt.Errorf("unsupported invoice file type: %s", filepath.Ext(path))
	}
}

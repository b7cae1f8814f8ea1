package pipeline

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPages(t *testing.T) {
	pages := []PageText{
		{Fragments: []string{"Invoice Number: 42", "Invoice Date: 1 May 2024"}},
		{},
		{Fragments: []string{"Total £10.00"}},
	}
	assert.Equal(t, "Invoice Number: 42 Invoice Date: 1 May 2024\n\nTotal £10.00", JoinPages(pages))
	assert.Equal(t, "", JoinPages(nil))
}

// onePagePDF assembles a minimal single-page PDF around the given content
// stream, with a correct cross-reference table.
func onePagePDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objects))
	for i, obj := range objects {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestReadPDFPagesKeepsStreamOrder(t *testing.T) {
	// The price column is drawn before the description on the same row.
	content := strings.Join([]string{
		"BT /F1 12 Tf 400 700 Td (21.00) Tj ET",
		"BT /F1 12 Tf 50 700 Td (Maris Otter) Tj ET",
		"BT /F1 12 Tf 50 680 Td (Citra) Tj ET",
	}, "\n")

	pages, err := ReadPDFPages(onePagePDF(content))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, []string{"21.00", "Maris Otter", "Citra"}, pages[0].Fragments)

	text, err := ExtractPDFText(onePagePDF(content))
	require.NoError(t, err)
	assert.Equal(t, "21.00 Maris Otter Citra", text)
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	_, err := ExtractPDFText([]byte("this is not a pdf"))
	require.Error(t, err)

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Empty(t, ee.Source)
}

func TestExtractPDFFileNamesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 truncated"), 0o644))

	_, err := ExtractPDFFile(path)
	require.Error(t, err)

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, path, ee.Source)
	assert.Contains(t, err.Error(), path)
}

func TestExtractPDFFileMissing(t *testing.T) {
	_, err := ExtractPDFFile(filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExtractHTMLText(t *testing.T) {
	html := `<html><head><title>ignored</title><style>td{color:red}</style></head><body>
<h1>Order Confirmation</h1>
<table>
  <tr><th>Item</th><th>Price</th></tr>
  <tr><td>Maris Otter   25kg</td><td>£21.00</td></tr>
</table>
<p>Invoice Number: 123</p>
</body></html>`

	text := ExtractHTMLText(html)
	lines := strings.Split(text, "\n")

	assert.Equal(t, "Item Price", lines[0])
	assert.Equal(t, "Maris Otter 25kg £21.00", lines[1])
	assert.Contains(t, text, "Order Confirmation")
	assert.Contains(t, text, "Invoice Number: 123")
	assert.NotContains(t, text, "ignored")
	assert.NotContains(t, text, "color:red")
}

func TestReadInvoiceEmail(t *testing.T) {
	pdfBody := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake"))
	raw := strings.Join([]string{
		"From: The Malt Miller <orders@example.com>",
		"To: brewer@example.com",
		"Subject: Invoice 1001",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Thanks for your order</p>",
		"--BOUNDARY",
		`Content-Type: application/pdf; name="invoice-1001.pdf"`,
		`Content-Disposition: attachment; filename="invoice-1001.pdf"`,
		"Content-Transfer-Encoding: base64",
		"",
		pdfBody,
		"--BOUNDARY--",
		"",
	}, "\r\n")

	email, err := ReadInvoiceEmail([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "Invoice 1001", email.Subject)
	assert.Contains(t, email.From, "orders@example.com")
	assert.Contains(t, email.HTML, "Thanks for your order")
	assert.Equal(t, []string{"invoice-1001.pdf"}, email.AttachmentNames())

	pdfs := email.PDFs()
	require.Len(t, pdfs, 1)
	assert.Equal(t, []byte("%PDF-1.4 fake"), pdfs[0].Content)
}

package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"

	"brewsync/internal/util"
)

// ExtractionError reports a document whose text could not be decoded.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("extract text: %v", e.Err)
	}
	return fmt.Sprintf("extract text from %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PageText is the ordered list of text fragments decoded from one page.
type PageText struct {
	Fragments []string
}

// JoinPages flattens decoded pages into one blob: fragments in stream order
// separated by single spaces, pages separated by a newline.
func JoinPages(pages []PageText) string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, strings.Join(p.Fragments, " "))
	}
	return strings.Join(out, "\n")
}

func ExtractPDFText(content []byte) (string, error) {
	pages, err := ReadPDFPages(content)
	if err != nil {
		return "", err
	}
	return JoinPages(pages), nil
}

func ExtractPDFFile(path string) (string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text, err := ExtractPDFText(blob)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) {
			ee.Source = path
		}
		return "", err
	}
	return text, nil
}

// ReadPDFPages decodes every page into text runs in content-stream order,
// not visual order. Panics raised by the PDF decoder on malformed streams
// are reported as ExtractionError.
func ReadPDFPages(content []byte) (pages []PageText, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &ExtractionError{Err: fmt.Errorf("pdf decoder panic: %v", r)}
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	pages = make([]PageText, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, PageText{})
			continue
		}
		pages = append(pages, PageText{Fragments: mergeRuns(p.Content().Text)})
	}
	return pages, nil
}

// mergeRuns glues consecutive glyphs that sit next to each other on the same
// baseline into a single fragment. A baseline change or a horizontal gap wider
// than a fifth of the font size starts a new fragment.
func mergeRuns(texts []pdf.Text) []string {
	var out []string
	var cur strings.Builder
	var end, y float64
	for i, t := range texts {
		if i > 0 {
			gap := t.X - end
			if t.Y != y || gap > t.FontSize*0.2 || gap < -t.FontSize {
				if s := strings.TrimSpace(cur.String()); s != "" {
					out = append(out, s)
				}
				cur.Reset()
			}
		}
		cur.WriteString(t.S)
		end = t.X + t.W
		y = t.Y
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// ExtractHTMLText flattens an HTML order confirmation into lines. Table rows
// become one line with their cells joined by spaces.
func ExtractHTMLText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style,head").Remove()

	lines := []string{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := []string{}
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			if v := util.NormalizeSpaces(cell.Text()); v != "" {
				cells = append(cells, v)
			}
		})
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " "))
		}
	})
	doc.Find("table").Remove()

	doc.Find("p,div,li,h1,h2,h3,h4,br").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})
	lines = append(lines, splitLines(doc.Text())...)
	return strings.Join(lines, "\n")
}

type EmailAttachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

type InvoiceEmail struct {
	Subject     string
	From        string
	Text        string
	HTML        string
	Attachments []EmailAttachment
}

// PDFs returns the attachments that look like PDF documents.
func (e InvoiceEmail) PDFs() []EmailAttachment {
	out := []EmailAttachment{}
	for _, att := range e.Attachments {
		if strings.HasSuffix(strings.ToLower(att.FileName), ".pdf") || strings.EqualFold(att.ContentType, "application/pdf") {
			out = append(out, att)
		}
	}
	return out
}

func (e InvoiceEmail) AttachmentNames() []string {
	out := make([]string, 0, len(e.Attachments))
	for _, att := range e.Attachments {
		out = append(out, att.FileName)
	}
	return out
}

// ReadInvoiceEmail parses a raw RFC 822 message.
func ReadInvoiceEmail(raw []byte) (InvoiceEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return InvoiceEmail{}, err
	}

	out := InvoiceEmail{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Text:    env.Text,
		HTML:    env.HTML,
	}
	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for _, part := range parts {
		name := strings.TrimSpace(part.FileName)
		if name == "" {
			name = "attachment"
		}
		out.Attachments = append(out.Attachments, EmailAttachment{
			FileName:    name,
			ContentType: part.ContentType,
			Content:     part.Content,
		})
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

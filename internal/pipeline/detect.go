package pipeline

import (
	"strings"

	"brewsync/internal/util"
)

type DetectResult struct {
	IsInvoice bool
	Score     float64
	Reason    string
}

var detectKeywords = []string{"invoice", "order", "receipt", "malt miller", "vat", "subtotal"}

// DetectInvoiceEmail scores a message on subject keywords, body keywords,
// priced quantity lines and a PDF attachment.
func DetectInvoiceEmail(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}

	priced := countPricedLines(text)
	if priced >= 2 {
		score += 0.3
	} else if priced == 1 {
		score += 0.15
	}

	for _, name := range attachmentNames {
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			score += 0.3
			break
		}
	}
	if score > 1 {
		score = 1
	}

	isInvoice := score >= 0.45
	reason := "rules_negative"
	if isInvoice {
		reason = "rules_positive"
	}

	return DetectResult{IsInvoice: isInvoice, Score: score, Reason: reason}
}

func countPricedLines(text string) int {
	count := 0
	for _, line := range splitLines(text) {
		if _, ok := findPrice(line); !ok {
			continue
		}
		if util.ParseQty(line).Qty != nil {
			count++
		}
	}
	return count
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectInvoiceEmail(t *testing.T) {
	res := DetectInvoiceEmail(
		"Your Malt Miller order #12345",
		"Thanks for your order.\nMaris Otter 25kg £21.00\nChinook 100g £6.00\nSubtotal £27.00",
		[]string{"invoice-12345.pdf"},
	)
	assert.True(t, res.IsInvoice)
	assert.Equal(t, "rules_positive", res.Reason)
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestDetectInvoiceEmailNegative(t *testing.T) {
	res := DetectInvoiceEmail("Brew day this weekend?", "Fancy brewing a stout on Saturday?", nil)
	assert.False(t, res.IsInvoice)
	assert.Equal(t, "rules_negative", res.Reason)
	assert.Zero(t, res.Score)
}

func TestDetectInvoiceEmailAttachmentBoost(t *testing.T) {
	without := DetectInvoiceEmail("Invoice 4411", "", nil)
	with := DetectInvoiceEmail("Invoice 4411", "", []string{"INV-4411.PDF"})

	assert.False(t, without.IsInvoice)
	assert.True(t, with.IsInvoice)
	assert.InDelta(t, 0.3, with.Score-without.Score, 1e-9)
}

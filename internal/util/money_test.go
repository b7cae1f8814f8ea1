package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "£21.00", FormatMoney(21, "GBP"))
	assert.Equal(t, "£0.84", FormatMoney(0.8400000001, "GBP"))
	assert.Equal(t, "£1,234.57", FormatMoney(1234.567, ""))
	assert.Equal(t, "$3.10", FormatMoney(3.1, "USD"))
}

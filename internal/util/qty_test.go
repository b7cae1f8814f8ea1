package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQty(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantQty  float64
		wantUnit string
	}{
		{name: "kilograms", input: "Maris Otter 25kg", wantQty: 25, wantUnit: "kg"},
		{name: "grams with space", input: "Citra Pellets 100 g", wantQty: 100, wantUnit: "g"},
		{name: "decimal", input: "Crystal 150L 1.5kg bag", wantQty: 1.5, wantUnit: "kg"},
		{name: "sachets plural", input: "US-05 2 sachets", wantQty: 2, wantUnit: "sachet"},
		{name: "upper case", input: "Lactic acid 100ML", wantQty: 100, wantUnit: "ml"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseQty(tc.input)
			require.NotNil(t, parsed.Qty)
			require.NotNil(t, parsed.Unit)
			assert.Equal(t, tc.wantQty, *parsed.Qty)
			assert.Equal(t, tc.wantUnit, *parsed.Unit)
		})
	}
}

func TestParseQtyNoUnit(t *testing.T) {
	parsed := ParseQty("Chocolate malt 5 grain")
	assert.Nil(t, parsed.Qty)
	assert.Nil(t, parsed.Unit)
}

func TestStripQty(t *testing.T) {
	assert.Equal(t, "Citra Pellets", StripQty("Citra 100g Pellets"))
	assert.Equal(t, "Irish Moss", StripQty("Irish Moss"))
}

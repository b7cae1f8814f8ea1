package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitConversions(t *testing.T) {
	cases := []struct {
		unit  string
		qty   float64
		kg    float64
		grams float64
	}{
		{unit: "kg", qty: 25, kg: 25, grams: 25000},
		{unit: "g", qty: 250, kg: 0.25, grams: 250},
		{unit: "lb", qty: 1, kg: 0.453592, grams: 453.592},
		{unit: "oz", qty: 2, kg: 0.056699, grams: 56.699},
		{unit: "KG", qty: 1.5, kg: 1.5, grams: 1500},
	}

	for _, tc := range cases {
		t.Run(tc.unit, func(t *testing.T) {
			assert.InDelta(t, tc.kg, ToKg(tc.qty, tc.unit), 1e-9)
			assert.InDelta(t, tc.grams, ToGrams(tc.qty, tc.unit), 1e-9)
		})
	}
}

func TestUnitRoundTrip(t *testing.T) {
	for _, q := range []float64{0, 0.1, 1, 12.5, 25, 1234.5678} {
		assert.InDelta(t, q, ToKg(ToGrams(q, "kg"), "g"), 1e-9)
		assert.InDelta(t, q, ToGrams(ToKg(q, "g"), "kg"), 1e-9)
	}
}

func TestUnknownUnitsPassThrough(t *testing.T) {
	for _, unit := range []string{"each", "pkt", "sachet", "L", "ml", ""} {
		assert.Equal(t, 3.0, ToKg(3, unit), unit)
		assert.Equal(t, 3.0, ToGrams(3, unit), unit)
	}
}

func TestParseUnit(t *testing.T) {
	cases := map[string]string{"KG": "kg", "sachets": "sachet", "l": "L", "Each": "each", "lbs": "lb"}
	for in, want := range cases {
		got, ok := ParseUnit(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseUnit("bucket")
	assert.False(t, ok)
}

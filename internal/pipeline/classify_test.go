package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"brewsync/internal"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		want     internal.IngredientType
		wantRule string
	}{
		{name: "Maris Otter Pale Malt", want: internal.TypeFermentable, wantRule: RuleFermentable},
		{name: "Crystal 150L", want: internal.TypeFermentable, wantRule: RuleFermentable},
		{name: "Chinook Hop Pellets 100g", want: internal.TypeHop, wantRule: RuleHop},
		{name: "Citra T90 Pellets", want: internal.TypeHop, wantRule: RuleHop},
		{name: "Fermentis SafAle US-05", want: internal.TypeYeast, wantRule: RuleYeast},
		{name: "Wyeast 1056 American Ale", want: internal.TypeYeast, wantRule: RuleYeast},
		{name: "Gypsum", want: internal.TypeMisc, wantRule: RuleWaterMineral},
		{name: "Whirlfloc Tablets", want: internal.TypeMisc, wantRule: RuleClarifier},
		{name: "Large Grain Bag", want: internal.TypeMisc, wantRule: RuleDefault},
		{name: "Hop Spider Bag", want: internal.TypeHop, wantRule: RuleHop},
		{name: "Stainless Thermometer", want: internal.TypeMisc, wantRule: RuleDefault},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.name)
			assert.Equal(t, tc.want, got.Type)
			assert.Equal(t, tc.wantRule, got.Rule)
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	inputs := []string{"", "   ", "???", "12345", "ÄÖÜ ünïcödé", "Some Random Widget", "BAG OF MALT"}
	valid := map[internal.IngredientType]bool{
		internal.TypeFermentable: true,
		internal.TypeHop:         true,
		internal.TypeYeast:       true,
		internal.TypeMisc:        true,
	}
	for _, in := range inputs {
		got := Classify(in)
		assert.True(t, valid[got.Type], "input %q produced %q", in, got.Type)
	}
	assert.Equal(t, internal.TypeMisc, Classify("BAG OF MALT").Type)
}

package pipeline

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

var (
	fermentableWords = []string{
		"malt", "grain", "wheat", "barley", "oats", "rye", "corn", "rice",
		"pale", "pilsner", "munich", "vienna", "crystal", "caramel",
		"chocolate", "black", "roasted", "smoked", "amber", "base",
		"maris otter", "golden promise", "cara", "special",
	}
	fermentableExclusions = []string{
		"bag", "liner", "kettle", "equipment", "thermometer", "hydrometer",
		"bottle", "cap", "cork", "tube", "valve", "clamp", "bucket",
	}
	hopWords = []string{
		"hop", "hops", "pellet", "pellets", "leaf",
		"admiral", "amarillo", "cascade", "centennial", "chinook", "citra", "columbus",
		"fuggle", "golding", "hallertau", "kent", "liberty", "magnum", "northern",
		"nugget", "perle", "saaz", "simcoe", "sterling", "tettnang", "willamette",
	}
	yeastWords = []string{
		"yeast", "saccharomyces", "brettanomyces", "lactobacillus",
		"wyeast", "white labs", "fermentis", "lallemand", "mangrove",
		"nutrient", "energizer", "dap",
	}
	waterMineralWords = []string{
		"gypsum", "calcium", "magnesium", "sodium", "chloride", "sulfate",
		"acid", "phosphoric", "lactic", "citric", "campden",
		"potassium", "metabisulfite", "salt",
	}
	clarifierWords = []string{
		"irish moss", "whirlfloc", "protofloc", "clarity", "fining",
		"gelatin", "isinglass", "bentonite",
	}
)

// keywordSet answers substring containment for a fixed word list in one
// pass over the input. The underlying matcher keeps per-call scratch state,
// hence the mutex.
type keywordSet struct {
	mu      sync.Mutex
	words   []string
	matcher *ahocorasick.Matcher
}

func newKeywordSet(lists ...[]string) *keywordSet {
	seen := map[string]struct{}{}
	words := []string{}
	for _, list := range lists {
		for _, w := range list {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			words = append(words, w)
		}
	}
	return &keywordSet{words: words, matcher: ahocorasick.NewStringMatcher(words)}
}

// Contains reports whether any keyword occurs in the already lower-cased text.
func (k *keywordSet) Contains(lower string) bool {
	return len(k.Hits(lower)) > 0
}

// Hits returns the keywords found in the already lower-cased text.
func (k *keywordSet) Hits(lower string) []string {
	if lower == "" {
		return nil
	}
	k.mu.Lock()
	idx := k.matcher.Match([]byte(lower))
	k.mu.Unlock()

	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, k.words[i])
	}
	return out
}

var (
	fermentableSet  = newKeywordSet(fermentableWords)
	exclusionSet    = newKeywordSet(fermentableExclusions)
	hopSet          = newKeywordSet(hopWords)
	yeastSet        = newKeywordSet(yeastWords)
	waterMineralSet = newKeywordSet(waterMineralWords)
	clarifierSet    = newKeywordSet(clarifierWords)

	// ingredientSet is the union used by the line-scan parser to spot item lines.
	ingredientSet = newKeywordSet(fermentableWords, hopWords, yeastWords, waterMineralWords, clarifierWords)
)

func containsAny(lower string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

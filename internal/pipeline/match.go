package pipeline

import (
	"strings"

	"brewsync/internal"
	"brewsync/internal/util"
)

const (
	// AnalysisPrefixLen is used when previewing matches for an invoice.
	AnalysisPrefixLen = 15
	// SyncPrefixLen is used when matching ahead of an inventory update.
	SyncPrefixLen = 20

	maxSuggestions    = 3
	minSuggestWordLen = 4
)

// Matcher finds the catalog entry an ingredient refers to. It holds no state
// beyond the prefix length and can be shared.
type Matcher struct {
	prefixLen int
}

func NewMatcher(prefixLen int) *Matcher {
	if prefixLen <= 0 {
		prefixLen = SyncPrefixLen
	}
	return &Matcher{prefixLen: prefixLen}
}

// Match tries an exact case-insensitive name match, then a prefix substring
// match in either direction. The first qualifying entry in catalog order wins.
func (m *Matcher) Match(ing internal.CanonicalIngredient, entries []internal.CatalogEntry) internal.MatchResult {
	name := strings.ToLower(strings.TrimSpace(ing.Name))

	for i := range entries {
		if strings.ToLower(strings.TrimSpace(entries[i].Name)) == name {
			entry := entries[i]
			return internal.MatchResult{Found: true, Entry: &entry, Confidence: internal.ConfidenceHigh}
		}
	}

	namePrefix := util.RunePrefix(name, m.prefixLen)
	for i := range entries {
		other := strings.ToLower(strings.TrimSpace(entries[i].Name))
		if other == "" || name == "" {
			continue
		}
		if strings.Contains(other, namePrefix) || strings.Contains(name, util.RunePrefix(other, m.prefixLen)) {
			entry := entries[i]
			return internal.MatchResult{Found: true, Entry: &entry, Confidence: internal.ConfidenceMedium}
		}
	}

	return internal.MatchResult{Found: false, Suggestions: Suggest(ing.Name, entries)}
}

// Suggest lists up to three entries sharing a word with the name, where
// both words are longer than three characters and one contains the other.
func Suggest(name string, entries []internal.CatalogEntry) []internal.CatalogEntry {
	words := longWords(name)
	out := []internal.CatalogEntry{}
	if len(words) == 0 {
		return out
	}

	seen := map[string]struct{}{}
	for _, entry := range entries {
		if len(out) >= maxSuggestions {
			break
		}
		key := entry.ID + "\x00" + entry.Name
		if _, ok := seen[key]; ok {
			continue
		}
		if sharesWord(words, longWords(entry.Name)) {
			seen[key] = struct{}{}
			out = append(out, entry)
		}
	}
	return out
}

func longWords(s string) []string {
	out := []string{}
	for _, w := range util.SplitWords(s) {
		if len([]rune(w)) >= minSuggestWordLen {
			out = append(out, w)
		}
	}
	return out
}

func sharesWord(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.Contains(x, y) || strings.Contains(y, x) {
				return true
			}
		}
	}
	return false
}

package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reWordSplit  = regexp.MustCompile(`[\s\-_]+`)
	reNonSlug    = regexp.MustCompile(`[^a-z0-9]+`)
	reFileUnsafe = regexp.MustCompile(`[<>:/\\|?*\s]+`)
)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// SplitWords splits a lower-cased name on whitespace, hyphens and underscores.
func SplitWords(input string) []string {
	parts := reWordSplit.Split(strings.ToLower(input), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RunePrefix returns the first n runes of s.
func RunePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func Slug(input string) string {
	s := reNonSlug.ReplaceAllString(strings.ToLower(input), "-")
	return strings.Trim(s, "-")
}

// SafeFileName replaces characters that cannot appear in a file name.
func SafeFileName(input string) string {
	out := strings.Trim(reFileUnsafe.ReplaceAllString(input, "_"), "_")
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func StringPtr(v string) *string {
	return &v
}

func FloatPtr(v float64) *float64 {
	return &v
}

func DerefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

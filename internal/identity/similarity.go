package identity

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

var (
	nonLetter = regexp.MustCompile(`[^a-z\s]`)
	spaces    = regexp.MustCompile(`\s+`)
)

// DefaultHonorifics are dropped from names before comparison.
var DefaultHonorifics = []string{"mr", "mrs", "md", "mohd", "mohammed", "mohammad", "dr", "shri", "smt"}

// NormalizeName lowercases name, turns everything but a-z into spaces,
// collapses whitespace and removes honorific tokens.
func NormalizeName(name string, honorifics []string) string {
	s := nonLetter.ReplaceAllString(strings.ToLower(name), " ")
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	drop := make(map[string]struct{}, len(honorifics))
	for _, h := range honorifics {
		drop[h] = struct{}{}
	}
	parts := strings.Fields(s)
	kept := parts[:0]
	for _, p := range parts {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// SequenceRatio returns the Ratcliff/Obershelp similarity 2*M/T of a and
// b compared rune by rune, where M counts the runes in matching blocks and T
// is the combined length.
func SequenceRatio(a, b string) float64 {
	ra, rb := runes(a), runes(b)
	if len(ra)+len(rb) == 0 {
		return 1
	}
	return difflib.NewMatcher(ra, rb).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// TokenOverlap is the number of distinct shared tokens divided by the
// token count of the shorter name.
func TokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	common := make(map[string]struct{})
	for _, t := range b {
		if _, ok := set[t]; ok {
			common[t] = struct{}{}
		}
	}
	return float64(len(common)) / float64(min(len(a), len(b)))
}

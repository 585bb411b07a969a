package ocr

import (
	"strings"
	"unicode"
)

// Heuristics holds the lexical tables used to pick names and fix misread
// document numbers. Phrases are matched on whole tokens, so "tax" rejects
// "INCOME TAX" but not "Taxila".
type Heuristics struct {
	// HeaderPhrases identify issuer boilerplate, including common OCR
	// corruptions of it.
	HeaderPhrases []string
	// NameLabels mark the segment that precedes the holder's name.
	NameLabels []string
	// BadKeywords disqualify a segment from being a name.
	BadKeywords []string
	// NonNameStarters disqualify a segment whose first token is one of them.
	NonNameStarters []string
	// DigitMisreads maps letters that OCR confuses with digits.
	DigitMisreads map[rune]rune
	// LabelWindow is how many segments after a label are searched.
	LabelWindow int
	// MinNameTokens and MaxNameTokens bound the count of tokens of two or
	// more letters in a name.
	MinNameTokens int
	MaxNameTokens int
}

// DefaultHeuristics is tuned for Indian PAN and Aadhaar cards in English and
// Devanagari.
var DefaultHeuristics = Heuristics{
	HeaderPhrases: []string{
		"govt", "govt of india", "government", "government of india",
		"income tax", "income tax department", "income", "tax", "department",
		"permanent account number", "permanent account number card", "account number card",
		"authority", "minor",
		"भारत", "सरकार", "आयकर", "आयकर विभाग", "आयकरविभाग", "मेरी पहचान",
		"govl of indla", "governyen0", "incone", "incnne", "taydeparil", "taydeparilent",
		"inc0me", "indla", "g0vt", "g0vernment",
	},
	NameLabels: []string{"name", "नाम"},
	BadKeywords: []string{
		"govt", "government", "india", "income", "tax", "authority",
		"unique", "number", "aadhaar", "aadhar", "card", "pan", "male", "female",
		"date", "dob", "scanned", "scanned by", "proof", "identity",
		"permanent", "department", "signature", "qr", "xml", "issued",
		"address", "mobile", "vid", "father",
	},
	NonNameStarters: []string{
		"income", "inccone", "incnne", "govt", "govl", "government", "bharat", "permanent", "account",
	},
	DigitMisreads: map[rune]rune{
		'O': '0', 'Q': '0', 'D': '0',
		'I': '1', 'L': '1',
		'Z': '2',
		'S': '5',
		'B': '8',
		'G': '6',
		'T': '7',
	},
	LabelWindow:   5,
	MinNameTokens: 2,
	MaxNameTokens: 6,
}

// phraseSet is a compiled list of token phrases.
type phraseSet [][]string

func compilePhrases(phrases []string) phraseSet {
	set := make(phraseSet, 0, len(phrases))
	for _, p := range phrases {
		if toks := tokenize(p); len(toks) > 0 {
			set = append(set, toks)
		}
	}
	return set
}

// matches reports whether any phrase occurs as a contiguous token run in
// tokens, or glued together as a single token.
func (s phraseSet) matches(tokens []string) bool {
	for _, phrase := range s {
		if containsRun(tokens, phrase) {
			return true
		}
		if len(phrase) > 1 {
			glued := strings.Join(phrase, "")
			for _, t := range tokens {
				if t == glued {
					return true
				}
			}
		}
	}
	return false
}

func containsRun(tokens, run []string) bool {
	if len(run) == 0 || len(run) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(run) <= len(tokens); i++ {
		for j, r := range run {
			if tokens[i+j] != r {
				continue outer
			}
		}
		return true
	}
	return false
}

// tokenize lowercases s and splits it on anything that is not a letter,
// combining mark or digit. Marks are kept so Devanagari words stay whole.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r))
	})
}

// asciiWords lowercases s, replaces everything but ASCII letters with spaces
// and splits the result.
func asciiWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// compiled is the ready-to-use form of Heuristics.
type compiled struct {
	headers   phraseSet
	labels    phraseSet
	bad       phraseSet
	starters  map[string]struct{}
	misreads  map[rune]rune
	window    int
	minTokens int
	maxTokens int
}

func (h Heuristics) compile() *compiled {
	c := &compiled{
		headers:   compilePhrases(h.HeaderPhrases),
		labels:    compilePhrases(h.NameLabels),
		bad:       compilePhrases(h.BadKeywords),
		starters:  make(map[string]struct{}, len(h.NonNameStarters)),
		misreads:  h.DigitMisreads,
		window:    h.LabelWindow,
		minTokens: h.MinNameTokens,
		maxTokens: h.MaxNameTokens,
	}
	for _, s := range h.NonNameStarters {
		c.starters[strings.ToLower(s)] = struct{}{}
	}
	return c
}

func (c *compiled) isHeader(text string) bool {
	return c.headers.matches(tokenize(text))
}

func (c *compiled) isLabel(text string) bool {
	return c.labels.matches(tokenize(text))
}

// looksLikeName reports whether a segment could be a holder's name. Token
// tests run on the ASCII letters only.
func (c *compiled) looksLikeName(text string) bool {
	if hasDigit(text) {
		return false
	}
	words := asciiWords(text)
	if len(words) == 0 {
		return false
	}
	if c.headers.matches(words) || c.bad.matches(words) {
		return false
	}
	var tokens []string
	for _, w := range words {
		if len(w) >= 2 {
			tokens = append(tokens, w)
		}
	}
	if len(tokens) < c.minTokens || len(tokens) > c.maxTokens {
		return false
	}
	if _, ok := c.starters[tokens[0]]; ok {
		return false
	}
	return true
}

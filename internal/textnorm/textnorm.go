// Package textnorm folds Spanish free text into the canonical form used for
// keyword matching: lowercase, no diacritics, no punctuation, single spaces.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinKeywordLen is the shortest token kept as a keyword.
const MinKeywordLen = 3

// Normalize lowercases text, strips combining marks after NFD decomposition,
// replaces every non-word rune with a space and collapses whitespace.
// Normalize is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	lowered := strings.ToLower(text)

	// transform.Chain keeps state, so build one per call.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		folded = lowered
	}

	return strings.Join(strings.FieldsFunc(folded, isSeparator), " ")
}

// Tokens returns the whitespace tokens of the normalized text.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

// ExtractKeywords returns the normalized tokens longer than two runes
// followed by every adjacent pair of those tokens joined by a space.
func ExtractKeywords(query string) []string {
	words := Words(query)
	if len(words) == 0 {
		return nil
	}

	keywords := make([]string, 0, 2*len(words)-1)
	keywords = append(keywords, words...)
	for i := 0; i+1 < len(words); i++ {
		keywords = append(keywords, words[i]+" "+words[i+1])
	}
	return keywords
}

// Words returns the normalized tokens longer than two runes, in order.
func Words(text string) []string {
	tokens := Tokens(text)
	words := tokens[:0]
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) >= MinKeywordLen {
			words = append(words, tok)
		}
	}
	return words
}

// RuneLen is the length of s in runes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

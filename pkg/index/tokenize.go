package index

import (
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// tokenize splits text into lowercased word tokens for a full-text index.
// The index still stores one ordered entry per distinct token (string-keyed,
// so wildcard prefix/suffix scans over spec.md §4.5 keep working); xxhash
// is used only for the dedup set below, which needs membership testing, not
// order.
func tokenize(text string) []string {
	seen := make(map[uint64]struct{})
	var tokens []string
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		word = strings.ToLower(word)
		if word == "" {
			continue
		}
		h := xxhash.Sum64String(word)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		tokens = append(tokens, word)
	}
	return tokens
}

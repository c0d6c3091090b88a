package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_LowercasesAndSplitsOnNonAlphanumeric(t *testing.T) {
	got := tokenize("The Quick-Brown Fox, jumps!")
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "jumps"}, got)
}

func TestTokenize_DedupsRepeatedWords(t *testing.T) {
	got := tokenize("ada ada lovelace Ada")
	assert.Equal(t, []string{"ada", "lovelace"}, got)
}

func TestTokenize_EmptyStringYieldsNoTokens(t *testing.T) {
	assert.Nil(t, tokenize(""))
	assert.Nil(t, tokenize("   ---   "))
}

func TestTokenize_KeepsDigitsAsPartOfWords(t *testing.T) {
	got := tokenize("room42 building 7")
	assert.Equal(t, []string{"room42", "building", "7"}, got)
}

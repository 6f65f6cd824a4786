package pattern

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShannonEntropy_EdgeValues(t *testing.T) {
	assert.Equal(t, 0.0, ShannonEntropy(""))
	assert.Equal(t, 0.0, ShannonEntropy("aaaa"))

	// Two equally frequent symbols: exactly 1 bit per character.
	assert.InDelta(t, 1.0, ShannonEntropy("abab"), 1e-9)
}

func TestShannonEntropy_BoundedByAlphabet(t *testing.T) {
	// Mixed tokens sit strictly between 0 and log2(len(distinct symbols)).
	tokens := []string{"abcabcabd", "a1b2c3d4e5", "hello world secrets"}
	for _, tok := range tokens {
		distinct := make(map[rune]bool)
		for _, r := range tok {
			distinct[r] = true
		}
		e := ShannonEntropy(tok)
		assert.Greater(t, e, 0.0, "token %q", tok)
		assert.LessOrEqual(t, e, math.Log2(float64(len(distinct)))+1e-9, "token %q", tok)
	}
}

func TestEntropyDetector_FlagsHighEntropyToken(t *testing.T) {
	detector := NewEntropyDetector(0)
	require.Equal(t, DefaultEntropyThreshold, detector.Threshold())

	// 24 distinct characters: entropy = log2(24) ~ 4.58, above the default
	// threshold, length within [20,128], base64 alphabet.
	token := "abcdefghijklmnopqrstuvwx"
	text := "config value=" + token + " loaded"

	findings := detector.Detect(text)
	require.Len(t, findings, 1)
	assert.Equal(t, token, findings[0].Token)
	assert.Equal(t, strings.Index(text, token), findings[0].Start)
	assert.GreaterOrEqual(t, findings[0].Entropy, DefaultEntropyThreshold)
}

func TestEntropyDetector_IgnoresShortAndLowEntropy(t *testing.T) {
	detector := NewEntropyDetector(0)

	// Short token (under 20 chars) is skipped regardless of entropy.
	assert.Empty(t, detector.Detect("key abcdefghijklmnop done"))

	// Long but repetitive token has near-zero entropy.
	assert.Empty(t, detector.Detect("pad "+strings.Repeat("ab", 20)+" end"))

	// Tokens outside the hex/base64 alphabets are not candidates.
	assert.Empty(t, detector.Detect("phrase это!не@секрет#точно$полюбому%никак^да"))
}

func TestEntropyDetector_TokenizesOnBrackets(t *testing.T) {
	detector := NewEntropyDetector(4.0)

	// The secret is wrapped in JSON punctuation; tokenization must still
	// isolate it.
	secret := "abcdefghijklmnopqrstuv01"
	text := `{"token":"` + secret + `"}`

	findings := detector.Detect(text)
	require.Len(t, findings, 1)
	assert.Equal(t, secret, findings[0].Token)
}

func TestEntropyDetector_CustomThreshold(t *testing.T) {
	strict := NewEntropyDetector(5.0)
	lax := NewEntropyDetector(3.0)

	token := "abcdefghijklmnopqrstuvwx" // entropy ~4.58
	text := "x " + token

	assert.Empty(t, strict.Detect(text))
	assert.Len(t, lax.Detect(text), 1)
}

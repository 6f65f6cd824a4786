package pattern

import (
	"math"
	"strings"
)

// DefaultEntropyThreshold is the bits-per-character floor at which a token
// is flagged as a likely secret.
const DefaultEntropyThreshold = 4.5

// Token length bounds for entropy analysis. Shorter tokens don't carry
// enough signal; longer runs are usually encoded blobs, not credentials.
const (
	entropyMinTokenLen = 20
	entropyMaxTokenLen = 128
)

// EntropyFinding is one high-entropy token detected in scanned text.
type EntropyFinding struct {
	Token   string
	Start   int
	End     int
	Entropy float64
}

// EntropyDetector flags tokens whose Shannon entropy meets or exceeds the
// configured threshold. It only considers tokens built entirely from the
// hex or base64 alphabets, which is where unlisted API keys live.
type EntropyDetector struct {
	threshold float64
}

// NewEntropyDetector creates a detector with the given threshold.
// A threshold <= 0 uses DefaultEntropyThreshold.
func NewEntropyDetector(threshold float64) *EntropyDetector {
	if threshold <= 0 {
		threshold = DefaultEntropyThreshold
	}
	return &EntropyDetector{threshold: threshold}
}

// Threshold returns the configured bits-per-character threshold.
func (d *EntropyDetector) Threshold() float64 {
	return d.threshold
}

// Detect scans text and returns all flagged tokens in offset order.
func (d *EntropyDetector) Detect(text string) []EntropyFinding {
	var findings []EntropyFinding

	for _, tok := range tokenize(text) {
		length := tok.end - tok.start
		if length < entropyMinTokenLen || length > entropyMaxTokenLen {
			continue
		}

		candidate := text[tok.start:tok.end]
		if !isHex(candidate) && !isBase64Alphabet(candidate) {
			continue
		}

		entropy := ShannonEntropy(candidate)
		if entropy >= d.threshold {
			findings = append(findings, EntropyFinding{
				Token:   candidate,
				Start:   tok.start,
				End:     tok.end,
				Entropy: entropy,
			})
		}
	}

	return findings
}

// ShannonEntropy computes the Shannon entropy of s in bits per character.
// Empty and single-symbol strings have entropy 0.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}

	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

type tokenSpan struct {
	start, end int
}

// tokenize splits text on whitespace, brackets, quoting punctuation, and
// key/value separators so that secrets embedded in JSON, YAML, env files,
// or log lines surface as bare tokens.
func tokenize(text string) []tokenSpan {
	var spans []tokenSpan
	start := -1

	for i, r := range text {
		if isTokenBoundary(r) {
			if start >= 0 {
				spans = append(spans, tokenSpan{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, tokenSpan{start: start, end: len(text)})
	}

	return spans
}

func isTokenBoundary(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '(', ')', '[', ']', '{', '}', '<', '>',
		'"', '\'', '`', ',', ';', ':', '=':
		return true
	}
	return false
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return s != ""
}

func isBase64Alphabet(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '+' || r == '/' || r == '=' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return s != ""
}

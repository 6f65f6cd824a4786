package scanner

import (
	"context"
	"regexp"

	"github.com/loreguard-ai/loreguard/internal/pattern"
)

// PIIScanner detects personally identifiable information. Patterns with
// validators (Luhn for credit cards) only report matches that pass them.
type PIIScanner struct {
	patterns []pattern.PIIPattern
	custom   map[string]*regexp.Regexp
	minConf  float64
}

// CompilePII builds a PII scanner from config.
func CompilePII(cfg Config) (*PIIScanner, error) {
	var patterns []pattern.PIIPattern
	if len(cfg.Patterns) == 0 {
		patterns = pattern.PIIPatterns()
	} else {
		for _, name := range cfg.Patterns {
			if p, ok := pattern.PIIPatternByName(name); ok {
				patterns = append(patterns, p)
			}
		}
	}

	custom, err := compileCustom(cfg.CustomPatterns)
	if err != nil {
		return nil, err
	}

	return &PIIScanner{
		patterns: patterns,
		custom:   custom,
		minConf:  cfg.MinConfidence,
	}, nil
}

// Name returns the scanner name.
func (s *PIIScanner) Name() string { return "pii" }

// Type returns TypePII.
func (s *PIIScanner) Type() Type { return TypePII }

// Scan finds all PII matches in text. Context is unused: PII shapes are
// tenant-independent.
func (s *PIIScanner) Scan(_ context.Context, text string, _ Context) Result {
	if text == "" {
		return Result{}
	}

	var matches []Match

	for _, p := range s.patterns {
		if s.minConf > 0 && p.Confidence < s.minConf {
			continue
		}
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			candidate := text[loc[0]:loc[1]]
			if p.Validate != nil && !p.Validate(candidate) {
				continue
			}
			matches = append(matches, Match{
				PatternName:    p.Name,
				Category:       p.Category,
				Start:          loc[0],
				End:            loc[1],
				Confidence:     p.Confidence,
				RedactionToken: redactionToken(p.Name),
			})
		}
	}

	for name, re := range s.custom {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			matches = append(matches, Match{
				PatternName:    name,
				Category:       pattern.CategoryPII,
				Start:          loc[0],
				End:            loc[1],
				Confidence:     customPatternConfidence,
				RedactionToken: redactionToken(name),
			})
		}
	}

	return Result{Matches: dedupMatches(matches)}
}

package scanner

import (
	"context"
	"regexp"

	"github.com/loreguard-ai/loreguard/internal/pattern"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// ContentRegexScanner matches tenant-authored regex rules against content.
// Unlike the built-in scanners it has no default catalog: every pattern is
// explicit, so MinConfidence filtering does not apply.
type ContentRegexScanner struct {
	patterns map[string]*regexp.Regexp
}

// CompileContentRegex builds a content-regex scanner from config. At least
// one custom pattern is required.
func CompileContentRegex(cfg Config) (*ContentRegexScanner, error) {
	if len(cfg.CustomPatterns) == 0 {
		return nil, types.NewError(types.SCANNER_COMPILE_FAILED,
			"content_regex scanner requires at least one custom pattern")
	}

	compiled, err := compileCustom(cfg.CustomPatterns)
	if err != nil {
		return nil, err
	}

	return &ContentRegexScanner{patterns: compiled}, nil
}

// Name returns the scanner name.
func (s *ContentRegexScanner) Name() string { return "content_regex" }

// Type returns TypeContentRegex.
func (s *ContentRegexScanner) Type() Type { return TypeContentRegex }

// Scan finds all matches for the configured patterns.
func (s *ContentRegexScanner) Scan(_ context.Context, text string, _ Context) Result {
	if text == "" {
		return Result{}
	}

	var matches []Match
	for name, re := range s.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			matches = append(matches, Match{
				PatternName:    name,
				Category:       pattern.CategoryGenericSecret,
				Start:          loc[0],
				End:            loc[1],
				Confidence:     customPatternConfidence,
				RedactionToken: redactionToken(name),
			})
		}
	}

	return Result{Matches: dedupMatches(matches)}
}

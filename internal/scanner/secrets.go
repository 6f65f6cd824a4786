package scanner

import (
	"context"
	"regexp"

	"github.com/loreguard-ai/loreguard/internal/pattern"
)

// SecretsScanner detects known secret signatures and, optionally,
// high-entropy unknown secrets.
type SecretsScanner struct {
	patterns []pattern.SecretPattern
	custom   map[string]*regexp.Regexp
	minConf  float64
	entropy  *pattern.EntropyDetector
}

// CompileSecrets builds a secrets scanner from config.
func CompileSecrets(cfg Config) (*SecretsScanner, error) {
	var patterns []pattern.SecretPattern
	if len(cfg.Patterns) == 0 {
		patterns = pattern.ActiveSecretPatterns()
	} else {
		for _, name := range cfg.Patterns {
			if p, ok := pattern.SecretPatternByName(name); ok {
				patterns = append(patterns, p)
			}
			// Unknown names are skipped, not fatal: a rule referencing a
			// pattern removed from the catalog keeps working on the rest.
		}
	}

	custom, err := compileCustom(cfg.CustomPatterns)
	if err != nil {
		return nil, err
	}

	s := &SecretsScanner{
		patterns: patterns,
		custom:   custom,
		minConf:  cfg.MinConfidence,
	}
	if cfg.EntropyEnabled {
		s.entropy = pattern.NewEntropyDetector(cfg.EntropyThreshold)
	}
	return s, nil
}

// Name returns the scanner name.
func (s *SecretsScanner) Name() string { return "secrets" }

// Type returns TypeSecrets.
func (s *SecretsScanner) Type() Type { return TypeSecrets }

// Scan finds all secret matches in text. The context parameters are unused:
// secret signatures are tenant-independent.
func (s *SecretsScanner) Scan(_ context.Context, text string, _ Context) Result {
	if text == "" {
		return Result{}
	}

	var matches []Match

	for _, p := range s.patterns {
		if s.minConf > 0 && p.Confidence < s.minConf {
			continue
		}
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
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

	// Custom patterns bypass the MinConfidence filter: listing one is an
	// explicit opt-in.
	for name, re := range s.custom {
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

	if s.entropy != nil {
		for _, f := range s.entropy.Detect(text) {
			if s.minConf > 0 && EntropyConfidence < s.minConf {
				break
			}
			matches = append(matches, Match{
				PatternName:    "high_entropy_token",
				Category:       pattern.CategoryGenericSecret,
				Start:          f.Start,
				End:            f.End,
				Confidence:     EntropyConfidence,
				RedactionToken: redactionToken("high_entropy_token"),
			})
		}
	}

	return Result{Matches: dedupMatches(matches)}
}

// Package scanner provides compiled, reusable content matchers built from
// the pattern library, plus the registry that caches them per guardrail
// rule. Compiling a scanner (building its regex sets) is the expensive step;
// scanning is cheap and must never panic on malformed input.
package scanner

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/loreguard-ai/loreguard/internal/pattern"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// Type identifies a scanner variant.
type Type string

const (
	TypeSecrets      Type = "secrets"
	TypePII          Type = "pii"
	TypeContentRegex Type = "content_regex"

	// Extension points. Named so rule configs can reference them, but no
	// built-in implementation exists; Compile returns SCANNER_UNKNOWN_TYPE.
	TypeToxicity        Type = "toxicity"
	TypePromptInjection Type = "prompt_injection"
)

// Context carries request metadata for scanners that need it. The built-in
// secrets and PII scanners are context-independent; content-regex scanners
// may use it for per-tenant behavior.
type Context struct {
	TenantID  string
	AgentID   string
	ToolName  string
	Direction string
}

// Match is a single detection produced by a scanner. Offsets index into the
// scanned string. After dedup, matches within one scanner's output never
// overlap.
type Match struct {
	PatternName    string           `json:"pattern_name"`
	Category       pattern.Category `json:"category"`
	Start          int              `json:"start"`
	End            int              `json:"end"`
	Confidence     float64          `json:"confidence"`
	RedactionToken string           `json:"redaction_token"`
}

// Result is the output of one scan.
type Result struct {
	Matches []Match `json:"matches"`
}

// Config controls which patterns a compiled scanner activates.
type Config struct {
	// Patterns names the built-in subset to activate. Empty means all
	// active patterns. Naming a below-floor pattern opts it in explicitly.
	Patterns []string `json:"patterns,omitempty" mapstructure:"patterns"`

	// CustomPatterns maps name -> regex source. Custom matches are always
	// included regardless of MinConfidence: listing one is an explicit
	// opt-in.
	CustomPatterns map[string]string `json:"custom_patterns,omitempty" mapstructure:"custom_patterns"`

	// MinConfidence post-filters built-in matches. Zero disables filtering.
	MinConfidence float64 `json:"min_confidence,omitempty" mapstructure:"min_confidence"`

	// EntropyEnabled adds the unknown-secret entropy detector to a secrets
	// scanner. Its findings surface at confidence 0.5.
	EntropyEnabled bool `json:"entropy_enabled,omitempty" mapstructure:"entropy_enabled"`

	// EntropyThreshold overrides the default 4.5 bits/char threshold.
	EntropyThreshold float64 `json:"entropy_threshold,omitempty" mapstructure:"entropy_threshold"`
}

// Scanner is a compiled, reusable matcher. Scan runs in time proportional
// to the text length and returns zero matches rather than failing on
// malformed input.
type Scanner interface {
	Name() string
	Type() Type
	Scan(ctx context.Context, text string, sc Context) Result
}

// EntropyConfidence is the advisory confidence assigned to entropy
// findings. Callers should not hard-block on these alone.
const EntropyConfidence = 0.5

// customPatternConfidence is assigned to custom-pattern matches. Custom
// patterns are tenant-authored, so they rank above generic shapes but below
// exact vendor signatures.
const customPatternConfidence = 0.8

// Compile builds a scanner of the given type from config. It is pure given
// its arguments: compiling the same config twice yields equivalent scanners.
func Compile(t Type, cfg Config) (Scanner, error) {
	switch t {
	case TypeSecrets:
		return CompileSecrets(cfg)
	case TypePII:
		return CompilePII(cfg)
	case TypeContentRegex:
		return CompileContentRegex(cfg)
	case TypeToxicity, TypePromptInjection:
		return nil, types.NewError(types.SCANNER_UNKNOWN_TYPE,
			fmt.Sprintf("scanner type %q is an extension point with no built-in implementation", t))
	default:
		return nil, types.NewError(types.SCANNER_UNKNOWN_TYPE,
			fmt.Sprintf("unknown scanner type %q", t))
	}
}

// compileCustom compiles the custom pattern map, rejecting invalid regexes
// at compile time so Scan never sees them.
func compileCustom(patterns map[string]string) (map[string]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make(map[string]*regexp.Regexp, len(patterns))
	for name, src := range patterns {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, types.WrapError(types.SCANNER_COMPILE_FAILED,
				fmt.Sprintf("invalid custom pattern %q", name), err)
		}
		compiled[name] = re
	}
	return compiled, nil
}

// redactionToken derives the replacement token for a pattern name.
func redactionToken(name string) string {
	return "[REDACTED_" + strings.ToUpper(name) + "]"
}

// dedupMatches resolves overlapping spans: higher confidence wins, then the
// longer span, then the earlier one. The result is sorted ascending by
// offset and contains no intersecting spans.
func dedupMatches(matches []Match) []Match {
	if len(matches) <= 1 {
		return matches
	}

	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		li, lj := sorted[i].End-sorted[i].Start, sorted[j].End-sorted[j].Start
		if li != lj {
			return li > lj
		}
		return sorted[i].Start < sorted[j].Start
	})

	var accepted []Match
	for _, m := range sorted {
		overlaps := false
		for _, a := range accepted {
			if m.Start < a.End && a.Start < m.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, m)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}

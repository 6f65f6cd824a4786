package redact

import (
	"context"
	"sort"

	"github.com/loreguard-ai/loreguard/internal/scanner"
)

// scanLayer adapts a compiled scanner into a redaction layer: every match
// is replaced with its redaction token. Scanner-backed layers never block.
type scanLayer struct {
	name string
	sc   scanner.Scanner
}

// NewSecretsLayer builds the secrets detection layer (order 100). The
// entropy fallback is on by default so unlisted key formats still get
// scrubbed; set cfg.MinConfidence above 0.5 to exclude its advisory
// findings.
func NewSecretsLayer(cfg scanner.Config) (Layer, error) {
	cfg.EntropyEnabled = true
	sc, err := scanner.CompileSecrets(cfg)
	if err != nil {
		return nil, err
	}
	return &scanLayer{name: "secrets_detection", sc: sc}, nil
}

// NewPIILayer builds the PII detection layer (order 200).
func NewPIILayer(cfg scanner.Config) (Layer, error) {
	sc, err := scanner.CompilePII(cfg)
	if err != nil {
		return nil, err
	}
	return &scanLayer{name: "pii_detection", sc: sc}, nil
}

func (l *scanLayer) Name() string { return l.name }

func (l *scanLayer) Apply(ctx context.Context, input string, rctx *Context) LayerResult {
	res := l.sc.Scan(ctx, input, scanner.Context{
		TenantID: rctx.TenantID,
		AgentID:  rctx.AgentID,
	})
	if len(res.Matches) == 0 {
		return LayerResult{Output: input}
	}

	// Matches are non-overlapping and sorted ascending; replace descending
	// by offset so earlier replacements don't shift later spans.
	matches := res.Matches
	output := input
	findings := make([]Finding, 0, len(matches))

	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if m.Start < 0 || m.End > len(output) || m.Start >= m.End {
			continue
		}
		output = output[:m.Start] + m.RedactionToken + output[m.End:]
	}

	for _, m := range matches {
		findings = append(findings, Finding{
			Layer:          l.name,
			Category:       string(m.Category),
			OriginalLength: m.End - m.Start,
			Replacement:    m.RedactionToken,
			StartOffset:    m.Start,
			EndOffset:      m.End,
			Confidence:     m.Confidence,
		})
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].StartOffset < findings[j].StartOffset })

	return LayerResult{Output: output, Findings: findings}
}

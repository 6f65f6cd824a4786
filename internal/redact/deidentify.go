package redact

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// TenantEntityToken replaces every tenant-identifying match.
const TenantEntityToken = "[TENANT_ENTITY]"

// minTermLength filters known terms: shorter terms match too much
// unrelated text.
const minTermLength = 3

var uuidRe = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

// DeidentifyLayer strips the literal tenant ID, agent ID, UUID-shaped
// substrings, and caller-supplied known tenant terms (order 400). All
// matches collapse to a single [TENANT_ENTITY] token. Never blocks.
type DeidentifyLayer struct{}

// NewDeidentifyLayer creates the layer.
func NewDeidentifyLayer() *DeidentifyLayer {
	return &DeidentifyLayer{}
}

// Name identifies the layer in findings.
func (l *DeidentifyLayer) Name() string { return "tenant_deidentification" }

// Apply replaces tenant-identifying text. Terms are matched
// case-insensitively, longest first, so "Acme Corporation" claims its span
// before "Acme" and partial-match corruption cannot occur. All spans are
// located against the layer input, then replaced descending by offset, so
// Finding offsets index the input like the other layers' do.
func (l *DeidentifyLayer) Apply(_ context.Context, input string, rctx *Context) LayerResult {
	type identSpan struct {
		start, end int
		category   string
		confidence float64
	}
	var accepted []identSpan

	claim := func(locs [][]int, category string, confidence float64) {
		for _, loc := range locs {
			overlaps := false
			for _, a := range accepted {
				if loc[0] < a.end && a.start < loc[1] {
					overlaps = true
					break
				}
			}
			if !overlaps {
				accepted = append(accepted, identSpan{loc[0], loc[1], category, confidence})
			}
		}
	}

	for _, term := range collectTerms(rctx) {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
		if err != nil {
			// QuoteMeta makes this unreachable for any term, but a skipped
			// term must not sink the layer.
			continue
		}
		claim(re.FindAllStringIndex(input, -1), "tenant_identifier", 1.0)
	}
	claim(uuidRe.FindAllStringIndex(input, -1), "uuid", 0.9)

	if len(accepted) == 0 {
		return LayerResult{Output: input}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })

	findings := make([]Finding, 0, len(accepted))
	for _, s := range accepted {
		findings = append(findings, Finding{
			Layer:          l.Name(),
			Category:       s.category,
			OriginalLength: s.end - s.start,
			Replacement:    TenantEntityToken,
			StartOffset:    s.start,
			EndOffset:      s.end,
			Confidence:     s.confidence,
		})
	}

	output := input
	for i := len(accepted) - 1; i >= 0; i-- {
		s := accepted[i]
		output = output[:s.start] + TenantEntityToken + output[s.end:]
	}

	return LayerResult{Output: output, Findings: findings}
}

// collectTerms merges known tenant terms with the tenant and agent IDs,
// drops terms under the minimum length, dedupes case-insensitively, and
// orders longest first.
func collectTerms(rctx *Context) []string {
	raw := make([]string, 0, len(rctx.KnownTenantTerms)+2)
	raw = append(raw, rctx.KnownTenantTerms...)
	if rctx.TenantID != "" {
		raw = append(raw, rctx.TenantID)
	}
	if rctx.AgentID != "" {
		raw = append(raw, rctx.AgentID)
	}

	seen := make(map[string]bool, len(raw))
	terms := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if len(t) < minTermLength {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, t)
	}

	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	return terms
}

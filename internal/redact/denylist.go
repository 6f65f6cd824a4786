package redact

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// DenyListLayer gates items against tenant-configured deny rules (order
// 500). It transforms nothing: any match blocks the entire item.
//
// Rules are plain case-insensitive substrings, or regexes in
// "/pattern/flags" syntax (flags: i, m, s). A malformed regex rule is
// logged and treated as non-matching — fail-open on configuration error,
// because one bad rule must not deny all sharing for the tenant.
type DenyListLayer struct {
	logger *slog.Logger
}

// NewDenyListLayer creates the layer.
func NewDenyListLayer() *DenyListLayer {
	return &DenyListLayer{logger: slog.Default()}
}

// WithLogger sets the logger used for malformed rule warnings.
func (l *DenyListLayer) WithLogger(logger *slog.Logger) *DenyListLayer {
	l.logger = logger
	return l
}

// Name identifies the layer.
func (l *DenyListLayer) Name() string { return "semantic_deny_list" }

// Apply checks every deny rule against the input. On the first match the
// item is blocked with the matching rule in the reason; the output is the
// input verbatim.
func (l *DenyListLayer) Apply(ctx context.Context, input string, rctx *Context) LayerResult {
	for _, rule := range rctx.DenyListPatterns {
		if rule == "" {
			continue
		}

		if re, ok, err := parseRegexRule(rule); ok {
			if err != nil {
				l.logger.WarnContext(ctx, "malformed deny-list regex rule skipped",
					"tenant_id", rctx.TenantID,
					"rule", rule,
					"error", err,
				)
				continue
			}
			if re.MatchString(input) {
				return LayerResult{
					Output:      input,
					Blocked:     true,
					BlockReason: "deny_list_match:" + rule,
				}
			}
			continue
		}

		if strings.Contains(strings.ToLower(input), strings.ToLower(rule)) {
			return LayerResult{
				Output:      input,
				Blocked:     true,
				BlockReason: "deny_list_match:" + rule,
			}
		}
	}

	return LayerResult{Output: input}
}

// parseRegexRule recognizes "/pattern/flags" syntax. ok is false for plain
// substring rules; err is set for regex rules that fail to compile.
func parseRegexRule(rule string) (*regexp.Regexp, bool, error) {
	if len(rule) < 2 || !strings.HasPrefix(rule, "/") {
		return nil, false, nil
	}
	last := strings.LastIndex(rule, "/")
	if last == 0 {
		return nil, false, nil
	}

	pat := rule[1:last]
	flags := rule[last+1:]
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
		default:
			// Unknown flag: not regex syntax, treat as substring rule.
			return nil, false, nil
		}
	}
	if flags != "" {
		pat = "(?" + flags + ")" + pat
	}

	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, true, err
	}
	return re, true, nil
}

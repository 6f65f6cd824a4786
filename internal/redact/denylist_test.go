package redact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenyListLayer_Apply(t *testing.T) {
	layer := NewDenyListLayer()

	tests := []struct {
		name    string
		input   string
		rules   []string
		blocked bool
		reason  string
	}{
		{
			name:    "substring match case-insensitive",
			input:   "the Launch Plans are attached",
			rules:   []string{"launch plans"},
			blocked: true,
			reason:  "deny_list_match:launch plans",
		},
		{
			name:    "no match",
			input:   "routine retry guidance",
			rules:   []string{"merger", "acquisition"},
			blocked: false,
		},
		{
			name:    "regex rule with i flag",
			input:   "codename THUNDERBOLT shipped",
			rules:   []string{"/thunder(bolt|strike)/i"},
			blocked: true,
			reason:  "deny_list_match:/thunder(bolt|strike)/i",
		},
		{
			name:    "regex rule without flags",
			input:   "ticket SEC-1234 opened",
			rules:   []string{`/SEC-\d+/`},
			blocked: true,
			reason:  `deny_list_match:/SEC-\d+/`,
		},
		{
			name:    "malformed regex fails open",
			input:   "anything at all",
			rules:   []string{"/([unclosed/"},
			blocked: false,
		},
		{
			name:    "malformed rule does not mask later rules",
			input:   "mentions the merger",
			rules:   []string{"/([unclosed/", "merger"},
			blocked: true,
			reason:  "deny_list_match:merger",
		},
		{
			name:    "empty rule skipped",
			input:   "any text",
			rules:   []string{""},
			blocked: false,
		},
		{
			name:    "unknown flag treated as substring",
			input:   "literal /abc/x here",
			rules:   []string{"/abc/x"},
			blocked: true,
			reason:  "deny_list_match:/abc/x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rctx := Context{TenantID: "acme", DenyListPatterns: tt.rules}
			result := layer.Apply(context.Background(), tt.input, &rctx)

			assert.Equal(t, tt.blocked, result.Blocked)
			assert.Equal(t, tt.input, result.Output)
			if tt.blocked {
				assert.Equal(t, tt.reason, result.BlockReason)
			}
			assert.Empty(t, result.Findings)
		})
	}
}

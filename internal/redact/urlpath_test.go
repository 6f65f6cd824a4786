package redact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyURLPath(t *testing.T, input string) LayerResult {
	t.Helper()
	layer := NewURLPathLayer(nil)
	return layer.Apply(context.Background(), input, &Context{TenantID: "acme"})
}

func TestURLPathLayer_InternalURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		scrubbed bool
	}{
		{"corp host", "see https://wiki.acme.corp/runbook for details", true},
		{"internal tld", "https://build.internal/job/42 failed", true},
		{"localhost", "dashboard at http://localhost:3000/metrics", true},
		{"private ip url", "curl http://10.1.2.3:8080/health", true},
		{"allow-listed domain", "docs at https://github.com/golang/go", false},
		{"allow-listed subdomain", "see https://docs.github.com/en/actions", false},
		{"public unknown host", "https://example.org/page stays", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := applyURLPath(t, tt.input)
			assert.False(t, result.Blocked)
			if tt.scrubbed {
				assert.Contains(t, result.Output, internalURLToken)
				assert.NotEqual(t, tt.input, result.Output)
			} else {
				assert.Equal(t, tt.input, result.Output)
			}
		})
	}
}

func TestURLPathLayer_PrivateIP(t *testing.T) {
	result := applyURLPath(t, "host 192.168.1.10 timed out")
	assert.Contains(t, result.Output, privateIPToken)
	assert.NotContains(t, result.Output, "192.168.1.10")

	// Public IPs are left alone.
	result = applyURLPath(t, "resolver 8.8.8.8 answered")
	assert.Contains(t, result.Output, "8.8.8.8")
}

func TestURLPathLayer_PrivateIPDelimiters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ip    string
	}{
		{"colon", "dial db:10.0.0.5 failed", "10.0.0.5"},
		{"comma", "peers 192.168.0.2,192.168.0.3 joined", "192.168.0.3"},
		{"bracket", "endpoint [172.16.4.9] drained", "172.16.4.9"},
		{"arrow", "route ->10.20.30.40 dropped", "10.20.30.40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := applyURLPath(t, tt.input)
			assert.Contains(t, result.Output, privateIPToken)
			assert.NotContains(t, result.Output, tt.ip)
		})
	}
}

func TestURLPathLayer_Paths(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		removed string
	}{
		{"unix path", "config at /home/user/.ssh/config was read", "/home/user/.ssh/config"},
		{"windows path", `log in C:\Users\admin\app.log rotated`, `C:\Users\admin\app.log`},
		{"unc path", `share \\fileserver\projects\q3 mounted`, `\\fileserver\projects\q3`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := applyURLPath(t, tt.input)
			assert.NotContains(t, result.Output, tt.removed)
			assert.Contains(t, result.Output, pathToken)
		})
	}
}

func TestURLPathLayer_FindingsAscendingAndDisjoint(t *testing.T) {
	input := "a /var/log/app.log then 10.0.0.5 then https://ci.acme.corp/x"
	result := applyURLPath(t, input)

	require.GreaterOrEqual(t, len(result.Findings), 3)
	for i := 1; i < len(result.Findings); i++ {
		assert.Greater(t, result.Findings[i].StartOffset, result.Findings[i-1].StartOffset)
		assert.GreaterOrEqual(t, result.Findings[i].StartOffset, result.Findings[i-1].EndOffset)
	}
	for _, f := range result.Findings {
		assert.Equal(t, "url_path_scrubbing", f.Layer)
		assert.Equal(t, f.EndOffset-f.StartOffset, f.OriginalLength)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		rawURL string
		host   string
	}{
		{"https://docs.foo.com/path", "docs.foo.com"},
		{"http://localhost:3000/x", "localhost"},
		{"https://user:pw@db.corp:5432/app", "db.corp"},
		{"https://Example.COM", "example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.host, hostOf(tt.rawURL), tt.rawURL)
	}
}

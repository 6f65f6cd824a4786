package pattern

import "regexp"

// Category groups patterns by the kind of data they detect.
type Category string

const (
	CategoryCloudCredential Category = "cloud_credential"
	CategoryAPIKey          Category = "api_key"
	CategoryToken           Category = "token"
	CategoryPrivateKey      Category = "private_key"
	CategoryPassword        Category = "password"
	CategoryGenericSecret   Category = "generic_secret"
	CategoryPII             Category = "pii"
)

// ActiveConfidenceFloor is the minimum confidence for a pattern to be part
// of default scans. Patterns below it are opt-in by name only.
const ActiveConfidenceFloor = 0.5

// SecretPattern describes one named secret detector.
type SecretPattern struct {
	Name       string
	Category   Category
	Regex      *regexp.Regexp
	Confidence float64
}

// Active reports whether the pattern participates in default scans.
func (p SecretPattern) Active() bool {
	return p.Confidence >= ActiveConfidenceFloor
}

// secretPatterns is the built-in secret catalog. Ordering is stable so scan
// output is deterministic for identical input.
var secretPatterns = []SecretPattern{
	{
		Name:       "aws_access_key_id",
		Category:   CategoryCloudCredential,
		Regex:      regexp.MustCompile(`\b(?:AKIA|ASIA|ABIA|ACCA)[0-9A-Z]{16}\b`),
		Confidence: 0.95,
	},
	{
		Name:       "github_token",
		Category:   CategoryToken,
		Regex:      regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,255}\b`),
		Confidence: 0.95,
	},
	{
		Name:       "gitlab_pat",
		Category:   CategoryToken,
		Regex:      regexp.MustCompile(`\bglpat-[A-Za-z0-9_\-]{20,}\b`),
		Confidence: 0.95,
	},
	{
		Name:       "slack_token",
		Category:   CategoryToken,
		Regex:      regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`),
		Confidence: 0.9,
	},
	{
		Name:       "stripe_secret_key",
		Category:   CategoryAPIKey,
		Regex:      regexp.MustCompile(`\b[sr]k_live_[A-Za-z0-9]{20,}\b`),
		Confidence: 0.95,
	},
	{
		Name:       "google_api_key",
		Category:   CategoryAPIKey,
		Regex:      regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`),
		Confidence: 0.95,
	},
	{
		Name:       "openai_api_key",
		Category:   CategoryAPIKey,
		Regex:      regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{20,}T3BlbkFJ[A-Za-z0-9_\-]{20,}\b`),
		Confidence: 0.95,
	},
	{
		Name:       "anthropic_api_key",
		Category:   CategoryAPIKey,
		Regex:      regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{20,}\b`),
		Confidence: 0.95,
	},
	{
		Name:       "npm_token",
		Category:   CategoryToken,
		Regex:      regexp.MustCompile(`\bnpm_[A-Za-z0-9]{36}\b`),
		Confidence: 0.9,
	},
	{
		Name:       "sendgrid_api_key",
		Category:   CategoryAPIKey,
		Regex:      regexp.MustCompile(`\bSG\.[A-Za-z0-9_\-]{22}\.[A-Za-z0-9_\-]{43}\b`),
		Confidence: 0.95,
	},
	{
		Name:       "private_key_block",
		Category:   CategoryPrivateKey,
		Regex:      regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`),
		Confidence: 0.99,
	},
	{
		Name:       "jwt",
		Category:   CategoryToken,
		Regex:      regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}\b`),
		Confidence: 0.8,
	},
	{
		Name:       "password_in_url",
		Category:   CategoryPassword,
		Regex:      regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.\-]*://[^/\s:@]{1,64}:[^/\s:@]{1,64}@[^\s]+`),
		Confidence: 0.7,
	},
	{
		Name:       "basic_auth_header",
		Category:   CategoryPassword,
		Regex:      regexp.MustCompile(`\bBasic\s+[A-Za-z0-9+/]{16,}={0,2}`),
		Confidence: 0.6,
	},
	// Generic shapes kept below the active floor. A bare 40-char token or
	// hex blob matches far too much real-world text to act on by itself.
	{
		Name:       "generic_token_40",
		Category:   CategoryGenericSecret,
		Regex:      regexp.MustCompile(`\b[A-Za-z0-9_\-]{40}\b`),
		Confidence: 0.3,
	},
	{
		Name:       "generic_hex_32",
		Category:   CategoryGenericSecret,
		Regex:      regexp.MustCompile(`\b[0-9a-fA-F]{32,64}\b`),
		Confidence: 0.3,
	},
	{
		Name:       "bearer_token",
		Category:   CategoryGenericSecret,
		Regex:      regexp.MustCompile(`\bBearer\s+[A-Za-z0-9_\-.~+/]{16,}=*`),
		Confidence: 0.4,
	},
}

// SecretPatterns returns the full built-in secret catalog, including
// patterns below the active floor.
func SecretPatterns() []SecretPattern {
	out := make([]SecretPattern, len(secretPatterns))
	copy(out, secretPatterns)
	return out
}

// ActiveSecretPatterns returns only patterns at or above the active floor.
func ActiveSecretPatterns() []SecretPattern {
	out := make([]SecretPattern, 0, len(secretPatterns))
	for _, p := range secretPatterns {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// SecretPatternByName looks up a pattern by name.
func SecretPatternByName(name string) (SecretPattern, bool) {
	for _, p := range secretPatterns {
		if p.Name == name {
			return p, true
		}
	}
	return SecretPattern{}, false
}

// Package pattern is the static catalog of secret and PII detectors used by
// the scanners and the redaction pipeline.
//
// Secret patterns pair a compiled regex with a confidence score; patterns
// below confidence 0.5 describe shapes too generic to act on alone (bare
// 40-char tokens, hex blobs) and are excluded from default scans. PII
// patterns additionally carry post-match validators, e.g. a credit card
// match must pass the Luhn checksum before it is reported.
//
// The entropy detector is the fallback for secrets with no known signature:
// it flags long high-entropy hex/base64 tokens. Its findings are advisory
// and surface at confidence 0.5, the floor for active patterns.
package pattern

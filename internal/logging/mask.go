package logging

import "regexp"

// Masking substitutions applied to log messages and error messages in
// production. Patterns are applied independently and cumulatively.
var maskPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\b[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`), "[JWT]"},
	{regexp.MustCompile(`sk_live_[A-Za-z0-9]+`), "[STRIPE_LIVE_KEY]"},
	{regexp.MustCompile(`sk_test_[A-Za-z0-9]+`), "[STRIPE_TEST_KEY]"},
	{regexp.MustCompile(`whsec_[A-Za-z0-9]+`), "[WEBHOOK_SECRET]"},
	{regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\b\d(?:[ -]?\d){15}\b`), "[CARD]"},
	{regexp.MustCompile(`(?i)(password\s*[:=]\s*)\S+`), "${1}[REDACTED]"},
}

// Mask replaces credential and PII shapes in s with placeholder tokens.
func Mask(s string) string {
	for _, p := range maskPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

package helpers

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// SanitizeHTMLStrict removes every HTML tag from s while stripping leading and
// trailing whitespace.
func SanitizeHTMLStrict(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(StrictHTMLPolicy().Sanitize(s))
}

// StripControl drops terminal control characters (ANSI escapes included)
// from s, keeping newlines and tabs. Leaked dumps are printed verbatim
// otherwise.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0) {
			return -1
		}
		return r
	}, s)
}

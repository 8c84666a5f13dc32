package helpers

import (
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

var htmlMarker = regexp.MustCompile(`(?i)<(!doctype\s+html|html|head|body|div|p|table|br)[\s>/]`)

// LooksLikeHTML reports whether s appears to be an HTML document or fragment.
func LooksLikeHTML(s string) bool {
	return htmlMarker.MatchString(Truncate(s, 4096))
}

// HTMLToText extracts readable text from an HTML document. readability is
// tried first; pages it cannot parse are stripped with the strict policy.
// Content that does not look like HTML is returned unchanged.
func HTMLToText(content string, pageURL string) string {
	if !LooksLikeHTML(content) {
		return content
	}
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "https", Host: "localhost"}
	}
	article, err := readability.FromReader(strings.NewReader(content), u)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	}
	return SanitizeHTMLStrict(content)
}

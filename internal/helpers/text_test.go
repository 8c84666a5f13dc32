package helpers

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := Truncate("ab", 3); got != "ab" {
		t.Fatalf("expected ab, got %q", got)
	}
	if got := Truncate("sênhã", 4); got != "sênh" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	if !LooksLikeHTML("<!DOCTYPE html><html><body>x</body></html>") {
		t.Fatalf("expected doctype to be detected")
	}
	if !LooksLikeHTML("<div>user@example.com</div>") {
		t.Fatalf("expected fragment to be detected")
	}
	if LooksLikeHTML("user@example.com:hunter2\nadmin@example.com:<secret>") {
		t.Fatalf("expected credential dump not to be detected")
	}
}

func TestHTMLToText_PlainPassThrough(t *testing.T) {
	in := "user@example.com:hunter2"
	if got := HTMLToText(in, ""); got != in {
		t.Fatalf("expected unchanged content, got %q", got)
	}
}

func TestHTMLToText_StripsMarkup(t *testing.T) {
	in := `<html><body><div><p>user@example.com:hunter2</p><script>alert(1)</script></div></body></html>`
	got := HTMLToText(in, "https://intelx.io/?did=1")
	if !strings.Contains(got, "user@example.com:hunter2") {
		t.Fatalf("expected text to survive, got %q", got)
	}
	if strings.Contains(got, "<p>") || strings.Contains(got, "alert(1)") {
		t.Fatalf("expected markup and scripts removed, got %q", got)
	}
}

func TestSanitizeHTMLStrict(t *testing.T) {
	got := SanitizeHTMLStrict(`<p>Hello <strong>world</strong><script>alert('x')</script></p>`)
	if got != "Hello world" {
		t.Fatalf("expected %q, got %q", "Hello world", got)
	}
}

func TestStripControl(t *testing.T) {
	got := StripControl("a\x1b[31mred\x1b[0m\tb\nc\x07")
	if got != "a[31mred[0m\tb\nc" {
		t.Fatalf("unexpected %q", got)
	}
}

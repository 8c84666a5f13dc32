package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoJSONObject is returned when no brace-delimited candidate exists in the input.
var ErrNoJSONObject = errors.New("no JSON object found")

// ExtractGreedyJSON returns the substring spanning from the first '{' to the
// last '}' in s. Prose around the object is tolerated. The match is lossy
// when s holds several JSON-like fragments: everything between the first
// opener and the last closer is returned and will usually fail to decode.
func ExtractGreedyJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", ErrNoJSONObject
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		return "", ErrNoJSONObject
	}
	return s[start : end+1], nil
}

// ExtractBalancedJSON finds and returns the first complete JSON object in s.
// It first removes Markdown code fences if present, then scans for a
// balanced {...} while ignoring braces inside strings.
func ExtractBalancedJSON(s string) (string, error) {
	s = trimBOM(strings.TrimSpace(s))

	if inner, ok := stripFirstCodeFence(s); ok {
		s = strings.TrimSpace(inner)
	}

	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			if out, ok := extractBalancedObjectFrom(s, i); ok {
				return out, nil
			}
		}
	}

	return "", ErrNoJSONObject
}

// DecodeJSONObject decodes candidate into a generic object.
func DecodeJSONObject(candidate string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("decode json object: null")
	}
	return obj, nil
}

// stripFirstCodeFence removes the first fenced code block if s starts with ``` or ~~~.
// It accepts an optional language tag (e.g., ```json).
func stripFirstCodeFence(s string) (inner string, ok bool) {
	trim := strings.TrimLeft(s, "\n\r\t ")
	if strings.HasPrefix(trim, "```") || strings.HasPrefix(trim, "~~~") {
		fence := "```"
		if strings.HasPrefix(trim, "~~~") {
			fence = "~~~"
		}
		rest := trim[len(fence):]
		idx := strings.IndexByte(rest, '\n')
		if idx == -1 {
			return "", false
		}
		rest = rest[idx+1:]
		if end := strings.Index(rest, fence); end != -1 {
			return rest[:end], true
		}
	}
	return "", false
}

// extractBalancedObjectFrom extracts the object opened at startIdx, handling
// nested arrays, strings and escape sequences.
func extractBalancedObjectFrom(s string, startIdx int) (string, bool) {
	if startIdx < 0 || startIdx >= len(s) || s[startIdx] != '{' {
		return "", false
	}

	var (
		stack    = []byte{'{'}
		inString bool
		escape   bool
	)

	for i := startIdx + 1; i < len(s); i++ {
		c := s[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			switch c {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[startIdx : i+1], true
			}
		}
	}

	return "", false
}

// trimBOM removes an optional UTF-8 BOM.
func trimBOM(s string) string {
	if strings.HasPrefix(s, "\uFEFF") {
		return strings.TrimPrefix(s, "\uFEFF")
	}
	if len(s) >= 3 {
		b0, b1, b2 := s[0], s[1], s[2]
		if b0 == 0xEF && b1 == 0xBB && b2 == 0xBF && utf8.ValidString(s[3:]) {
			return s[3:]
		}
	}
	return s
}

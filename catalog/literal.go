package catalog

import (
	"fmt"
	"strings"
)

// ParseListLiteral parses a Python-style list of strings such as
// "['drama', \"sci-fi\"]". An empty cell yields an empty list.
func ParseListLiteral(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("not a list literal: %q", s)
	}

	body := s[1 : len(s)-1]
	items := []string{}
	i := 0
	expectItem := true
	for i < len(body) {
		c := body[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == ',':
			if expectItem {
				return nil, fmt.Errorf("unexpected comma at %d in %q", i, s)
			}
			expectItem = true
			i++
		case c == '\'' || c == '"':
			if !expectItem {
				return nil, fmt.Errorf("missing comma before %d in %q", i, s)
			}
			val, next, err := readQuoted(body, i)
			if err != nil {
				return nil, fmt.Errorf("%w in %q", err, s)
			}
			items = append(items, val)
			expectItem = false
			i = next
		default:
			return nil, fmt.Errorf("unexpected %q at %d in %q", c, i, s)
		}
	}
	// A trailing comma is accepted, as in Python.
	return items, nil
}

// readQuoted reads a quoted string starting at body[start] and returns the value
// and the index just past the closing quote.
func readQuoted(body string, start int) (string, int, error) {
	quote := body[start]
	var sb strings.Builder
	for i := start + 1; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			i++
			sb.WriteByte(body[i])
		case c == quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string at %d", start)
}

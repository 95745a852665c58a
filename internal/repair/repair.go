// Package repair fixes structured model output that was truncated by
// output-length limits. The balancing heuristic is blunt: it produces
// syntactically valid JSON, not a guarantee of semantic correctness.
package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnrepairable = errors.New("model output could not be repaired")

// Repair balances quotes and brackets in raw JSON-shaped text. Well-formed
// input passes through unchanged, so the function is idempotent. If the
// repaired text still fails to parse, ErrUnrepairable is returned.
func Repair(raw string) (string, error) {
	text := StripFences(raw)

	if json.Valid([]byte(text)) {
		return text, nil
	}

	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, '}')
			}
		case '[':
			if !inString {
				stack = append(stack, ']')
			}
		case '}', ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteByte('"')
	}
	// Close open scopes in reverse nesting order.
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}

	repaired := b.String()
	if !json.Valid([]byte(repaired)) {
		return "", fmt.Errorf("%w: %q", ErrUnrepairable, truncate(raw, 120))
	}
	return repaired, nil
}

// StripFences removes a surrounding markdown code fence, which vision models
// routinely wrap JSON answers in.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// Drop the language tag line (```json).
		if lang := strings.TrimSpace(text[:nl]); lang == "" || isIdentifier(lang) {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func isIdentifier(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) > 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

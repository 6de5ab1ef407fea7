package dispatch

import (
	"fmt"
	"strings"
)

// SplitTokens breaks a raw argument string into tokens with shell-style
// quoting: single and double quotes group words, backslash escapes the next
// character outside single quotes.
func SplitTokens(raw string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inWord := false
	quote := byte(0)
	escaped := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case escaped:
			current.WriteByte(ch)
			escaped = false
		case quote == '\'' && ch != '\'':
			current.WriteByte(ch)
		case ch == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case ch == quote:
			quote = 0
		case quote == 0 && (ch == '\'' || ch == '"'):
			quote = ch
			inWord = true
		case quote == 0 && (ch == ' ' || ch == '\t' || ch == '\n'):
			if inWord {
				tokens = append(tokens, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteByte(ch)
			inWord = true
		}
	}
	if escaped || quote != 0 {
		return nil, fmt.Errorf("dispatch: unterminated quoting in %q", raw)
	}
	if inWord {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

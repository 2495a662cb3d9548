package textutil

import "strings"

// FindFirst returns the index of the first candidate found in text at or after
// start that is neither inside a double-quoted string nor inside a parenthesis
// group opened after start. With ignoreParens the nesting count is reset on
// every character, so only string state matters. It returns -1 when nothing
// matches.
func FindFirst(text string, candidates []string, start int, ignoreParens bool) int {
	if start < 0 {
		start = 0
	}
	inString := false
	depth := 0
	for idx := start; idx < len(text); idx++ {
		c := text[idx]
		if c == '"' && !escaped(text, idx) {
			inString = !inString
		}
		if inString {
			continue
		}
		if c == '\'' {
			if end := charLiteralEnd(text, idx); end > idx {
				idx = end
				continue
			}
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
		if ignoreParens {
			depth = 0
		}
		if depth > 0 {
			continue
		}
		for _, cand := range candidates {
			if cand != "" && strings.HasPrefix(text[idx:], cand) {
				return idx
			}
		}
	}
	return -1
}

// SplitArgs splits the argument list whose opening parenthesis is at open.
// Arguments are separated by commas at nesting level zero; commas inside
// strings, character literals and nested brackets are kept. end is the index of
// the closing parenthesis and closed is false when the list runs past the end
// of text, in which case args holds what was seen so far.
func SplitArgs(text string, open int) (args []string, end int, closed bool) {
	if open < 0 || open >= len(text) || text[open] != '(' {
		return nil, -1, false
	}
	depth := 0
	inString := false
	argStart := open + 1
	for i := open + 1; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '"' && !escaped(text, i) {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '\'':
			if e := charLiteralEnd(text, i); e > i {
				i = e
			}
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				args = append(args, strings.TrimSpace(text[argStart:i]))
				if len(args) == 1 && args[0] == "" {
					args = nil
				}
				return args, i, true
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(text[argStart:i]))
				argStart = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(text[argStart:]); rest != "" {
		args = append(args, rest)
	}
	return args, -1, false
}

// IsLiteral reports whether every character of s belongs to a double-quoted
// string literal, so adjacent literals separated by spaces do not qualify.
func IsLiteral(s string) bool {
	inString := false
	for i := 0; i < len(s); i++ {
		if s[i] == '"' && !escaped(s, i) {
			inString = !inString
			continue
		}
		if !inString {
			return false
		}
	}
	return !inString
}

// escaped reports whether the character at idx is preceded by an odd number of
// backslashes.
func escaped(text string, idx int) bool {
	n := 0
	for i := idx - 1; i >= 0 && text[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// charLiteralEnd returns the index of the quote closing a character literal
// opened at idx, or -1 when the apostrophe does not start one.
func charLiteralEnd(text string, idx int) int {
	for i := idx + 1; i < len(text) && i <= idx+6; i++ {
		if text[i] == '\'' && !escaped(text, i) {
			if i == idx+1 {
				return -1
			}
			return i
		}
	}
	return -1
}

package catalog

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TokenKind classifies a catalog statement.
type TokenKind int

const (
	// TokenOriginal is an original text at indentation 0: `"text":`.
	TokenOriginal TokenKind = iota
	// TokenModifier is an assignment terminated by ':' or '=': `name=value:`.
	TokenModifier
	// TokenTranslation is a language translation: `EN: "text"` or `EN: up`.
	TokenTranslation
	// TokenError is a statement the lexer could not make sense of.
	TokenError
)

func (k TokenKind) String() string {
	switch k {
	case TokenOriginal:
		return "original"
	case TokenModifier:
		return "modifier"
	case TokenTranslation:
		return "translation"
	case TokenError:
		return "error"
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one statement of the catalog file. For TokenOriginal Name holds the
// text; for TokenModifier and TokenTranslation Name and Value hold both sides;
// for TokenError Value holds the message.
type Token struct {
	Kind   TokenKind
	Name   string
	Value  string
	Indent int
	Line   int
}

// Lexer turns catalog text into a flat token stream. Leading tabs give the
// indentation of every statement on a line; '#' starts a comment.
type Lexer struct {
	scanner *bufio.Scanner
	line    int
	pending []Token
}

// NewLexer creates a lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Lexer{scanner: scanner}
}

// Next returns the next token, or io.EOF after the last one.
func (l *Lexer) Next() (Token, error) {
	for len(l.pending) == 0 {
		if !l.scanner.Scan() {
			if err := l.scanner.Err(); err != nil {
				return Token{}, fmt.Errorf("read catalog: %w", err)
			}
			return Token{}, io.EOF
		}
		l.line++
		l.pending = lexLine(l.scanner.Text(), l.line)
	}
	tok := l.pending[0]
	l.pending = l.pending[1:]
	return tok, nil
}

// Tokens drains the lexer.
func (l *Lexer) Tokens() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.Next()
		if err == io.EOF {
			return toks, nil
		}
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
	}
}

// Lex tokenizes a whole catalog text.
func Lex(text string) ([]Token, error) {
	return NewLexer(strings.NewReader(text)).Tokens()
}

type wordKind int

const (
	wordPlain wordKind = iota
	wordQuoted
	wordPunct
)

type word struct {
	text string
	kind wordKind
}

func lexLine(raw string, lineNo int) []Token {
	raw = strings.TrimRight(raw, "\r")
	indent := 0
	for indent < len(raw) && raw[indent] == '\t' {
		indent++
	}

	words, lexErr := splitWords(raw[indent:])
	errTok := func(msg string) Token {
		return Token{Kind: TokenError, Value: msg, Indent: indent, Line: lineNo}
	}

	var toks []Token
	i := 0
	for i < len(words) {
		name := words[i]
		if name.kind == wordPunct {
			toks = append(toks, errTok(fmt.Sprintf("Unexpected %q", name.text)))
			return toks
		}
		if i+1 >= len(words) || !isTerminator(words[i+1]) {
			toks = append(toks, errTok("Expected colon or equals"))
			return toks
		}
		if words[i+1].text == "=" {
			if i+2 >= len(words) || words[i+2].kind == wordPunct {
				toks = append(toks, errTok("Expected modifier value"))
				return toks
			}
			if i+3 >= len(words) || !isTerminator(words[i+3]) {
				toks = append(toks, errTok("Expected colon or equals"))
				return toks
			}
			toks = append(toks, Token{Kind: TokenModifier, Name: name.text, Value: words[i+2].text, Indent: indent, Line: lineNo})
			i += 4
			continue
		}
		if indent == 0 {
			toks = append(toks, Token{Kind: TokenOriginal, Name: name.text, Indent: indent, Line: lineNo})
			i += 2
			continue
		}
		if i+2 >= len(words) || words[i+2].kind == wordPunct {
			toks = append(toks, errTok("Expected translation string"))
			return toks
		}
		toks = append(toks, Token{Kind: TokenTranslation, Name: name.text, Value: words[i+2].text, Indent: indent, Line: lineNo})
		i += 3
	}
	if lexErr != "" {
		toks = append(toks, errTok(lexErr))
	}
	return toks
}

func isTerminator(w word) bool {
	return w.kind == wordPunct && (w.text == ":" || w.text == "=")
}

// splitWords breaks a line into plain words, quoted strings (quotes kept) and
// single punctuation characters, stopping at a comment.
func splitWords(s string) ([]word, string) {
	var words []word
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			return words, ""
		case c == '"':
			end := i + 1
			for end < len(s) && (s[end] != '"' || !evenBackslashes(s, end)) {
				end++
			}
			if end >= len(s) {
				return words, "Unterminated string"
			}
			words = append(words, word{text: s[i : end+1], kind: wordQuoted})
			i = end + 1
		case isWordChar(c):
			end := i
			for end < len(s) && isWordChar(s[end]) {
				end++
			}
			words = append(words, word{text: s[i:end], kind: wordPlain})
			i = end
		default:
			words = append(words, word{text: s[i : i+1], kind: wordPunct})
			i++
		}
	}
	return words, ""
}

// evenBackslashes reports whether the run of backslashes before idx has even
// length, meaning the character at idx is not escaped.
func evenBackslashes(s string, idx int) bool {
	n := 0
	for j := idx - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 0
}

func isWordChar(c byte) bool {
	return c == '_' || c == '%' || c == '.' || c == '-' || c >= 0x80 ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

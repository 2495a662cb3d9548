package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cppmunge/internal/diag"
	"cppmunge/internal/textutil"

	"github.com/rs/zerolog/log"
)

// ErrMultiLineCall is returned when a tr() argument list does not close on the
// line it starts on.
var ErrMultiLineCall = errors.New("tr() currently must be on one line")

// trDefinition matches the definition of a tr function itself, such as
// "QTransString QTrans::tr(".
var trDefinition = regexp.MustCompile(`^([A-Za-z_][\w:<>]*)[\s*&]+[A-Za-z_]\w*::tr\(`)

// statementKeywords can precede a qualified tr() call without making the line
// a definition.
var statementKeywords = map[string]bool{"return": true, "else": true, "case": true, "throw": true}

func isTrDefinition(line string) bool {
	m := trDefinition.FindStringSubmatch(strings.TrimSpace(line))
	return m != nil && !statementKeywords[m[1]]
}

// Call is a parsed tr() invocation, already normalised to catalog order.
type Call struct {
	Text      string
	Class     string
	Hint      string
	Qualifier string
	Literal   bool
}

// ParseCall finds a tr() call on line. ok is false when the line has none.
// A qualified call X::tr(context, text, hint) names its context first; an
// unqualified call tr(text, hint) takes currentClass as its context.
func ParseCall(line, currentClass string) (call Call, ok bool, err error) {
	idx := findCall(line)
	if idx < 0 {
		return Call{}, false, nil
	}
	if isTrDefinition(line) {
		return Call{}, false, nil
	}

	if strings.HasSuffix(line[:idx], "::") {
		prefix := strings.TrimSuffix(line[:idx], "::")
		start := len(prefix)
		for start > 0 && (isIdent(prefix[start-1]) || prefix[start-1] == ':') {
			start--
		}
		call.Qualifier = strings.TrimLeft(prefix[start:], ":")
	}

	parts, _, closed := textutil.SplitArgs(line, idx+2)
	if !closed {
		return Call{}, true, ErrMultiLineCall
	}
	if len(parts) == 0 {
		return Call{}, false, nil
	}

	call.Literal = true
	for _, p := range parts {
		if !textutil.IsLiteral(p) {
			call.Literal = false
		}
	}

	if call.Qualifier != "" {
		if len(parts) < 2 {
			return call, true, fmt.Errorf("%s::tr() needs a context and a text", call.Qualifier)
		}
		parts[0], parts[1] = parts[1], parts[0]
	} else if currentClass != "" {
		parts = append(parts[:1], append([]string{textutil.Quote(currentClass)}, parts[1:]...)...)
	}

	call.Text = parts[0]
	if len(parts) > 1 {
		call.Class = parts[1]
	}
	if len(parts) > 2 {
		call.Hint = parts[2]
	}
	return call, true, nil
}

// findCall returns the index of the first "tr(" outside a string that is not
// the tail of a longer identifier such as "setPtr(".
func findCall(line string) int {
	for from := 0; ; {
		idx := textutil.FindFirst(line, []string{"tr("}, from, true)
		if idx <= 0 || strings.ContainsRune(" :,(=\t", rune(line[idx-1])) {
			return idx
		}
		from = idx + 1
	}
}

func isIdent(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Process extracts a translatable literal from a source line and records it.
// Only a tr() call spanning several lines is fatal; anything else is reported
// and processed on a best-effort basis.
func (c *Catalog) Process(line, currentClass string, at diag.Position) error {
	if c.disabled {
		return nil
	}
	call, ok, err := ParseCall(line, currentClass)
	if errors.Is(err, ErrMultiLineCall) {
		return err
	}
	if err != nil {
		c.reporter.Warnf(at, "%v", err)
		return nil
	}
	if !ok {
		return nil
	}
	if !call.Literal {
		c.reporter.Warnf(at, "Translatable strings do not appear to be literal")
	}
	if c.AddIfMissing(call.Text, call.Class, call.Hint) {
		log.Debug().
			Str("text", textutil.Truncate(call.Text, 40)).
			Str("class", call.Class).
			Int("line", at.Line).
			Msg("Added translatable literal")
	}
	return nil
}

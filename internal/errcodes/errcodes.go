package errcodes

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cppmunge/internal/diag"
	"cppmunge/internal/textutil"

	"github.com/rs/zerolog/log"
)

// ErrMalformedHeader is returned when an existing #define cannot be parsed.
var ErrMalformedHeader = errors.New("malformed codes header")

// ExternalPrefixes mark names defined by the exception framework itself: its
// own codes and the FXERRH_IS* severity flags.
var ExternalPrefixes = []string{"FXEXCEPTION_", "FXERRH_"}

func isExternal(name string) bool {
	for _, prefix := range ExternalPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Macro is an error-raising macro whose CodeArg-th argument (0-based) names the
// error code.
type Macro struct {
	Name    string
	CodeArg int
}

// DefaultMacros are the macros recognised when none are configured.
var DefaultMacros = []Macro{
	{Name: "FXERRG", CodeArg: 2},
	{Name: "FXERRH", CodeArg: 3},
}

// ParseMacros parses a "NAME:ARG,NAME:ARG" list.
func ParseMacros(list string) ([]Macro, error) {
	var macros []Macro
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, arg, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("macro %q: expected NAME:ARG", item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("macro %q: bad argument index", item)
		}
		macros = append(macros, Macro{Name: strings.TrimSpace(name), CodeArg: n})
	}
	if len(macros) == 0 {
		return nil, fmt.Errorf("no macros in %q", list)
	}
	return macros, nil
}

// Catalog holds the error codes one source file contributes to a generated
// header, plus everything else the header documents.
type Catalog struct {
	inputName string
	macros    []Macro
	codes     map[string]int64
	foreign   map[string]int64 // codes owned by other files' blocks
	taken     map[int64]string
	preserved strings.Builder
	next      int64
	altered   bool
	reporter  *diag.Reporter
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithMacros replaces the recognised macros.
func WithMacros(macros []Macro) Option {
	return func(c *Catalog) {
		if len(macros) > 0 {
			c.macros = macros
		}
	}
}

// WithReporter sets where "code not specified" warnings go.
func WithReporter(r *diag.Reporter) Option {
	return func(c *Catalog) { c.reporter = r }
}

// Parse reads an existing generated header for inputName. An empty header is
// valid and yields an empty catalog.
func Parse(header string, inputName string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		inputName: inputName,
		macros:    DefaultMacros,
		codes:     make(map[string]int64),
		foreign:   make(map[string]int64),
		taken:     make(map[int64]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	begin := "// Codes for " + inputName
	end := "// End codes for " + inputName
	inData, mine, other := false, false, false
	lineNo := 0

	scanner := bufio.NewScanner(strings.NewReader(header))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if line == begin {
			mine = true
		} else if !mine && strings.HasPrefix(line, "// Codes for ") {
			other = true
		}
		if strings.HasPrefix(line, "// END") {
			inData = false
		}
		if inData && !mine {
			c.preserved.WriteString(raw)
			c.preserved.WriteByte('\n')
		}
		if strings.HasPrefix(line, "// BEGIN") {
			inData = true
		}

		if (mine || other) && strings.HasPrefix(line, "#define") {
			name, value, err := parseDefine(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedHeader, lineNo, err)
			}
			if mine {
				c.codes[name] = value
			} else {
				c.foreign[name] = value
			}
			c.taken[value] = name
		}

		if mine && line == end {
			mine = false
		}
		if other && strings.HasPrefix(line, "// End codes for ") {
			other = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan codes header: %w", err)
	}

	if len(c.codes) == 0 {
		c.next = BaseCode(inputName)
	} else {
		for _, v := range c.codes {
			if v >= c.next {
				c.next = v + 1
			}
		}
	}

	log.Debug().
		Str("file", inputName).
		Int("codes", len(c.codes)).
		Int("foreign", len(c.foreign)).
		Str("next", fmt.Sprintf("%#x", c.next)).
		Msg("Loaded error codes")
	return c, nil
}

// parseDefine splits "#define NAME VALUE" and evaluates VALUE as a C integer
// literal.
func parseDefine(line string) (string, int64, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "#define"))
	if len(fields) < 2 {
		return "", 0, fmt.Errorf("expected name and value in %q", line)
	}
	lit := strings.TrimRight(fields[1], "uUlL")
	v, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		return "", 0, fmt.Errorf("value of %s: %w", fields[0], err)
	}
	return fields[0], v, nil
}

// BaseCode derives the first code for a file from its base name so that files
// munged independently rarely collide. It is a heuristic, not a guarantee.
func BaseCode(inputName string) int64 {
	var h uint32
	for i := 0; i < len(inputName); i++ {
		h = (0x9E3779B9 ^ (h + uint32(inputName[i]))) << 1
	}
	return int64(h&0x00FFFFFF) << 8
}

// Altered reports whether a new code was assigned.
func (c *Catalog) Altered() bool { return c.altered }

// Lookup returns the code assigned to name in this file's block.
func (c *Catalog) Lookup(name string) (int64, bool) {
	v, ok := c.codes[name]
	return v, ok
}

// Len returns the number of codes owned by this file.
func (c *Catalog) Len() int { return len(c.codes) }

// Code is one assigned error code.
type Code struct {
	Name  string
	Value int64
}

// Codes returns this file's codes sorted by value.
func (c *Catalog) Codes() []Code {
	out := make([]Code, 0, len(c.codes))
	for name, v := range c.codes {
		out = append(out, Code{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Process registers the error code named by the first error macro on line, if
// it is new. It returns the name of a newly assigned code or "".
func (c *Catalog) Process(line string, at diag.Position) string {
	candidates := make([]string, len(c.macros))
	for i, m := range c.macros {
		candidates[i] = m.Name + "("
	}
	idx := textutil.FindFirst(line, candidates, 0, true)
	if idx < 0 {
		return ""
	}
	if idx > 0 && isIdentChar(line[idx-1]) {
		return ""
	}

	var macro Macro
	for _, m := range c.macros {
		if strings.HasPrefix(line[idx:], m.Name+"(") {
			macro = m
			break
		}
	}
	args, _, _ := textutil.SplitArgs(line, idx+len(macro.Name))
	if macro.CodeArg >= len(args) {
		return ""
	}
	name := args[macro.CodeArg]
	log.Debug().Str("macro", macro.Name).Str("code", name).Int("line", at.Line).Msg("Found use of error macro")

	if name == "" || !textutil.IsUpper(name) || c.known(name) {
		return ""
	}
	switch {
	case name == "0":
		c.reporter.Warnf(at, "Exception code not specified")
		return ""
	case isExternal(name):
		return ""
	case !textutil.IsIdentifier(name):
		return ""
	}

	for {
		if _, used := c.taken[c.next]; !used {
			break
		}
		c.next++
	}
	c.codes[name] = c.next
	c.taken[c.next] = name
	log.Debug().Str("code", name).Str("value", fmt.Sprintf("%#x", c.next)).Msg("Added new error code")
	c.next++
	c.altered = true
	return name
}

func (c *Catalog) known(name string) bool {
	if _, ok := c.codes[name]; ok {
		return true
	}
	_, ok := c.foreign[name]
	return ok
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// GuardName returns the include guard for a header path: "include/FXErrCodes.h"
// becomes "FXERRCODES_H".
func GuardName(headerPath string) string {
	return strings.ToUpper(strings.ReplaceAll(filepath.Base(headerPath), ".", "_"))
}

// Write serialises the whole header, regenerating this file's block.
func (c *Catalog) Write(w io.Writer, headerPath string) error {
	name := filepath.Base(headerPath)
	guard := GuardName(headerPath)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "/* %s\nAUTOMATICALLY GENERATED BY CPPMUNGE - CHANGES WILL BE LOST!\n*/\n\n", name)
	fmt.Fprintf(bw, "#ifndef %s\n#define %s\n\n// BEGIN\n", guard, guard)
	bw.WriteString(c.preserved.String())
	fmt.Fprintf(bw, "// Codes for %s\n", c.inputName)
	for _, code := range c.Codes() {
		fmt.Fprintf(bw, "#define %s %#x\n", code.Name, code.Value)
	}
	fmt.Fprintf(bw, "// End codes for %s\n", c.inputName)
	bw.WriteString("// END\n\n#endif\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write codes header: %w", err)
	}
	return nil
}

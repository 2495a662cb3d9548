// Package munger streams a C++ translation unit line by line, instrumenting
// destructors, harvesting error codes and collecting translatable literals.
package munger

import (
	"fmt"
	"regexp"
	"strings"

	"cppmunge/internal/catalog"
	"cppmunge/internal/diag"
	"cppmunge/internal/errcodes"
	"cppmunge/internal/textutil"

	"github.com/rs/zerolog/log"
)

// Markers recognised in and inserted into C++ source.
const (
	DestructOpen     = " FXEXCEPTIONDESTRUCT1 {"
	DestructClose    = "} FXEXCEPTIONDESTRUCT2; "
	NoDestructorMod  = "FXERRH_NODESTRUCTORMOD"
	NoThrowSpec      = "throw()"
	NoExtractCodes   = "CPPMUNGE_NOEXTRACTERRORCODES"
	ExtractCodes     = "CPPMUNGE_EXTRACTERRORCODES"
	openInstrumented = "{" + DestructOpen
)

// Flags are the processing switches passed with -f.
type Flags uint

const (
	// NoDestructorCatches disables destructor instrumentation.
	NoDestructorCatches Flags = 1 << iota
	// NoErrorCodes disables error code extraction.
	NoErrorCodes
	// NoCodeInsertion disables automatic exception code insertion, which is
	// not implemented; the bit is accepted and passed through.
	NoCodeInsertion
)

// methodContext is the class and method whose definition is being scanned.
type methodContext struct {
	class           string
	method          string
	startDepth      int
	bodyDepth       int
	pending         bool
	noDestructorMod bool
}

func (m *methodContext) isDestructor() bool {
	return m.class != "" && m.method == "~"+m.class
}

// classScope is a class or struct body; depth is the brace depth inside it.
type classScope struct {
	name  string
	depth int
}

// Munger holds the state of one pass over one source file.
type Munger struct {
	file     string
	flags    Flags
	codes    *errcodes.Catalog
	literals *catalog.Catalog
	reporter *diag.Reporter

	lineNo         int
	braceDepth     int
	namespaceDepth int
	ctx            methodContext
	classes        []classScope
	pendingClass   string
	noExtractCodes bool
	changed        bool
	destructors    int
	newCodes       []string
}

// New creates a munger for file, the path used in diagnostics. codes may be
// nil when error code extraction is disabled; literals may be nil when no
// catalog is in use.
func New(file string, flags Flags, codes *errcodes.Catalog, literals *catalog.Catalog, reporter *diag.Reporter) *Munger {
	if literals == nil {
		literals = catalog.Disabled(file)
	}
	return &Munger{
		file:     file,
		flags:    flags,
		codes:    codes,
		literals: literals,
		reporter: reporter,
	}
}

// Line returns the number of the last line processed.
func (m *Munger) Line() int { return m.lineNo }

// Changed reports whether any source line was rewritten.
func (m *Munger) Changed() bool { return m.changed }

// Destructors returns the number of destructor rewrites performed.
func (m *Munger) Destructors() int { return m.destructors }

// NewCodes returns the error codes assigned during the pass.
func (m *Munger) NewCodes() []string { return m.newCodes }

// FatalError aborts a pass; Line is the last line processed.
type FatalError struct {
	File string
	Line int
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Process runs the state machine over lines, each including its line ending,
// and returns the possibly rewritten lines.
func (m *Munger) Process(lines []string) (out []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalError{File: m.file, Line: m.lineNo, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out = make([]string, 0, len(lines))
	for _, line := range lines {
		rewritten, err := m.processLine(line)
		if err != nil {
			return nil, &FatalError{File: m.file, Line: m.lineNo, Err: err}
		}
		out = append(out, rewritten)
	}
	return out, nil
}

func (m *Munger) destructorModAllowed() bool {
	return m.flags&NoDestructorCatches == 0 && !m.ctx.noDestructorMod && m.ctx.isDestructor()
}

func (m *Munger) processLine(line string) (string, error) {
	m.lineNo++
	at := diag.Position{File: m.file, Line: m.lineNo}
	trimmed := strings.TrimSpace(line)

	depthBefore := m.braceDepth
	diff := strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
	if diff == 1 && strings.Contains(trimmed, "namespace") {
		m.namespaceDepth++
		diff = 0
		log.Debug().Int("line", m.lineNo).Msg("Namespace encountered")
	}
	m.braceDepth += diff
	if m.braceDepth < 0 && m.namespaceDepth > 0 {
		m.namespaceDepth += m.braceDepth
		m.braceDepth = 0
		log.Debug().Int("line", m.lineNo).Msg("Namespace ends")
	}

	m.trackClasses(trimmed, depthBefore)

	if m.braceDepth < m.ctx.bodyDepth {
		if m.destructorModAllowed() && !strings.Contains(line, DestructClose) {
			line = DestructClose + line
			m.changed = true
		}
		log.Debug().Int("line", m.lineNo).Str("class", m.ctx.class).Str("method", m.ctx.method).Msg("Method ended")
		m.ctx = methodContext{}
	}

	// A definition starts at file scope; its body brace may share the line.
	if m.braceDepth == 0 || depthBefore == 0 {
		if class, method, ok := definitionName(trimmed); ok {
			m.ctx = methodContext{class: class, method: method, startDepth: depthBefore, pending: true}
			log.Debug().Int("line", m.lineNo).Str("class", class).Str("method", method).Msg("Method definition")
		}
	}
	if m.ctx == (methodContext{}) {
		m.inlineDestructor(trimmed, depthBefore)
	}

	bodyClosed := false
	if m.ctx.pending {
		if strings.Contains(line, NoThrowSpec) || strings.Contains(line, NoDestructorMod) {
			m.ctx.noDestructorMod = true
		}
		from := 0
		if m.ctx.isDestructor() {
			from = max(destructorAt(line, m.ctx.class), 0)
		}
		if brace := strings.Index(line[from:], "{"); brace >= 0 {
			brace += from
			m.ctx.pending = false
			if m.braceDepth <= m.ctx.startDepth {
				bodyClosed = true
				if m.destructorModAllowed() && !strings.Contains(line, openInstrumented) {
					if wrapped, ok := wrapBody(line, brace); ok {
						line = wrapped
						m.modified()
					}
				}
			} else {
				m.ctx.bodyDepth = m.braceDepth
				if m.destructorModAllowed() && m.braceDepth == m.ctx.startDepth+1 && !strings.Contains(line, openInstrumented) {
					line = line[:brace+1] + DestructOpen + line[brace+1:]
					m.modified()
				}
			}
		}
	}

	if strings.Contains(line, NoExtractCodes) {
		m.noExtractCodes = true
	}
	if strings.Contains(line, ExtractCodes) {
		m.noExtractCodes = false
	}

	if m.codes != nil && m.flags&NoErrorCodes == 0 && !m.noExtractCodes {
		if name := m.codes.Process(line, at); name != "" {
			m.newCodes = append(m.newCodes, name)
		}
	}
	if err := m.literals.Process(line, m.ctx.class, at); err != nil {
		return line, err
	}
	// The body opened and closed on this line.
	if bodyClosed {
		m.ctx = methodContext{}
	}
	return line, nil
}

func (m *Munger) modified() {
	m.changed = true
	m.destructors++
	log.Info().Str("class", m.ctx.class).Int("line", m.lineNo).Msg("Modified destructor")
}

// trackClasses maintains the stack of class bodies the line is in.
func (m *Munger) trackClasses(trimmed string, depthBefore int) {
	for n := len(m.classes); n > 0 && m.braceDepth < m.classes[n-1].depth; n-- {
		m.classes = m.classes[:n-1]
	}
	if name, ok := classHead(trimmed); ok {
		m.pendingClass = name
	}
	if m.pendingClass == "" {
		return
	}
	if strings.Contains(trimmed, "{") {
		if m.braceDepth > depthBefore {
			m.classes = append(m.classes, classScope{name: m.pendingClass, depth: depthBefore + 1})
			log.Debug().Int("line", m.lineNo).Str("class", m.pendingClass).Msg("Class body")
		}
		m.pendingClass = ""
	} else if strings.Contains(trimmed, ";") {
		m.pendingClass = ""
	}
}

// inlineDestructor starts a destructor context for "~Class(" written inside
// the class body, or inside a class declared entirely on this line.
func (m *Munger) inlineDestructor(trimmed string, depthBefore int) {
	var class string
	if n := len(m.classes); n > 0 && m.classes[n-1].depth == depthBefore {
		class = m.classes[n-1].name
	} else if name, ok := classHead(trimmed); ok && m.braceDepth == depthBefore {
		class = name
	}
	if class == "" {
		return
	}
	idx := destructorAt(trimmed, class)
	if idx < 0 || isDeclaration(trimmed[idx:]) {
		return
	}
	m.ctx = methodContext{class: class, method: "~" + class, startDepth: depthBefore, pending: true}
	log.Debug().Int("line", m.lineNo).Str("class", class).Msg("Inline destructor")
}

var classKeyword = regexp.MustCompile(`^(?:template\s*<[^>]*>\s*)?(?:class|struct)\s+([^{:;]*)`)

// classHead returns the name of a class or struct whose definition starts on
// the line. Forward declarations and variable declarations do not count.
func classHead(trimmed string) (string, bool) {
	if isDeclaration(trimmed) {
		return "", false
	}
	match := classKeyword.FindStringSubmatch(trimmed)
	if match == nil {
		return "", false
	}
	fields := strings.Fields(match[1])
	for len(fields) > 0 && fields[len(fields)-1] == "final" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) == 0 {
		return "", false
	}
	name := fields[len(fields)-1]
	return name, textutil.IsIdentifier(name)
}

// isDeclaration reports whether s ends in ";" without opening a body.
func isDeclaration(s string) bool {
	if c := strings.Index(s, "//"); c >= 0 {
		s = s[:c]
	}
	s = strings.TrimSpace(s)
	return !strings.Contains(s, "{") && strings.HasSuffix(s, ";")
}

// destructorAt returns the index of "~class(" in s, or -1.
func destructorAt(s, class string) int {
	name := "~" + class
	for from := 0; from < len(s); {
		idx := strings.Index(s[from:], name)
		if idx < 0 {
			return -1
		}
		idx += from
		if rest := strings.TrimLeft(s[idx+len(name):], " \t"); strings.HasPrefix(rest, "(") {
			return idx
		}
		from = idx + 1
	}
	return -1
}

// wrapBody instruments a body that opens at open and closes on the same line.
func wrapBody(line string, open int) (string, bool) {
	depth := 0
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return line[:open+1] + DestructOpen + line[open+1:i] + DestructClose + line[i:], true
			}
		}
	}
	return line, false
}

// definitionName recognises "Class::method(" at the start of a definition and
// returns the class and method names. The identifier starts after the last
// space before the parenthesis; the last "::" separates class from method.
func definitionName(trimmed string) (class, method string, ok bool) {
	paren := strings.Index(trimmed, "(")
	if paren < 0 {
		return "", "", false
	}
	sig := strings.TrimSpace(trimmed[:paren])
	sep := strings.LastIndex(sig, "::")
	if sep < 0 {
		return "", "", false
	}
	name := sig[strings.LastIndexAny(sig[:sep], " \t*&")+1:]
	sep = strings.LastIndex(name, "::")
	method = name[sep+2:]
	qualified := name[:sep]
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		qualified = qualified[i+2:]
	}
	if qualified == "" || method == "" {
		return "", "", false
	}
	return qualified, method, true
}

// Package diag prints compiler-style diagnostics that IDEs and build logs can
// link back to a file and line.
package diag

import (
	"fmt"
	"io"
	"sync"
)

// Style selects the diagnostic line format.
type Style int

const (
	// GNU prints `"file", line N: msg`.
	GNU Style = iota
	// MSVC prints `file(N) : msg`.
	MSVC
)

// Position identifies a line in a file.
type Position struct {
	File string
	Line int
}

// Reporter writes diagnostics and counts them.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	style Style
	count int
}

// NewReporter creates a reporter writing to out.
func NewReporter(out io.Writer, style Style) *Reporter {
	return &Reporter{out: out, style: style}
}

// Report prints msg at the given position.
func (r *Reporter) Report(at Position, msg string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	if r.out == nil {
		return
	}
	fmt.Fprintln(r.out, Format(r.style, at, msg))
}

// Warnf prints a formatted warning at the given position.
func (r *Reporter) Warnf(at Position, format string, args ...any) {
	r.Report(at, "WARNING: "+fmt.Sprintf(format, args...))
}

// Errorf prints a formatted error at the given position.
func (r *Reporter) Errorf(at Position, format string, args ...any) {
	r.Report(at, fmt.Sprintf(format, args...))
}

// Count returns the number of diagnostics reported so far.
func (r *Reporter) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Format renders one diagnostic line without a trailing newline.
func Format(style Style, at Position, msg string) string {
	if style == MSVC {
		return fmt.Sprintf("%s(%d) : %s", at.File, at.Line, msg)
	}
	return fmt.Sprintf("\"%s\", line %d: %s", at.File, at.Line, msg)
}

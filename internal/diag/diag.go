// Package diag implements the compiler's three error-handling channels:
// invariant-violation panics (programmer bugs in the compiler itself), a
// driver-supplied Sink for user-facing ill-typed IR reports, and the
// understanding that allocation/IO failures are the driver's problem, not
// the core's. Diagnostics render with severity-colored headers, a
// "--> file:line:col" location line, and a caret underline under the
// offending source span.
package diag

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Severity covers the two levels the middle-end
// itself ever reports (a user-facing Sink report is
// always an error; a note is carried as a Diagnostic.Notes entry, not its
// own severity).
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

func (s Severity) color() *color.Color {
	switch s {
	case SeverityWarning:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// Position is a source location, independent of any particular front-end
// AST position type since the middle-end only ever receives positions
// already attached to IR values.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" && p.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Diagnostic is a single user-facing report: a user program error
// surfaced by analysis, handed to the diagnostic sink the driver
// provides.
type Diagnostic struct {
	Severity Severity
	Code     string // e.g. "E0200"
	Message  string
	Pos      Position
	Notes    []string
}

// Sink is the driver-supplied collector for surfaced Diagnostics. The
// core never recovers from a reported error on a function: it calls
// Report once and stops processing that function.
type Sink interface {
	Report(d Diagnostic)
}

// CollectingSink is the simplest Sink: it accumulates every reported
// Diagnostic and tracks whether any was an error, for a driver that wants
// to print everything at the end and then decide an exit code.
type CollectingSink struct {
	Diagnostics []Diagnostic
}

func (s *CollectingSink) Report(d Diagnostic) { s.Diagnostics = append(s.Diagnostics, d) }

// HasErrors reports whether any collected diagnostic is SeverityError.
func (s *CollectingSink) HasErrors() bool {
	for _, d := range s.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Reporter renders Diagnostics against a specific source file's text:
// header line, "-->" location, a context line, the offending line, and a
// caret marker under it.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter builds a Reporter against src, the full text of filename.
func NewReporter(filename, src string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(src, "\n")}
}

// Format renders d as a multi-line colored report.
func (r *Reporter) Format(d Diagnostic) string {
	var sb strings.Builder
	levelColor := d.Severity.color()
	dim := color.New(color.Faint)
	bold := color.New(color.Bold)

	if d.Code != "" {
		fmt.Fprintf(&sb, "%s[%s]: %s\n", levelColor.Sprint(d.Severity), d.Code, d.Message)
	} else {
		fmt.Fprintf(&sb, "%s: %s\n", levelColor.Sprint(d.Severity), d.Message)
	}

	width := lineNumberWidth(d.Pos.Line)
	indent := strings.Repeat(" ", width)
	fmt.Fprintf(&sb, "%s %s %s\n", indent, dim.Sprint("-->"), d.Pos)
	fmt.Fprintf(&sb, "%s %s\n", indent, dim.Sprint("|"))

	if d.Pos.Line > 0 && d.Pos.Line <= len(r.lines) {
		fmt.Fprintf(&sb, "%s %s %s\n", bold.Sprint(padLeft(d.Pos.Line, width)), dim.Sprint("|"), r.lines[d.Pos.Line-1])
		marker := strings.Repeat(" ", max0(d.Pos.Column-1)) + levelColor.Sprint("^")
		fmt.Fprintf(&sb, "%s %s %s\n", indent, dim.Sprint("|"), marker)
	}

	for _, n := range d.Notes {
		fmt.Fprintf(&sb, "%s %s %s %s\n", indent, dim.Sprint("|"), color.New(color.FgBlue).Sprint("note:"), n)
	}
	sb.WriteByte('\n')
	return sb.String()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		return 3
	}
	return w
}

func padLeft(n, width int) string { return fmt.Sprintf("%*d", width, n) }

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// reportInvariantViolationsEnv, when present in the environment,
// additionally makes the validator print the offending function before
// the panic in InvariantViolation.
const reportInvariantViolationsEnv = "SC_REPORT_INVARIANT_VIOLATIONS"

// InvariantViolation panics with a message carrying the offending
// value's declaration, the enclosing function's
// printed IR, and a short explanation. printFunc is called to render the
// enclosing function only when SC_REPORT_INVARIANT_VIOLATIONS is set, so
// a caller that doesn't want to pay for module printing outside debug
// builds can pass a lazy thunk.
func InvariantViolation(declaration, explanation string, printFunc func() string) {
	msg := fmt.Sprintf("invariant violation: %s: %s", declaration, explanation)
	if os.Getenv(reportInvariantViolationsEnv) != "" && printFunc != nil {
		fmt.Fprintln(os.Stderr, printFunc())
		fmt.Fprintln(os.Stderr, msg)
	}
	panic(msg)
}

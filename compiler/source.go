package compiler

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a message attached to a span of a Source.
type Diagnostic struct {
	Severity Severity
	Message  string
	Span     Span
}

// Source owns submitted text and the diagnostics reported against it by
// every compilation pass. Diagnostics are append-only.
type Source struct {
	Name string
	Text string

	diagnostics []Diagnostic
}

// NewSource creates a source with the given display name.
func NewSource(name, text string) *Source {
	return &Source{Name: name, Text: text}
}

// AddDiagnostic appends a diagnostic.
func (s *Source) AddDiagnostic(d Diagnostic) {
	s.diagnostics = append(s.diagnostics, d)
}

// AddError appends an error diagnostic at span.
func (s *Source) AddError(span Span, format string, args ...interface{}) {
	s.AddDiagnostic(Diagnostic{
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// AddWarning appends a warning diagnostic at span.
func (s *Source) AddWarning(span Span, format string, args ...interface{}) {
	s.AddDiagnostic(Diagnostic{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// Diagnostics returns a copy of every diagnostic in report order.
func (s *Source) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out
}

// HasNoErrors reports whether no error-severity diagnostic was reported.
func (s *Source) HasNoErrors() bool {
	for _, d := range s.diagnostics {
		if d.Severity == SeverityError {
			return false
		}
	}
	return true
}

// String formats every diagnostic with its location and source excerpt.
func (s *Source) String() string {
	var sb strings.Builder
	lines := strings.Split(s.Text, "\n")
	for _, d := range s.diagnostics {
		pos := d.Span.Start
		fmt.Fprintf(&sb, "%s: %s\n", d.Severity, d.Message)
		fmt.Fprintf(&sb, "   --> %s:%d:%d\n", s.Name, pos.Line, pos.Column)
		if pos.Line < 1 || pos.Line > len(lines) {
			continue
		}
		text := strings.TrimRight(lines[pos.Line-1], "\r")
		gutter := fmt.Sprintf("%d", pos.Line)
		pad := strings.Repeat(" ", len(gutter))
		fmt.Fprintf(&sb, "%s |\n", pad)
		fmt.Fprintf(&sb, "%s | %s\n", gutter, text)
		fmt.Fprintf(&sb, "%s | %s^\n", pad, strings.Repeat(" ", caretOffset(text, pos.Column)))
	}
	return sb.String()
}

// caretOffset clamps a 1-based rune column to the line length.
func caretOffset(line string, column int) int {
	n := len([]rune(line))
	if column-1 < n {
		n = column - 1
	}
	if n < 0 {
		return 0
	}
	return n
}

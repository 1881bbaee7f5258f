package compile

import (
	"fmt"
	"strings"
)

// Severity indicates how serious a problem is.
type Severity string

const (
	// SeverityError fails the compile.
	SeverityError Severity = "error"
	// SeverityWarning is reported but does not fail the compile.
	SeverityWarning Severity = "warning"
)

// Problem is a diagnostic reported by the compiler.
type Problem struct {
	// File is the source path, relative to the project root when known.
	File string

	// Line is 1-based; 0 when the problem has no location.
	Line int

	// Column is 1-based; 0 when unknown.
	Column int

	Severity Severity

	Message string
}

// String formats the problem as file:line:column: message.
func (p Problem) String() string {
	switch {
	case p.File == "":
		return p.Message
	case p.Line == 0:
		return fmt.Sprintf("%s: %s", p.File, p.Message)
	case p.Column == 0:
		return fmt.Sprintf("%s:%d: %s", p.File, p.Line, p.Message)
	default:
		return fmt.Sprintf("%s:%d:%d: %s", p.File, p.Line, p.Column, p.Message)
	}
}

// Error is returned when the compiler reports errors for an invocation. The
// alias rewrite is skipped for that invocation.
type Error struct {
	// Entry names what was compiled: a source path, or a count for batches.
	Entry string

	Problems []Problem
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compile %s: ", e.Entry)
	switch len(e.Problems) {
	case 0:
		b.WriteString("failed")
	case 1:
		b.WriteString(e.Problems[0].String())
	default:
		fmt.Fprintf(&b, "%s (and %d more)", e.Problems[0].String(), len(e.Problems)-1)
	}
	return b.String()
}

// Package diag implements the error taxonomy of spec §7 and the
// diagnostic wire format of spec §6. It generalizes
// Dev-Dami-DYMS-Lang/runtime/errors.go's small line/column Error type into
// the full Kind-tagged, script-observable error value.
package diag

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the error taxonomy of spec §7.
type Kind int

const (
	LexError Kind = iota
	SyntaxError
	NameError
	TypeError
	ArityError
	BoundsError
	ImportError
	ThrowError
	BudgetError
	InternalError
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "LexError"
	case SyntaxError:
		return "Error" // compile errors render as "Error" in the wire format
	case NameError:
		return "NameError"
	case TypeError:
		return "TypeError"
	case ArityError:
		return "ArityError"
	case BoundsError:
		return "BoundsError"
	case ImportError:
		return "ImportError"
	case ThrowError:
		return "ThrowError"
	case BudgetError:
		return "BudgetError"
	case InternalError:
		return "InternalError"
	default:
		return "Error"
	}
}

// Recoverable reports whether a try/throw block in script code may catch
// an error of this kind (spec §7, "Recoverable by script?" column).
func (k Kind) Recoverable() bool {
	switch k {
	case NameError, TypeError, ArityError, BoundsError, ImportError, ThrowError:
		return true
	default:
		return false
	}
}

// Error is a diagnostic: a compile-time or run-time failure with source
// position, carried through every internal API instead of a bare Go error
// (mirroring the teacher's *runtime.Error threading).
type Error struct {
	Kind    Kind
	Message string
	Path    string
	Line    int
	Column  int
	cause   error
}

// New builds a Kind-tagged diagnostic at a source position.
func New(kind Kind, path string, line, column int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Path: path, Line: line, Column: column}
}

// Wrap folds a Go-level error (e.g. a native function's failure) into an
// InternalError, preserving its stack via pkg/errors.
func Wrap(err error, path string, line, column int) *Error {
	return &Error{Kind: InternalError, Message: err.Error(), Path: path, Line: line, Column: column, cause: errors.WithStack(err)}
}

// Error implements the error interface. Nil-safe, matching the teacher's
// defensive nil check in runtime.Error.Error().
func (e *Error) Error() string {
	if e == nil {
		return "unknown error"
	}
	return e.WireFormat()
}

// WireFormat renders the diagnostic per spec §6:
// "path:line:column: Kind: message" plus a two-line context snippet.
func (e *Error) WireFormat() string {
	path := e.Path
	if path == "" {
		path = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", path, e.Line, e.Column, e.Kind, e.Message)
}

// WithSnippet appends the two-line source-context snippet underlining the
// offending token, per spec §6.
func (e *Error) WithSnippet(source string) string {
	lines := strings.Split(source, "\n")
	idx := e.Line - 1
	if idx < 0 || idx >= len(lines) {
		return e.WireFormat()
	}
	line := lines[idx]
	col := e.Column - 1
	if col < 0 {
		col = 0
	}
	if col > len(line) {
		col = len(line)
	}
	underline := strings.Repeat(" ", col) + "^"
	return fmt.Sprintf("%s\n%s\n%s", e.WireFormat(), line, underline)
}

// Cause exposes the wrapped Go error, if any, for errors.Is/As chains.
func (e *Error) Cause() error { return e.cause }

// Unwrap supports errors.Unwrap against the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

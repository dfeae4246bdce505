package runtime

import (
	"errors"
	"fmt"
)

// ErrorKind is one of the four error classes from spec §7.
type ErrorKind string

const (
	LexErrorKind     ErrorKind = "lex_error"
	ParseErrorKind   ErrorKind = "parse_error"
	CompileErrorKind ErrorKind = "compile_error"
	RenderErrorKind  ErrorKind = "render_error"
)

// Error is the single error type used across the engine. Every kind
// carries (message, line, column, templateName?) per spec §7.
type Error struct {
	Kind     ErrorKind
	Message  string
	Line     int
	Col      int
	Template string
	Cause    error
}

func (e *Error) Error() string {
	where := ""
	if e.Template != "" {
		where = e.Template + ":"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s%d:%d: %s: %s", where, e.Line, e.Col, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s%s: %s", where, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an *Error with no cause.
func NewError(kind ErrorKind, template string, line, col int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Line: line, Col: col, Template: template}
}

// WrapError implements spec §4.6's handleError / §7's wrapping rule: if err
// already unwraps to an *Error carrying a non-zero line, it is returned
// unchanged so the innermost source span wins. Otherwise it is wrapped as a
// RenderError at the given call site.
func WrapError(err error, template string, line, col int) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Line != 0 {
		return e
	}
	return &Error{Kind: RenderErrorKind, Message: err.Error(), Line: line, Col: col, Template: template, Cause: err}
}

// IsUndefinedError reports whether err is an *Error of RenderErrorKind. A
// throwOnUndefined lookup failure is such an error, but so is every other
// render-time failure; the kind alone does not single out undefined lookups.
func IsUndefinedError(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == RenderErrorKind
}

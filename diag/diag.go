// Package diag defines the error kinds reported by the KPL pipeline and
// the fatal-abort mechanism the scanner, parser, and semantic checker use
// to unwind on the first error.
//
// KPL compilation never recovers from an error: the original compiler
// prints a message and calls exit(1). The idiomatic Go analogue used
// throughout this module is a single panic/recover boundary — Fatal
// panics with an *Error, and compiler.CompileSource is the only place that
// recovers it, turning the panic back into a plain returned error so the
// compiler stays embeddable and testable.
package diag

import (
	"fmt"

	"github.com/dr8co/kplc/token"
)

// Kind identifies the category of a diagnostic.
type Kind int

const (
	// Lexical errors.
	ErrInvalidSymbol Kind = iota
	ErrUnterminatedComment
	ErrInvalidCharConst
	ErrIdentTooLong

	// Syntax errors.
	ErrMissingToken
	ErrInvalidStatement
	ErrInvalidExpression
	ErrInvalidTerm
	ErrInvalidFactor
	ErrInvalidType
	ErrInvalidBasicType
	ErrInvalidConstant
	ErrInvalidDeclaration
	ErrInvalidComparator
	ErrInvalidArguments

	// Semantic errors.
	ErrUndeclaredIdent
	ErrDuplicateIdent
	ErrInvalidIdentUsage
	ErrTypeMismatch
	ErrInvalidArraySize
	ErrInvalidIndexType
	ErrArgumentCountMismatch
	ErrInvalidLValue

	// Resource / I/O errors.
	ErrFileNotFound
	ErrWriteFailed
	ErrCodeOverflow
)

// String names a diagnostic kind for inclusion in a rendered message.
func (k Kind) String() string {
	switch k {
	case ErrInvalidSymbol:
		return "invalid symbol"
	case ErrUnterminatedComment:
		return "unterminated comment"
	case ErrInvalidCharConst:
		return "invalid character constant"
	case ErrIdentTooLong:
		return "identifier too long"
	case ErrMissingToken:
		return "missing token"
	case ErrInvalidStatement:
		return "invalid statement"
	case ErrInvalidExpression:
		return "invalid expression"
	case ErrInvalidTerm:
		return "invalid term"
	case ErrInvalidFactor:
		return "invalid factor"
	case ErrInvalidType:
		return "invalid type"
	case ErrInvalidBasicType:
		return "invalid basic type"
	case ErrInvalidConstant:
		return "invalid constant"
	case ErrInvalidDeclaration:
		return "invalid declaration"
	case ErrInvalidComparator:
		return "invalid comparator"
	case ErrInvalidArguments:
		return "invalid arguments"
	case ErrUndeclaredIdent:
		return "undeclared identifier"
	case ErrDuplicateIdent:
		return "duplicate identifier"
	case ErrInvalidIdentUsage:
		return "invalid identifier usage"
	case ErrTypeMismatch:
		return "type mismatch"
	case ErrInvalidArraySize:
		return "invalid array size"
	case ErrInvalidIndexType:
		return "invalid index type"
	case ErrArgumentCountMismatch:
		return "argument count mismatch"
	case ErrInvalidLValue:
		return "invalid l-value"
	case ErrFileNotFound:
		return "file not found"
	case ErrWriteFailed:
		return "write failed"
	case ErrCodeOverflow:
		return "code buffer overflow"
	default:
		return "error"
	}
}

// Error is a single compiler diagnostic.
type Error struct {
	Kind    Kind
	Pos     token.Position
	Message string
}

// Error renders the diagnostic as "line:col: kind: message".
func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", e.Pos.Line, e.Pos.Col, e.Kind, e.Message)
}

// Fatal panics with a freshly built *Error. It is the only way a
// diagnostic kind becomes fatal: everything downstream of the scanner
// calls either Reporter.Report (soft, used for lexical errors the lexer
// can recover from by retrying) or Fatal directly (hard, used by the
// parser and checker, which have no way to keep going after a syntax or
// semantic error).
func Fatal(kind Kind, pos token.Position, format string, args ...any) {
	panic(&Error{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Reporter collects diagnostics for a single compilation. The lexer uses
// it to record invalid-symbol and malformed-literal errors it can skip
// past; if any were recorded, compiler.CompileSource surfaces the first one as
// the returned error even if parsing otherwise "succeeded" on the
// cleaned-up token stream.
type Reporter struct {
	errors []*Error
}

// NewReporter returns an empty Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Report records a non-fatal diagnostic.
func (r *Reporter) Report(kind Kind, pos token.Position, format string, args ...any) {
	r.errors = append(r.errors, &Error{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic has been recorded.
func (r *Reporter) HasErrors() bool {
	return len(r.errors) > 0
}

// First returns the first recorded diagnostic, or nil if none were
// recorded.
func (r *Reporter) First() *Error {
	if len(r.errors) == 0 {
		return nil
	}
	return r.errors[0]
}

// Errors returns every recorded diagnostic in the order reported.
func (r *Reporter) Errors() []*Error {
	return r.errors
}

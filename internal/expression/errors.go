package expression

import (
	"errors"
	"fmt"
)

// Compile errors.
var (
	ErrEmptyExpression       = errors.New("expression is empty")
	ErrEmptyVariable         = errors.New("variable marker followed by whitespace, parenthesis or end of input")
	ErrUnmatchedClosingParen = errors.New(`unmatched ")"`)
	ErrUnmatchedOpeningParen = errors.New(`unmatched "("`)
	ErrExtraOperator         = errors.New("extra operator")
	ErrExtraOperand          = errors.New("extra number or variable")
	ErrMisplacedOperator     = errors.New("operator without two operands")
	ErrUnexpectedCharacter   = errors.New("unexpected character")
	ErrInvalidYearSpec       = errors.New("invalid year spec")
)

// Evaluation errors.
var (
	ErrUnknownField        = errors.New("unknown field")
	ErrIndexOutOfRange     = errors.New("report index out of range")
	ErrMissingValue        = errors.New("missing value")
	ErrMissingSnapshot     = errors.New("missing snapshot")
	ErrInsufficientHistory = errors.New("insufficient history for aggregate window")
	ErrStackUnderflow      = errors.New("stack underflow")
	ErrMalformedProgram    = errors.New("malformed program")
)

// ParseError reports where compilation failed. Pos is a byte offset into the
// source, or -1 when the failure concerns the whole expression.
type ParseError struct {
	Pos int
	Err error
}

func (e *ParseError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("parse expression: %v", e.Err)
	}
	return fmt.Sprintf("parse expression at offset %d: %v", e.Pos, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EvalError reports which token of a program could not be evaluated.
type EvalError struct {
	Token string
	Index int
	Err   error
}

func (e *EvalError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("evaluate at report %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("evaluate %q at report %d: %v", e.Token, e.Index, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

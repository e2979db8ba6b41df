// Package expression compiles indicator expressions to postfix programs and
// evaluates them against newest-first report series.
//
// Grammar: decimal integer literals, "@name" variables, the binary operators
// + - * / with the usual precedence (left associative) and parentheses.
// A variable name runs until whitespace or a parenthesis, so operators and
// "/" may appear inside names ("@yszk/yyzsr-预收账款/营业总收入").
package expression

import (
	"strings"
	"unicode"
)

const variableMarker = '@'

// stack entries of the shunting-yard operator stack; '(' marks a group.
type opEntry struct {
	op    Operator
	paren bool
	pos   int
}

// Parse compiles an infix expression into a postfix Program.
func Parse(text string) (*Program, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Pos: -1, Err: ErrEmptyExpression}
	}

	var (
		out     []Token
		ops     []opEntry
		number  float64
		inNum   bool
		inVar   bool
		varText strings.Builder
		varPos  int
	)

	flushNumber := func() {
		if inNum {
			out = append(out, numberToken(number))
			number, inNum = 0, false
		}
	}
	flushVariable := func(pos int) error {
		if varText.Len() == 0 {
			return &ParseError{Pos: pos, Err: ErrEmptyVariable}
		}
		v, err := ParseVariable(varText.String())
		if err != nil {
			return &ParseError{Pos: varPos, Err: err}
		}
		out = append(out, variableToken(v))
		varText.Reset()
		inVar = false
		return nil
	}

	for i, ch := range text {
		terminator := unicode.IsSpace(ch) || ch == '(' || ch == ')'
		if inVar {
			if !terminator {
				varText.WriteRune(ch)
				continue
			}
			if err := flushVariable(i); err != nil {
				return nil, err
			}
		}

		if ch >= '0' && ch <= '9' {
			number = number*10 + float64(ch-'0')
			inNum = true
			continue
		}
		flushNumber()

		switch {
		case unicode.IsSpace(ch):
		case ch == variableMarker:
			inVar = true
			varPos = i
		case ch == '(':
			ops = append(ops, opEntry{paren: true, pos: i})
		case ch == ')':
			paired := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.paren {
					paired = true
					break
				}
				out = append(out, operatorToken(top.op))
			}
			if !paired {
				return nil, &ParseError{Pos: i, Err: ErrUnmatchedClosingParen}
			}
		case isOperator(ch):
			op := Operator(ch)
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.paren || top.op.precedence() < op.precedence() {
					break
				}
				out = append(out, operatorToken(top.op))
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, opEntry{op: op, pos: i})
		default:
			return nil, &ParseError{Pos: i, Err: ErrUnexpectedCharacter}
		}
	}

	if inVar {
		if err := flushVariable(len(text)); err != nil {
			return nil, err
		}
	}
	flushNumber()

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.paren {
			return nil, &ParseError{Pos: top.pos, Err: ErrUnmatchedOpeningParen}
		}
		out = append(out, operatorToken(top.op))
	}

	if len(out) == 0 {
		return nil, &ParseError{Pos: -1, Err: ErrEmptyExpression}
	}
	if err := checkArity(out); err != nil {
		return nil, err
	}

	return &Program{source: text, tokens: out}, nil
}

// MustParse is like Parse but panics on error. Intended for built-in defaults
// and tests.
func MustParse(text string) *Program {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

// checkArity enforces operators == operands-1, then walks the program to make
// sure no operator runs with fewer than two operands on the stack.
func checkArity(tokens []Token) error {
	operators := 0
	for _, t := range tokens {
		if t.Kind == KindOperator {
			operators++
		}
	}
	operands := len(tokens) - operators
	if operators > operands-1 {
		return &ParseError{Pos: -1, Err: ErrExtraOperator}
	}
	if operators < operands-1 {
		return &ParseError{Pos: -1, Err: ErrExtraOperand}
	}

	depth := 0
	for _, t := range tokens {
		if t.Kind != KindOperator {
			depth++
			continue
		}
		if depth < 2 {
			return &ParseError{Pos: -1, Err: ErrMisplacedOperator}
		}
		depth--
	}
	return nil
}

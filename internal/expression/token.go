package expression

import "strconv"

// Kind classifies a postfix token.
type Kind int

const (
	KindNumber Kind = iota
	KindOperator
	KindVariable
)

// Operator is one of the four binary arithmetic operators.
type Operator byte

const (
	OpAdd Operator = '+'
	OpSub Operator = '-'
	OpMul Operator = '*'
	OpDiv Operator = '/'
)

func isOperator(ch rune) bool {
	return ch == '+' || ch == '-' || ch == '*' || ch == '/'
}

func (o Operator) precedence() int {
	if o == OpMul || o == OpDiv {
		return 2
	}
	return 1
}

// apply computes b op a, where a was on top of the stack.
func (o Operator) apply(b, a float64) float64 {
	switch o {
	case OpAdd:
		return b + a
	case OpSub:
		return b - a
	case OpMul:
		return b * a
	default:
		return b / a
	}
}

// Token is one element of a compiled program.
type Token struct {
	Kind     Kind
	Number   float64
	Operator Operator
	Variable Variable
}

func numberToken(v float64) Token     { return Token{Kind: KindNumber, Number: v} }
func operatorToken(op Operator) Token { return Token{Kind: KindOperator, Operator: op} }
func variableToken(v Variable) Token  { return Token{Kind: KindVariable, Variable: v} }

func (t Token) String() string {
	switch t.Kind {
	case KindNumber:
		return strconv.FormatFloat(t.Number, 'f', -1, 64)
	case KindOperator:
		return string(t.Operator)
	default:
		return t.Variable.Raw
	}
}

// value returns the JSON representation used in the rpn array.
func (t Token) value() any {
	if t.Kind == KindNumber {
		return t.Number
	}
	return t.String()
}

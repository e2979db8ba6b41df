package expression

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Program is a compiled expression. It is immutable once built by Parse.
type Program struct {
	source string
	tokens []Token
}

// Source returns the infix text the program was compiled from.
func (p *Program) Source() string { return p.source }

// Len returns the number of postfix tokens.
func (p *Program) Len() int { return len(p.tokens) }

// Tokens returns a copy of the postfix tokens.
func (p *Program) Tokens() []Token {
	out := make([]Token, len(p.tokens))
	copy(out, p.tokens)
	return out
}

// Variables returns the variables referenced by the program in postfix order.
func (p *Program) Variables() []Variable {
	var vars []Variable
	for _, t := range p.tokens {
		if t.Kind == KindVariable {
			vars = append(vars, t.Variable)
		}
	}
	return vars
}

// String renders the postfix form, tokens separated by spaces.
func (p *Program) String() string {
	parts := make([]string, len(p.tokens))
	for i, t := range p.tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// RPN returns the postfix tokens as JSON-friendly values: numbers as float64,
// operators and variables as strings.
func (p *Program) RPN() []any {
	out := make([]any, len(p.tokens))
	for i, t := range p.tokens {
		out[i] = t.value()
	}
	return out
}

type programJSON struct {
	Expression string `json:"expression"`
	RPN        []any  `json:"rpn"`
}

// MarshalJSON encodes the program as {"expression": ..., "rpn": [...]}.
func (p *Program) MarshalJSON() ([]byte, error) {
	return json.Marshal(programJSON{Expression: p.source, RPN: p.RPN()})
}

// UnmarshalJSON recompiles the expression; a stored rpn that disagrees with
// the recompiled program is rejected.
func (p *Program) UnmarshalJSON(data []byte) error {
	var raw programJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode program: %w", err)
	}
	compiled, err := Parse(raw.Expression)
	if err != nil {
		return err
	}
	if raw.RPN != nil && !sameRPN(compiled.RPN(), raw.RPN) {
		return fmt.Errorf("%w: stored rpn does not match expression %q", ErrMalformedProgram, raw.Expression)
	}
	*p = *compiled
	return nil
}

func sameRPN(want, got []any) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

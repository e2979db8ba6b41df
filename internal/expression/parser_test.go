package expression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Postfix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single number", "42", "42"},
		{"multi digit", "2 + 30", "2 30 +"},
		{"precedence", "2 + 3 * 4", "2 3 4 * +"},
		{"left associative subtraction", "10 - 4 - 3", "10 4 - 3 -"},
		{"left associative division", "8 / 4 / 2", "8 4 / 2 /"},
		{"parentheses", "(2 + 3) * 4", "2 3 + 4 *"},
		{"nested parentheses", "((1 + 2) * (3 - 4)) / 5", "1 2 + 3 4 - * 5 /"},
		{"no whitespace", "2*(3+4)", "2 3 4 + *"},
		{"variable", "@mll-毛利率[%] * 100", "mll-毛利率[%] 100 *"},
		{"variable closed by paren", "(@a-甲)*2", "a-甲 2 *"},
		{"variable with slash in name", "@yszk/yyzsr-预收账款/营业总收入 + 1", "yszk/yyzsr-预收账款/营业总收入 1 +"},
		{"variable at end", "1 + @jll-净利率[%]-1", "1 jll-净利率[%]-1 +"},
		{"number directly before variable marker", "(2)+@x-甲", "2 x-甲 +"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.String())
			assert.Equal(t, tt.input, p.Source())
		})
	}
}

func TestParse_BalancedOperatorCount(t *testing.T) {
	inputs := []string{"1", "1 + 2", "1 + 2 * 3 - 4", "(1 + 2) / (3 * (4 - 5))"}

	for _, input := range inputs {
		p := MustParse(input)
		operators := 0
		for _, tok := range p.Tokens() {
			if tok.Kind == KindOperator {
				operators++
			}
		}
		assert.Equal(t, p.Len()-operators-1, operators, input)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		wantPos int
	}{
		{"empty", "", ErrEmptyExpression, -1},
		{"blank", "   ", ErrEmptyExpression, -1},
		{"only parens", "()", ErrEmptyExpression, -1},
		{"unmatched closing", "1 + 2)", ErrUnmatchedClosingParen, 5},
		{"unmatched opening", "(1 + 2", ErrUnmatchedOpeningParen, 0},
		{"marker before space", "@ + 1", ErrEmptyVariable, 1},
		{"marker before paren", "(@)", ErrEmptyVariable, 2},
		{"marker at end", "1 + @", ErrEmptyVariable, 5},
		{"extra operator", "1 + + 2", ErrExtraOperator, -1},
		{"dangling operator", "1 +", ErrExtraOperator, -1},
		{"extra operand", "1 2 + 3", ErrExtraOperand, -1},
		{"adjacent numbers", "1 2", ErrExtraOperand, -1},
		{"unexpected character", "1 % 2", ErrUnexpectedCharacter, 2},
		{"decimal point", "1.5", ErrUnexpectedCharacter, 1},
		{"bad window", "@mll-毛利率[%]-avg0", ErrInvalidYearSpec, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantPos, perr.Pos)
		})
	}
}

func TestParse_MisplacedOperator(t *testing.T) {
	// Counts balance but the first operator has a single operand below it.
	_, err := Parse("1 + + 2 3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMisplacedOperator)
}

func TestParse_UnaryMinusIsBinary(t *testing.T) {
	_, err := Parse("-1")
	assert.ErrorIs(t, err, ErrExtraOperator)
}

func TestParse_Deterministic(t *testing.T) {
	a := MustParse("@a-甲 * (2 + @b-乙-1)")
	b := MustParse("@a-甲 * (2 + @b-乙-1)")
	assert.Equal(t, a.Tokens(), b.Tokens())
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("(") })
}

func TestProgram_TokensIsACopy(t *testing.T) {
	p := MustParse("1 + 2")
	toks := p.Tokens()
	toks[0] = numberToken(99)
	assert.Equal(t, "1 2 +", p.String())
}

func TestProgram_Variables(t *testing.T) {
	p := MustParse("@a-甲 + @b-乙-2 * 3")
	vars := p.Variables()
	require.Len(t, vars, 2)
	assert.Equal(t, "a-甲", vars[0].Name)
	assert.Equal(t, "b-乙", vars[1].Name)
	assert.Equal(t, 2, vars[1].Year.Offset)
}

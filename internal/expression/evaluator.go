package expression

import (
	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/pkg/formulas"
)

// DefaultSmoothingFactor is the alpha used by the ses aggregate when none is configured.
const DefaultSmoothingFactor = 0.5

// Options tunes evaluation.
type Options struct {
	SmoothingFactor float64
}

// DefaultOptions returns the evaluation defaults.
func DefaultOptions() Options {
	return Options{SmoothingFactor: DefaultSmoothingFactor}
}

// Context is everything a program is evaluated against.
type Context struct {
	Series     domain.Series // newest first
	Index      int           // current report position
	Snapshot   *domain.Snapshot
	Dictionary Dictionary
	Options    Options
}

// Evaluate runs p against ctx. Any failure yields an *EvalError and no value.
func Evaluate(p *Program, ctx Context) (float64, error) {
	if p == nil {
		return 0, &EvalError{Index: ctx.Index, Err: ErrMalformedProgram}
	}
	stack := make([]float64, 0, len(p.tokens)/2+1)

	for _, t := range p.tokens {
		switch t.Kind {
		case KindNumber:
			stack = append(stack, t.Number)
		case KindVariable:
			v, err := ctx.resolve(t.Variable)
			if err != nil {
				return 0, &EvalError{Token: t.Variable.Raw, Index: ctx.Index, Err: err}
			}
			stack = append(stack, v)
		case KindOperator:
			if len(stack) < 2 {
				return 0, &EvalError{Token: t.String(), Index: ctx.Index, Err: ErrStackUnderflow}
			}
			a := stack[len(stack)-1]
			b := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, t.Operator.apply(b, a))
		}
	}

	switch len(stack) {
	case 1:
		return stack[0], nil
	case 0:
		return 0, &EvalError{Index: ctx.Index, Err: ErrStackUnderflow}
	default:
		return 0, &EvalError{Index: ctx.Index, Err: ErrMalformedProgram}
	}
}

// Cell is the outcome of evaluating one report column.
type Cell struct {
	Value float64
	Err   error
}

// OK reports whether the cell holds a value.
func (c Cell) OK() bool { return c.Err == nil }

// EvaluateColumns evaluates p at every position of ctx.Series.
func EvaluateColumns(p *Program, ctx Context) []Cell {
	cells := make([]Cell, len(ctx.Series))
	for i := range ctx.Series {
		ctx.Index = i
		v, err := Evaluate(p, ctx)
		cells[i] = Cell{Value: v, Err: err}
	}
	return cells
}

func (ctx Context) resolve(v Variable) (float64, error) {
	if v.Pseudo != PseudoNone {
		if ctx.Snapshot == nil {
			if v.SubstituteZero {
				return 0, nil
			}
			return 0, ErrMissingSnapshot
		}
		if v.Pseudo == PseudoTTMPE {
			return ctx.Snapshot.TTMPE, nil
		}
		return ctx.Snapshot.TotalMarketCap, nil
	}

	key, ok := ctx.Dictionary.Lookup(v.Name)
	if !ok {
		return 0, ErrUnknownField
	}

	if v.Year.Aggregate == AggregateNone {
		idx := ctx.Index + v.Year.Offset
		if idx < 0 || idx >= len(ctx.Series) {
			return 0, ErrIndexOutOfRange
		}
		return ctx.value(ctx.Series[idx], key, v.SubstituteZero)
	}

	window, err := ctx.window(key, v)
	if err != nil {
		return 0, err
	}

	switch v.Year.Aggregate {
	case AggregateAvg:
		return formulas.Mean(window), nil
	case AggregateStd:
		return formulas.PopulationStdDev(window), nil
	default:
		alpha := ctx.Options.SmoothingFactor
		if alpha <= 0 || alpha > 1 {
			alpha = DefaultSmoothingFactor
		}
		return formulas.ExponentialSmoothing(window, alpha), nil
	}
}

// window collects the N oldest-to-newest values at indices len-1 down to len-N.
func (ctx Context) window(key string, v Variable) ([]float64, error) {
	n := v.Year.Window
	size := len(ctx.Series)
	if n > size {
		return nil, ErrInsufficientHistory
	}
	values := make([]float64, 0, n)
	for i := size - 1; i >= size-n; i-- {
		x, err := ctx.value(ctx.Series[i], key, v.SubstituteZero)
		if err != nil {
			return nil, err
		}
		values = append(values, x)
	}
	return values, nil
}

func (ctx Context) value(rec domain.Record, key string, substituteZero bool) (float64, error) {
	x, ok := rec.Number(key)
	if ok {
		return x, nil
	}
	if substituteZero {
		return 0, nil
	}
	return 0, ErrMissingValue
}

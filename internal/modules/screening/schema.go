// Package screening filters, ranks and tabulates stocks by compiled
// indicator expressions.
package screening

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aristath/valuescope/internal/expression"
)

var (
	// ErrEmptyTitle is returned when a schema or indicator has no title.
	ErrEmptyTitle = errors.New("title is required")
	// ErrInvalidSchema wraps unit and bound validation failures.
	ErrInvalidSchema = errors.New("invalid schema")
)

// LimitUnit scales the bounds of a filter schema.
type LimitUnit string

const (
	LimitUnitNone LimitUnit = ""
	LimitUnitYi   LimitUnit = "y" // 1e8
	LimitUnitWan  LimitUnit = "w" // 1e4
)

var (
	yi  = decimal.New(1, 8)
	wan = decimal.New(1, 4)
)

// Scale returns the multiplier applied to bounds expressed in u.
func (u LimitUnit) Scale() decimal.Decimal {
	switch u {
	case LimitUnitYi:
		return yi
	case LimitUnitWan:
		return wan
	default:
		return decimal.NewFromInt(1)
	}
}

// Valid reports whether u is a known unit.
func (u LimitUnit) Valid() bool {
	return u == LimitUnitNone || u == LimitUnitYi || u == LimitUnitWan
}

// Bounds is an inclusive [lo, hi] range; either end may be open (nil).
type Bounds [2]*float64

// NewBounds builds bounds from optional ends.
func NewBounds(lo, hi *float64) Bounds {
	return Bounds{lo, hi}
}

// Contains reports whether v lies within the bounds scaled by unit. NaN and
// infinities never do.
func (b Bounds) Contains(v float64, unit LimitUnit) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	value := decimal.NewFromFloat(v)
	scale := unit.Scale()
	if lo := b[0]; lo != nil && value.LessThan(decimal.NewFromFloat(*lo).Mul(scale)) {
		return false
	}
	if hi := b[1]; hi != nil && value.GreaterThan(decimal.NewFromFloat(*hi).Mul(scale)) {
		return false
	}
	return true
}

// FilterSchema is one saved screening criterion evaluated against the
// newest leading indicator record of each stock.
type FilterSchema struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Expression string              `json:"expression"`
	Program    *expression.Program `json:"program,omitempty"`
	Limit      Bounds              `json:"limit"`
	LimitUnit  LimitUnit           `json:"limitUnit,omitempty"`
}

// Compile validates the schema and parses its expression into Program.
func (s *FilterSchema) Compile() error {
	if strings.TrimSpace(s.Title) == "" {
		return ErrEmptyTitle
	}
	if !s.LimitUnit.Valid() {
		return fmt.Errorf("%w: unknown limit unit %q", ErrInvalidSchema, s.LimitUnit)
	}
	if lo, hi := s.Limit[0], s.Limit[1]; lo != nil && hi != nil && *lo > *hi {
		return fmt.Errorf("%w: lower bound %v above upper bound %v", ErrInvalidSchema, *lo, *hi)
	}
	program, err := expression.Parse(s.Expression)
	if err != nil {
		return err
	}
	s.Program = program
	return nil
}

// IndicatorUnit is the display unit of a report indicator.
type IndicatorUnit string

const (
	IndicatorUnitNone    IndicatorUnit = ""
	IndicatorUnitPercent IndicatorUnit = "%"
)

// ReportIndicator is one row of a report indicator table.
type ReportIndicator struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Expression string              `json:"expression"`
	Program    *expression.Program `json:"program,omitempty"`
	Unit       IndicatorUnit       `json:"unit,omitempty"`
}

// Compile validates the indicator and parses its expression into Program.
func (r *ReportIndicator) Compile() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if r.Unit != IndicatorUnitNone && r.Unit != IndicatorUnitPercent {
		return fmt.Errorf("%w: unknown indicator unit %q", ErrInvalidSchema, r.Unit)
	}
	program, err := expression.Parse(r.Expression)
	if err != nil {
		return err
	}
	r.Program = program
	return nil
}

// ReportIndicatorGroup is a titled list of report indicators.
type ReportIndicatorGroup struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Indicators []ReportIndicator `json:"indicators"`
}

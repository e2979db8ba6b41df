package expression

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// substituteZeroMarker anywhere in a variable makes absent values read as 0.
const substituteZeroMarker = "[r0]"

// Category selects the statement a prefixed variable belongs to.
type Category string

const (
	CategoryNone     Category = ""
	CategoryIncome   Category = "l"
	CategoryBalance  Category = "z"
	CategoryCashFlow Category = "x"
)

// Pseudo marks variables read from the snapshot instead of the series.
type Pseudo int

const (
	PseudoNone Pseudo = iota
	PseudoTTMPE
	PseudoMarketCap
)

// Aggregate is the window function of a year spec.
type Aggregate string

const (
	AggregateNone Aggregate = ""
	AggregateAvg  Aggregate = "avg"
	AggregateStd  Aggregate = "std"
	AggregateSES  Aggregate = "ses"
)

var (
	offsetSpec    = regexp.MustCompile(`^\d+$`)
	aggregateSpec = regexp.MustCompile(`^(avg|std|ses)(\d+)$`)
)

// YearSpec is either a relative year offset or an aggregate over a window.
type YearSpec struct {
	Offset    int
	Aggregate Aggregate
	Window    int
}

// Variable is a parsed variable reference.
type Variable struct {
	Raw            string
	Name           string // dictionary key, category prefix included
	Category       Category
	Pseudo         Pseudo
	Year           YearSpec
	SubstituteZero bool
}

// ParseVariable splits raw ("[l-|z-|x-]pinyin-chinese[-yearSpec]") into its parts.
func ParseVariable(raw string) (Variable, error) {
	v := Variable{Raw: raw}

	text := raw
	if strings.Contains(text, substituteZeroMarker) {
		v.SubstituteZero = true
		text = strings.ReplaceAll(text, substituteZeroMarker, "")
	}
	if text == "" {
		return v, ErrEmptyVariable
	}

	segments := strings.Split(text, "-")
	if len(segments) > 1 {
		last := segments[len(segments)-1]
		switch {
		case offsetSpec.MatchString(last):
			n, err := strconv.Atoi(last)
			if err != nil {
				return v, fmt.Errorf("%w %q: %v", ErrInvalidYearSpec, last, err)
			}
			v.Year.Offset = n
			segments = segments[:len(segments)-1]
		case aggregateSpec.MatchString(last):
			m := aggregateSpec.FindStringSubmatch(last)
			n, err := strconv.Atoi(m[2])
			if err != nil || n < 1 {
				return v, fmt.Errorf("%w %q: window must be at least 1", ErrInvalidYearSpec, last)
			}
			v.Year.Aggregate = Aggregate(m[1])
			v.Year.Window = n
			segments = segments[:len(segments)-1]
		}
	}

	v.Name = strings.Join(segments, "-")
	if v.Name == "" {
		return v, ErrEmptyVariable
	}

	switch segments[0] {
	case "pe":
		v.Pseudo = PseudoTTMPE
	case "zsz":
		v.Pseudo = PseudoMarketCap
	}

	if len(segments) >= 3 {
		switch Category(segments[0]) {
		case CategoryIncome, CategoryBalance, CategoryCashFlow:
			v.Category = Category(segments[0])
		}
	}

	return v, nil
}

// Canonical renders the variable without the substitute marker and with an
// explicit year spec.
func (v Variable) Canonical() string {
	spec := strconv.Itoa(v.Year.Offset)
	if v.Year.Aggregate != AggregateNone {
		spec = string(v.Year.Aggregate) + strconv.Itoa(v.Year.Window)
	}
	return v.Name + "-" + spec
}

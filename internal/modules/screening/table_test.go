package screening

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/expression"
)

func nan() float64 { return math.NaN() }

func indicator(t *testing.T, id, expr string, unit IndicatorUnit) ReportIndicator {
	t.Helper()
	ind := ReportIndicator{ID: id, Title: id, Expression: expr, Unit: unit}
	require.NoError(t, ind.Compile())
	return ind
}

func TestTabulator_Table(t *testing.T) {
	series := domain.Series{
		{"reportYear": 2023.0, "OPERATE_INCOME": 3e9, "XSMLL": 40.0},
		{"reportYear": 2022.0, "OPERATE_INCOME": 2e9},
	}
	indicators := []ReportIndicator{
		indicator(t, "income", "@l-yysr-营业收入", IndicatorUnitNone),
		indicator(t, "margin", "@mll-毛利率[%]", IndicatorUnitPercent),
		indicator(t, "growth", "(@l-yysr-营业收入 - @l-yysr-营业收入-1) / @l-yysr-营业收入-1 * 100", IndicatorUnitPercent),
	}

	table := NewTabulator(expression.DefaultOptions()).Table(indicators, series)
	assert.Equal(t, []int{2023, 2022}, table.Years)
	require.Len(t, table.Rows, 3)

	income := table.Rows[0]
	assert.Equal(t, "30.00 亿", income.Cells[0].Text)
	assert.Equal(t, "20.00 亿", income.Cells[1].Text)

	margin := table.Rows[1]
	require.NotNil(t, margin.Cells[0].Value)
	assert.Equal(t, "40.00%", margin.Cells[0].Text)
	assert.Nil(t, margin.Cells[1].Value)
	assert.Equal(t, "NaN", margin.Cells[1].Text)

	growth := table.Rows[2]
	assert.Equal(t, "50.00%", growth.Cells[0].Text)
	assert.Nil(t, growth.Cells[1].Value, "no prior year for the oldest column")
}

func TestIndicatorCompile(t *testing.T) {
	bad := ReportIndicator{Title: "x", Expression: "1", Unit: "pts"}
	assert.Error(t, bad.Compile())

	missing := ReportIndicator{Title: "x", Expression: ")"}
	assert.ErrorIs(t, missing.Compile(), expression.ErrUnmatchedClosingParen)
}

func TestAverageReports(t *testing.T) {
	entities := []domain.StockWithReports{
		{ID: "a", Reports: domain.Series{
			{"reportYear": 2023.0, "X": 10.0, "Y": "3"},
			{"reportYear": 2022.0, "X": 20.0},
		}},
		{ID: "b", Reports: domain.Series{
			{"reportYear": 2023.0, "X": 30.0, "Z": 0.0},
		}},
	}

	avg := AverageReports(entities)
	require.Len(t, avg, 2, "length follows the first entity")

	assert.Equal(t, domain.Record{"reportYear": 2023.0, "X": 20.0, "Y": 1.5}, avg[0])
	assert.Equal(t, domain.Record{"reportYear": 1011.0, "X": 10.0}, avg[1], "missing values count as zero")
	assert.Empty(t, AverageReports(nil))
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		v    float64
		unit IndicatorUnit
		want string
	}{
		{1.5e9, IndicatorUnitNone, "15.00 亿"},
		{123456, IndicatorUnitPercent, "12.35 万"},
		{10000, IndicatorUnitNone, "10000.00"},
		{12.345, IndicatorUnitPercent, "12.35%"},
		{-2e9, IndicatorUnitNone, "-2000000000.00"},
		{0, IndicatorUnitNone, "0.00"},
		{math.NaN(), IndicatorUnitNone, "NaN"},
		{math.Inf(1), IndicatorUnitNone, "Infinity"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.v, tt.unit))
	}
}

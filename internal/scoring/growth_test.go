package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/edgarscore/internal/financials"
)

func incomeSeries(field financials.Field, values ...*float64) []financials.IncomeStatement {
	out := make([]financials.IncomeStatement, len(values))
	for i, v := range values {
		s := financials.IncomeStatement{Date: fmt.Sprintf("%d", 2010+i)}
		switch field {
		case financials.GrossProfit:
			s.GrossProfit = v
		case financials.NetIncome:
			s.NetIncome = v
		}
		out[i] = s
	}
	return out
}

func TestAverageGrowth_ConstantRatio(t *testing.T) {
	for _, g := range []float64{0.5, 1.0, 1.3, 2.0} {
		for _, n := range []int{2, 3, 7} {
			for _, scale := range []float64{1, 1e3, 1e9} {
				values := make([]*float64, n)
				v := scale
				for i := range values {
					values[i] = financials.Float(v)
					v *= g
				}
				got := AverageGrowth("T", incomeSeries(financials.GrossProfit, values...), financials.GrossProfit)
				assert.InDelta(t, g, got, 1e-9, "g=%v n=%d scale=%v", g, n, scale)
			}
		}
	}
}

func TestAverageGrowth_MissingValueSkipsAdjacentPairs(t *testing.T) {
	f := financials.Float
	// pairs: (100,110) ok, (110,nil) skip, (nil,150) skip, (150,180) ok
	series := incomeSeries(financials.GrossProfit, f(100), f(110), nil, f(150), f(180))

	got := AverageGrowth("T", series, financials.GrossProfit)
	want := 1 + ((110.0/100 - 1) + (180.0/150 - 1)) / 2
	assert.InDelta(t, want, got, 1e-12)
}

func TestAverageGrowth_ZeroStartSkipped(t *testing.T) {
	f := financials.Float
	series := incomeSeries(financials.NetIncome, f(0), f(10), f(20))

	got := AverageGrowth("T", series, financials.NetIncome)
	assert.InDelta(t, 2.0, got, 1e-12, "only the 10 -> 20 pair counts")

	// A zero end value is a real observation
	series = incomeSeries(financials.NetIncome, f(10), f(0))
	assert.InDelta(t, 0.0, AverageGrowth("T", series, financials.NetIncome), 1e-12)
}

func TestAverageGrowth_NoQualifyingPair(t *testing.T) {
	f := financials.Float
	assert.Equal(t, 0.0, AverageGrowth("T", []financials.IncomeStatement{}, financials.GrossProfit))
	assert.Equal(t, 0.0, AverageGrowth("T", incomeSeries(financials.GrossProfit, f(5)), financials.GrossProfit))
	assert.Equal(t, 0.0, AverageGrowth("T", incomeSeries(financials.GrossProfit, nil, nil, nil), financials.GrossProfit))
}

func TestAverageGrowth_UnknownField(t *testing.T) {
	f := financials.Float
	series := incomeSeries(financials.GrossProfit, f(1), f(2))
	assert.Equal(t, 0.0, AverageGrowth("T", series, financials.TotalAssets))
}

func TestAverage(t *testing.T) {
	f := financials.Float

	assert.Equal(t, 0.0, Average([]financials.IncomeStatement{}, financials.NetIncome))
	assert.Equal(t, 0.0, Average(incomeSeries(financials.NetIncome, nil, nil), financials.NetIncome))
	assert.InDelta(t, 10.0, Average(incomeSeries(financials.NetIncome, f(10), f(10), f(10)), financials.NetIncome), 1e-12)
	assert.InDelta(t, 15.0, Average(incomeSeries(financials.NetIncome, f(10), nil, f(20)), financials.NetIncome), 1e-12)
}

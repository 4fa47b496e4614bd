package financials

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Income_RoundTrip(t *testing.T) {
	n := NewNormalizer()

	raw := RawRecord{
		"date":              "2020",
		"Revenue":           1000.0,
		"Costs":             400,
		"GrossProfit":       "600",
		"RndExpenses":       json.Number("120"),
		"OperatingExpenses": "1,200",
		"NetIncome":         -35.5,
	}

	s := n.Income(raw)
	assert.Equal(t, "2020", s.Date)
	require.NotNil(t, s.Revenue)
	assert.Equal(t, 1000.0, *s.Revenue)
	require.NotNil(t, s.CostOfRevenue)
	assert.Equal(t, 400.0, *s.CostOfRevenue)
	require.NotNil(t, s.GrossProfit)
	assert.Equal(t, 600.0, *s.GrossProfit)
	require.NotNil(t, s.RnDExpenses)
	assert.Equal(t, 120.0, *s.RnDExpenses)
	require.NotNil(t, s.OperatingExpenses)
	assert.Equal(t, 1200.0, *s.OperatingExpenses)
	require.NotNil(t, s.NetIncome)
	assert.Equal(t, -35.5, *s.NetIncome)

	// Absent keys stay missing, never zero
	assert.Nil(t, s.GAExpense)
	assert.Nil(t, s.InterestExpense)
	assert.Nil(t, s.EBITDA)
}

func TestNormalizer_Income_DerivesOperatingIncome(t *testing.T) {
	n := NewNormalizer()

	s := n.Income(RawRecord{"GrossProfit": 500.0, "OperatingExpenses": 200.0})
	require.NotNil(t, s.OperatingIncome)
	assert.Equal(t, 300.0, *s.OperatingIncome)

	// A sourced value is never overwritten
	s = n.Income(RawRecord{"GrossProfit": 500.0, "OperatingExpenses": 200.0, "OperatingIncome": 250.0})
	require.NotNil(t, s.OperatingIncome)
	assert.Equal(t, 250.0, *s.OperatingIncome)

	// One input missing means nothing to derive
	s = n.Income(RawRecord{"GrossProfit": 500.0})
	assert.Nil(t, s.OperatingIncome)

	// A mapped key with no numeric value counts as absent
	s = n.Income(RawRecord{"GrossProfit": 500.0, "OperatingExpenses": 200.0, "OperatingIncome": "n/a"})
	require.NotNil(t, s.OperatingIncome)
	assert.Equal(t, 300.0, *s.OperatingIncome)

	// A dialect that never maps the field still derives it
	bare := Dialect{Name: "bare", Income: map[Field][]string{
		GrossProfit:       {"gp"},
		OperatingExpenses: {"opex"},
	}}
	s = NewNormalizer(bare).Income(RawRecord{"gp": 90.0, "opex": 40.0})
	require.NotNil(t, s.OperatingIncome)
	assert.Equal(t, 50.0, *s.OperatingIncome)
}

func TestNormalizer_BalanceSheet(t *testing.T) {
	n := NewNormalizer()

	s := n.BalanceSheet(RawRecord{"date": 2021, "Assets": "2 000", "Liabilities": 800.0})
	assert.Equal(t, "2021", s.Date)
	require.NotNil(t, s.TotalAssets)
	assert.Equal(t, 2000.0, *s.TotalAssets)
	require.NotNil(t, s.TotalLiabilities)
	assert.Equal(t, 800.0, *s.TotalLiabilities)
	assert.Nil(t, s.TotalDebt)
	assert.Nil(t, s.NetDebt)
}

func TestNormalizer_Profile(t *testing.T) {
	n := NewNormalizer()

	p := n.Profile(RawRecord{"date": "2019", "MarketCap": 5.5e9, "country": "US", "exchangeShortName": "NASDAQ"})
	assert.Equal(t, "2019", p.Date)
	require.NotNil(t, p.MktCap)
	assert.Equal(t, 5.5e9, *p.MktCap)
	assert.Nil(t, p.LastDiv)
	assert.Equal(t, "US", p.Country)
	assert.Equal(t, "NASDAQ", p.Exchange)
	assert.Empty(t, p.Industry)
}

func TestNormalizer_XBRLDialect(t *testing.T) {
	n := NewNormalizer()

	raw := RawRecord{
		"date":                          "2018",
		"grossprofit":                   "700",
		"researchanddevelopmentexpense": "90",
		"operatingexpenses":             "300",
		"netincomeloss":                 "-12",
		"assets":                        "5000",
		"liabilities":                   "2500",
	}

	s := n.Income(raw)
	require.NotNil(t, s.GrossProfit)
	assert.Equal(t, 700.0, *s.GrossProfit)
	require.NotNil(t, s.RnDExpenses)
	assert.Equal(t, 90.0, *s.RnDExpenses)
	require.NotNil(t, s.NetIncome)
	assert.Equal(t, -12.0, *s.NetIncome)

	b := n.BalanceSheet(raw)
	require.NotNil(t, b.TotalAssets)
	assert.Equal(t, 5000.0, *b.TotalAssets)
}

func TestNormalizer_UncoercibleValueIsMissing(t *testing.T) {
	n := NewNormalizer()

	s := n.Income(RawRecord{"Revenue": "n/a", "GrossProfit": []int{1}, "NetIncome": "-"})
	assert.Nil(t, s.Revenue)
	assert.Nil(t, s.GrossProfit)
	require.NotNil(t, s.NetIncome)
	assert.Equal(t, 0.0, *s.NetIncome)
}

func TestNormalizer_Statement(t *testing.T) {
	n := NewNormalizer()
	raw := RawRecord{"NetIncome": 1.0}

	v, err := n.Statement(Income, raw)
	require.NoError(t, err)
	assert.IsType(t, IncomeStatement{}, v)

	v, err = n.Statement(BalanceSheet, raw)
	require.NoError(t, err)
	assert.IsType(t, BalanceSheetStatement{}, v)

	v, err = n.Statement(Profile, raw)
	require.NoError(t, err)
	assert.IsType(t, CompanyProfile{}, v)

	_, err = n.Statement(StatementKind(42), raw)
	assert.Error(t, err)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 1.5, want: 1.5, ok: true},
		{in: 7, want: 7, ok: true},
		{in: int64(9), want: 9, ok: true},
		{in: json.Number("3.25"), want: 3.25, ok: true},
		{in: " 1,234.5 ", want: 1234.5, ok: true},
		{in: "-", want: 0, ok: true},
		{in: "", ok: false},
		{in: "abc", ok: false},
		{in: nil, ok: false},
		{in: true, ok: false},
	}

	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		assert.Equal(t, tt.ok, ok, "input %v", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "input %v", tt.in)
		}
	}
}

func TestIncomeStatement_Value(t *testing.T) {
	s := IncomeStatement{Date: "2020", GrossProfit: Float(10)}

	v, ok := s.Value(GrossProfit)
	assert.True(t, ok)
	require.NotNil(t, v)
	assert.Equal(t, 10.0, *v)

	v, ok = s.Value(NetIncome)
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = s.Value(TotalAssets)
	assert.False(t, ok)
	assert.Equal(t, "2020", s.Period())
}

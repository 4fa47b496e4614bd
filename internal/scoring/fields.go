package scoring

import "fmt"

// Field names a numeric ScoreEntry column that filters and sorting can read.
type Field string

const (
	FieldGrossProfitGrowth Field = "grossProfitGrowth"
	FieldIncomeGrowth      Field = "incomeGrowth"
	FieldRnDRatio          Field = "RnDRatio"
	FieldCashPerDebt       Field = "cashPerDebt"
	FieldNetIncome         Field = "netIncome"
	FieldMktCap            Field = "mktCap"
)

// DefaultSortField orders results unless configured otherwise.
const DefaultSortField = FieldGrossProfitGrowth

type accessor func(ScoreEntry) float64

var (
	fieldOrder []Field
	accessors  map[Field]accessor
)

func init() {
	table := []struct {
		name Field
		get  accessor
	}{
		{FieldGrossProfitGrowth, func(e ScoreEntry) float64 { return e.GrossProfitGrowth }},
		{FieldIncomeGrowth, func(e ScoreEntry) float64 { return e.IncomeGrowth }},
		{FieldRnDRatio, func(e ScoreEntry) float64 { return e.RnDRatio }},
		{FieldCashPerDebt, func(e ScoreEntry) float64 { return e.CashPerDebt }},
		{FieldNetIncome, func(e ScoreEntry) float64 { return e.NetIncome }},
		{FieldMktCap, func(e ScoreEntry) float64 { return e.MktCap }},
	}

	accessors = make(map[Field]accessor, len(table))
	for _, f := range table {
		fieldOrder = append(fieldOrder, f.name)
		accessors[f.name] = f.get
	}
}

// Fields lists the filterable field names in column order.
func Fields() []string {
	out := make([]string, len(fieldOrder))
	for i, f := range fieldOrder {
		out[i] = string(f)
	}
	return out
}

// ParseField resolves a field name.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if _, ok := accessors[f]; !ok {
		return "", fmt.Errorf("unknown score field %q", name)
	}
	return f, nil
}

// Get reads the field from e. Unknown fields read as 0.
func (f Field) Get(e ScoreEntry) float64 {
	if get, ok := accessors[f]; ok {
		return get(e)
	}
	return 0
}

func (f Field) Valid() bool {
	_, ok := accessors[f]
	return ok
}

// Package financials holds typed financial statements and the tables that map
// raw per-year filing data onto them.
package financials

import "fmt"

// Period is the reporting cadence of a statement series.
type Period int

const (
	Year Period = iota + 1
	Quarter
)

func (p Period) String() string {
	switch p {
	case Year:
		return "year"
	case Quarter:
		return "quarter"
	default:
		return fmt.Sprintf("period(%d)", int(p))
	}
}

// ParsePeriod accepts "year" or "quarter".
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "year", "Year", "annual", "":
		return Year, nil
	case "quarter", "Quarter":
		return Quarter, nil
	}
	return 0, fmt.Errorf("unknown period %q", s)
}

// StatementKind selects the record shape produced by the normalizer.
type StatementKind int

const (
	Profile StatementKind = iota + 1
	Income
	BalanceSheet
)

func (k StatementKind) String() string {
	switch k {
	case Profile:
		return "profile"
	case Income:
		return "income"
	case BalanceSheet:
		return "balance_sheet"
	default:
		return fmt.Sprintf("statement(%d)", int(k))
	}
}

// Field is the canonical name of a statement line item.
type Field string

// Income statement fields.
const (
	Revenue           Field = "Revenue"
	CostOfRevenue     Field = "CostOfRevenue"
	GrossProfit       Field = "GrossProfit"
	RnDExpenses       Field = "RnDExpenses"
	GAExpense         Field = "GAExpense"
	SaMExpense        Field = "SaMExpense"
	OperatingExpenses Field = "OperatingExpenses"
	OperatingIncome   Field = "OperatingIncome"
	InterestExpense   Field = "InterestExpense"
	NetIncome         Field = "NetIncome"
	EBITDA            Field = "EBITDA"
	EBITratio         Field = "EBITratio"
)

// Balance sheet fields.
const (
	CashAndCashEquivalents       Field = "CashAndCashEquivalents"
	ShortTermInvestments         Field = "ShortTermInvestments"
	Receivables                  Field = "Receivables"
	PropertyPlantAndEquipmentNet Field = "PropertyPlantAndEquipmentNet"
	GoodwillAndIntangibleAssets  Field = "GoodwillAndIntangibleAssets"
	LongTermInvestments          Field = "LongTermInvestments"
	TaxAssets                    Field = "TaxAssets"
	TotalNonCurrentAssets        Field = "TotalNonCurrentAssets"
	TotalAssets                  Field = "TotalAssets"
	Payables                     Field = "Payables"
	ShortTermDebt                Field = "ShortTermDebt"
	TotalDebt                    Field = "TotalDebt"
	TotalLiabilities             Field = "TotalLiabilities"
	DeferredRevenue              Field = "DeferredRevenue"
	NetDebt                      Field = "NetDebt"
)

// Profile fields.
const (
	MktCap   Field = "mktCap"
	LastDiv  Field = "lastDiv"
	Country  Field = "country"
	Industry Field = "industry"
	Currency Field = "currency"
	Exchange Field = "exchange"
)

// DateKey is the raw key carrying the fiscal period of a record.
const DateKey = "date"

// Record is a dated statement whose numeric fields can be read by name.
type Record interface {
	Period() string
	Value(f Field) (*float64, bool)
}

// IncomeStatement is one fiscal period of income data. Nil fields are missing.
type IncomeStatement struct {
	Date              string   `json:"date"`
	Revenue           *float64 `json:"revenue,omitempty"`
	CostOfRevenue     *float64 `json:"costOfRevenue,omitempty"`
	GrossProfit       *float64 `json:"grossProfit,omitempty"`
	RnDExpenses       *float64 `json:"rndExpenses,omitempty"`
	GAExpense         *float64 `json:"gaExpense,omitempty"`
	SaMExpense        *float64 `json:"samExpense,omitempty"`
	OperatingExpenses *float64 `json:"operatingExpenses,omitempty"`
	OperatingIncome   *float64 `json:"operatingIncome,omitempty"`
	InterestExpense   *float64 `json:"interestExpense,omitempty"`
	NetIncome         *float64 `json:"netIncome,omitempty"`
	EBITDA            *float64 `json:"ebitda,omitempty"`
	EBITratio         *float64 `json:"ebitRatio,omitempty"`
}

func (s IncomeStatement) Period() string { return s.Date }

func (s IncomeStatement) Value(f Field) (*float64, bool) {
	p := s.ref(f)
	if p == nil {
		return nil, false
	}
	return *p, true
}

func (s *IncomeStatement) ref(f Field) **float64 {
	switch f {
	case Revenue:
		return &s.Revenue
	case CostOfRevenue:
		return &s.CostOfRevenue
	case GrossProfit:
		return &s.GrossProfit
	case RnDExpenses:
		return &s.RnDExpenses
	case GAExpense:
		return &s.GAExpense
	case SaMExpense:
		return &s.SaMExpense
	case OperatingExpenses:
		return &s.OperatingExpenses
	case OperatingIncome:
		return &s.OperatingIncome
	case InterestExpense:
		return &s.InterestExpense
	case NetIncome:
		return &s.NetIncome
	case EBITDA:
		return &s.EBITDA
	case EBITratio:
		return &s.EBITratio
	}
	return nil
}

// BalanceSheetStatement is one fiscal period of balance sheet data.
type BalanceSheetStatement struct {
	Date                         string   `json:"date"`
	CashAndCashEquivalents       *float64 `json:"cashAndCashEquivalents,omitempty"`
	ShortTermInvestments         *float64 `json:"shortTermInvestments,omitempty"`
	Receivables                  *float64 `json:"receivables,omitempty"`
	PropertyPlantAndEquipmentNet *float64 `json:"propertyPlantEquipmentNet,omitempty"`
	GoodwillAndIntangibleAssets  *float64 `json:"goodwillAndIntangibleAssets,omitempty"`
	LongTermInvestments          *float64 `json:"longTermInvestments,omitempty"`
	TaxAssets                    *float64 `json:"taxAssets,omitempty"`
	TotalNonCurrentAssets        *float64 `json:"totalNonCurrentAssets,omitempty"`
	TotalAssets                  *float64 `json:"totalAssets,omitempty"`
	Payables                     *float64 `json:"payables,omitempty"`
	ShortTermDebt                *float64 `json:"shortTermDebt,omitempty"`
	TotalDebt                    *float64 `json:"totalDebt,omitempty"`
	TotalLiabilities             *float64 `json:"totalLiabilities,omitempty"`
	DeferredRevenue              *float64 `json:"deferredRevenue,omitempty"`
	NetDebt                      *float64 `json:"netDebt,omitempty"`
}

func (s BalanceSheetStatement) Period() string { return s.Date }

func (s BalanceSheetStatement) Value(f Field) (*float64, bool) {
	p := s.ref(f)
	if p == nil {
		return nil, false
	}
	return *p, true
}

func (s *BalanceSheetStatement) ref(f Field) **float64 {
	switch f {
	case CashAndCashEquivalents:
		return &s.CashAndCashEquivalents
	case ShortTermInvestments:
		return &s.ShortTermInvestments
	case Receivables:
		return &s.Receivables
	case PropertyPlantAndEquipmentNet:
		return &s.PropertyPlantAndEquipmentNet
	case GoodwillAndIntangibleAssets:
		return &s.GoodwillAndIntangibleAssets
	case LongTermInvestments:
		return &s.LongTermInvestments
	case TaxAssets:
		return &s.TaxAssets
	case TotalNonCurrentAssets:
		return &s.TotalNonCurrentAssets
	case TotalAssets:
		return &s.TotalAssets
	case Payables:
		return &s.Payables
	case ShortTermDebt:
		return &s.ShortTermDebt
	case TotalDebt:
		return &s.TotalDebt
	case TotalLiabilities:
		return &s.TotalLiabilities
	case DeferredRevenue:
		return &s.DeferredRevenue
	case NetDebt:
		return &s.NetDebt
	}
	return nil
}

// CompanyProfile holds static per-company attributes. Retrieval yields one per
// fiscal year; the most recent entry is authoritative.
type CompanyProfile struct {
	Date     string   `json:"date"`
	MktCap   *float64 `json:"mktCap,omitempty"`
	LastDiv  *float64 `json:"lastDiv,omitempty"`
	Country  string   `json:"country,omitempty"`
	Industry string   `json:"industry,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Exchange string   `json:"exchange,omitempty"`
}

// incomeFields and balanceSheetFields list every numeric field per statement.
var incomeFields = []Field{
	Revenue, CostOfRevenue, GrossProfit, RnDExpenses, GAExpense, SaMExpense,
	OperatingExpenses, OperatingIncome, InterestExpense, NetIncome, EBITDA, EBITratio,
}

var balanceSheetFields = []Field{
	CashAndCashEquivalents, ShortTermInvestments, Receivables, PropertyPlantAndEquipmentNet,
	GoodwillAndIntangibleAssets, LongTermInvestments, TaxAssets, TotalNonCurrentAssets,
	TotalAssets, Payables, ShortTermDebt, TotalDebt, TotalLiabilities, DeferredRevenue, NetDebt,
}

var profileFields = []Field{MktCap, LastDiv, Country, Industry, Currency, Exchange}

// Fields returns the canonical fields of a statement kind.
func Fields(kind StatementKind) []Field {
	var src []Field
	switch kind {
	case Income:
		src = incomeFields
	case BalanceSheet:
		src = balanceSheetFields
	case Profile:
		src = profileFields
	}
	return append([]Field(nil), src...)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

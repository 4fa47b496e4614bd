package financials

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dialect maps canonical fields to the source keys one data source uses for
// them. Candidate keys are tried in order; the first present key wins.
type Dialect struct {
	Name         string             `yaml:"name"`
	Income       map[Field][]string `yaml:"income"`
	BalanceSheet map[Field][]string `yaml:"balance_sheet"`
	Profile      map[Field][]string `yaml:"profile"`
}

// Aggregate is the canonical dialect: the camelCase keys the EDGAR extractor
// writes to the cache.
var Aggregate = Dialect{
	Name: "aggregate",
	Income: map[Field][]string{
		Revenue:           {"Revenue"},
		CostOfRevenue:     {"Costs", "CostOfRevenue"},
		GrossProfit:       {"GrossProfit"},
		RnDExpenses:       {"RndExpenses", "RnDExpenses"},
		GAExpense:         {"GAExpense"},
		SaMExpense:        {"AdminExpenses"},
		OperatingExpenses: {"OperatingExpenses"},
		OperatingIncome:   {"OperatingIncome"},
		InterestExpense:   {"InterestExpense"},
		NetIncome:         {"NetIncome"},
		EBITDA:            {"EBITDA"},
		EBITratio:         {"EBITratio"},
	},
	BalanceSheet: map[Field][]string{
		CashAndCashEquivalents:       {"cashAndCashEquivalents"},
		ShortTermInvestments:         {"shortTermInvestments"},
		Receivables:                  {"netReceivables"},
		PropertyPlantAndEquipmentNet: {"propertyPlantEquipmentNet"},
		GoodwillAndIntangibleAssets:  {"goodwillAndIntangibleAssets"},
		LongTermInvestments:          {"longTermInvestments"},
		TaxAssets:                    {"taxAssets"},
		TotalNonCurrentAssets:        {"totalNonCurrentAssets"},
		TotalAssets:                  {"Assets"},
		Payables:                     {"accountPayables"},
		ShortTermDebt:                {"shortTermDebt"},
		TotalDebt:                    {"totalDebt"},
		TotalLiabilities:             {"Liabilities"},
		DeferredRevenue:              {"deferredRevenue"},
		NetDebt:                      {"netDebt"},
	},
	Profile: map[Field][]string{
		MktCap:   {"MarketCap"},
		LastDiv:  {"lastDiv"},
		Country:  {"country"},
		Industry: {"industry"},
		Currency: {"currency"},
		Exchange: {"exchangeShortName"},
	},
}

// XBRL maps lowercase us-gaap local tag names as they appear in raw filings.
var XBRL = Dialect{
	Name: "xbrl",
	Income: map[Field][]string{
		Revenue:           {"revenues", "salesrevenuenet", "revenuefromcontractwithcustomerexcludingassessedtax"},
		CostOfRevenue:     {"costofrevenue", "costofgoodssold", "costofgoodsandservicessold"},
		GrossProfit:       {"grossprofit"},
		RnDExpenses:       {"researchanddevelopmentexpense"},
		GAExpense:         {"generalandadministrativeexpense"},
		SaMExpense:        {"sellinggeneralandadministrativeexpense", "sellingandmarketingexpense"},
		OperatingExpenses: {"operatingexpenses", "costsandexpenses"},
		OperatingIncome:   {"operatingincomeloss"},
		InterestExpense:   {"interestexpense"},
		NetIncome:         {"netincomeloss", "profitloss"},
	},
	BalanceSheet: map[Field][]string{
		CashAndCashEquivalents:       {"cashandcashequivalentsatcarryingvalue", "cash"},
		ShortTermInvestments:         {"shortterminvestments", "marketablesecuritiescurrent"},
		Receivables:                  {"accountsreceivablenetcurrent"},
		PropertyPlantAndEquipmentNet: {"propertyplantandequipmentnet"},
		GoodwillAndIntangibleAssets:  {"intangibleassetsnetincludinggoodwill"},
		LongTermInvestments:          {"longterminvestments"},
		TaxAssets:                    {"deferredtaxassetsnet"},
		TotalNonCurrentAssets:        {"noncurrentassets", "assetsnoncurrent"},
		TotalAssets:                  {"assets"},
		Payables:                     {"accountspayablecurrent"},
		ShortTermDebt:                {"shorttermborrowings", "debtcurrent"},
		TotalDebt:                    {"longtermdebt", "debtinstrumentcarryingamount"},
		TotalLiabilities:             {"liabilities"},
		DeferredRevenue:              {"contractwithcustomerliability", "deferredrevenue"},
	},
	Profile: map[Field][]string{
		MktCap: {"marketcap"},
	},
}

// DefaultDialects returns the built-in dialects, canonical first.
func DefaultDialects() []Dialect {
	return []Dialect{Aggregate, XBRL}
}

// dialectFile is the YAML layout of a dialects file.
type dialectFile struct {
	Dialects []Dialect `yaml:"dialects"`
}

// LoadDialects reads dialect tables from a YAML file. A dialect whose name
// matches a built-in replaces it; new names are appended after the built-ins.
func LoadDialects(path string) ([]Dialect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dialects file: %w", err)
	}
	return ParseDialects(data)
}

// ParseDialects is LoadDialects over an in-memory document.
func ParseDialects(data []byte) ([]Dialect, error) {
	var file dialectFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse dialects: %w", err)
	}

	dialects := DefaultDialects()
	for _, d := range file.Dialects {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		replaced := false
		for i := range dialects {
			if dialects[i].Name == d.Name {
				dialects[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			dialects = append(dialects, d)
		}
	}
	return dialects, nil
}

// Validate rejects tables naming fields the statement does not have.
func (d Dialect) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("dialect name is required")
	}
	check := func(kind StatementKind, table map[Field][]string) error {
		known := make(map[Field]bool)
		for _, f := range Fields(kind) {
			known[f] = true
		}
		for f := range table {
			if !known[f] {
				return fmt.Errorf("dialect %s: unknown %s field %q", d.Name, kind, f)
			}
		}
		return nil
	}
	if err := check(Income, d.Income); err != nil {
		return err
	}
	if err := check(BalanceSheet, d.BalanceSheet); err != nil {
		return err
	}
	return check(Profile, d.Profile)
}

// matches counts the source keys of d present in raw.
func (d Dialect) matches(raw RawRecord) int {
	n := 0
	for _, table := range []map[Field][]string{d.Income, d.BalanceSheet, d.Profile} {
		for _, keys := range table {
			for _, k := range keys {
				if _, ok := raw[k]; ok {
					n++
					break
				}
			}
		}
	}
	return n
}

// Detect picks the dialect with the most source keys present in raw. Ties,
// including no matches at all, go to the earliest dialect in the list.
func Detect(raw RawRecord, dialects []Dialect) Dialect {
	if len(dialects) == 0 {
		return Aggregate
	}
	best, bestN := dialects[0], dialects[0].matches(raw)
	for _, d := range dialects[1:] {
		if n := d.matches(raw); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

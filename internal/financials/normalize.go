package financials

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawRecord is one fiscal period of source data: arbitrary keys mapped to
// string or numeric values.
type RawRecord map[string]any

// Date returns the record's fiscal period key, or "" when absent.
func (r RawRecord) Date() string {
	v, ok := r[DateKey]
	if !ok || v == nil {
		return ""
	}
	switch d := v.(type) {
	case string:
		return strings.TrimSpace(d)
	case int:
		return strconv.Itoa(d)
	case int64:
		return strconv.FormatInt(d, 10)
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Normalizer converts raw records into typed statements using the dialect
// whose keys best match each record.
type Normalizer struct {
	dialects []Dialect
}

// NewNormalizer builds a normalizer over dialects, or the built-ins when none
// are given.
func NewNormalizer(dialects ...Dialect) *Normalizer {
	if len(dialects) == 0 {
		dialects = DefaultDialects()
	}
	return &Normalizer{dialects: dialects}
}

// Dialects returns the tables in detection order.
func (n *Normalizer) Dialects() []Dialect {
	return append([]Dialect(nil), n.dialects...)
}

// Income normalizes raw into an income statement.
func (n *Normalizer) Income(raw RawRecord) IncomeStatement {
	d := Detect(raw, n.dialects)
	s := IncomeStatement{Date: raw.Date()}
	for _, f := range incomeFields {
		*s.ref(f) = lookup(raw, d.Income[f])
	}
	if s.OperatingIncome == nil && s.GrossProfit != nil && s.OperatingExpenses != nil {
		s.OperatingIncome = Float(*s.GrossProfit - *s.OperatingExpenses)
	}
	return s
}

// BalanceSheet normalizes raw into a balance sheet.
func (n *Normalizer) BalanceSheet(raw RawRecord) BalanceSheetStatement {
	d := Detect(raw, n.dialects)
	s := BalanceSheetStatement{Date: raw.Date()}
	for _, f := range balanceSheetFields {
		*s.ref(f) = lookup(raw, d.BalanceSheet[f])
	}
	return s
}

// Profile normalizes raw into a company profile.
func (n *Normalizer) Profile(raw RawRecord) CompanyProfile {
	d := Detect(raw, n.dialects)
	return CompanyProfile{
		Date:     raw.Date(),
		MktCap:   lookup(raw, d.Profile[MktCap]),
		LastDiv:  lookup(raw, d.Profile[LastDiv]),
		Country:  lookupString(raw, d.Profile[Country]),
		Industry: lookupString(raw, d.Profile[Industry]),
		Currency: lookupString(raw, d.Profile[Currency]),
		Exchange: lookupString(raw, d.Profile[Exchange]),
	}
}

// Statement dispatches on kind and returns the typed record.
func (n *Normalizer) Statement(kind StatementKind, raw RawRecord) (any, error) {
	switch kind {
	case Income:
		return n.Income(raw), nil
	case BalanceSheet:
		return n.BalanceSheet(raw), nil
	case Profile:
		return n.Profile(raw), nil
	}
	return nil, fmt.Errorf("unsupported statement kind %s", kind)
}

func lookup(raw RawRecord, keys []string) *float64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if f, ok := ToFloat(v); ok {
			return &f
		}
		return nil
	}
	return nil
}

func lookupString(raw RawRecord, keys []string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}

// ToFloat coerces a raw value to a number. Strings may carry thousands
// separators; a lone "-" is a filed zero. Anything else is not a number.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "-" {
			return 0, true
		}
		s = strings.NewReplacer(",", "", " ", "").Replace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

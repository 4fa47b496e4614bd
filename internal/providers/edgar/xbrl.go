package edgar

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/sawpanic/edgarscore/internal/financials"
)

// ErrNoFocus is returned for filings without a fiscal period focus.
var ErrNoFocus = errors.New("filing has no fiscal period focus")

// Element maps a cached fact key to the XBRL tags reporting it, in priority
// order.
type Element struct {
	Key  string
	Tags []string
}

// Elements lists the facts extracted from annual reports.
var Elements = []Element{
	{"Revenue", []string{"us-gaap:revenues", "us-gaap:salesrevenuenet", "us-gaap:revenuefromcontractwithcustomerexcludingassessedtax"}},
	{"Costs", []string{"us-gaap:costofrevenue", "us-gaap:costofgoodssold", "us-gaap:costofgoodsandservicessold"}},
	{"GrossProfit", []string{"us-gaap:grossprofit"}},
	{"GAExpense", []string{"us-gaap:generalandadministrativeexpense"}},
	{"AdminExpenses", []string{"us-gaap:sellinggeneralandadministrativeexpense"}},
	{"RndExpenses", []string{"us-gaap:researchanddevelopmentexpense"}},
	{"OperatingExpenses", []string{"us-gaap:operatingexpenses"}},
	{"OperatingIncome", []string{"us-gaap:operatingincomeloss"}},
	{"NetIncome", []string{"us-gaap:netincomeloss", "us-gaap:profitloss"}},
	{"Assets", []string{"us-gaap:assets"}},
	{"Liabilities", []string{"us-gaap:liabilities"}},
}

const (
	tagFocus     = "dei:documentfiscalperiodfocus"
	tagPeriodEnd = "dei:documentperiodenddate"
	tagShares    = "dei:entitycommonstocksharesoutstanding"
)

var tagKey = func() map[string]bool {
	m := make(map[string]bool)
	for _, el := range Elements {
		for _, t := range el.Tags {
			m[t] = true
		}
	}
	return m
}()

// Facts are the values extracted from one filing.
type Facts struct {
	Values            map[string]float64
	SharesOutstanding float64
	ReportDate        time.Time
	FocusContext      string
}

// Record returns the facts as written to the cache, with SharesOutstanding
// and TotalEquityGross added when known.
func (f *Facts) Record() map[string]float64 {
	out := make(map[string]float64, len(f.Values)+2)
	for k, v := range f.Values {
		out[k] = v
	}
	if f.SharesOutstanding > 0 {
		out["SharesOutstanding"] = f.SharesOutstanding
	}
	assets, okA := f.Values["Assets"]
	liabilities, okL := f.Values["Liabilities"]
	if okA && okL {
		out["TotalEquityGross"] = assets - liabilities
	}
	return out
}

type xbrlContext struct {
	start, end time.Time
	instant    bool
	segment    bool
}

type candidate struct {
	value float64
	rank  int
}

// ExtractFacts parses an XBRL or inline XBRL document. Facts are taken from
// the fiscal focus context, or from segment-free instant and duration
// contexts covering the same period.
func ExtractFacts(r io.Reader) (*Facts, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse filing: %w", err)
	}

	contexts := parseContexts(doc)
	focusID := focusContext(doc)
	if focusID == "" {
		return nil, ErrNoFocus
	}
	focus, ok := contexts[focusID]
	if !ok {
		return nil, fmt.Errorf("focus context %q not defined", focusID)
	}

	facts := &Facts{
		Values:       make(map[string]float64),
		ReportDate:   focus.end,
		FocusContext: focusID,
	}
	found := make(map[string]candidate)

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		name := factName(s)
		if name != tagShares && !tagKey[name] {
			return
		}
		v, ok := factValue(s)
		if !ok {
			return
		}
		if name == tagShares {
			facts.SharesOutstanding += v
			return
		}

		ref, _ := s.Attr("contextref")
		c, ok := contexts[ref]
		if !ok || c.segment {
			return
		}
		rank := 0
		switch {
		case ref == focusID:
		case c.instant && c.end.Equal(focus.end):
			rank = 1
		case !c.instant && c.start.Equal(focus.start) && c.end.Equal(focus.end):
			rank = 1
		default:
			return
		}
		if prev, seen := found[name]; seen && prev.rank <= rank {
			return
		}
		found[name] = candidate{value: v, rank: rank}
	})

	for _, el := range Elements {
		for _, tag := range el.Tags {
			if c, ok := found[tag]; ok {
				facts.Values[el.Key] = c.value
				break
			}
		}
	}
	return facts, nil
}

// factName is the lowercase qualified fact name of an element: the tag
// itself for XBRL, the name attribute for inline XBRL.
func factName(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	if tag == "ix:nonfraction" || tag == "ix:nonnumeric" {
		name, _ := s.Attr("name")
		return strings.ToLower(name)
	}
	return tag
}

func factValue(s *goquery.Selection) (float64, bool) {
	var text string
	if strings.HasPrefix(goquery.NodeName(s), "ix:") {
		text = s.Text()
	} else {
		text = ownText(s)
	}
	v, ok := financials.ToFloat(text)
	if !ok {
		return 0, false
	}
	if scale, err := strconv.Atoi(s.AttrOr("scale", "")); err == nil {
		v *= math.Pow10(scale)
	}
	if strings.TrimSpace(s.AttrOr("sign", "")) == "-" {
		v = -v
	}
	return v, true
}

// ownText is the text of the element's direct text children. Self-closed XML
// elements are parsed as open tags, so descendants may belong to siblings.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

func focusContext(doc *goquery.Document) string {
	for _, tag := range []string{tagFocus, tagPeriodEnd} {
		var ref string
		doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if factName(s) != tag {
				return true
			}
			ref, _ = s.Attr("contextref")
			return ref == ""
		})
		if ref != "" {
			return ref
		}
	}
	return ""
}

func parseContexts(doc *goquery.Document) map[string]xbrlContext {
	out := make(map[string]xbrlContext)
	byName(doc.Selection, "xbrli:context", "context").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		if !ok {
			return
		}
		c := xbrlContext{
			segment: byName(s, "xbrli:segment", "segment").Length() > 0,
		}
		if t, ok := dateOf(byName(s, "xbrli:instant", "instant")); ok {
			c.instant = true
			c.end = t
		} else {
			c.start, _ = dateOf(byName(s, "xbrli:startdate", "startdate"))
			c.end, _ = dateOf(byName(s, "xbrli:enddate", "enddate"))
		}
		out[id] = c
	})
	return out
}

// byName selects descendants of s whose tag is one of names.
func byName(s *goquery.Selection, names ...string) *goquery.Selection {
	return s.Find("*").FilterFunction(func(_ int, c *goquery.Selection) bool {
		tag := goquery.NodeName(c)
		for _, n := range names {
			if tag == n {
				return true
			}
		}
		return false
	})
}

func dateOf(s *goquery.Selection) (time.Time, bool) {
	if s.Length() == 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(ownText(s.First())))
	return t, err == nil
}

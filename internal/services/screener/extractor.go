package screener

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/finsight/internal/models"
)

// MetricSynonyms pairs a metric label with the page spellings tried for it,
// in priority order.
type MetricSynonyms struct {
	Label    string
	Synonyms []string
}

// DefaultMetrics lists the labelled metrics and their synonyms. Current
// Price has its own lookup and is not listed.
var DefaultMetrics = []MetricSynonyms{
	{models.LabelMarketCap, []string{"Market Cap", "Market capitalization"}},
	{models.LabelPE, []string{"P/E", "PE", "Price to Earnings"}},
	{models.LabelROCE, []string{"ROCE", "Return on Capital Employed"}},
	{models.LabelROE, []string{"ROE", "Return on Equity"}},
	{models.LabelDebtEquity, []string{"Debt to equity", "Debt", "Total Debt"}},
	{models.LabelHighLow, []string{"High / Low", "52W High / Low"}},
	{models.LabelProfitGrowth, []string{"Profit Growth", "Net Profit Growth"}},
	{models.LabelSalesGrowth, []string{"Sales Growth", "Revenue Growth"}},
	{models.LabelCashFlows, []string{"Cash", "Cash Flow", "Operating Cash Flow"}},
}

var (
	highSynonyms = []string{"High", "52W High"}
	lowSynonyms  = []string{"Low", "52W Low"}

	priceCleaner = regexp.MustCompile(`[^\d.,]`)
)

// Extractor turns a parsed company page into a MetricMap. It holds no
// per-page state and is safe for concurrent use.
type Extractor struct {
	strategies []Strategy
	metrics    []MetricSynonyms
	currency   string
	logger     arbor.ILogger
}

// NewExtractor creates an extractor. With no strategies the default
// AttributeMatch, KeyMetricsBlock, TableRow order is used.
func NewExtractor(currency string, logger arbor.ILogger, strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	if currency == "" {
		currency = "₹"
	}
	return &Extractor{
		strategies: strategies,
		metrics:    DefaultMetrics,
		currency:   currency,
		logger:     logger,
	}
}

// Lookup tries each synonym in order and, per synonym, each strategy in
// order. The first non-empty value wins and later strategies are not run.
func (e *Extractor) Lookup(doc *goquery.Document, synonyms []string) (string, bool) {
	for _, synonym := range synonyms {
		for _, strategy := range e.strategies {
			if v, ok := e.safeTry(strategy, doc, synonym); ok {
				return v, true
			}
		}
	}
	return "", false
}

// safeTry runs one strategy attempt. A panic inside the attempt counts as
// nothing found.
func (e *Extractor) safeTry(strategy Strategy, doc *goquery.Document, synonym string) (value string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if e.logger != nil {
				e.logger.Debug().
					Str("strategy", strategy.Name()).
					Str("synonym", synonym).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("Extraction strategy failed")
			}
			value, ok = "", false
		}
	}()

	value, ok = strategy.TryExtract(doc, synonym)
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, ok
}

// Extract reads every known metric from doc. Company name, NSE symbol and
// slug are always set; metrics that cannot be found are absent.
func (e *Extractor) Extract(doc *goquery.Document, record models.EntityRecord) models.MetricMap {
	name := cleanText(doc.Find("h1").First())
	if name == "" {
		name = record.Name
	}

	entries := []models.Metric{
		{Label: models.LabelCompanyName, Value: name},
		{Label: models.LabelCurrentPrice, Value: e.price(doc)},
	}

	for _, m := range e.metrics {
		value, _ := e.Lookup(doc, m.Synonyms)
		if value == "" && m.Label == models.LabelHighLow {
			value = e.highLow(doc)
		}
		entries = append(entries, models.Metric{Label: m.Label, Value: value})
	}

	entries = append(entries,
		models.Metric{Label: models.LabelSymbol, Value: record.Symbol},
		models.Metric{Label: models.LabelSlug, Value: record.Slug},
	)

	return models.NewMetricMap(entries...)
}

// highLow resolves both sides separately and joins them only when both are
// found.
func (e *Extractor) highLow(doc *goquery.Document) string {
	high, ok := e.Lookup(doc, highSynonyms)
	if !ok {
		return ""
	}
	low, ok := e.Lookup(doc, lowSynonyms)
	if !ok {
		return ""
	}
	return high + " / " + low
}

// price tries the dedicated price element, then a price-classed span, then
// the element after a "Current Price" label.
func (e *Extractor) price(doc *goquery.Document) string {
	var raw string

	if el := doc.Find("span#top-price").First(); el.Length() > 0 {
		raw = cleanText(el)
	}
	if raw == "" {
		el := doc.Find("span[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return classContains(s, "price")
		}).First()
		raw = cleanText(el)
	}
	if raw == "" {
		label := doc.Find("body *").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(strings.ToLower(ownText(s)), "current price")
		}).First()
		if label.Length() > 0 {
			raw = cleanText(label.Next())
		}
	}

	cleaned := priceCleaner.ReplaceAllString(raw, "")
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, e.currency) {
		return cleaned
	}
	return e.currency + cleaned
}

// ownText returns the text of s's direct text children only
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

// CountMetrics returns the number of extracted metrics, leaving out the
// identity fields that are always present.
func CountMetrics(m models.MetricMap) int {
	n := 0
	for _, e := range m.Entries() {
		switch e.Label {
		case models.LabelCompanyName, models.LabelSymbol, models.LabelSlug, models.LabelError:
			continue
		}
		n++
	}
	return n
}

package models

import (
	"bytes"
	"encoding/json"
)

// Metric labels produced by the extractor, in display order.
const (
	LabelCompanyName  = "Company Name"
	LabelCurrentPrice = "Current Price"
	LabelMarketCap    = "Market Cap"
	LabelPE           = "P/E"
	LabelROCE         = "ROCE"
	LabelROE          = "ROE"
	LabelDebtEquity   = "Debt/Equity"
	LabelHighLow      = "High / Low"
	LabelProfitGrowth = "Profit Growth"
	LabelSalesGrowth  = "Sales Growth"
	LabelCashFlows    = "Cash Flows"
	LabelSymbol       = "NSE Symbol"

	// LabelSlug is internal and never shown to users or sent to the model.
	LabelSlug = "slug"
	// LabelError marks a failed lookup; a map carrying it has no other metrics.
	LabelError = "error"
)

// DisplayLabels is the order metrics are shown to the user.
var DisplayLabels = []string{
	LabelCurrentPrice,
	LabelMarketCap,
	LabelPE,
	LabelROCE,
	LabelROE,
	LabelDebtEquity,
	LabelHighLow,
	LabelProfitGrowth,
	LabelSalesGrowth,
	LabelCashFlows,
}

// FailureKind says why a MetricMap carries an error.
type FailureKind string

const (
	FailureNone            FailureKind = ""
	FailureNotFound        FailureKind = "not_found"
	FailureFetch           FailureKind = "fetch_failure"
	FailureExtractionEmpty FailureKind = "extraction_empty"
)

// Metric is a single label/value pair.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// MetricMap is an ordered, immutable label -> value mapping built once per
// request. Absent metrics are absent keys.
type MetricMap struct {
	entries []Metric
	index   map[string]int
	failure FailureKind
}

// NewMetricMap builds a map from entries in order. Entries with an empty
// value are skipped; a repeated label keeps its first position and takes the
// last value.
func NewMetricMap(entries ...Metric) MetricMap {
	m := MetricMap{
		entries: make([]Metric, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Value == "" {
			continue
		}
		if i, ok := m.index[e.Label]; ok {
			m.entries[i].Value = e.Value
			continue
		}
		m.index[e.Label] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m
}

// NewErrorMetricMap builds the failure sentinel: a map whose only entry is
// the error message.
func NewErrorMetricMap(kind FailureKind, message string) MetricMap {
	m := NewMetricMap(Metric{Label: LabelError, Value: message})
	m.failure = kind
	return m
}

// Get returns the value for label.
func (m MetricMap) Get(label string) (string, bool) {
	i, ok := m.index[label]
	if !ok {
		return "", false
	}
	return m.entries[i].Value, true
}

// Has reports whether label is present.
func (m MetricMap) Has(label string) bool {
	_, ok := m.index[label]
	return ok
}

// HasError reports whether the map is the failure sentinel. Callers must
// check it before reading any other field.
func (m MetricMap) HasError() bool {
	return m.Has(LabelError)
}

// ErrorMessage returns the failure text, or "" for a populated map.
func (m MetricMap) ErrorMessage() string {
	v, _ := m.Get(LabelError)
	return v
}

// Failure returns the failure kind, FailureNone for a populated map.
func (m MetricMap) Failure() FailureKind {
	return m.failure
}

// Len returns the number of entries.
func (m MetricMap) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the entries in order.
func (m MetricMap) Entries() []Metric {
	out := make([]Metric, len(m.entries))
	copy(out, m.entries)
	return out
}

// Equal reports whether two maps hold the same entries in the same order.
func (m MetricMap) Equal(other MetricMap) bool {
	if m.failure != other.failure || len(m.entries) != len(other.entries) {
		return false
	}
	for i := range m.entries {
		if m.entries[i] != other.entries[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the map as a JSON object preserving entry order.
func (m MetricMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

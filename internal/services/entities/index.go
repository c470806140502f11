package entities

import (
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/interfaces"
	"github.com/ternarybob/finsight/internal/models"
)

type indexedTerm struct {
	term   string
	record *models.EntityRecord
}

// Index resolves free-text queries against the entity table. It is built
// once and never written afterwards, so concurrent reads need no locking.
type Index struct {
	records  []models.EntityRecord
	terms    []indexedTerm
	position map[string]int
}

var _ interfaces.EntityResolver = (*Index)(nil)

// NewIndex builds the search-term index for records, in table order
func NewIndex(records []models.EntityRecord) *Index {
	ix := &Index{
		records:  make([]models.EntityRecord, 0, len(records)),
		position: make(map[string]int),
	}

	bySlug := make(map[string]int)
	for _, r := range records {
		if _, ok := bySlug[r.Slug]; ok {
			continue
		}
		bySlug[r.Slug] = len(ix.records)
		ix.records = append(ix.records, r)
	}

	// ix.records is complete, pointers into it stay valid. Rows sharing a
	// slug index their terms against the first row.
	for _, r := range records {
		rec := &ix.records[bySlug[r.Slug]]
		for _, term := range SearchTerms(r) {
			ix.add(term, rec)
		}
	}
	return ix
}

// add indexes term. A repeated term points at the newer record but keeps
// its first position in the scan order.
func (ix *Index) add(term string, rec *models.EntityRecord) {
	if pos, ok := ix.position[term]; ok {
		ix.terms[pos].record = rec
		return
	}
	ix.position[term] = len(ix.terms)
	ix.terms = append(ix.terms, indexedTerm{term: term, record: rec})
}

// SearchTerms lists the lowercase terms a record is indexed under: full
// name, symbol and first word of the name, each followed by its variant
// with the " ltd", " ltd." or " limited" suffix stripped.
func SearchTerms(r models.EntityRecord) []string {
	name := strings.ToLower(r.Name)
	base := []string{name, strings.ToLower(r.Symbol)}
	if fields := strings.Fields(name); len(fields) > 0 {
		base = append(base, fields[0])
	}

	var terms []string
	for _, term := range base {
		if term == "" {
			continue
		}
		terms = append(terms, term)
		if strings.HasSuffix(term, " ltd.") || strings.HasSuffix(term, " ltd") {
			terms = append(terms, strings.ReplaceAll(strings.ReplaceAll(term, " ltd.", ""), " ltd", ""))
		}
		if strings.HasSuffix(term, " limited") {
			terms = append(terms, strings.ReplaceAll(term, " limited", ""))
		}
	}
	return terms
}

// Resolve maps query to a record. An exact term hit wins; otherwise the
// first indexed term (in insertion order) that overlaps the query in either
// direction, or whose record name or symbol does, is returned.
func (ix *Index) Resolve(query string) (*models.EntityRecord, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, false
	}

	if pos, ok := ix.position[q]; ok {
		rec := *ix.terms[pos].record
		return &rec, true
	}

	for _, t := range ix.terms {
		name := strings.ToLower(t.record.Name)
		symbol := strings.ToLower(t.record.Symbol)
		if strings.Contains(t.term, q) ||
			strings.Contains(q, t.term) ||
			strings.Contains(name, q) ||
			strings.Contains(symbol, q) ||
			strings.Contains(q, symbol) {
			rec := *t.record
			return &rec, true
		}
	}

	return nil, false
}

// Records returns a copy of the distinct records in table order
func (ix *Index) Records() []models.EntityRecord {
	out := make([]models.EntityRecord, len(ix.records))
	copy(out, ix.records)
	return out
}

// Len returns the number of distinct records
func (ix *Index) Len() int {
	return len(ix.records)
}

// Terms returns the indexed search terms in scan order
func (ix *Index) Terms() []string {
	out := make([]string, len(ix.terms))
	for i, t := range ix.terms {
		out[i] = t.term
	}
	return out
}

// Load reads the configured entity table and builds the index
func Load(config common.EntitiesConfig, logger arbor.ILogger) (*Index, error) {
	records, err := LoadTable(config.TablePath, config.SheetName)
	if err != nil {
		return nil, err
	}

	ix := NewIndex(records)

	source := config.TablePath
	if source == "" {
		source = "embedded nifty50"
	}
	logger.Info().
		Str("source", source).
		Int("stocks", ix.Len()).
		Int("search_terms", len(ix.terms)).
		Msg("Entity table loaded")

	return ix, nil
}

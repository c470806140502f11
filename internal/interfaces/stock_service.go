package interfaces

import (
	"context"

	"github.com/ternarybob/finsight/internal/models"
)

// EntityResolver maps free-text queries to covered companies.
// Implementations are read-only after construction and safe for concurrent use.
type EntityResolver interface {
	// Resolve returns the record for query, or false when nothing matches.
	Resolve(query string) (*models.EntityRecord, bool)

	// Records lists the distinct records in table order.
	Records() []models.EntityRecord
}

// PageFetcher retrieves the raw company page for a Screener.in slug.
type PageFetcher interface {
	Fetch(ctx context.Context, slug string) ([]byte, error)
}

// StockDataService runs resolve -> fetch -> extract for a query. It never
// returns an error: failures come back as an error-carrying MetricMap.
type StockDataService interface {
	GetStockData(ctx context.Context, query string) models.MetricMap
}

// NarrativeService turns extracted metrics into a narrative summary.
type NarrativeService interface {
	Generate(ctx context.Context, entityName string, metrics models.MetricMap) models.Narrative
}

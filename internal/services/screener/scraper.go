package screener

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/interfaces"
	"github.com/ternarybob/finsight/internal/models"
)

// Service runs resolve -> fetch -> parse -> extract for a query
type Service struct {
	resolver  interfaces.EntityResolver
	fetcher   interfaces.PageFetcher
	extractor *Extractor
	logger    arbor.ILogger
}

var _ interfaces.StockDataService = (*Service)(nil)

// NewService creates a stock data service
func NewService(resolver interfaces.EntityResolver, fetcher interfaces.PageFetcher, extractor *Extractor, logger arbor.ILogger) *Service {
	return &Service{
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger,
	}
}

// NotFoundMessage is the error text for a query that matches no entity
func NotFoundMessage(query string) string {
	return fmt.Sprintf("Stock '%s' not found in Nifty 50. Please use company name or NSE symbol (e.g., 'tcs', 'reliance', 'hdfcbank').", query)
}

// GetStockData never returns an error: every failure comes back as an
// error MetricMap carrying its FailureKind.
func (s *Service) GetStockData(ctx context.Context, query string) models.MetricMap {
	record, ok := s.resolver.Resolve(query)
	if !ok {
		s.logger.Info().Str("query", query).Msg("Stock not found")
		return models.NewErrorMetricMap(models.FailureNotFound, NotFoundMessage(query))
	}

	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, record.Slug)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("query", query).
			Str("slug", record.Slug).
			Msg("Company page fetch failed")
		return models.NewErrorMetricMap(models.FailureFetch,
			fmt.Sprintf("Could not scrape data for '%s': %v", query, err))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.Warn().Err(err).Str("slug", record.Slug).Msg("Company page parse failed")
		return models.NewErrorMetricMap(models.FailureFetch,
			fmt.Sprintf("Could not scrape data for '%s': %v", query, err))
	}

	metrics := s.extractor.Extract(doc, *record)
	found := CountMetrics(metrics)
	if found == 0 {
		s.logger.Warn().
			Str("query", query).
			Str("slug", record.Slug).
			Msg("No metrics found on company page")
		return models.NewErrorMetricMap(models.FailureExtractionEmpty,
			fmt.Sprintf("Could not scrape data for '%s': no metrics found on the company page", query))
	}

	s.logger.Info().
		Str("query", query).
		Str("symbol", record.Symbol).
		Int("metrics", found).
		Dur("duration", time.Since(start)).
		Msg("Stock data extracted")

	return metrics
}

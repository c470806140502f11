package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/models"
	"github.com/ternarybob/finsight/internal/services/conversation"
	"github.com/ternarybob/finsight/internal/services/entities"
)

type stubStocks struct{}

func (stubStocks) GetStockData(ctx context.Context, query string) models.MetricMap {
	if query != "tcs" {
		return models.NewErrorMetricMap(models.FailureNotFound, "Stock '"+query+"' not found in Nifty 50.")
	}
	return models.NewMetricMap(
		models.Metric{Label: models.LabelCompanyName, Value: "Tata Consultancy Services Ltd"},
		models.Metric{Label: models.LabelPE, Value: "28.5"},
		models.Metric{Label: models.LabelSymbol, Value: "TCS"},
		models.Metric{Label: models.LabelSlug, Value: "TCS/consolidated"},
	)
}

type stubNarrator struct{}

func (stubNarrator) Generate(ctx context.Context, entityName string, metrics models.MetricMap) models.Narrative {
	return models.Narrative{Status: models.NarrativeSuccess, Text: "**Sentiment:** Positive", Attempts: 1, Provider: "stub"}
}

func newTestConversation(t *testing.T) (*conversation.Handler, *entities.Index) {
	t.Helper()
	records, err := entities.LoadDefaultTable()
	require.NoError(t, err)
	index := entities.NewIndex(records)
	return conversation.NewHandler(stubStocks{}, stubNarrator{}, index, arbor.NewLogger()), index
}

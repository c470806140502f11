package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/models"
	"github.com/ternarybob/finsight/internal/services/entities"
)

type fakeStocks struct {
	result  models.MetricMap
	queries []string
}

func (f *fakeStocks) GetStockData(ctx context.Context, query string) models.MetricMap {
	f.queries = append(f.queries, query)
	return f.result
}

type fakeNarrator struct {
	narrative  models.Narrative
	calls      int
	entityName string
	requestID  string
}

func (f *fakeNarrator) Generate(ctx context.Context, entityName string, metrics models.MetricMap) models.Narrative {
	f.calls++
	f.entityName = entityName
	f.requestID = common.RequestIDFromContext(ctx)
	return f.narrative
}

type collector struct {
	replies []Reply
	failOn  ReplyKind
}

func (c *collector) Reply(ctx context.Context, reply Reply) error {
	if c.failOn != "" && reply.Kind == c.failOn {
		return errors.New("connection closed")
	}
	c.replies = append(c.replies, reply)
	return nil
}

func (c *collector) kinds() []ReplyKind {
	kinds := make([]ReplyKind, len(c.replies))
	for i, r := range c.replies {
		kinds[i] = r.Kind
	}
	return kinds
}

func tcsMetrics() models.MetricMap {
	return models.NewMetricMap(
		models.Metric{Label: models.LabelCompanyName, Value: "Tata Consultancy Services Ltd"},
		models.Metric{Label: models.LabelCurrentPrice, Value: "₹3,456"},
		models.Metric{Label: models.LabelPE, Value: "28.5"},
		models.Metric{Label: models.LabelROCE, Value: "64.6 %"},
		models.Metric{Label: models.LabelSymbol, Value: "TCS"},
		models.Metric{Label: models.LabelSlug, Value: "TCS/consolidated"},
	)
}

func newTestHandler(t *testing.T, stocks *fakeStocks, narrator *fakeNarrator) *Handler {
	t.Helper()
	records, err := entities.LoadDefaultTable()
	require.NoError(t, err)
	return NewHandler(stocks, narrator, entities.NewIndex(records), arbor.NewLogger())
}

func TestHandleMessage_Success(t *testing.T) {
	stocks := &fakeStocks{result: tcsMetrics()}
	narrator := &fakeNarrator{narrative: models.Narrative{Status: models.NarrativeSuccess, Text: "Sentiment: Positive"}}
	h := newTestHandler(t, stocks, narrator)
	out := &collector{}

	turn, err := h.HandleMessage(context.Background(), "  tcs ", out)
	require.NoError(t, err)

	assert.Equal(t, []string{"tcs"}, stocks.queries)
	assert.Equal(t, []ReplyKind{ReplyStatus, ReplyStatus, ReplyMetrics, ReplyStatus, ReplyInsights}, out.kinds())
	assert.Equal(t, NoticeFetching, out.replies[0].Text)
	assert.Equal(t, NoticeScraping, out.replies[1].Text)
	assert.Equal(t, NoticeGenerating, out.replies[3].Text)

	assert.Contains(t, out.replies[2].Text, "**Tata Consultancy Services Ltd**")
	assert.Contains(t, out.replies[2].Text, "• **P/E**: 28.5")
	assert.True(t, strings.HasPrefix(out.replies[4].Text, "💡 **AI Insights & Sentiment Analysis**\n\n"))
	assert.Contains(t, out.replies[4].Text, "Sentiment: Positive")

	assert.Equal(t, "Tata Consultancy Services Ltd", narrator.entityName)
	assert.NotEmpty(t, turn.RequestID)
	assert.Equal(t, turn.RequestID, narrator.requestID)
	require.NotNil(t, turn.Narrative)
	require.NotNil(t, turn.Metrics)
	assert.Equal(t, "tcs", turn.Query)
	assert.Len(t, turn.Replies, 5)
	assert.NotContains(t, turn.Text(), NoticeFetching)
}

func TestHandleMessage_KeepsCallerRequestID(t *testing.T) {
	narrator := &fakeNarrator{narrative: models.Narrative{Status: models.NarrativeSuccess, Text: "ok"}}
	h := newTestHandler(t, &fakeStocks{result: tcsMetrics()}, narrator)

	ctx := common.WithRequestID(context.Background(), "req-42")
	turn, err := h.HandleMessage(ctx, "tcs", nil)
	require.NoError(t, err)
	assert.Equal(t, "req-42", turn.RequestID)
	assert.Equal(t, "req-42", narrator.requestID)
}

func TestHandleMessage_ErrorMapSkipsNarrative(t *testing.T) {
	stocks := &fakeStocks{result: models.NewErrorMetricMap(models.FailureNotFound, "Stock 'xyz' not found in Nifty 50.")}
	narrator := &fakeNarrator{}
	h := newTestHandler(t, stocks, narrator)
	out := &collector{}

	turn, err := h.HandleMessage(context.Background(), "xyz", out)
	require.NoError(t, err)

	assert.Equal(t, 0, narrator.calls)
	assert.Equal(t, []ReplyKind{ReplyStatus, ReplyStatus, ReplyError}, out.kinds())
	assert.True(t, strings.HasPrefix(out.replies[2].Text, "❌ Stock 'xyz' not found"))
	assert.Contains(t, out.replies[2].Text, "**Tip:**")
	assert.Nil(t, turn.Narrative)
}

func TestHandleMessage_NarrativeOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		narrative models.Narrative
		want      string
	}{
		{"quota notice passes through", models.Narrative{Status: models.NarrativeQuotaExhausted, Text: "⚠️ **Free Tier Quota Exhausted**"}, "⚠️ **Free Tier Quota Exhausted**"},
		{"unavailable falls back", models.Narrative{Status: models.NarrativeUnavailable}, InsightsUnavailableMessage},
		{"empty success falls back", models.Narrative{Status: models.NarrativeSuccess}, InsightsUnavailableMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &fakeStocks{result: tcsMetrics()}, &fakeNarrator{narrative: tt.narrative})
			out := &collector{}

			_, err := h.HandleMessage(context.Background(), "tcs", out)
			require.NoError(t, err)
			require.NotEmpty(t, out.replies)

			last := out.replies[len(out.replies)-1]
			assert.Equal(t, ReplyInsights, last.Kind)
			assert.Equal(t, tt.want, last.Text)
			// metrics are delivered regardless of the narrative outcome
			assert.Contains(t, out.kinds(), ReplyMetrics)
		})
	}
}

func TestHandleMessage_HelpAndEmpty(t *testing.T) {
	stocks := &fakeStocks{}
	h := newTestHandler(t, stocks, &fakeNarrator{})

	for _, q := range []string{"help", "/start", "START"} {
		out := &collector{}
		_, err := h.HandleMessage(context.Background(), q, out)
		require.NoError(t, err)
		require.Len(t, out.replies, 1, q)
		assert.Equal(t, ReplyHelp, out.replies[0].Kind)
		assert.Contains(t, out.replies[0].Text, "Welcome to FinSight")
		assert.Contains(t, out.replies[0].Text, "Covered stocks (50)")
		assert.Contains(t, out.replies[0].Text, "HDFCBANK")
	}

	out := &collector{}
	_, err := h.HandleMessage(context.Background(), "   ", out)
	require.NoError(t, err)
	require.Len(t, out.replies, 1)
	assert.Equal(t, EmptyQueryMessage, out.replies[0].Text)

	assert.Empty(t, stocks.queries)
}

func TestHandleMessage_DeliveryFailureStopsTurn(t *testing.T) {
	narrator := &fakeNarrator{narrative: models.Narrative{Status: models.NarrativeSuccess, Text: "ok"}}
	h := newTestHandler(t, &fakeStocks{result: tcsMetrics()}, narrator)

	_, err := h.HandleMessage(context.Background(), "tcs", &collector{failOn: ReplyMetrics})
	require.Error(t, err)
	assert.Equal(t, 0, narrator.calls)
}

func TestHandleMessage_WithoutNarrator(t *testing.T) {
	records, err := entities.LoadDefaultTable()
	require.NoError(t, err)
	h := NewHandler(&fakeStocks{result: tcsMetrics()}, nil, entities.NewIndex(records), arbor.NewLogger())

	turn, err := h.HandleMessage(context.Background(), "tcs", nil)
	require.NoError(t, err)
	assert.Nil(t, turn.Narrative)
	assert.Equal(t, ReplyMetrics, turn.Replies[len(turn.Replies)-1].Kind)
}

func TestFormatMetrics(t *testing.T) {
	text := FormatMetrics(tcsMetrics())
	lines := strings.Split(text, "\n")
	assert.Equal(t, "📊 **Stock Metrics**", lines[0])
	assert.Contains(t, text, "• **Current Price**: ₹3,456\n• **P/E**: 28.5\n• **ROCE**: 64.6 %")
	assert.NotContains(t, text, "slug")
	assert.NotContains(t, text, "NSE Symbol")

	limited := FormatMetrics(models.NewMetricMap(models.Metric{Label: models.LabelCompanyName, Value: "ITC Ltd"}))
	assert.Contains(t, limited, "**ITC Ltd**")
	assert.Contains(t, limited, "Limited data available")

	unnamed := FormatMetrics(models.NewMetricMap(models.Metric{Label: models.LabelPE, Value: "10"}))
	assert.Contains(t, unnamed, "**Stock**")

	assert.Equal(t, "❌ boom", FormatMetrics(models.NewErrorMetricMap(models.FailureFetch, "boom")))
}

func TestIsHelpQuery(t *testing.T) {
	assert.True(t, IsHelpQuery(" Help "))
	assert.True(t, IsHelpQuery("/start"))
	assert.False(t, IsHelpQuery("tcs"))
	assert.False(t, IsHelpQuery(""))
}

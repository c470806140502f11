package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/interfaces"
	"github.com/ternarybob/finsight/internal/models"
)

// ReplyKind tags a reply so transports can render it differently
type ReplyKind string

const (
	ReplyStatus   ReplyKind = "status"
	ReplyHelp     ReplyKind = "help"
	ReplyMetrics  ReplyKind = "metrics"
	ReplyInsights ReplyKind = "insights"
	ReplyError    ReplyKind = "error"
)

// Reply is one outgoing message
type Reply struct {
	Kind ReplyKind `json:"kind"`
	Text string    `json:"text"`
}

// Replier delivers replies to the user as they are produced
type Replier interface {
	Reply(ctx context.Context, reply Reply) error
}

// ReplierFunc adapts a function to Replier
type ReplierFunc func(ctx context.Context, reply Reply) error

func (f ReplierFunc) Reply(ctx context.Context, reply Reply) error {
	return f(ctx, reply)
}

// Turn is the outcome of one message
type Turn struct {
	RequestID string            `json:"request_id"`
	Query     string            `json:"query"`
	Metrics   *models.MetricMap `json:"metrics,omitempty"`
	Narrative *models.Narrative `json:"narrative,omitempty"`
	Replies   []Reply           `json:"replies"`
}

// Text joins the non-status replies, as a transport without streaming
// would show them.
func (t *Turn) Text() string {
	parts := make([]string, 0, len(t.Replies))
	for _, r := range t.Replies {
		if r.Kind == ReplyStatus {
			continue
		}
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Handler runs one conversation turn: resolve, scrape, then narrate
type Handler struct {
	stocks   interfaces.StockDataService
	narrator interfaces.NarrativeService
	resolver interfaces.EntityResolver
	logger   arbor.ILogger
}

// NewHandler creates a conversation handler. narrator may be nil, in which
// case turns stop after the metrics reply.
func NewHandler(stocks interfaces.StockDataService, narrator interfaces.NarrativeService, resolver interfaces.EntityResolver, logger arbor.ILogger) *Handler {
	return &Handler{
		stocks:   stocks,
		narrator: narrator,
		resolver: resolver,
		logger:   logger,
	}
}

// IsHelpQuery reports whether text asks for the greeting
func IsHelpQuery(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "help", "/help", "start", "/start":
		return true
	}
	return false
}

// Welcome returns the greeting message
func (h *Handler) Welcome() string {
	return WelcomeMessage(h.resolver.Records())
}

// HandleMessage runs a turn for text, sending each reply to replier as it
// is produced. Pipeline failures become error replies; the returned error
// is only ever a delivery failure from replier.
func (h *Handler) HandleMessage(ctx context.Context, text string, replier Replier) (*Turn, error) {
	requestID := common.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = common.NewRequestID()
		ctx = common.WithRequestID(ctx, requestID)
	}
	logger := h.logger.WithCorrelationId(requestID)

	query := strings.TrimSpace(text)
	turn := &Turn{RequestID: requestID, Query: query}

	send := func(kind ReplyKind, text string) error {
		reply := Reply{Kind: kind, Text: text}
		turn.Replies = append(turn.Replies, reply)
		if replier == nil {
			return nil
		}
		if err := replier.Reply(ctx, reply); err != nil {
			return fmt.Errorf("failed to deliver %s reply: %w", kind, err)
		}
		return nil
	}

	if query == "" {
		return turn, send(ReplyError, EmptyQueryMessage)
	}
	if IsHelpQuery(query) {
		return turn, send(ReplyHelp, h.Welcome())
	}

	start := time.Now()
	logger.Info().Str("query", query).Msg("Handling stock query")

	if err := send(ReplyStatus, NoticeFetching); err != nil {
		return turn, err
	}
	if err := send(ReplyStatus, NoticeScraping); err != nil {
		return turn, err
	}

	metrics := h.stocks.GetStockData(ctx, query)
	turn.Metrics = &metrics

	if metrics.HasError() {
		logger.Info().
			Str("query", query).
			Str("failure", string(metrics.Failure())).
			Msg("Stock query failed")
		return turn, send(ReplyError, FormatError(metrics))
	}

	if err := send(ReplyMetrics, FormatMetrics(metrics)); err != nil {
		return turn, err
	}

	if h.narrator == nil {
		return turn, nil
	}

	if err := send(ReplyStatus, NoticeGenerating); err != nil {
		return turn, err
	}

	name, ok := metrics.Get(models.LabelCompanyName)
	if !ok {
		name = strings.ToUpper(query)
	}

	narrative := h.narrator.Generate(ctx, name, metrics)
	turn.Narrative = &narrative

	logger.Info().
		Str("query", query).
		Str("entity", name).
		Str("narrative_status", string(narrative.Status)).
		Int("attempts", narrative.Attempts).
		Dur("duration", time.Since(start)).
		Msg("Stock query completed")

	return turn, send(ReplyInsights, FormatNarrative(narrative))
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/interfaces"
	"github.com/ternarybob/finsight/internal/models"
	"github.com/ternarybob/finsight/internal/services/conversation"
	"github.com/ternarybob/finsight/internal/services/llm"
)

// DefaultQueryTimeout bounds one query turn when no timeout is configured
const DefaultQueryTimeout = 90 * time.Second

// StockHandler serves the query, entity, help and audit endpoints
type StockHandler struct {
	conversation *conversation.Handler
	resolver     interfaces.EntityResolver
	audit        llm.AuditLogger
	logger       arbor.ILogger
	queryTimeout time.Duration
}

// StockHandlerOption configures a StockHandler
type StockHandlerOption func(*StockHandler)

// WithQueryTimeout sets the deadline for one query turn. Narrative retries
// that cannot finish before it are abandoned and the metrics are returned.
func WithQueryTimeout(d time.Duration) StockHandlerOption {
	return func(h *StockHandler) {
		if d > 0 {
			h.queryTimeout = d
		}
	}
}

// NewStockHandler creates a stock handler. audit may be nil.
func NewStockHandler(conv *conversation.Handler, resolver interfaces.EntityResolver, audit llm.AuditLogger, logger arbor.ILogger, opts ...StockHandlerOption) *StockHandler {
	h := &StockHandler{
		conversation: conv,
		resolver:     resolver,
		audit:        audit,
		logger:       logger,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// QueryRequest is the body of POST /api/query
type QueryRequest struct {
	Query  string `json:"query"`
	Format string `json:"format,omitempty"` // "markdown" (default) or "html"
}

// ReplyView is a reply as returned by the query API
type ReplyView struct {
	Kind conversation.ReplyKind `json:"kind"`
	Text string                 `json:"text"`
	HTML string                 `json:"html,omitempty"`
}

// QueryResponse is the result of one query
type QueryResponse struct {
	RequestID string            `json:"request_id"`
	Query     string            `json:"query"`
	Status    string            `json:"status"`
	Failure   string            `json:"failure,omitempty"`
	Metrics   *models.MetricMap `json:"metrics,omitempty"`
	Narrative *models.Narrative `json:"narrative,omitempty"`
	Replies   []ReplyView       `json:"replies"`
}

// QueryHandler runs one conversation turn and returns every reply at once.
// GET /api/query?q=tcs or POST /api/query {"query": "tcs"}
func (h *StockHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	var req QueryRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		req.Query = r.URL.Query().Get("q")
		req.Format = r.URL.Query().Get("format")
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	asHTML := strings.EqualFold(req.Format, "html")
	if req.Format != "" && !asHTML && !strings.EqualFold(req.Format, "markdown") {
		WriteError(w, http.StatusBadRequest, "format must be markdown or html")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	turn, err := h.conversation.HandleMessage(ctx, req.Query, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("query", req.Query).Msg("Query failed")
		WriteError(w, http.StatusInternalServerError, "Failed to process query")
		return
	}

	resp := QueryResponse{
		RequestID: turn.RequestID,
		Query:     turn.Query,
		Status:    "success",
		Metrics:   turn.Metrics,
		Narrative: turn.Narrative,
		Replies:   make([]ReplyView, 0, len(turn.Replies)),
	}
	if turn.Metrics != nil && turn.Metrics.HasError() {
		resp.Status = "error"
		resp.Failure = string(turn.Metrics.Failure())
	}

	for _, reply := range turn.Replies {
		if reply.Kind == conversation.ReplyStatus {
			continue
		}
		view := ReplyView{Kind: reply.Kind, Text: reply.Text}
		if asHTML {
			rendered, err := RenderMarkdown(reply.Text)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Failed to render reply")
			}
			view.HTML = rendered
		}
		resp.Replies = append(resp.Replies, view)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// EntitiesHandler lists the covered companies.
// GET /api/entities?page=0&pageSize=50
func (h *StockHandler) EntitiesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	page, pageSize := GetPaginationParams(r, 50)
	records, pagination := Paginate(h.resolver.Records(), page, pageSize)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entities":   records,
		"pagination": pagination,
	})
}

// ResolveHandler maps a query to a company without fetching anything.
// GET /api/entities/resolve?q=infosys
func (h *StockHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, http.StatusBadRequest, "q is required")
		return
	}

	record, ok := h.resolver.Resolve(query)
	if !ok {
		WriteError(w, http.StatusNotFound, "Stock '"+query+"' not found in Nifty 50")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

// HelpHandler returns the greeting message.
// GET /api/help?format=html
func (h *StockHandler) HelpHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	text := h.conversation.Welcome()
	resp := map[string]string{"text": text}
	if strings.EqualFold(r.URL.Query().Get("format"), "html") {
		rendered, err := RenderMarkdown(text)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["html"] = rendered
	}

	WriteJSON(w, http.StatusOK, resp)
}

// AuditHandler returns recent narrative generation requests, newest first.
// GET /api/audit?limit=20
func (h *StockHandler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if h.audit == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": []llm.AuditLog{}})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.audit.GetLogs(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

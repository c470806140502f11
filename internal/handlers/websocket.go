package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/services/conversation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	writeWait     = 10 * time.Second
	maxQueryBytes = 1024
	queueDepth    = 4
)

// WSMessage is the envelope for every frame sent to a client
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ChatRequest is a client frame. Plain text frames are treated as a query.
type ChatRequest struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TurnDone marks the end of one turn
type TurnDone struct {
	RequestID string `json:"request_id"`
	Query     string `json:"query"`
}

// WebSocketHandler runs chat turns over a WebSocket, streaming each reply
// (progress notices included) as it is produced.
type WebSocketHandler struct {
	conversation     *conversation.Handler
	logger           arbor.ILogger
	clients          map[*websocket.Conn]struct{}
	mu               sync.RWMutex
	serverInstanceID string // clients use it to detect a server restart
}

func NewWebSocketHandler(conv *conversation.Handler, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		conversation:     conv,
		logger:           logger,
		clients:          make(map[*websocket.Conn]struct{}),
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection, greets the client and answers
// queries one turn at a time until the client goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	conn.SetReadLimit(maxQueryBytes)

	// Replies from the worker and overflow errors from the reader share
	// the connection
	var writeMu sync.Mutex
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	ctx, cancel := context.WithCancel(context.Background())
	queries := make(chan string, queueDepth)
	var wg sync.WaitGroup

	// Handle client disconnection
	defer func() {
		cancel()
		close(queries)
		wg.Wait()

		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("remaining", remaining).Msg("WebSocket client disconnected")
	}()

	send := func(msg WSMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := send(WSMessage{Type: "connected", Payload: map[string]string{"server_instance_id": h.serverInstanceID}}); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to greet WebSocket client")
		return
	}
	if err := send(WSMessage{Type: "reply", Payload: conversation.Reply{Kind: conversation.ReplyHelp, Text: h.conversation.Welcome()}}); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send greeting to WebSocket client")
		return
	}

	replier := conversation.ReplierFunc(func(ctx context.Context, reply conversation.Reply) error {
		return send(WSMessage{Type: "reply", Payload: reply})
	})

	wg.Add(1)
	common.SafeGo(h.logger, "ws-chat-worker", func() {
		defer wg.Done()
		for query := range queries {
			turnCtx := common.WithRequestID(ctx, common.NewRequestID())
			turn, err := h.conversation.HandleMessage(turnCtx, query, replier)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Failed to deliver chat reply")
				continue
			}
			if err := send(WSMessage{Type: "done", Payload: TurnDone{RequestID: turn.RequestID, Query: turn.Query}}); err != nil {
				h.logger.Warn().Err(err).Str("request_id", turn.RequestID).Msg("Failed to send turn completion")
			}
		}
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}

		query := parseChatFrame(data)
		select {
		case queries <- query:
		default:
			if err := send(WSMessage{Type: "error", Payload: map[string]string{"error": "Too many pending queries, please wait for the current answer"}}); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send queue overflow notice")
			}
		}
	}
}

// parseChatFrame returns the query text of a client frame
func parseChatFrame(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var req ChatRequest
		if err := json.Unmarshal(data, &req); err == nil {
			return req.Text
		}
	}
	return trimmed
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialChat(t *testing.T) (*WebSocketHandler, *websocket.Conn) {
	t.Helper()
	conv, _ := newTestConversation(t)
	handler := NewWebSocketHandler(conv, arbor.NewLogger())

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return handler, conn
}

// readUntil collects frames until one of the given type arrives
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) []wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frames []wsFrame
	for {
		var frame wsFrame
		require.NoError(t, conn.ReadJSON(&frame))
		frames = append(frames, frame)
		if frame.Type == frameType {
			return frames
		}
	}
}

func replyKinds(t *testing.T, frames []wsFrame) []string {
	t.Helper()
	var kinds []string
	for _, f := range frames {
		if f.Type != "reply" {
			continue
		}
		var reply struct {
			Kind string `json:"kind"`
		}
		require.NoError(t, json.Unmarshal(f.Payload, &reply))
		kinds = append(kinds, reply.Kind)
	}
	return kinds
}

func TestWebSocket_GreetsOnConnect(t *testing.T) {
	handler, conn := dialChat(t)

	frames := readUntil(t, conn, "connected")
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0].Payload), "server_instance_id")

	frames = readUntil(t, conn, "reply")
	assert.Equal(t, []string{"help"}, replyKinds(t, frames))
	assert.Equal(t, 1, handler.ClientCount())
}

func TestWebSocket_StreamsTurn(t *testing.T) {
	_, conn := dialChat(t)
	readUntil(t, conn, "reply") // greeting

	require.NoError(t, conn.WriteJSON(ChatRequest{Type: "query", Text: "tcs"}))
	frames := readUntil(t, conn, "done")

	assert.Equal(t, []string{"status", "status", "metrics", "status", "insights"}, replyKinds(t, frames))

	var done TurnDone
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Payload, &done))
	assert.Equal(t, "tcs", done.Query)
	assert.NotEmpty(t, done.RequestID)
}

func TestWebSocket_PlainTextFrames(t *testing.T) {
	_, conn := dialChat(t)
	readUntil(t, conn, "reply")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("zomato")))
	frames := readUntil(t, conn, "done")
	assert.Equal(t, []string{"status", "status", "error"}, replyKinds(t, frames))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("help")))
	frames = readUntil(t, conn, "done")
	assert.Equal(t, []string{"help"}, replyKinds(t, frames))
}

func TestWebSocket_ClientCountDropsOnClose(t *testing.T) {
	handler, conn := dialChat(t)
	readUntil(t, conn, "reply")
	require.Equal(t, 1, handler.ClientCount())

	conn.Close()
	assert.Eventually(t, func() bool { return handler.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestParseChatFrame(t *testing.T) {
	assert.Equal(t, "tcs", parseChatFrame([]byte(`{"type":"query","text":"tcs"}`)))
	assert.Equal(t, "reliance", parseChatFrame([]byte("  reliance \n")))
	assert.Equal(t, "{broken", parseChatFrame([]byte("{broken")))
}

func TestWebSocket_TracksEachClient(t *testing.T) {
	conv, _ := newTestConversation(t)
	handler := NewWebSocketHandler(conv, arbor.NewLogger())

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer second.Close()

	readUntil(t, first, "reply")
	readUntil(t, second, "reply")
	assert.Equal(t, 2, handler.ClientCount())

	first.Close()
	assert.Eventually(t, func() bool { return handler.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// The remaining client still gets answers
	require.NoError(t, second.WriteJSON(ChatRequest{Type: "query", Text: "tcs"}))
	frames := readUntil(t, second, "done")
	assert.Contains(t, replyKinds(t, frames), "metrics")
}

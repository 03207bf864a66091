package webchat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amedis-online/booking-agent/internal/flow"
	"github.com/amedis-online/booking-agent/internal/session"
)

// echoResponder records the token on the first turn the way the gating
// stages do, so tests can observe state persisting across turns.
type echoResponder struct{}

func (echoResponder) Handle(ctx context.Context, s *flow.State, message string) string {
	if s.Token == "" {
		s.Token = message
		s.Stage = flow.StagePatient
		return "Send your patient ID."
	}
	return "echo: " + message
}

func TestHandleMessageCreatesSession(t *testing.T) {
	store := session.NewMemoryStore()
	handler := NewHandler(echoResponder{}, store, nil)

	body := bytes.NewBufferString(`{"text":"my-token"}`)
	req := httptest.NewRequest(http.MethodPost, "/webchat/message", body)
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["session_id"])
	assert.Equal(t, "Send your patient ID.", resp["reply"])
	assert.Equal(t, string(flow.StagePatient), resp["stage"])

	state, err := store.Load(context.Background(), resp["session_id"])
	require.NoError(t, err)
	assert.Equal(t, "my-token", state.Token)
}

func TestHandleMessageReusesSession(t *testing.T) {
	store := session.NewMemoryStore()
	handler := NewHandler(echoResponder{}, store, nil)

	send := func(payload string) map[string]string {
		req := httptest.NewRequest(http.MethodPost, "/webchat/message", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.HandleMessage(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := send(`{"text":"my-token"}`)
	second := send(`{"session_id":"` + first["session_id"] + `","text":"hello"}`)
	assert.Equal(t, "echo: hello", second["reply"])
}

func TestHandleMessageRejectsEmptyText(t *testing.T) {
	handler := NewHandler(echoResponder{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/webchat/message", strings.NewReader(`{"text":"  "}`))
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketConversation(t *testing.T) {
	handler := NewHandler(echoResponder{}, session.NewMemoryStore(), nil)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello OutboundMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "session", hello.Type)
	assert.NotEmpty(t, hello.SessionID)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	var pong OutboundMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "my-token"}))
	var reply OutboundMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "Send your patient ID.", reply.Text)
	assert.Equal(t, string(flow.StagePatient), reply.Stage)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "again"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "echo: again", reply.Text)
}

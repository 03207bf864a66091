// Package webchat serves the browser chat channel over WebSocket, with an
// HTTP fallback for environments that cannot hold a socket open.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/amedis-online/booking-agent/internal/flow"
	"github.com/amedis-online/booking-agent/internal/session"
	"github.com/amedis-online/booking-agent/pkg/logging"
)

// Responder turns a user message into a reply while mutating flow state.
type Responder interface {
	Handle(ctx context.Context, s *flow.State, message string) string
}

// Handler manages web chat connections and messages.
type Handler struct {
	responder Responder
	sessions  session.Store
	logger    *logging.Logger
	upgrader  websocket.Upgrader

	mu     sync.Mutex
	active map[string]*websocket.Conn // sessionID -> live socket
}

// InboundMessage is what the chat widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string `json:"type"` // "message", "session", "pong", "error"
	Text      string `json:"text,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Stage     string `json:"stage,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(responder Responder, sessions session.Store, logger *logging.Logger) *Handler {
	if responder == nil {
		panic("webchat: responder cannot be nil")
	}
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		responder: responder,
		sessions:  sessions,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		active: make(map[string]*websocket.Conn),
	}
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and relays messages through the
// flow controller.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	_ = conn.WriteJSON(OutboundMessage{Type: "session", SessionID: sessionID})

	h.mu.Lock()
	h.active[sessionID] = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.active[sessionID] == conn {
			delete(h.active, sessionID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = conn.WriteJSON(OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		reply, stage, err := h.respond(r.Context(), sessionID, msg.Text)
		if err != nil {
			h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
			_ = conn.WriteJSON(OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
			continue
		}
		_ = conn.WriteJSON(OutboundMessage{
			Type:      "message",
			Role:      "assistant",
			Text:      reply,
			SessionID: sessionID,
			Stage:     stage,
		})
	}
}

// respond loads the session's flow state, runs one turn and saves it back.
func (h *Handler) respond(ctx context.Context, sessionID, text string) (string, string, error) {
	state, err := h.sessions.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return "", "", err
		}
		state = &flow.State{}
	}

	reply := h.responder.Handle(ctx, state, text)

	if err := h.sessions.Save(ctx, sessionID, state); err != nil {
		return "", "", err
	}
	return reply, string(state.Stage), nil
}

// HandleMessage is the HTTP fallback for a single chat turn.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id,omitempty"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	reply, stage, err := h.respond(r.Context(), req.SessionID, req.Text)
	if err != nil {
		h.logger.Error("webchat: turn failed", "session_id", req.SessionID, "error", err)
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"session_id": req.SessionID,
		"reply":      reply,
		"stage":      stage,
	})
}

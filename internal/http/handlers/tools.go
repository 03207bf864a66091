// Package handlers carries the HTTP handlers behind the API router.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amedis-online/booking-agent/internal/tools"
	"github.com/amedis-online/booking-agent/pkg/logging"
)

// ToolsHandler exposes the tool registry over HTTP. Each tool is invoked
// with POST /tools/{name} and a JSON input envelope in the body.
type ToolsHandler struct {
	registry *tools.Registry
	logger   *logging.Logger
}

// NewToolsHandler creates a tools handler.
func NewToolsHandler(registry *tools.Registry, logger *logging.Logger) *ToolsHandler {
	if registry == nil {
		panic("handlers: registry cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ToolsHandler{registry: registry, logger: logger}
}

// List returns the tool names the registry dispatches.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.registry.Names()})
}

// Invoke runs one tool. Upstream operation failures map to 502; booking
// rejections are ordinary 200 responses carrying the structured result.
func (h *ToolsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.registry.Invoke(r.Context(), name, body)
	if err != nil {
		switch {
		case errors.Is(err, tools.ErrUnknownTool):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, tools.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("tool invocation failed", "tool", name, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tool": name, "result": result})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

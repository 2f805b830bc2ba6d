package handler

import (
	"net/http"

	"github.com/mcoot/tlschat/internal/api/response"
	"github.com/mcoot/tlschat/internal/chat"
)

// SessionHandler lists connected chat sessions
type SessionHandler struct {
	registry chat.Registry
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry chat.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.SessionListFromConns(h.registry.Snapshot()))
}

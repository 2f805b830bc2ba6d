package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tlschat/internal/api/request"
	"github.com/mcoot/tlschat/internal/api/response"
	"github.com/mcoot/tlschat/internal/services/auth"
)

// AccountHandler handles account administration endpoints
type AccountHandler struct {
	authService *auth.Service
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(authService *auth.Service) *AccountHandler {
	return &AccountHandler{
		authService: authService,
	}
}

// Get handles GET /api/v1/accounts/{login}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.authService.Account(r.Context(), mux.Vars(r)["login"])
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AccountFromModel(account))
}

// ChangeDisplayName handles PATCH /api/v1/accounts/{login}
func (h *AccountHandler) ChangeDisplayName(w http.ResponseWriter, r *http.Request) {
	var req request.ChangeDisplayNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	account, err := h.authService.ChangeDisplayName(r.Context(), mux.Vars(r)["login"], req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AccountFromModel(account))
}

// ChangePassword handles POST /api/v1/accounts/{login}/password
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req request.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.CurrentPassword == "" {
		WriteError(w, NewInvalidRequestError("current_password is required"))
		return
	}
	if req.NewPassword == "" {
		WriteError(w, NewInvalidRequestError("new_password is required"))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), mux.Vars(r)["login"], req.CurrentPassword, req.NewPassword); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tlschat/internal/api/apierr"
	"github.com/mcoot/tlschat/internal/api/handler"
	"github.com/mcoot/tlschat/internal/api/middleware"
	"github.com/mcoot/tlschat/internal/api/response"
	"github.com/mcoot/tlschat/internal/chat"
	"github.com/mcoot/tlschat/internal/services/auth"
)

// RouterConfig holds configuration for the admin API router
type RouterConfig struct {
	Logger      *slog.Logger
	Registry    chat.Registry
	AuthService *auth.Service
	// AdminToken guards account endpoints; empty leaves them open
	AdminToken string
}

// NewRouter creates a new admin API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})

	sessionHandler := handler.NewSessionHandler(cfg.Registry)
	accountHandler := handler.NewAccountHandler(cfg.AuthService)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)

	accounts := api.PathPrefix("/accounts").Subrouter()
	accounts.Use(middleware.AdminToken(cfg.AdminToken))
	accounts.HandleFunc("/{login}", accountHandler.Get).Methods(http.MethodGet)
	accounts.HandleFunc("/{login}", accountHandler.ChangeDisplayName).Methods(http.MethodPatch)
	accounts.HandleFunc("/{login}/password", accountHandler.ChangePassword).Methods(http.MethodPost)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

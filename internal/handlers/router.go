package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/config"
	"ledger/internal/logging"
	"ledger/internal/middleware"
	"ledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	cfg         config.Config
	ledger      Ledger
	queries     Queries
	profiles    Profiles
	credentials CredentialStore
	hub         *websocket.Hub
	log         *logrus.Logger
}

func New(cfg config.Config, ledger Ledger, queries Queries, profiles Profiles, credentials CredentialStore, hub *websocket.Hub, log *logrus.Logger) *Handler {
	return &Handler{
		cfg:         cfg,
		ledger:      ledger,
		queries:     queries,
		profiles:    profiles,
		credentials: credentials,
		hub:         hub,
		log:         log,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(logging.RequestLogger(h.log))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/accounts/me", h.GetBalance)
		r.Get("/accounts/me/verify", h.VerifyOwnAccount)
		r.Get("/accounts/me/profile", h.GetProfile)
		r.Patch("/accounts/me/profile", h.UpdateProfile)
		r.Post("/transactions/deposit", h.Deposit)
		r.Post("/transactions/withdraw", h.Withdraw)
		r.Post("/transactions/transfer", h.Transfer)
		r.Get("/transactions", h.ListTransactions)
		r.Get("/transactions/recent", h.RecentTransactions)
	})
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h))
		r.Post("/accounts/{id}/deactivate", h.DeactivateAccount)
		r.Post("/accounts/{id}/activate", h.ActivateAccount)
		r.Get("/accounts/{id}/verify", h.VerifyAccount)
		r.Get("/audit", h.Audit)
		r.Get("/audit-log", h.AuditLog)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

// IsAdmin reports whether the account holds administrator credentials.
func (h *Handler) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	credential, err := h.credentials.GetByAccountID(ctx, accountID)
	if errors.Is(err, apperr.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return credential.IsAdmin, nil
}

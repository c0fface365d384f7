package handlers

import (
	"encoding/json"
	"net/http"

	"ledger/internal/apperr"
	"ledger/internal/auth"
	"ledger/internal/middleware"
	"ledger/internal/services"
	"ledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	accountID := chi.URLParam(r, "id")
	actorID, _ := middleware.AccountIDFromContext(r.Context())
	account, err := h.ledger.SetActive(r.Context(), actorID, accountID, active)
	if err != nil {
		respondError(w, err)
		return
	}
	h.log.WithFields(logrus.Fields{
		"actor_id":   actorID,
		"account_id": accountID,
		"active":     active,
	}).Info("Admin.SetActive")
	respondJSON(w, http.StatusOK, toAccountView(account))
}

func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	h.respondVerification(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.queries.Audit(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type auditEntryView struct {
	ID             string          `json:"id"`
	ActorAccountID *string         `json:"actor_account_id"`
	Action         string          `json:"action"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Data           json.RawMessage `json:"data"`
	CreatedAt      string          `json:"created_at"`
}

type auditPageResponse struct {
	Items      []auditEntryView `json:"items"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.queries.AuditLog(r.Context(),
		parseInt(query.Get("page"), 1),
		parseInt(query.Get("page_size"), services.DefaultPageSize))
	if err != nil {
		respondError(w, err)
		return
	}
	items := make([]auditEntryView, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, auditEntryView{
			ID:             entry.ID,
			ActorAccountID: entry.ActorAccountID,
			Action:         entry.Action,
			EntityType:     entry.EntityType,
			EntityID:       entry.EntityID,
			Data:           json.RawMessage(entry.Data),
			CreatedAt:      entry.CreatedAt.UTC().Format(timeLayout),
		})
	}
	respondJSON(w, http.StatusOK, auditPageResponse{
		Items:      items,
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token, err := tokenFromRequest(r)
	if err != nil {
		respondInvalid(w, apperr.InvalidCredentials, err.Error())
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondInvalid(w, apperr.InvalidCredentials, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.AccountID)
}

package handlers

import (
	"net/http"

	"ledger/internal/apperr"
	"ledger/internal/middleware"
)

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	account, err := h.queries.GetBalance(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	profile, err := h.profiles.Get(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{
		accountView: toAccountView(account),
		FullName:    profile.FullName(),
	})
}

type balanceResponse struct {
	accountView
	FullName string `json:"full_name"`
}

func (h *Handler) VerifyOwnAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	h.respondVerification(w, r, accountID)
}

func (h *Handler) respondVerification(w http.ResponseWriter, r *http.Request, accountID string) {
	verification, err := h.queries.VerifyAccount(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, verification)
}

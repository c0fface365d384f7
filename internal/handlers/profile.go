package handlers

import (
	"net/http"

	"ledger/internal/apperr"
	"ledger/internal/middleware"
	"ledger/internal/models"
	"ledger/internal/services"
)

type profileView struct {
	AccountID string `json:"account_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toProfileView(profile models.Profile) profileView {
	view := profileView{
		AccountID: profile.AccountID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		FullName:  profile.FullName(),
		Phone:     profile.Phone,
		Address:   profile.Address,
	}
	if !profile.UpdatedAt.IsZero() {
		view.UpdatedAt = profile.UpdatedAt.UTC().Format(timeLayout)
	}
	return view
}

type profileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	profile, err := h.profiles.Get(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProfileView(profile))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	var req profileRequest
	if err := decode(r, &req); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	profile, err := h.profiles.Update(r.Context(), accountID, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProfileView(profile))
}

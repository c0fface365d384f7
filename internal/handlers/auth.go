package handlers

import (
	"errors"
	"net/http"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/auth"
	"ledger/internal/services"
	"ledger/internal/validator"

	"github.com/sirupsen/logrus"
)

type registerRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	AccountNumber  string `json:"account_number"`
	OpeningDeposit string `json:"opening_deposit"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
}

func (r registerRequest) profile() *services.ProfileFields {
	if r.FirstName == "" && r.LastName == "" && r.Phone == "" && r.Address == "" {
		return nil
	}
	return &services.ProfileFields{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Address:   r.Address,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	if err := validator.ValidateAccountNumber(req.AccountNumber); err != nil {
		respondInvalid(w, apperr.InvalidAccountNumber, err.Error())
		return
	}
	var opening int64
	if strings.TrimSpace(req.OpeningDeposit) != "" {
		amount, err := parseAmountMinor(req.OpeningDeposit)
		if err != nil {
			respondError(w, err)
			return
		}
		opening = amount
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	reg, err := h.ledger.Register(r.Context(), services.RegisterRequest{
		AccountNumber:  req.AccountNumber,
		OpeningDeposit: opening,
		Credential:     &services.CredentialRequest{Email: req.Email, PasswordHash: passwordHash},
		Profile:        req.profile(),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, reg.Account.ID, false, h.cfg.TokenTTL)
	if err != nil {
		h.log.WithError(err).Error("Auth.Register.TokenFailed")
		respondError(w, err)
		return
	}
	body := map[string]any{
		"token":   token,
		"account": toAccountView(reg.Account),
	}
	if reg.Profile != nil {
		body["profile"] = toProfileView(*reg.Profile)
	}
	respondJSON(w, http.StatusCreated, body)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	credential, err := h.credentials.GetByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	if !auth.CheckPassword(credential.PasswordHash, req.Password) {
		h.log.WithField("account_id", credential.AccountID).Warn("Auth.Login.Rejected")
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	account, err := h.queries.GetBalance(r.Context(), credential.AccountID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !account.Active {
		respondError(w, apperr.ErrAccountInactive)
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, account.ID, credential.IsAdmin, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, err)
		return
	}
	h.log.WithFields(logrus.Fields{"account_id": account.ID}).Info("Auth.Login.Complete")
	respondJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"account": toAccountView(account),
	})
}

func tokenFromRequest(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		return "", errors.New("missing token")
	}
	return token, nil
}

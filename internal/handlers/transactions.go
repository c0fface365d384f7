package handlers

import (
	"context"
	"net/http"

	"ledger/internal/apperr"
	"ledger/internal/middleware"
	"ledger/internal/money"
	"ledger/internal/services"
	"ledger/internal/validator"
)

type movementRequest struct {
	Amount string `json:"amount"`
	Note   string `json:"note"`
}

type transferRequest struct {
	ToAccountNumber string `json:"to_account_number"`
	Amount          string `json:"amount"`
	Note            string `json:"note"`
}

type receiptResponse struct {
	BalanceMinor int64             `json:"balance_minor"`
	Balance      string            `json:"balance"`
	Transactions []transactionView `json:"transactions"`
}

func toReceiptResponse(receipt services.Receipt) receiptResponse {
	return receiptResponse{
		BalanceMinor: receipt.Balance,
		Balance:      money.FormatMinor(receipt.Balance),
		Transactions: toTransactionViews(receipt.Records),
	}
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.ledger.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.ledger.Withdraw)
}

type movementFunc func(ctx context.Context, req services.MovementRequest) (services.Receipt, error)

func (h *Handler) movement(w http.ResponseWriter, r *http.Request, apply movementFunc) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	var req movementRequest
	if err := decode(r, &req); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := validator.ValidateNote(req.Note); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	receipt, err := apply(r.Context(), services.MovementRequest{
		AccountID:   accountID,
		AmountMinor: amountMinor,
		Note:        req.Note,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	var req transferRequest
	if err := decode(r, &req); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	if req.ToAccountNumber == "" {
		respondInvalid(w, apperr.InvalidRequest, "to_account_number is required")
		return
	}
	amountMinor, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := validator.ValidateNote(req.Note); err != nil {
		respondInvalid(w, apperr.InvalidRequest, err.Error())
		return
	}
	receipt, err := h.ledger.Transfer(r.Context(), services.TransferRequest{
		FromAccountID:   accountID,
		ToAccountNumber: req.ToAccountNumber,
		AmountMinor:     amountMinor,
		Note:            req.Note,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

type pageResponse struct {
	Items      []transactionView `json:"items"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	query := r.URL.Query()
	page, err := h.queries.ListTransactions(r.Context(), accountID,
		parseInt(query.Get("page"), 1),
		parseInt(query.Get("page_size"), services.DefaultPageSize))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pageResponse{
		Items:      toTransactionViews(page.Items),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
}

func (h *Handler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, apperr.ErrInvalidCredentials)
		return
	}
	n := parseInt(r.URL.Query().Get("n"), services.DefaultRecentCount)
	records, err := h.queries.GetRecent(r.Context(), accountID, n)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionViews(records))
}

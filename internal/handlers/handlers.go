package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/apperr"
	"ledger/internal/models"
	"ledger/internal/money"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error   string         `json:"error"`
	Detail  string         `json:"detail"`
	Details map[string]any `json:"details,omitempty"`
}

func respondError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	body := errorResponse{Error: string(kind), Detail: err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Detail = appErr.Message
		body.Details = appErr.Details
	}
	if kind == apperr.StoreUnavailable {
		body.Detail = "store unavailable, retry later"
	}
	respondJSON(w, apperr.HTTPStatus(kind), body)
}

func respondInvalid(w http.ResponseWriter, kind apperr.Kind, detail string) {
	respondJSON(w, apperr.HTTPStatus(kind), errorResponse{Error: string(kind), Detail: detail})
}

type accountView struct {
	ID            string `json:"id"`
	AccountNumber string `json:"account_number"`
	BalanceMinor  int64  `json:"balance_minor"`
	Balance       string `json:"balance"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at"`
}

func toAccountView(account models.Account) accountView {
	return accountView{
		ID:            account.ID,
		AccountNumber: account.AccountNumber,
		BalanceMinor:  account.Balance,
		Balance:       money.FormatMinor(account.Balance),
		Active:        account.Active,
		CreatedAt:     account.CreatedAt.UTC().Format(timeLayout),
	}
}

type transactionView struct {
	TransactionID             string  `json:"transaction_id"`
	Kind                      string  `json:"kind"`
	AmountMinor               int64   `json:"amount_minor"`
	Amount                    string  `json:"amount"`
	CounterpartyAccountNumber *string `json:"counterparty_account_number"`
	Description               string  `json:"description"`
	BalanceAfterMinor         int64   `json:"balance_after_minor"`
	BalanceAfter              string  `json:"balance_after"`
	CreatedAt                 string  `json:"created_at"`
}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func toTransactionViews(records []models.Transaction) []transactionView {
	views := make([]transactionView, 0, len(records))
	for _, record := range records {
		views = append(views, transactionView{
			TransactionID:             record.ID,
			Kind:                      string(record.Kind),
			AmountMinor:               record.Amount,
			Amount:                    money.FormatMinor(record.Amount),
			CounterpartyAccountNumber: record.CounterpartyAccountNumber,
			Description:               record.Description,
			BalanceAfterMinor:         record.BalanceAfter,
			BalanceAfter:              money.FormatMinor(record.BalanceAfter),
			CreatedAt:                 record.CreatedAt.UTC().Format(timeLayout),
		})
	}
	return views
}

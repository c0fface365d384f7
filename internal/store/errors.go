package store

import (
	"database/sql"
	"errors"
	"strings"

	"ledger/internal/apperr"

	"github.com/lib/pq"
)

// translate maps driver errors onto ledger error kinds.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if strings.Contains(pqErr.Constraint, "email") {
				return apperr.Wrap(apperr.DuplicateEmail, err, "email already registered")
			}
			if strings.Contains(pqErr.Constraint, "account_number") {
				return apperr.Wrap(apperr.DuplicateAccountNumber, err, "account number already exists")
			}
		case "23514":
			if strings.Contains(pqErr.Constraint, "account_number") {
				return apperr.Wrap(apperr.InvalidAccountNumber, err, "account number must be 16 digits")
			}
			if strings.Contains(pqErr.Constraint, "balance") {
				return apperr.Wrap(apperr.InsufficientFunds, err, "insufficient funds")
			}
			if strings.HasPrefix(pqErr.Constraint, "profiles_") {
				return apperr.Wrap(apperr.InvalidProfile, err, "profile field too long")
			}
		case "23503":
			return apperr.Wrap(apperr.AccountNotFound, err, "account not found")
		case "22003":
			return apperr.Wrap(apperr.InvalidAmount, err, "amount out of range")
		}
	}
	return apperr.Wrap(apperr.StoreUnavailable, err, op)
}

func notFound(err error, kind apperr.Kind, message, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(kind, message)
	}
	return translate(err, op)
}

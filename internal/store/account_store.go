package store

import (
	"context"
	"database/sql"
	"errors"

	"ledger/internal/apperr"
	"ledger/internal/models"
)

const accountColumns = `id, account_number, balance, active, created_at, updated_at`

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, input AccountInput) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO accounts (id, account_number, balance, active)
		VALUES ($1, $2, 0, $3)
		RETURNING `+accountColumns,
		input.ID, input.AccountNumber, input.Active,
	)
	if err != nil {
		return models.Account{}, translate(err, "create account")
	}
	return row, nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, notFound(err, apperr.AccountNotFound, "account not found", "get account")
	}
	return row, nil
}

func (s *AccountStore) GetByNumber(ctx context.Context, accountNumber string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE account_number = $1
	`, accountNumber)
	if err != nil {
		return models.Account{}, notFound(err, apperr.AccountNotFound, "account not found", "get account by number")
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, notFound(err, apperr.AccountNotFound, "account not found", "lock account")
	}
	return row, nil
}

// ApplyDelta is a single conditional UPDATE. A zero-row result is classified by
// re-reading the row.
func (s *AccountStore) ApplyDelta(ctx context.Context, accountID string, delta int64) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND active AND balance + $1 >= 0
		RETURNING balance
	`, delta, accountID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, translate(err, "apply balance delta")
	}
	current, err := s.GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if !current.Active {
		return 0, apperr.ErrAccountInactive
	}
	return 0, apperr.ErrInsufficientFunds.WithDetails(map[string]any{
		"balance": current.Balance,
		"delta":   delta,
	})
}

func (s *AccountStore) SetActive(ctx context.Context, accountID string, active bool) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		UPDATE accounts
		SET active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+accountColumns,
		active, accountID,
	)
	if err != nil {
		return models.Account{}, notFound(err, apperr.AccountNotFound, "account not found", "set account status")
	}
	return row, nil
}

func (s *AccountStore) SumBalances(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(balance), 0)::bigint FROM accounts`); err != nil {
		return 0, translate(err, "sum balances")
	}
	return total, nil
}

package store

import (
	"context"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/models"
)

const transactionColumns = `transaction_id, account_id, kind, amount, counterparty_account_number, description, balance_after, created_at`

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Append inserts a record whose timestamp is the later of input.At and the
// account's newest record. Callers hold the account row lock.
func (s *TransactionStore) Append(ctx context.Context, input TransactionInput) (models.Transaction, error) {
	if !input.Kind.Valid() {
		return models.Transaction{}, apperr.Newf(apperr.InvalidRequest, "unknown transaction kind %q", input.Kind)
	}
	at := input.At
	if at.IsZero() {
		at = time.Now()
	}
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO transactions (`+transactionColumns+`)
		SELECT $1::text, $2::text, $3::text, $4::bigint, $5::text, $6::text, $7::bigint,
		       GREATEST($8::timestamptz, COALESCE(MAX(created_at), $8::timestamptz))
		FROM transactions
		WHERE account_id = $2::text
		RETURNING `+transactionColumns,
		input.TransactionID, input.AccountID, string(input.Kind), input.Amount,
		input.CounterpartyAccountNumber, input.Description, input.BalanceAfter, at.UTC(),
	)
	if err != nil {
		return models.Transaction{}, translate(err, "append transaction")
	}
	return row, nil
}

func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, translate(err, "list transactions")
	}
	return rows, nil
}

func (s *TransactionStore) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID); err != nil {
		return 0, translate(err, "count transactions")
	}
	return count, nil
}

func (s *TransactionStore) SumByAccount(ctx context.Context, accountID string) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0)::bigint
		FROM transactions
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return 0, translate(err, "sum account transactions")
	}
	return total, nil
}

func (s *TransactionStore) SumAmounts(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(amount), 0)::bigint FROM transactions`); err != nil {
		return 0, translate(err, "sum transactions")
	}
	return total, nil
}

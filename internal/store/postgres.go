package store

import (
	"context"

	"ledger/internal/db"

	"github.com/jmoiron/sqlx"
)

type sqlUnit struct {
	accounts     *AccountStore
	transactions *TransactionStore
	credentials  *CredentialStore
	profiles     *ProfileStore
	audit        *AuditStore
}

func newSQLUnit(q DB) sqlUnit {
	return sqlUnit{
		accounts:     NewAccountStore(q),
		transactions: NewTransactionStore(q),
		credentials:  NewCredentialStore(q),
		profiles:     NewProfileStore(q),
		audit:        NewAuditStore(q),
	}
}

func (u sqlUnit) Accounts() AccountRepository         { return u.accounts }
func (u sqlUnit) Transactions() TransactionRepository { return u.transactions }
func (u sqlUnit) Credentials() CredentialRepository   { return u.credentials }
func (u sqlUnit) Profiles() ProfileRepository         { return u.profiles }
func (u sqlUnit) Audit() AuditRepository              { return u.audit }

// PostgresStore binds repositories to the pool for single statements and to a
// *sqlx.Tx inside WithTx.
type PostgresStore struct {
	sqlUnit
	runner db.TxRunner
}

func NewPostgresStore(conn *sqlx.DB, runner db.TxRunner) *PostgresStore {
	return &PostgresStore{sqlUnit: newSQLUnit(conn), runner: runner}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(UnitOfWork) error) error {
	return s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(newSQLUnit(tx))
	})
}

func (s *PostgresStore) WithReadTx(ctx context.Context, fn func(UnitOfWork) error) error {
	return s.runner.WithReadTx(ctx, func(tx *sqlx.Tx) error {
		return fn(newSQLUnit(tx))
	})
}

package store

import (
	"context"
	"time"

	"ledger/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, input AccountInput) (models.Account, error)
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByNumber(ctx context.Context, accountNumber string) (models.Account, error)
	// GetForUpdate holds the account exclusively until the unit of work ends.
	GetForUpdate(ctx context.Context, accountID string) (models.Account, error)
	// ApplyDelta adds delta to the balance and rejects results below zero.
	ApplyDelta(ctx context.Context, accountID string, delta int64) (int64, error)
	SetActive(ctx context.Context, accountID string, active bool) (models.Account, error)
	SumBalances(ctx context.Context) (int64, error)
}

// TransactionRepository is append-only.
type TransactionRepository interface {
	Append(ctx context.Context, input TransactionInput) (models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error)
	CountByAccount(ctx context.Context, accountID string) (int, error)
	SumByAccount(ctx context.Context, accountID string) (int64, error)
	SumAmounts(ctx context.Context) (int64, error)
}

type CredentialRepository interface {
	Create(ctx context.Context, input CredentialInput) (models.Credential, error)
	GetByEmail(ctx context.Context, email string) (models.Credential, error)
	GetByAccountID(ctx context.Context, accountID string) (models.Credential, error)
}

type ProfileRepository interface {
	// GetByAccountID returns an empty profile for accounts that never set one.
	GetByAccountID(ctx context.Context, accountID string) (models.Profile, error)
	Upsert(ctx context.Context, input ProfileInput) (models.Profile, error)
}

// AuditRepository is append-only. List returns newest entries first.
type AuditRepository interface {
	Log(ctx context.Context, input AuditInput) (models.AuditEntry, error)
	List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error)
	Count(ctx context.Context) (int, error)
}

type UnitOfWork interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Credentials() CredentialRepository
	Profiles() ProfileRepository
	Audit() AuditRepository
}

// Store runs repositories either one call at a time or inside an explicit unit
// of work. WithTx commits only when fn returns nil. WithReadTx sees a single
// committed snapshot and rejects writes.
type Store interface {
	UnitOfWork
	WithTx(ctx context.Context, fn func(UnitOfWork) error) error
	WithReadTx(ctx context.Context, fn func(UnitOfWork) error) error
}

type AccountInput struct {
	ID            string
	AccountNumber string
	Active        bool
}

type TransactionInput struct {
	TransactionID             string
	AccountID                 string
	Kind                      models.TransactionKind
	Amount                    int64
	CounterpartyAccountNumber *string
	Description               string
	BalanceAfter              int64
	// At is the requested timestamp. Stores never assign a time earlier than the
	// account's newest record.
	At time.Time
}

type CredentialInput struct {
	AccountID    string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

type ProfileInput struct {
	AccountID string
	FirstName string
	LastName  string
	Phone     string
	Address   string
}

type AuditInput struct {
	// ActorAccountID is empty for actions taken by the system itself.
	ActorAccountID string
	Action         string
	EntityType     string
	EntityID       string
	// Data is a JSON object; empty means {}.
	Data string
}

func Ordered(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

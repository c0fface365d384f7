package handlers

import (
	"context"

	"ledger/internal/models"
	"ledger/internal/services"
)

type Ledger interface {
	Register(ctx context.Context, req services.RegisterRequest) (services.Registration, error)
	Deposit(ctx context.Context, req services.MovementRequest) (services.Receipt, error)
	Withdraw(ctx context.Context, req services.MovementRequest) (services.Receipt, error)
	Transfer(ctx context.Context, req services.TransferRequest) (services.Receipt, error)
	SetActive(ctx context.Context, actorID, accountID string, active bool) (models.Account, error)
}

type Queries interface {
	GetBalance(ctx context.Context, accountID string) (models.Account, error)
	ListTransactions(ctx context.Context, accountID string, page, pageSize int) (services.Page, error)
	GetRecent(ctx context.Context, accountID string, n int) ([]models.Transaction, error)
	VerifyAccount(ctx context.Context, accountID string) (services.Verification, error)
	Audit(ctx context.Context) (services.AuditReport, error)
	AuditLog(ctx context.Context, page, pageSize int) (services.AuditPage, error)
}

type Profiles interface {
	Get(ctx context.Context, accountID string) (models.Profile, error)
	Update(ctx context.Context, accountID string, update services.ProfileUpdate) (models.Profile, error)
}

type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (models.Credential, error)
	GetByAccountID(ctx context.Context, accountID string) (models.Credential, error)
}

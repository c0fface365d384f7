package store

import (
	"context"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/models"
)

const credentialColumns = `account_id, email, password_hash, is_admin, created_at`

type CredentialStore struct {
	db DB
}

func NewCredentialStore(db DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) Create(ctx context.Context, input CredentialInput) (models.Credential, error) {
	var row models.Credential
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO credentials (account_id, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING `+credentialColumns,
		input.AccountID, normalizeEmail(input.Email), input.PasswordHash, input.IsAdmin,
	)
	if err != nil {
		return models.Credential{}, translate(err, "create credential")
	}
	return row, nil
}

// GetByEmail reports unknown addresses as invalid credentials.
func (s *CredentialStore) GetByEmail(ctx context.Context, email string) (models.Credential, error) {
	var row models.Credential
	err := s.db.GetContext(ctx, &row, `SELECT `+credentialColumns+` FROM credentials WHERE email = $1`, normalizeEmail(email))
	if err != nil {
		return models.Credential{}, notFound(err, apperr.InvalidCredentials, "invalid credentials", "get credential")
	}
	return row, nil
}

func (s *CredentialStore) GetByAccountID(ctx context.Context, accountID string) (models.Credential, error) {
	var row models.Credential
	err := s.db.GetContext(ctx, &row, `SELECT `+credentialColumns+` FROM credentials WHERE account_id = $1`, accountID)
	if err != nil {
		return models.Credential{}, notFound(err, apperr.AccountNotFound, "credential not found", "get credential by account")
	}
	return row, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

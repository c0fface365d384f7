package store

import (
	"context"
	"database/sql"
	"errors"

	"ledger/internal/models"
)

const profileColumns = `account_id, first_name, last_name, phone, address, updated_at`

type ProfileStore struct {
	db DB
}

func NewProfileStore(db DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) GetByAccountID(ctx context.Context, accountID string) (models.Profile, error) {
	var row models.Profile
	err := s.db.GetContext(ctx, &row, `SELECT `+profileColumns+` FROM profiles WHERE account_id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{AccountID: accountID}, nil
	}
	if err != nil {
		return models.Profile{}, translate(err, "get profile")
	}
	return row, nil
}

func (s *ProfileStore) Upsert(ctx context.Context, input ProfileInput) (models.Profile, error) {
	var row models.Profile
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO profiles (account_id, first_name, last_name, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			updated_at = NOW()
		RETURNING `+profileColumns,
		input.AccountID, input.FirstName, input.LastName, input.Phone, input.Address,
	)
	if err != nil {
		return models.Profile{}, translate(err, "upsert profile")
	}
	return row, nil
}

package services

import (
	"context"
	"errors"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/models"
	"ledger/internal/store"
	"ledger/internal/validator"

	"github.com/sirupsen/logrus"
)

// ProfileFields holds the holder's personal details. Profiles never touch
// balances or the transaction log.
type ProfileFields struct {
	FirstName string
	LastName  string
	Phone     string
	Address   string
}

func (f ProfileFields) clean() (ProfileFields, error) {
	cleaned := ProfileFields{
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Phone:     strings.TrimSpace(f.Phone),
		Address:   strings.TrimSpace(f.Address),
	}
	if err := validator.ValidateProfile(cleaned.FirstName, cleaned.LastName, cleaned.Phone, cleaned.Address); err != nil {
		return ProfileFields{}, invalidProfile(err)
	}
	return cleaned, nil
}

func (f ProfileFields) input(accountID string) store.ProfileInput {
	return store.ProfileInput{
		AccountID: accountID,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
		Address:   f.Address,
	}
}

// ProfileUpdate is a partial update. Nil fields keep their current value.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

func (u ProfileUpdate) apply(current models.Profile) ProfileFields {
	fields := ProfileFields{
		FirstName: current.FirstName,
		LastName:  current.LastName,
		Phone:     current.Phone,
		Address:   current.Address,
	}
	if u.FirstName != nil {
		fields.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		fields.LastName = *u.LastName
	}
	if u.Phone != nil {
		fields.Phone = *u.Phone
	}
	if u.Address != nil {
		fields.Address = *u.Address
	}
	return fields
}

type ProfileService struct {
	store store.Store
	log   *logrus.Logger
}

func NewProfileService(st store.Store, log *logrus.Logger) *ProfileService {
	return &ProfileService{store: st, log: log}
}

func (p *ProfileService) Get(ctx context.Context, accountID string) (models.Profile, error) {
	var profile models.Profile
	err := p.store.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		if _, err := uow.Accounts().GetByID(ctx, accountID); err != nil {
			return err
		}
		var err error
		profile, err = uow.Profiles().GetByAccountID(ctx, accountID)
		return err
	})
	if err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

func (p *ProfileService) Update(ctx context.Context, accountID string, update ProfileUpdate) (models.Profile, error) {
	var profile models.Profile
	err := p.store.WithTx(ctx, func(uow store.UnitOfWork) error {
		if _, err := uow.Accounts().GetForUpdate(ctx, accountID); err != nil {
			return err
		}
		current, err := uow.Profiles().GetByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		fields, err := update.apply(current).clean()
		if err != nil {
			return err
		}
		profile, err = uow.Profiles().Upsert(ctx, fields.input(accountID))
		return err
	})
	if err != nil {
		entry := p.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"kind":       apperr.KindOf(err),
		}).WithError(err)
		if apperr.Retryable(err) {
			entry.Error("Profile.Update.Error")
		} else {
			entry.Warn("Profile.Update.Rejected")
		}
		return models.Profile{}, err
	}
	p.log.WithField("account_id", accountID).Info("Profile.Update.Complete")
	return profile, nil
}

func invalidProfile(err error) error {
	var fieldErr *validator.FieldError
	if errors.As(err, &fieldErr) {
		return apperr.Wrap(apperr.InvalidProfile, err, fieldErr.Error()).WithDetails(map[string]any{
			"field": fieldErr.Field,
		})
	}
	return apperr.Wrap(apperr.InvalidProfile, err, err.Error())
}

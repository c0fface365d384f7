package memory

import (
	"context"

	"ledger/internal/models"
	"ledger/internal/store"
)

// Repositories returned by Store run each call as its own unit of work.

type autoAccounts struct{ s *Store }

func (a autoAccounts) Create(ctx context.Context, input store.AccountInput) (out models.Account, err error) {
	err = a.s.WithTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Accounts().Create(ctx, input)
		return err
	})
	return out, err
}

func (a autoAccounts) GetByID(ctx context.Context, accountID string) (out models.Account, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Accounts().GetByID(ctx, accountID)
		return err
	})
	return out, err
}

func (a autoAccounts) GetByNumber(ctx context.Context, accountNumber string) (out models.Account, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Accounts().GetByNumber(ctx, accountNumber)
		return err
	})
	return out, err
}

func (a autoAccounts) GetForUpdate(ctx context.Context, accountID string) (out models.Account, err error) {
	err = a.s.WithTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Accounts().GetForUpdate(ctx, accountID)
		return err
	})
	return out, err
}

func (a autoAccounts) ApplyDelta(ctx context.Context, accountID string, delta int64) (out int64, err error) {
	err = a.s.WithTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Accounts().ApplyDelta(ctx, accountID, delta)
		return err
	})
	return out, err
}

func (a autoAccounts) SetActive(ctx context.Context, accountID string, active bool) (out models.Account, err error) {
	err = a.s.WithTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Accounts().SetActive(ctx, accountID, active)
		return err
	})
	return out, err
}

func (a autoAccounts) SumBalances(ctx context.Context) (out int64, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Accounts().SumBalances(ctx)
		return err
	})
	return out, err
}

type autoTransactions struct{ s *Store }

func (a autoTransactions) Append(ctx context.Context, input store.TransactionInput) (out models.Transaction, err error) {
	err = a.s.WithTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Transactions().Append(ctx, input)
		return err
	})
	return out, err
}

func (a autoTransactions) ListByAccount(ctx context.Context, accountID string, limit, offset int) (out []models.Transaction, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Transactions().ListByAccount(ctx, accountID, limit, offset)
		return err
	})
	return out, err
}

func (a autoTransactions) CountByAccount(ctx context.Context, accountID string) (out int, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Transactions().CountByAccount(ctx, accountID)
		return err
	})
	return out, err
}

func (a autoTransactions) SumByAccount(ctx context.Context, accountID string) (out int64, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Transactions().SumByAccount(ctx, accountID)
		return err
	})
	return out, err
}

func (a autoTransactions) SumAmounts(ctx context.Context) (out int64, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Transactions().SumAmounts(ctx)
		return err
	})
	return out, err
}

type autoCredentials struct{ s *Store }

func (a autoCredentials) Create(ctx context.Context, input store.CredentialInput) (out models.Credential, err error) {
	err = a.s.WithTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Credentials().Create(ctx, input)
		return err
	})
	return out, err
}

func (a autoCredentials) GetByEmail(ctx context.Context, email string) (out models.Credential, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Credentials().GetByEmail(ctx, email)
		return err
	})
	return out, err
}

func (a autoCredentials) GetByAccountID(ctx context.Context, accountID string) (out models.Credential, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Credentials().GetByAccountID(ctx, accountID)
		return err
	})
	return out, err
}

type autoProfiles struct{ s *Store }

func (a autoProfiles) GetByAccountID(ctx context.Context, accountID string) (out models.Profile, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Profiles().GetByAccountID(ctx, accountID)
		return err
	})
	return out, err
}

func (a autoProfiles) Upsert(ctx context.Context, input store.ProfileInput) (out models.Profile, err error) {
	err = a.s.WithTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Profiles().Upsert(ctx, input)
		return err
	})
	return out, err
}

type autoAudit struct{ s *Store }

func (a autoAudit) Log(ctx context.Context, input store.AuditInput) (out models.AuditEntry, err error) {
	err = a.s.WithTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Audit().Log(ctx, input)
		return err
	})
	return out, err
}

func (a autoAudit) List(ctx context.Context, limit, offset int) (out []models.AuditEntry, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Audit().List(ctx, limit, offset)
		return err
	})
	return out, err
}

func (a autoAudit) Count(ctx context.Context) (out int, err error) {
	err = a.s.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		out, err = uow.Audit().Count(ctx)
		return err
	})
	return out, err
}

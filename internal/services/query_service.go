package services

import (
	"context"
	"math"

	"ledger/internal/models"
	"ledger/internal/store"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize    = 10
	MaxPageSize        = 100
	DefaultRecentCount = 5
)

// QueryService reads committed state only. Multi-read views run inside one
// read-only unit of work.
type QueryService struct {
	store store.Store
	log   *logrus.Logger
}

func NewQueryService(st store.Store, log *logrus.Logger) *QueryService {
	return &QueryService{store: st, log: log}
}

type Page struct {
	Items      []models.Transaction `json:"items"`
	TotalCount int                  `json:"total_count"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
}

type Verification struct {
	AccountID        string `json:"account_id"`
	StoredBalance    int64  `json:"stored_balance"`
	LedgerSum        int64  `json:"ledger_sum"`
	LastBalanceAfter int64  `json:"last_balance_after"`
	RecordCount      int    `json:"record_count"`
	Consistent       bool   `json:"consistent"`
}

type AuditReport struct {
	TotalBalances int64 `json:"total_balances"`
	TotalAmounts  int64 `json:"total_amounts"`
	Balanced      bool  `json:"balanced"`
}

func (q *QueryService) GetBalance(ctx context.Context, accountID string) (models.Account, error) {
	return q.store.Accounts().GetByID(ctx, accountID)
}

func (q *QueryService) ListTransactions(ctx context.Context, accountID string, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	pageSize = clampSize(pageSize, DefaultPageSize)
	offset, ok := pageOffset(page, pageSize)
	result := Page{Page: page, PageSize: pageSize, Items: []models.Transaction{}}
	err := q.store.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		if _, err := uow.Accounts().GetByID(ctx, accountID); err != nil {
			return err
		}
		total, err := uow.Transactions().CountByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		result.TotalCount = total
		if !ok || offset >= total {
			return nil
		}
		items, err := uow.Transactions().ListByAccount(ctx, accountID, pageSize, offset)
		if err != nil {
			return err
		}
		result.Items = items
		return nil
	})
	if err != nil {
		return Page{}, err
	}
	return result, nil
}

func (q *QueryService) GetRecent(ctx context.Context, accountID string, n int) ([]models.Transaction, error) {
	n = clampSize(n, DefaultRecentCount)
	var items []models.Transaction
	err := q.store.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		if _, err := uow.Accounts().GetByID(ctx, accountID); err != nil {
			return err
		}
		var err error
		items, err = uow.Transactions().ListByAccount(ctx, accountID, n, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// VerifyAccount replays the account's log against its stored balance.
func (q *QueryService) VerifyAccount(ctx context.Context, accountID string) (Verification, error) {
	var v Verification
	err := q.store.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		account, err := uow.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		sum, err := uow.Transactions().SumByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		count, err := uow.Transactions().CountByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		latest, err := uow.Transactions().ListByAccount(ctx, accountID, 1, 0)
		if err != nil {
			return err
		}
		v = Verification{
			AccountID:     account.ID,
			StoredBalance: account.Balance,
			LedgerSum:     sum,
			RecordCount:   count,
		}
		if len(latest) > 0 {
			v.LastBalanceAfter = latest[0].BalanceAfter
		}
		v.Consistent = v.StoredBalance == v.LedgerSum && v.StoredBalance == v.LastBalanceAfter
		return nil
	})
	if err != nil {
		return Verification{}, err
	}
	if !v.Consistent {
		q.log.WithFields(logrus.Fields{
			"account_id":         v.AccountID,
			"stored_balance":     v.StoredBalance,
			"ledger_sum":         v.LedgerSum,
			"last_balance_after": v.LastBalanceAfter,
		}).Error("Ledger.VerifyAccount.Mismatch")
	}
	return v, nil
}

// Audit checks the conservation law over the whole ledger.
func (q *QueryService) Audit(ctx context.Context) (AuditReport, error) {
	var report AuditReport
	err := q.store.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		balances, err := uow.Accounts().SumBalances(ctx)
		if err != nil {
			return err
		}
		amounts, err := uow.Transactions().SumAmounts(ctx)
		if err != nil {
			return err
		}
		report = AuditReport{TotalBalances: balances, TotalAmounts: amounts, Balanced: balances == amounts}
		return nil
	})
	if err != nil {
		return AuditReport{}, err
	}
	if !report.Balanced {
		q.log.WithFields(logrus.Fields{
			"total_balances": report.TotalBalances,
			"total_amounts":  report.TotalAmounts,
		}).Error("Ledger.Audit.Mismatch")
	}
	return report, nil
}

type AuditPage struct {
	Items      []models.AuditEntry `json:"items"`
	TotalCount int                 `json:"total_count"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
}

// AuditLog lists administrative actions, newest first.
func (q *QueryService) AuditLog(ctx context.Context, page, pageSize int) (AuditPage, error) {
	if page < 1 {
		page = 1
	}
	pageSize = clampSize(pageSize, DefaultPageSize)
	offset, ok := pageOffset(page, pageSize)
	result := AuditPage{Page: page, PageSize: pageSize, Items: []models.AuditEntry{}}
	err := q.store.WithReadTx(ctx, func(uow store.UnitOfWork) error {
		total, err := uow.Audit().Count(ctx)
		if err != nil {
			return err
		}
		result.TotalCount = total
		if !ok || offset >= total {
			return nil
		}
		items, err := uow.Audit().List(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		result.Items = items
		return nil
	})
	if err != nil {
		return AuditPage{}, err
	}
	return result, nil
}

// pageOffset reports false when the offset of page does not fit in an int.
// Such a page lies past the end of any log.
func pageOffset(page, pageSize int) (int, bool) {
	if page-1 > math.MaxInt/pageSize {
		return 0, false
	}
	return (page - 1) * pageSize, true
}

func clampSize(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	if value > MaxPageSize {
		return MaxPageSize
	}
	return value
}

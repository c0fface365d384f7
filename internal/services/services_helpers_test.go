package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/logging"
	"ledger/internal/models"
	"ledger/internal/store"
	"ledger/internal/store/memory"
	"ledger/internal/websocket"

	"github.com/stretchr/testify/require"
)

type seqIDs struct {
	mu      sync.Mutex
	n       int
	numbers []string
}

func (g *seqIDs) next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.n
}

func (g *seqIDs) AccountID() string {
	return fmt.Sprintf("acc-%04d", g.next())
}

func (g *seqIDs) AccountNumber() string {
	g.mu.Lock()
	if len(g.numbers) > 0 {
		number := g.numbers[0]
		g.numbers = g.numbers[1:]
		g.mu.Unlock()
		return number
	}
	g.mu.Unlock()
	return fmt.Sprintf("%016d", g.next())
}

func (g *seqIDs) TransactionID() string {
	return fmt.Sprintf("TRX-%08d", g.next())
}

type tickingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), step: time.Millisecond}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type stubHub struct {
	mu      sync.Mutex
	updates []websocket.BalanceUpdate
}

func (h *stubHub) BroadcastBalance(update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *stubHub) all() []websocket.BalanceUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]websocket.BalanceUpdate(nil), h.updates...)
}

type fixture struct {
	store  store.Store
	mem    *memory.Store
	ids    *seqIDs
	hub    *stubHub
	ledger   *LedgerService
	query    *QueryService
	profiles *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.New()
	return newFixtureWithStore(t, mem, mem)
}

func newFixtureWithStore(t *testing.T, st store.Store, mem *memory.Store) *fixture {
	t.Helper()
	gen := &seqIDs{}
	hub := &stubHub{}
	log := logging.Discard()
	ledger := NewLedgerService(st, gen, hub, log)
	ledger.now = newTickingClock().Now
	return &fixture{
		store:    st,
		mem:      mem,
		ids:      gen,
		hub:      hub,
		ledger:   ledger,
		query:    NewQueryService(st, log),
		profiles: NewProfileService(st, log),
	}
}

func (f *fixture) open(t *testing.T, opening int64) models.Account {
	t.Helper()
	reg, err := f.ledger.Register(context.Background(), RegisterRequest{OpeningDeposit: opening})
	require.NoError(t, err)
	return reg.Account
}

func (f *fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	account, err := f.query.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance
}

func (f *fixture) records(t *testing.T, accountID string) []models.Transaction {
	t.Helper()
	page, err := f.query.ListTransactions(context.Background(), accountID, 1, MaxPageSize)
	require.NoError(t, err)
	return page.Items
}

func (f *fixture) requireConserved(t *testing.T) {
	t.Helper()
	report, err := f.query.Audit(context.Background())
	require.NoError(t, err)
	require.True(t, report.Balanced, "balances %d != amounts %d", report.TotalBalances, report.TotalAmounts)
}

// faultyStore injects storage failures into units of work.
type faultyStore struct {
	store.Store
	failCreditFor string
	failAppendAt  int
	failAudit     bool
}

var errDiskFull = errors.New("disk full")

func (f *faultyStore) WithTx(ctx context.Context, fn func(store.UnitOfWork) error) error {
	return f.Store.WithTx(ctx, func(uow store.UnitOfWork) error {
		return fn(&faultyUnit{UnitOfWork: uow, parent: f})
	})
}

type faultyUnit struct {
	store.UnitOfWork
	parent  *faultyStore
	appends int
}

func (u *faultyUnit) Accounts() store.AccountRepository {
	return faultyAccounts{AccountRepository: u.UnitOfWork.Accounts(), unit: u}
}

func (u *faultyUnit) Audit() store.AuditRepository {
	return faultyAudit{AuditRepository: u.UnitOfWork.Audit(), unit: u}
}

func (u *faultyUnit) Transactions() store.TransactionRepository {
	return faultyTransactions{TransactionRepository: u.UnitOfWork.Transactions(), unit: u}
}

type faultyAccounts struct {
	store.AccountRepository
	unit *faultyUnit
}

func (a faultyAccounts) ApplyDelta(ctx context.Context, accountID string, delta int64) (int64, error) {
	if delta > 0 && accountID == a.unit.parent.failCreditFor {
		return 0, apperr.Wrap(apperr.StoreUnavailable, errDiskFull, "apply balance delta")
	}
	return a.AccountRepository.ApplyDelta(ctx, accountID, delta)
}

type faultyTransactions struct {
	store.TransactionRepository
	unit *faultyUnit
}

func (t faultyTransactions) Append(ctx context.Context, input store.TransactionInput) (models.Transaction, error) {
	t.unit.appends++
	if t.unit.appends == t.unit.parent.failAppendAt {
		return models.Transaction{}, apperr.Wrap(apperr.StoreUnavailable, errDiskFull, "append transaction")
	}
	return t.TransactionRepository.Append(ctx, input)
}

type faultyAudit struct {
	store.AuditRepository
	unit *faultyUnit
}

func (a faultyAudit) Log(ctx context.Context, input store.AuditInput) (models.AuditEntry, error) {
	if a.unit.parent.failAudit {
		return models.AuditEntry{}, apperr.Wrap(apperr.StoreUnavailable, errDiskFull, "log audit entry")
	}
	return a.AuditRepository.Log(ctx, input)
}

//go:build integration

package services

import (
	"context"
	"math"
	"testing"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/db"
	"ledger/internal/ids"
	"ledger/internal/logging"
	"ledger/internal/models"
	"ledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

func newPostgresFixture(t *testing.T) (*fixture, *sqlx.DB) {
	t.Helper()
	ctx := context.Background()
	pg, err := tcpostgres.Run(
		ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := db.Connect(dsn, 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, after, err := db.Migrate(conn.DB, "file://../../migrations")
	require.NoError(t, err)
	require.Equal(t, uint(2), after)

	st := store.NewPostgresStore(conn, db.NewTxRunner(conn, 1))
	f := newFixtureWithStore(t, st, nil)
	f.ledger = NewLedgerService(st, ids.NewGenerator(), f.hub, logging.Discard())
	return f, conn
}

func TestPostgresLedger(t *testing.T) {
	f, conn := newPostgresFixture(t)
	ctx := context.Background()

	t.Run("transfer", func(t *testing.T) {
		a := f.open(t, 100000)
		b := f.open(t, 5000)
		_, err := f.ledger.Transfer(ctx, TransferRequest{FromAccountID: a.ID, ToAccountNumber: b.AccountNumber, AmountMinor: 30000})
		require.NoError(t, err)
		assert.Equal(t, int64(70000), f.balance(t, a.ID))
		assert.Equal(t, int64(35000), f.balance(t, b.ID))

		out := f.records(t, a.ID)[0]
		assert.Equal(t, models.KindTransferOut, out.Kind)
		assert.Equal(t, int64(70000), out.BalanceAfter)
		in := f.records(t, b.ID)[0]
		assert.Equal(t, models.KindTransferIn, in.Kind)
		assert.Equal(t, int64(35000), in.BalanceAfter)
		f.requireConserved(t)
	})

	t.Run("rejections leave no trace", func(t *testing.T) {
		a := f.open(t, 70000)
		_, err := f.ledger.Withdraw(ctx, MovementRequest{AccountID: a.ID, AmountMinor: 200000})
		require.ErrorIs(t, err, apperr.ErrInsufficientFunds)
		_, err = f.ledger.Transfer(ctx, TransferRequest{FromAccountID: a.ID, ToAccountNumber: a.AccountNumber, AmountMinor: 1})
		require.ErrorIs(t, err, apperr.ErrSelfTransferNotAllowed)
		_, err = f.ledger.Transfer(ctx, TransferRequest{FromAccountID: a.ID, ToAccountNumber: "0000000000000000", AmountMinor: 1})
		require.ErrorIs(t, err, apperr.ErrRecipientNotFound)
		assert.Equal(t, int64(70000), f.balance(t, a.ID))
		assert.Len(t, f.records(t, a.ID), 1)
	})

	t.Run("duplicate account number", func(t *testing.T) {
		_, err := f.ledger.Register(ctx, RegisterRequest{AccountNumber: "4000000000000004"})
		require.NoError(t, err)
		_, err = f.ledger.Register(ctx, RegisterRequest{AccountNumber: "4000000000000004", OpeningDeposit: 10})
		require.ErrorIs(t, err, apperr.ErrDuplicateAccountNumber)
		f.requireConserved(t)
	})

	t.Run("inactive", func(t *testing.T) {
		admin := f.open(t, 0)
		a := f.open(t, 1000)
		_, err := f.ledger.SetActive(ctx, admin.ID, a.ID, false)
		require.NoError(t, err)
		_, err = f.ledger.Deposit(ctx, MovementRequest{AccountID: a.ID, AmountMinor: 1})
		require.ErrorIs(t, err, apperr.ErrAccountInactive)

		log, err := f.query.AuditLog(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, log.Items, 1)
		entry := log.Items[0]
		assert.Equal(t, models.AuditAccountDeactivate, entry.Action)
		assert.Equal(t, a.ID, entry.EntityID)
		require.NotNil(t, entry.ActorAccountID)
		assert.Equal(t, admin.ID, *entry.ActorAccountID)
		assert.JSONEq(t, `{"account_number":"`+a.AccountNumber+`","previous_active":true,"active":false}`, entry.Data)

		_, err = conn.ExecContext(ctx, `DELETE FROM audit_logs WHERE id = $1`, entry.ID)
		require.Error(t, err)
	})

	t.Run("page far past the end", func(t *testing.T) {
		a := f.open(t, 100)
		page, err := f.query.ListTransactions(ctx, a.ID, math.MaxInt, MaxPageSize)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, 1, page.TotalCount)
	})

	t.Run("profiles", func(t *testing.T) {
		a := f.open(t, 0)
		first := "Ana"
		profile, err := f.profiles.Update(ctx, a.ID, ProfileUpdate{FirstName: &first})
		require.NoError(t, err)
		assert.Equal(t, "Ana", profile.FullName())

		last := "Putri"
		profile, err = f.profiles.Update(ctx, a.ID, ProfileUpdate{LastName: &last})
		require.NoError(t, err)
		assert.Equal(t, "Ana Putri", profile.FullName())

		_, err = f.profiles.Update(ctx, "missing", ProfileUpdate{FirstName: &first})
		require.ErrorIs(t, err, apperr.ErrAccountNotFound)
	})

	t.Run("concurrent opposite transfers", func(t *testing.T) {
		a := f.open(t, 50000)
		b := f.open(t, 50000)
		var g errgroup.Group
		for i := 0; i < 20; i++ {
			g.Go(func() error {
				_, err := f.ledger.Transfer(ctx, TransferRequest{FromAccountID: a.ID, ToAccountNumber: b.AccountNumber, AmountMinor: 300})
				return err
			})
			g.Go(func() error {
				_, err := f.ledger.Transfer(ctx, TransferRequest{FromAccountID: b.ID, ToAccountNumber: a.AccountNumber, AmountMinor: 100})
				return err
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, int64(50000-20*300+20*100), f.balance(t, a.ID))
		for _, id := range []string{a.ID, b.ID} {
			v, err := f.query.VerifyAccount(ctx, id)
			require.NoError(t, err)
			assert.True(t, v.Consistent)
		}
		f.requireConserved(t)
	})

	t.Run("records are append-only", func(t *testing.T) {
		a := f.open(t, 100)
		record := f.records(t, a.ID)[0]
		_, err := conn.ExecContext(ctx, `UPDATE transactions SET amount = 1 WHERE transaction_id = $1`, record.ID)
		require.Error(t, err)
		_, err = conn.ExecContext(ctx, `DELETE FROM transactions WHERE transaction_id = $1`, record.ID)
		require.Error(t, err)
		_, err = conn.ExecContext(ctx, `UPDATE accounts SET balance = -1 WHERE id = $1`, a.ID)
		require.Error(t, err)
		assert.Len(t, f.records(t, a.ID), 1)
	})
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/ids"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"github.com/sirupsen/logrus"
)

const maxNumberAttempts = 5

type BalanceHub interface {
	BroadcastBalance(update websocket.BalanceUpdate)
}

type LedgerService struct {
	store store.Store
	ids   ids.Generator
	hub   BalanceHub
	log   *logrus.Logger
	now   func() time.Time
}

func NewLedgerService(st store.Store, gen ids.Generator, hub BalanceHub, log *logrus.Logger) *LedgerService {
	return &LedgerService{
		store: st,
		ids:   gen,
		hub:   hub,
		log:   log,
		now:   time.Now,
	}
}

type CredentialRequest struct {
	Email        string
	PasswordHash string
	IsAdmin      bool
}

type RegisterRequest struct {
	// AccountNumber is generated when empty.
	AccountNumber  string
	OpeningDeposit int64
	Credential     *CredentialRequest
	Profile        *ProfileFields
}

type Registration struct {
	Account    models.Account
	Credential *models.Credential
	Profile    *models.Profile
	Records    []models.Transaction
}

type MovementRequest struct {
	AccountID   string
	AmountMinor int64
	Note        string
}

type TransferRequest struct {
	FromAccountID   string
	ToAccountNumber string
	AmountMinor     int64
	Note            string
}

// Receipt carries the caller's resulting balance and the records appended.
type Receipt struct {
	Balance int64
	Records []models.Transaction
}

func (s *LedgerService) Register(ctx context.Context, req RegisterRequest) (Registration, error) {
	if req.OpeningDeposit < 0 {
		return Registration{}, s.reject("Register", "", apperr.ErrInvalidAmount)
	}
	if req.AccountNumber != "" && !ids.ValidAccountNumber(req.AccountNumber) {
		return Registration{}, s.reject("Register", "", apperr.ErrInvalidAccountNumber)
	}
	if req.Profile != nil {
		cleaned, err := req.Profile.clean()
		if err != nil {
			return Registration{}, s.reject("Register", "", err)
		}
		req.Profile = &cleaned
	}
	attempts := 1
	if req.AccountNumber == "" {
		attempts = maxNumberAttempts
	}

	var (
		reg Registration
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		number := req.AccountNumber
		if number == "" {
			number = s.ids.AccountNumber()
		}
		reg, err = s.register(ctx, number, req)
		if req.AccountNumber == "" && errors.Is(err, apperr.ErrDuplicateAccountNumber) {
			continue
		}
		break
	}
	if err != nil {
		return Registration{}, s.reject("Register", "", err)
	}
	s.log.WithFields(logrus.Fields{
		"account_id":      reg.Account.ID,
		"account_number":  reg.Account.AccountNumber,
		"opening_deposit": req.OpeningDeposit,
	}).Info("Ledger.Register.Complete")
	return reg, nil
}

// EnsureAccount registers req.AccountNumber unless it already exists. The
// boolean reports whether a new account was created.
func (s *LedgerService) EnsureAccount(ctx context.Context, req RegisterRequest) (models.Account, bool, error) {
	if req.AccountNumber == "" {
		return models.Account{}, false, apperr.ErrInvalidAccountNumber
	}
	existing, err := s.store.Accounts().GetByNumber(ctx, req.AccountNumber)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrAccountNotFound) {
		return models.Account{}, false, err
	}
	reg, err := s.Register(ctx, req)
	if errors.Is(err, apperr.ErrDuplicateAccountNumber) {
		existing, err = s.store.Accounts().GetByNumber(ctx, req.AccountNumber)
		return existing, false, err
	}
	if err != nil {
		return models.Account{}, false, err
	}
	return reg.Account, true, nil
}

func (s *LedgerService) register(ctx context.Context, number string, req RegisterRequest) (Registration, error) {
	var reg Registration
	err := s.store.WithTx(ctx, func(uow store.UnitOfWork) error {
		account, err := uow.Accounts().Create(ctx, store.AccountInput{
			ID:            s.ids.AccountID(),
			AccountNumber: number,
			Active:        true,
		})
		if err != nil {
			return err
		}
		if req.Credential != nil {
			credential, err := uow.Credentials().Create(ctx, store.CredentialInput{
				AccountID:    account.ID,
				Email:        req.Credential.Email,
				PasswordHash: req.Credential.PasswordHash,
				IsAdmin:      req.Credential.IsAdmin,
			})
			if err != nil {
				return err
			}
			reg.Credential = &credential
		}
		if req.Profile != nil {
			profile, err := uow.Profiles().Upsert(ctx, req.Profile.input(account.ID))
			if err != nil {
				return err
			}
			reg.Profile = &profile
		}
		if req.OpeningDeposit > 0 {
			balance, err := uow.Accounts().ApplyDelta(ctx, account.ID, req.OpeningDeposit)
			if err != nil {
				return err
			}
			record, err := uow.Transactions().Append(ctx, store.TransactionInput{
				TransactionID: s.ids.TransactionID(),
				AccountID:     account.ID,
				Kind:          models.KindDeposit,
				Amount:        req.OpeningDeposit,
				Description:   "Opening deposit",
				BalanceAfter:  balance,
				At:            s.now(),
			})
			if err != nil {
				return err
			}
			account.Balance = balance
			reg.Records = append(reg.Records, record)
		}
		reg.Account = account
		return nil
	})
	return reg, err
}

func (s *LedgerService) Deposit(ctx context.Context, req MovementRequest) (Receipt, error) {
	return s.move(ctx, "Deposit", req, models.KindDeposit, req.AmountMinor, "Deposit")
}

func (s *LedgerService) Withdraw(ctx context.Context, req MovementRequest) (Receipt, error) {
	return s.move(ctx, "Withdraw", req, models.KindWithdraw, -req.AmountMinor, "Withdrawal")
}

func (s *LedgerService) move(ctx context.Context, op string, req MovementRequest, kind models.TransactionKind, delta int64, label string) (Receipt, error) {
	if req.AmountMinor <= 0 {
		return Receipt{}, s.reject(op, req.AccountID, apperr.ErrInvalidAmount)
	}
	var (
		receipt Receipt
		account models.Account
	)
	err := s.store.WithTx(ctx, func(uow store.UnitOfWork) error {
		var err error
		account, err = uow.Accounts().GetForUpdate(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if !account.Active {
			return apperr.ErrAccountInactive
		}
		balance, err := uow.Accounts().ApplyDelta(ctx, account.ID, delta)
		if err != nil {
			return err
		}
		record, err := uow.Transactions().Append(ctx, store.TransactionInput{
			TransactionID: s.ids.TransactionID(),
			AccountID:     account.ID,
			Kind:          kind,
			Amount:        delta,
			Description:   describe(label, req.Note),
			BalanceAfter:  balance,
			At:            s.now(),
		})
		if err != nil {
			return err
		}
		receipt = Receipt{Balance: balance, Records: []models.Transaction{record}}
		return nil
	})
	if err != nil {
		return Receipt{}, s.reject(op, req.AccountID, err)
	}
	s.publish(account, receipt.Records[0])
	s.log.WithFields(logrus.Fields{
		"account_id":     account.ID,
		"transaction_id": receipt.Records[0].ID,
		"amount":         delta,
		"balance":        receipt.Balance,
	}).Infof("Ledger.%s.Complete", op)
	return receipt, nil
}

// Transfer debits the source and credits the recipient in one unit of work. Both
// rows are locked in ascending id order before either balance changes.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (Receipt, error) {
	if req.AmountMinor <= 0 {
		return Receipt{}, s.reject("Transfer", req.FromAccountID, apperr.ErrInvalidAmount)
	}
	var (
		receipt   Receipt
		from, to  models.Account
		debit     models.Transaction
		credit    models.Transaction
		toBalance int64
	)
	err := s.store.WithTx(ctx, func(uow store.UnitOfWork) error {
		source, err := uow.Accounts().GetByID(ctx, req.FromAccountID)
		if err != nil {
			return err
		}
		recipient, err := uow.Accounts().GetByNumber(ctx, req.ToAccountNumber)
		if errors.Is(err, apperr.ErrAccountNotFound) {
			return apperr.ErrRecipientNotFound.WithDetails(map[string]any{"account_number": req.ToAccountNumber})
		}
		if err != nil {
			return err
		}
		if recipient.ID == source.ID {
			return apperr.ErrSelfTransferNotAllowed
		}

		from, to, err = lockTwoAccounts(ctx, uow.Accounts(), source.ID, recipient.ID)
		if err != nil {
			return err
		}
		if !from.Active {
			return apperr.ErrAccountInactive.WithDetails(map[string]any{"side": "source"})
		}
		if !to.Active {
			return apperr.ErrAccountInactive.WithDetails(map[string]any{"side": "recipient"})
		}

		fromBalance, err := uow.Accounts().ApplyDelta(ctx, from.ID, -req.AmountMinor)
		if err != nil {
			return err
		}
		toBalance, err = uow.Accounts().ApplyDelta(ctx, to.ID, req.AmountMinor)
		if err != nil {
			return err
		}

		toNumber, fromNumber := to.AccountNumber, from.AccountNumber
		at := s.now()
		inputs := []store.TransactionInput{
			{
				TransactionID:             s.ids.TransactionID(),
				AccountID:                 from.ID,
				Kind:                      models.KindTransferOut,
				Amount:                    -req.AmountMinor,
				CounterpartyAccountNumber: &toNumber,
				Description:               describe("Transfer to "+toNumber, req.Note),
				BalanceAfter:              fromBalance,
				At:                        at,
			},
			{
				TransactionID:             s.ids.TransactionID(),
				AccountID:                 to.ID,
				Kind:                      models.KindTransferIn,
				Amount:                    req.AmountMinor,
				CounterpartyAccountNumber: &fromNumber,
				Description:               describe("Transfer from "+fromNumber, req.Note),
				BalanceAfter:              toBalance,
				At:                        at,
			},
		}
		if err := ensureBalanced(inputs); err != nil {
			return err
		}
		if debit, err = uow.Transactions().Append(ctx, inputs[0]); err != nil {
			return err
		}
		if credit, err = uow.Transactions().Append(ctx, inputs[1]); err != nil {
			return err
		}
		receipt = Receipt{Balance: fromBalance, Records: []models.Transaction{debit, credit}}
		return nil
	})
	if err != nil {
		return Receipt{}, s.reject("Transfer", req.FromAccountID, err)
	}
	s.publish(from, debit)
	s.publish(to, credit)
	s.log.WithFields(logrus.Fields{
		"account_id":        from.ID,
		"recipient_id":      to.ID,
		"debit_id":          debit.ID,
		"credit_id":         credit.ID,
		"amount":            req.AmountMinor,
		"balance":           receipt.Balance,
		"recipient_balance": toBalance,
	}).Info("Ledger.Transfer.Complete")
	return receipt, nil
}

// SetActive flips the account's active flag and records the change in the
// audit log within the same unit of work. actorID is empty for system actions.
func (s *LedgerService) SetActive(ctx context.Context, actorID, accountID string, active bool) (models.Account, error) {
	var account models.Account
	err := s.store.WithTx(ctx, func(uow store.UnitOfWork) error {
		current, err := uow.Accounts().GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		account, err = uow.Accounts().SetActive(ctx, accountID, active)
		if err != nil {
			return err
		}
		data, err := json.Marshal(map[string]any{
			"account_number":  account.AccountNumber,
			"previous_active": current.Active,
			"active":          active,
		})
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "encode audit data")
		}
		action := models.AuditAccountDeactivate
		if active {
			action = models.AuditAccountActivate
		}
		_, err = uow.Audit().Log(ctx, store.AuditInput{
			ActorAccountID: actorID,
			Action:         action,
			EntityType:     models.AuditEntityAccount,
			EntityID:       accountID,
			Data:           string(data),
		})
		return err
	})
	if err != nil {
		return models.Account{}, s.reject("SetActive", accountID, err)
	}
	s.log.WithFields(logrus.Fields{
		"actor_id":   actorID,
		"account_id": accountID,
		"active":     active,
	}).Info("Ledger.SetActive.Complete")
	return account, nil
}

func (s *LedgerService) publish(account models.Account, record models.Transaction) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastBalance(websocket.BalanceUpdate{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		BalanceMinor:  record.BalanceAfter,
		Balance:       money.FormatMinor(record.BalanceAfter),
		TransactionID: record.ID,
		Kind:          string(record.Kind),
	})
}

func (s *LedgerService) reject(op, accountID string, err error) error {
	entry := s.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"kind":       apperr.KindOf(err),
	}).WithError(err)
	if apperr.Retryable(err) {
		entry.Errorf("Ledger.%s.Error", op)
	} else {
		entry.Warnf("Ledger.%s.Rejected", op)
	}
	return err
}

func describe(label, note string) string {
	if note == "" {
		return label
	}
	return fmt.Sprintf("%s: %s", label, note)
}

func ensureBalanced(inputs []store.TransactionInput) error {
	var sum int64
	for _, input := range inputs {
		sum += input.Amount
	}
	if sum != 0 {
		return apperr.New(apperr.Internal, "transfer records are not balanced")
	}
	return nil
}

func lockTwoAccounts(ctx context.Context, accounts store.AccountRepository, firstID, secondID string) (models.Account, models.Account, error) {
	leftID, rightID := store.Ordered(firstID, secondID)
	leftAccount, err := accounts.GetForUpdate(ctx, leftID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	rightAccount, err := accounts.GetForUpdate(ctx, rightID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	if firstID == leftID {
		return leftAccount, rightAccount, nil
	}
	return rightAccount, leftAccount, nil
}

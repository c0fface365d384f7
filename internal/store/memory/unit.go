package memory

import (
	"context"

	"ledger/internal/apperr"
	"ledger/internal/ids"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"

	"github.com/google/uuid"
)

var errReadOnly = apperr.New(apperr.InvalidRequest, "write attempted in a read-only unit of work")

// unit stages writes until commit. In read-only mode the caller already holds
// the store's read lock, so committed reads skip locking.
type unit struct {
	s        *Store
	readOnly bool

	held        []chan struct{}
	heldIDs     map[string]struct{}
	accounts    map[string]models.Account
	records     []models.Transaction
	credentials []models.Credential
	profiles    map[string]models.Profile
	audit       []models.AuditEntry
	numbers     []string
	emails      []string
	done        bool
}

func newUnit(s *Store, readOnly bool) *unit {
	return &unit{
		s:        s,
		readOnly: readOnly,
		heldIDs:  make(map[string]struct{}),
		accounts: make(map[string]models.Account),
		profiles: make(map[string]models.Profile),
	}
}

func (u *unit) Accounts() store.AccountRepository         { return accountRepo{u} }
func (u *unit) Transactions() store.TransactionRepository { return transactionRepo{u} }
func (u *unit) Credentials() store.CredentialRepository   { return credentialRepo{u} }
func (u *unit) Profiles() store.ProfileRepository         { return profileRepo{u} }
func (u *unit) Audit() store.AuditRepository              { return auditRepo{u} }

func (u *unit) rlock() {
	if !u.readOnly {
		u.s.mu.RLock()
	}
}

func (u *unit) runlock() {
	if !u.readOnly {
		u.s.mu.RUnlock()
	}
}

func (u *unit) lock(ctx context.Context, id string) error {
	if _, ok := u.heldIDs[id]; ok {
		return nil
	}
	ch := u.s.rowLock(id)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return apperr.Unavailable(ctx.Err(), "wait for account lock")
	}
	u.held = append(u.held, ch)
	u.heldIDs[id] = struct{}{}
	return nil
}

func (u *unit) account(id string) (models.Account, bool) {
	if staged, ok := u.accounts[id]; ok {
		return staged, true
	}
	u.rlock()
	defer u.runlock()
	committed, ok := u.s.accounts[id]
	return committed, ok
}

func (u *unit) accountIDByNumber(number string) (string, bool) {
	for id, staged := range u.accounts {
		if staged.AccountNumber == number {
			return id, true
		}
	}
	u.rlock()
	defer u.runlock()
	id, ok := u.s.byNumber[number]
	return id, ok
}

// lockExisting locks an account that must already exist and returns its latest state.
func (u *unit) lockExisting(ctx context.Context, id string) (models.Account, error) {
	if _, ok := u.account(id); !ok {
		return models.Account{}, apperr.ErrAccountNotFound
	}
	if err := u.lock(ctx, id); err != nil {
		return models.Account{}, err
	}
	current, _ := u.account(id)
	return current, nil
}

func (u *unit) recordsFor(accountID string) []models.Transaction {
	u.rlock()
	committed := u.s.records[accountID]
	out := make([]models.Transaction, len(committed), len(committed)+4)
	copy(out, committed)
	u.runlock()
	for _, record := range u.records {
		if record.AccountID == accountID {
			out = append(out, record)
		}
	}
	return out
}

func (u *unit) commit() error {
	if u.done {
		return nil
	}
	s := u.s
	s.mu.Lock()
	for _, record := range u.records {
		if _, dup := s.recordIDs[record.ID]; dup {
			s.mu.Unlock()
			u.rollback()
			return apperr.Newf(apperr.StoreUnavailable, "duplicate transaction id %s", record.ID)
		}
	}
	for id, account := range u.accounts {
		s.accounts[id] = account
		s.byNumber[account.AccountNumber] = id
	}
	for _, record := range u.records {
		s.records[record.AccountID] = append(s.records[record.AccountID], record)
		s.recordIDs[record.ID] = struct{}{}
	}
	for _, credential := range u.credentials {
		s.credentials[credential.Email] = credential
		s.credByAccount[credential.AccountID] = credential.Email
	}
	for id, profile := range u.profiles {
		s.profiles[id] = profile
	}
	s.audit = append(s.audit, u.audit...)
	s.mu.Unlock()
	u.finish()
	return nil
}

func (u *unit) rollback() {
	if u.done {
		return
	}
	u.accounts = nil
	u.records = nil
	u.credentials = nil
	u.profiles = nil
	u.audit = nil
	u.finish()
}

func (u *unit) finish() {
	u.done = true
	u.s.release(u.numbers, u.emails)
	for i := len(u.held) - 1; i >= 0; i-- {
		<-u.held[i]
	}
	u.held = nil
	u.heldIDs = nil
}

type accountRepo struct{ u *unit }

func (r accountRepo) Create(ctx context.Context, input store.AccountInput) (models.Account, error) {
	u := r.u
	if u.readOnly {
		return models.Account{}, errReadOnly
	}
	if !ids.ValidAccountNumber(input.AccountNumber) {
		return models.Account{}, apperr.ErrInvalidAccountNumber
	}
	if _, exists := u.account(input.ID); exists {
		return models.Account{}, apperr.Newf(apperr.StoreUnavailable, "account id %s already exists", input.ID)
	}
	if err := u.s.reserve(input.AccountNumber, ""); err != nil {
		return models.Account{}, err
	}
	u.numbers = append(u.numbers, input.AccountNumber)
	if err := u.lock(ctx, input.ID); err != nil {
		return models.Account{}, err
	}
	now := u.s.now()
	account := models.Account{
		ID:            input.ID,
		AccountNumber: input.AccountNumber,
		Active:        input.Active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	u.accounts[account.ID] = account
	return account, nil
}

func (r accountRepo) GetByID(_ context.Context, accountID string) (models.Account, error) {
	account, ok := r.u.account(accountID)
	if !ok {
		return models.Account{}, apperr.ErrAccountNotFound
	}
	return account, nil
}

func (r accountRepo) GetByNumber(_ context.Context, accountNumber string) (models.Account, error) {
	id, ok := r.u.accountIDByNumber(accountNumber)
	if !ok {
		return models.Account{}, apperr.ErrAccountNotFound
	}
	account, _ := r.u.account(id)
	return account, nil
}

func (r accountRepo) GetForUpdate(ctx context.Context, accountID string) (models.Account, error) {
	if r.u.readOnly {
		return models.Account{}, errReadOnly
	}
	return r.u.lockExisting(ctx, accountID)
}

func (r accountRepo) ApplyDelta(ctx context.Context, accountID string, delta int64) (int64, error) {
	u := r.u
	if u.readOnly {
		return 0, errReadOnly
	}
	account, err := u.lockExisting(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if !account.Active {
		return 0, apperr.ErrAccountInactive
	}
	balance, ok := money.AddChecked(account.Balance, delta)
	if !ok {
		return 0, apperr.New(apperr.InvalidAmount, "amount out of range")
	}
	if balance < 0 {
		return 0, apperr.ErrInsufficientFunds.WithDetails(map[string]any{
			"balance": account.Balance,
			"delta":   delta,
		})
	}
	account.Balance = balance
	account.UpdatedAt = u.s.now()
	u.accounts[accountID] = account
	return balance, nil
}

func (r accountRepo) SetActive(ctx context.Context, accountID string, active bool) (models.Account, error) {
	u := r.u
	if u.readOnly {
		return models.Account{}, errReadOnly
	}
	account, err := u.lockExisting(ctx, accountID)
	if err != nil {
		return models.Account{}, err
	}
	account.Active = active
	account.UpdatedAt = u.s.now()
	u.accounts[accountID] = account
	return account, nil
}

func (r accountRepo) SumBalances(context.Context) (int64, error) {
	u := r.u
	var total int64
	u.rlock()
	for id, account := range u.s.accounts {
		if _, staged := u.accounts[id]; !staged {
			total += account.Balance
		}
	}
	u.runlock()
	for _, account := range u.accounts {
		total += account.Balance
	}
	return total, nil
}

type transactionRepo struct{ u *unit }

func (r transactionRepo) Append(ctx context.Context, input store.TransactionInput) (models.Transaction, error) {
	u := r.u
	if u.readOnly {
		return models.Transaction{}, errReadOnly
	}
	if !input.Kind.Valid() {
		return models.Transaction{}, apperr.Newf(apperr.InvalidRequest, "unknown transaction kind %q", input.Kind)
	}
	if _, err := u.lockExisting(ctx, input.AccountID); err != nil {
		return models.Transaction{}, err
	}
	u.rlock()
	_, dup := u.s.recordIDs[input.TransactionID]
	u.runlock()
	for _, staged := range u.records {
		if staged.ID == input.TransactionID {
			dup = true
		}
	}
	if dup {
		return models.Transaction{}, apperr.Newf(apperr.StoreUnavailable, "duplicate transaction id %s", input.TransactionID)
	}

	at := input.At
	if at.IsZero() {
		at = u.s.now()
	}
	if existing := u.recordsFor(input.AccountID); len(existing) > 0 {
		if last := existing[len(existing)-1].CreatedAt; at.Before(last) {
			at = last
		}
	}
	record := models.Transaction{
		ID:                        input.TransactionID,
		AccountID:                 input.AccountID,
		Kind:                      input.Kind,
		Amount:                    input.Amount,
		CounterpartyAccountNumber: input.CounterpartyAccountNumber,
		Description:               input.Description,
		BalanceAfter:              input.BalanceAfter,
		CreatedAt:                 at,
	}
	u.records = append(u.records, record)
	return record, nil
}

func (r transactionRepo) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	records := r.u.recordsFor(accountID)
	sortNewestFirst(records)
	return page(records, limit, offset), nil
}

func (r transactionRepo) CountByAccount(_ context.Context, accountID string) (int, error) {
	return len(r.u.recordsFor(accountID)), nil
}

func (r transactionRepo) SumByAccount(_ context.Context, accountID string) (int64, error) {
	var total int64
	for _, record := range r.u.recordsFor(accountID) {
		total += record.Amount
	}
	return total, nil
}

func (r transactionRepo) SumAmounts(context.Context) (int64, error) {
	u := r.u
	var total int64
	u.rlock()
	for _, records := range u.s.records {
		for _, record := range records {
			total += record.Amount
		}
	}
	u.runlock()
	for _, record := range u.records {
		total += record.Amount
	}
	return total, nil
}

type credentialRepo struct{ u *unit }

func (r credentialRepo) Create(ctx context.Context, input store.CredentialInput) (models.Credential, error) {
	u := r.u
	if u.readOnly {
		return models.Credential{}, errReadOnly
	}
	if _, ok := u.account(input.AccountID); !ok {
		return models.Credential{}, apperr.ErrAccountNotFound
	}
	if _, err := r.GetByAccountID(ctx, input.AccountID); err == nil {
		return models.Credential{}, apperr.New(apperr.InvalidRequest, "account already has credentials")
	}
	email := normalizeEmail(input.Email)
	if err := u.s.reserve("", email); err != nil {
		return models.Credential{}, err
	}
	u.emails = append(u.emails, email)
	credential := models.Credential{
		AccountID:    input.AccountID,
		Email:        email,
		PasswordHash: input.PasswordHash,
		IsAdmin:      input.IsAdmin,
		CreatedAt:    u.s.now(),
	}
	u.credentials = append(u.credentials, credential)
	return credential, nil
}

func (r credentialRepo) GetByEmail(_ context.Context, email string) (models.Credential, error) {
	u := r.u
	email = normalizeEmail(email)
	for _, staged := range u.credentials {
		if staged.Email == email {
			return staged, nil
		}
	}
	u.rlock()
	defer u.runlock()
	credential, ok := u.s.credentials[email]
	if !ok {
		return models.Credential{}, apperr.ErrInvalidCredentials
	}
	return credential, nil
}

func (r credentialRepo) GetByAccountID(_ context.Context, accountID string) (models.Credential, error) {
	u := r.u
	for _, staged := range u.credentials {
		if staged.AccountID == accountID {
			return staged, nil
		}
	}
	u.rlock()
	defer u.runlock()
	email, ok := u.s.credByAccount[accountID]
	if !ok {
		return models.Credential{}, apperr.ErrAccountNotFound
	}
	return u.s.credentials[email], nil
}

type profileRepo struct{ u *unit }

func (r profileRepo) GetByAccountID(_ context.Context, accountID string) (models.Profile, error) {
	u := r.u
	if staged, ok := u.profiles[accountID]; ok {
		return staged, nil
	}
	u.rlock()
	defer u.runlock()
	if profile, ok := u.s.profiles[accountID]; ok {
		return profile, nil
	}
	return models.Profile{AccountID: accountID}, nil
}

func (r profileRepo) Upsert(ctx context.Context, input store.ProfileInput) (models.Profile, error) {
	u := r.u
	if u.readOnly {
		return models.Profile{}, errReadOnly
	}
	if _, err := u.lockExisting(ctx, input.AccountID); err != nil {
		return models.Profile{}, err
	}
	profile := models.Profile{
		AccountID: input.AccountID,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		Address:   input.Address,
		UpdatedAt: u.s.now(),
	}
	u.profiles[input.AccountID] = profile
	return profile, nil
}

type auditRepo struct{ u *unit }

func (r auditRepo) Log(_ context.Context, input store.AuditInput) (models.AuditEntry, error) {
	u := r.u
	if u.readOnly {
		return models.AuditEntry{}, errReadOnly
	}
	data := input.Data
	if data == "" {
		data = "{}"
	}
	entry := models.AuditEntry{
		ID:         uuid.NewString(),
		Action:     input.Action,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Data:       data,
		CreatedAt:  u.s.now(),
	}
	if input.ActorAccountID != "" {
		if _, ok := u.account(input.ActorAccountID); !ok {
			return models.AuditEntry{}, apperr.ErrAccountNotFound
		}
		actor := input.ActorAccountID
		entry.ActorAccountID = &actor
	}
	u.audit = append(u.audit, entry)
	return entry, nil
}

func (r auditRepo) entries() []models.AuditEntry {
	u := r.u
	u.rlock()
	out := make([]models.AuditEntry, 0, len(u.s.audit)+len(u.audit))
	out = append(out, u.s.audit...)
	u.runlock()
	out = append(out, u.audit...)
	return out
}

func (r auditRepo) List(_ context.Context, limit, offset int) ([]models.AuditEntry, error) {
	all := r.entries()
	newest := make([]models.AuditEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		newest = append(newest, all[i])
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(newest) {
		return []models.AuditEntry{}, nil
	}
	end := len(newest)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return newest[offset:end], nil
}

func (r auditRepo) Count(context.Context) (int, error) {
	return len(r.entries()), nil
}

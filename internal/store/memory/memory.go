package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/models"
	"ledger/internal/store"
)

// Store keeps committed state behind mu. Each account also has a row lock that
// a unit of work holds from its first write or GetForUpdate until it ends.
type Store struct {
	mu            sync.RWMutex
	accounts      map[string]models.Account
	byNumber      map[string]string
	records       map[string][]models.Transaction
	recordIDs     map[string]struct{}
	credentials   map[string]models.Credential
	credByAccount map[string]string
	profiles      map[string]models.Profile
	audit         []models.AuditEntry

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	pendingMu      sync.Mutex
	pendingNumbers map[string]struct{}
	pendingEmails  map[string]struct{}

	now func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		accounts:       make(map[string]models.Account),
		byNumber:       make(map[string]string),
		records:        make(map[string][]models.Transaction),
		recordIDs:      make(map[string]struct{}),
		credentials:    make(map[string]models.Credential),
		credByAccount:  make(map[string]string),
		profiles:       make(map[string]models.Profile),
		locks:          make(map[string]chan struct{}),
		pendingNumbers: make(map[string]struct{}),
		pendingEmails:  make(map[string]struct{}),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) WithTx(ctx context.Context, fn func(store.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return apperr.Unavailable(err, "begin unit of work")
	}
	u := newUnit(s, false)
	defer func() {
		if r := recover(); r != nil {
			u.rollback()
			panic(r)
		}
	}()
	if err := fn(u); err != nil {
		u.rollback()
		return err
	}
	return u.commit()
}

// WithReadTx holds the read lock for the whole call so fn sees one committed
// snapshot. Writes are rejected.
func (s *Store) WithReadTx(ctx context.Context, fn func(store.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return apperr.Unavailable(err, "begin read unit of work")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newUnit(s, true))
}

func (s *Store) Accounts() store.AccountRepository         { return autoAccounts{s} }
func (s *Store) Transactions() store.TransactionRepository { return autoTransactions{s} }
func (s *Store) Credentials() store.CredentialRepository   { return autoCredentials{s} }
func (s *Store) Profiles() store.ProfileRepository         { return autoProfiles{s} }
func (s *Store) Audit() store.AuditRepository              { return autoAudit{s} }

func (s *Store) rowLock(id string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = make(chan struct{}, 1)
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) reserve(number, email string) error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if number != "" {
		if _, taken := s.byNumber[number]; taken {
			return apperr.ErrDuplicateAccountNumber
		}
		if _, taken := s.pendingNumbers[number]; taken {
			return apperr.ErrDuplicateAccountNumber
		}
		s.pendingNumbers[number] = struct{}{}
	}
	if email != "" {
		if _, taken := s.credentials[email]; taken {
			return apperr.ErrDuplicateEmail
		}
		if _, taken := s.pendingEmails[email]; taken {
			return apperr.ErrDuplicateEmail
		}
		s.pendingEmails[email] = struct{}{}
	}
	return nil
}

func (s *Store) release(numbers, emails []string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for _, number := range numbers {
		delete(s.pendingNumbers, number)
	}
	for _, email := range emails {
		delete(s.pendingEmails, email)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sortNewestFirst(records []models.Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}

func page(records []models.Transaction, limit, offset int) []models.Transaction {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []models.Transaction{}
	}
	end := len(records)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]models.Transaction, end-offset)
	copy(out, records[offset:end])
	return out
}

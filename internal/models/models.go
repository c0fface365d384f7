package models

import (
	"strings"
	"time"
)

type Account struct {
	ID            string    `db:"id" json:"id"`
	AccountNumber string    `db:"account_number" json:"account_number"`
	Balance       int64     `db:"balance" json:"balance"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type TransactionKind string

const (
	KindDeposit     TransactionKind = "deposit"
	KindWithdraw    TransactionKind = "withdraw"
	KindTransferOut TransactionKind = "transfer_out"
	KindTransferIn  TransactionKind = "transfer_in"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindTransferOut, KindTransferIn:
		return true
	}
	return false
}

// Transaction is one immutable log record. Amount is the signed delta applied to
// AccountID and BalanceAfter is that account's balance right after it.
type Transaction struct {
	ID                        string          `db:"transaction_id" json:"transaction_id"`
	AccountID                 string          `db:"account_id" json:"account_id"`
	Kind                      TransactionKind `db:"kind" json:"kind"`
	Amount                    int64           `db:"amount" json:"amount"`
	CounterpartyAccountNumber *string         `db:"counterparty_account_number" json:"counterparty_account_number,omitempty"`
	Description               string          `db:"description" json:"description"`
	BalanceAfter              int64           `db:"balance_after" json:"balance_after"`
	CreatedAt                 time.Time       `db:"created_at" json:"created_at"`
}

type Credential struct {
	AccountID    string    `db:"account_id" json:"account_id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Profile struct {
	AccountID string    `db:"account_id" json:"account_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

const (
	AuditAccountActivate   = "account.activate"
	AuditAccountDeactivate = "account.deactivate"

	AuditEntityAccount = "account"
)

// AuditEntry records an administrative action. Data holds a JSON object.
type AuditEntry struct {
	ID             string    `db:"id" json:"id"`
	ActorAccountID *string   `db:"actor_account_id" json:"actor_account_id"`
	Action         string    `db:"action" json:"action"`
	EntityType     string    `db:"entity_type" json:"entity_type"`
	EntityID       string    `db:"entity_id" json:"entity_id"`
	Data           string    `db:"data" json:"data"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

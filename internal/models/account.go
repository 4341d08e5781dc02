package models

import (
	"time"
)

// Account is a current account. Number is externally addressable and immutable;
// Active transitions true -> false only (no reactivation).
type Account struct {
	ID           string    `json:"id" db:"id"`
	Number       int64     `json:"number" db:"number"`
	Holder       string    `json:"holder" db:"holder"`
	Active       bool      `json:"active" db:"active"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Salt         string    `json:"-" db:"salt"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Movement types. The ledger is append-only; balance is derived by summation.
const (
	MovementCredit = "CREDIT"
	MovementDebit  = "DEBIT"
)

type Movement struct {
	ID           string    `json:"id" db:"id"`
	AccountID    string    `json:"account_id" db:"account_id"`
	MovementType string    `json:"movement_type" db:"movement_type"` // CREDIT or DEBIT
	Amount       int64     `json:"amount" db:"amount"`               // in cents, always > 0
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IdempotencyRecord marks a request key as accepted. Its presence means the
// guarded operation already ran; a replay of the same key is a no-op.
type IdempotencyRecord struct {
	Key       string    `json:"key" db:"key"`
	Request   string    `json:"request,omitempty" db:"request"`
	Result    string    `json:"result,omitempty" db:"result"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

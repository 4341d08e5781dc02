package models

import (
	"time"
)

// TransferRecord is the committed outcome of a transfer saga. It is written
// only after both ledger legs succeed and is never mutated.
type TransferRecord struct {
	ID                string    `json:"id" db:"id"`
	OriginAccountID   string    `json:"origin_account_id" db:"origin_account_id"`
	DestinationNumber int64     `json:"destination_number" db:"destination_number"`
	Amount            int64     `json:"amount" db:"amount"` // in cents
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

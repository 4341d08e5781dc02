package database

import (
	"database/sql"
	"fmt"
)

// accountSchema is the state owned by the Account Service: accounts, the
// append-only movement ledger, and its own idempotency table. The idempotency
// primary key doubles as the serialization point for duplicate deliveries.
var accountSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		number BIGINT NOT NULL UNIQUE,
		holder TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		movement_type TEXT NOT NULL CHECK (movement_type IN ('CREDIT', 'DEBIT')),
		amount BIGINT NOT NULL CHECK (amount > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_account_id ON movements(account_id)`,
	`CREATE TABLE IF NOT EXISTS idempotency (
		key TEXT PRIMARY KEY,
		request TEXT,
		result TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// transferSchema is the state owned by the Transfer Service. Idempotency is
// local to the operation it guards, so this service keeps its own table.
var transferSchema = []string{
	`CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		origin_account_id TEXT NOT NULL,
		destination_number BIGINT NOT NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency (
		key TEXT PRIMARY KEY,
		request TEXT,
		result TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// InitAccountSchema bootstraps the Account Service tables.
func InitAccountSchema(db *sql.DB) error {
	return execAll(db, accountSchema)
}

// InitTransferSchema bootstraps the Transfer Service tables.
func InitTransferSchema(db *sql.DB) error {
	return execAll(db, transferSchema)
}

func execAll(db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}

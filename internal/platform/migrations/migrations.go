// Package migrations applies the ServiceHub schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements are applied in order; each is idempotent.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		mobile           TEXT NOT NULL UNIQUE,
		password_hash    TEXT NOT NULL,
		wallet_balance   NUMERIC(12,2) NOT NULL DEFAULT 0,
		reserved_balance NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (reserved_balance >= 0),
		is_blocked       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		description   TEXT NOT NULL,
		default_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		fields        JSONB NOT NULL DEFAULT '[]',
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_service_prices (
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		service_id TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
		price      NUMERIC(12,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, service_id)
	)`,
	`CREATE TABLE IF NOT EXISTS service_requests (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		user_name     TEXT NOT NULL,
		user_mobile   TEXT NOT NULL,
		service_id    TEXT NOT NULL,
		service_name  TEXT NOT NULL,
		service_price NUMERIC(12,2) NOT NULL,
		field_data    JSONB NOT NULL DEFAULT '{}',
		status        TEXT NOT NULL,
		admin_message TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS service_requests_user_idx ON service_requests (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS payment_history (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		user_name        TEXT NOT NULL,
		user_mobile      TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount           NUMERIC(12,2) NOT NULL,
		description      TEXT NOT NULL,
		reference_id     TEXT NOT NULL DEFAULT '',
		balance_after    NUMERIC(12,2) NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS payment_history_user_idx ON payment_history (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS llr_tokens (
		id            TEXT PRIMARY KEY,
		token         TEXT NOT NULL UNIQUE,
		user_id       TEXT NOT NULL,
		user_name     TEXT NOT NULL,
		user_mobile   TEXT NOT NULL,
		service_id    TEXT NOT NULL,
		service_name  TEXT NOT NULL,
		service_price NUMERIC(12,2) NOT NULL,
		applno        TEXT NOT NULL,
		applname      TEXT NOT NULL DEFAULT '',
		dob           TEXT NOT NULL DEFAULT '',
		queue         TEXT NOT NULL DEFAULT '',
		rtocode       TEXT NOT NULL DEFAULT '',
		rtoname       TEXT NOT NULL DEFAULT '',
		statecode     TEXT NOT NULL DEFAULT '',
		statename     TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		remarks       TEXT NOT NULL DEFAULT '',
		refund_reason TEXT NOT NULL DEFAULT '',
		filename      TEXT NOT NULL DEFAULT '',
		pdf_data      TEXT NOT NULL DEFAULT '',
		last_checked  TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS llr_tokens_user_idx ON llr_tokens (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS llr_tokens_status_idx ON llr_tokens (status)`,
	`CREATE TABLE IF NOT EXISTS dl_pdfs (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		user_name     TEXT NOT NULL,
		user_mobile   TEXT NOT NULL,
		service_id    TEXT NOT NULL,
		service_name  TEXT NOT NULL,
		service_price NUMERIC(12,2) NOT NULL,
		dlno          TEXT NOT NULL,
		pdf_type      TEXT NOT NULL,
		blood_group   TEXT NOT NULL,
		address_type  TEXT NOT NULL,
		status        TEXT NOT NULL,
		name          TEXT NOT NULL DEFAULT '',
		dob           TEXT NOT NULL DEFAULT '',
		pdf_data      TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS dl_pdfs_user_idx ON dl_pdfs (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS dl_pdfs_dlno_idx ON dl_pdfs (dlno)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id             TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL UNIQUE,
		user_id        TEXT NOT NULL,
		user_name      TEXT NOT NULL,
		user_mobile    TEXT NOT NULL,
		amount         NUMERIC(12,2) NOT NULL,
		status         TEXT NOT NULL,
		qr_code_url    TEXT NOT NULL,
		upi_id         TEXT NOT NULL,
		payment_link   TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS payments_pending_idx ON payments (status, created_at)`,
}

// Count returns the number of statements Apply executes.
func Count() int { return len(statements) }

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

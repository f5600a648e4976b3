package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        username VARCHAR(255) NOT NULL,
        phone_number VARCHAR(32) NOT NULL UNIQUE,
        password_hash TEXT NOT NULL,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        is_admin BOOLEAN NOT NULL DEFAULT FALSE,
        is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS users_username_idx ON users (username)`,
	`CREATE TABLE IF NOT EXISTS otp_codes (
        id UUID PRIMARY KEY,
        phone_number VARCHAR(32) NOT NULL,
        code INTEGER NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        seq BIGSERIAL NOT NULL
    )`,
	`ALTER TABLE otp_codes ADD COLUMN IF NOT EXISTS seq BIGSERIAL NOT NULL`,
	`DROP INDEX IF EXISTS otp_codes_phone_created_idx`,
	`CREATE INDEX IF NOT EXISTS otp_codes_phone_created_seq_idx ON otp_codes (phone_number, created_at DESC, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS auth_tokens (
        key VARCHAR(40) PRIMARY KEY,
        user_id UUID NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS menus (
        id UUID PRIMARY KEY,
        owner_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
        title VARCHAR(225) NOT NULL,
        description VARCHAR(350) NOT NULL DEFAULT '',
        available BOOLEAN NOT NULL DEFAULT TRUE,
        qr_key TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS menus_owner_idx ON menus (owner_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
        id UUID PRIMARY KEY,
        menu_id UUID NOT NULL REFERENCES menus (id) ON DELETE CASCADE,
        item VARCHAR(225) NOT NULL,
        description VARCHAR(225) NOT NULL,
        price BIGINT NOT NULL CHECK (price >= 0),
        available BOOLEAN NOT NULL DEFAULT TRUE,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS menu_items_menu_idx ON menu_items (menu_id, created_at)`,
}

// Migrate creates the tables the service needs. Every statement is
// idempotent and the whole set runs in one transaction.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for i, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Token is an opaque bearer credential. A user holds at most one at a time.
type Token struct {
	Key       string
	UserID    string
	CreatedAt time.Time
}

// TokenRepository persists bearer tokens.
type TokenRepository interface {
	// GetOrCreate stores candidate unless the user already has a token, and
	// returns whichever token is live for the user afterwards.
	GetOrCreate(ctx context.Context, candidate Token) (Token, error)
	FindByKey(ctx context.Context, key string) (Token, error)
	DeleteByUser(ctx context.Context, userID string) (bool, error)
}

// PostgresTokenRepository stores tokens in auth_tokens (user_id is unique).
type PostgresTokenRepository struct {
	db *pgxpool.Pool
}

// NewPostgresTokenRepository builds a Postgres-backed token repository.
func NewPostgresTokenRepository(db *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

// GetOrCreate relies on the user_id unique constraint: a conflicting insert
// leaves the existing key untouched and RETURNING yields it.
func (r *PostgresTokenRepository) GetOrCreate(ctx context.Context, candidate Token) (Token, error) {
	userID, err := uuid.Parse(candidate.UserID)
	if err != nil {
		return Token{}, err
	}
	row := r.db.QueryRow(ctx, `INSERT INTO auth_tokens (key, user_id, created_at) VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING key, user_id, created_at`, candidate.Key, userID, candidate.CreatedAt.UTC())
	return scanToken(row)
}

// FindByKey resolves a presented bearer key.
func (r *PostgresTokenRepository) FindByKey(ctx context.Context, key string) (Token, error) {
	return scanToken(r.db.QueryRow(ctx, `SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1`, key))
}

// DeleteByUser removes the user's token and reports whether one existed.
func (r *PostgresTokenRepository) DeleteByUser(ctx context.Context, userID string) (bool, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanToken(row pgx.Row) (Token, error) {
	var (
		t         Token
		userID    uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&t.Key, &userID, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrTokenNotFound
		}
		return Token{}, err
	}
	t.UserID = userID.String()
	t.CreatedAt = createdAt.UTC()
	return t, nil
}

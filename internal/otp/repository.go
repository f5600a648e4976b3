package otp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCodeNotFound is returned when no live code exists for a phone number.
var ErrCodeNotFound = errors.New("otp code not found")

// Repository persists OTP codes.
type Repository interface {
	Create(ctx context.Context, code Code) error
	// Latest returns the newest code for phone created at or after notBefore.
	Latest(ctx context.Context, phone string, notBefore time.Time) (Code, error)
	DeleteByPhone(ctx context.Context, phone string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresRepository stores codes in the otp_codes table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed OTP repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a code row. The insert is committed before Create returns.
func (r *PostgresRepository) Create(ctx context.Context, code Code) error {
	codeID, err := uuid.Parse(code.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO otp_codes (id, phone_number, code, created_at) VALUES ($1, $2, $3, $4)`,
		codeID, code.Phone, code.Value, code.CreatedAt.UTC())
	return err
}

// Latest fetches the most recent live code for a phone number. Rows sharing
// a timestamp are ordered by insertion sequence.
func (r *PostgresRepository) Latest(ctx context.Context, phone string, notBefore time.Time) (Code, error) {
	row := r.db.QueryRow(ctx, `SELECT id, phone_number, code, created_at FROM otp_codes
        WHERE phone_number = $1 AND created_at >= $2
        ORDER BY created_at DESC, seq DESC LIMIT 1`, phone, notBefore.UTC())
	var (
		id        uuid.UUID
		createdAt time.Time
		code      Code
	)
	if err := row.Scan(&id, &code.Phone, &code.Value, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Code{}, ErrCodeNotFound
		}
		return Code{}, err
	}
	code.ID = id.String()
	code.CreatedAt = createdAt.UTC()
	return code, nil
}

// DeleteByPhone removes every code issued to a phone number.
func (r *PostgresRepository) DeleteByPhone(ctx context.Context, phone string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM otp_codes WHERE phone_number = $1`, phone)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// DeleteOlderThan removes codes created strictly before cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM otp_codes WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

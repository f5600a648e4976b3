package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/qr-menu/qr_menu/internal/metrics"
	"github.com/qr-menu/qr_menu/internal/notification"
)

// ErrCodeMismatch is returned when a submitted code differs from the live one.
var ErrCodeMismatch = errors.New("the code is incorrect")

// Service issues, verifies and expires one-time codes.
type Service struct {
	repo     Repository
	notifier notification.Notifier
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	generate func() (int, error)
}

// NewService builds an OTP service. Codes older than ttl never verify.
func NewService(repo Repository, notifier notification.Notifier, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		generate: GenerateCode,
	}
}

// GenerateCode draws a uniform code in [1000, 9999].
func GenerateCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + minCode, nil
}

// Issue creates a new code for phone and dispatches it. The row is persisted
// before the notifier is called so a delivered code is always verifiable.
// Earlier codes for the same number are left in place; Verify only honours the newest.
func (s *Service) Issue(ctx context.Context, phone, purpose string) (Code, error) {
	value, err := s.generate()
	if err != nil {
		return Code{}, fmt.Errorf("generate code: %w", err)
	}
	code := Code{
		ID:        uuid.New().String(),
		Phone:     phone,
		Value:     value,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, code); err != nil {
		return Code{}, fmt.Errorf("persist code: %w", err)
	}
	metrics.OTPIssued(purpose)

	if s.notifier != nil {
		err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindOTPCode,
			Destination: phone,
			Body:        strconv.Itoa(value),
		})
		if err != nil {
			return Code{}, fmt.Errorf("dispatch code: %w", err)
		}
	}
	return code, nil
}

// Verify compares submitted against the newest live code for phone. It returns
// ErrCodeNotFound when nothing live exists and ErrCodeMismatch on a wrong code.
// Verify never deletes; callers Consume after the flow completes.
func (s *Service) Verify(ctx context.Context, phone string, submitted int, purpose string) error {
	code, err := s.repo.Latest(ctx, phone, s.now().Add(-s.ttl))
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			metrics.OTPVerification(purpose, "missing")
		}
		return err
	}
	if code.Value != submitted {
		metrics.OTPVerification(purpose, "mismatch")
		return ErrCodeMismatch
	}
	metrics.OTPVerification(purpose, "ok")
	return nil
}

// Consume deletes every code issued to phone.
func (s *Service) Consume(ctx context.Context, phone string) error {
	if _, err := s.repo.DeleteByPhone(ctx, phone); err != nil {
		return fmt.Errorf("delete codes: %w", err)
	}
	return nil
}

// Reap deletes codes whose age exceeds the TTL and reports how many went.
func (s *Service) Reap(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteOlderThan(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	metrics.OTPReaped(n)
	return n, nil
}

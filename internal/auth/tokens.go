package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/qr-menu/qr_menu/internal/identity"
)

const tokenBytes = 20

// TokenService issues, resolves and revokes bearer tokens.
type TokenService struct {
	repo  TokenRepository
	users *identity.Service
	now   func() time.Time
}

// NewTokenService builds a token issuer.
func NewTokenService(repo TokenRepository, users *identity.Service) *TokenService {
	return &TokenService{repo: repo, users: users, now: time.Now}
}

// Issue returns the user's live token, minting one only if none exists.
func (s *TokenService) Issue(ctx context.Context, userID string) (Token, error) {
	key, err := newKey()
	if err != nil {
		return Token{}, fmt.Errorf("generate token: %w", err)
	}
	return s.repo.GetOrCreate(ctx, Token{Key: key, UserID: userID, CreatedAt: s.now().UTC()})
}

// Resolve maps a presented key to its active user.
func (s *TokenService) Resolve(ctx context.Context, key string) (identity.User, error) {
	if key == "" {
		return identity.User{}, ErrTokenNotFound
	}
	token, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return identity.User{}, err
	}
	user, err := s.users.Get(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return identity.User{}, ErrTokenNotFound
		}
		return identity.User{}, err
	}
	if !user.IsActive {
		return identity.User{}, ErrTokenNotFound
	}
	return user, nil
}

// Revoke destroys the user's token. ErrTokenNotFound means there was none.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	deleted, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

func newKey() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package auth

import (
	"errors"

	"github.com/qr-menu/qr_menu/internal/identity"
)

var (
	// ErrSessionExpired means the pending flow (or its code) is gone and the
	// client must restart from the first step.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidCode means the submitted code does not match; the flow stays
	// pending so the client may retry.
	ErrInvalidCode = errors.New("the code is incorrect")
	// ErrNotRegistered means no active user owns the phone number; the client
	// should be sent to registration.
	ErrNotRegistered = errors.New("user not signup")
	// ErrTokenNotFound means the presented or requested token does not exist.
	ErrTokenNotFound = errors.New("token not found")
	// ErrInvalidCredentials is the single failure of password login.
	ErrInvalidCredentials = identity.ErrInvalidCredentials
)

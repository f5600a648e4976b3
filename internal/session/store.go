// Package session keeps the transient state of two-step authentication flows,
// keyed by a client-held session id.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrFlowNotFound is returned when no pending flow of the requested kind exists
// for a session id, either because it was never started or because it expired.
var ErrFlowNotFound = errors.New("pending flow not found")

// Kind tags a pending flow.
type Kind string

const (
	// KindRegistration is a signup waiting for its phone verification code.
	KindRegistration Kind = "registration"
	// KindOTPLogin is a code-based login waiting for its code.
	KindOTPLogin Kind = "otp_login"
)

// Flow is the payload of a pending flow. Registration flows carry the
// username and an already-hashed password; OTP login flows only the phone.
type Flow struct {
	Kind         Kind      `json:"kind"`
	Phone        string    `json:"phone_number"`
	Username     string    `json:"username,omitempty"`
	PasswordHash []byte    `json:"password_hash,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// Store holds pending flows. Each session id has at most one flow per kind.
type Store interface {
	Save(ctx context.Context, sessionID string, flow Flow, ttl time.Duration) error
	Load(ctx context.Context, sessionID string, kind Kind) (Flow, error)
	// Delete removes the flow together with its failure count.
	Delete(ctx context.Context, sessionID string, kind Kind) error
	// RecordFailure counts a rejected code against the flow and returns the
	// total so far. The count lives at most ttl.
	RecordFailure(ctx context.Context, sessionID string, kind Kind, ttl time.Duration) (int64, error)
}

// NewID mints a fresh session id.
func NewID() string {
	return uuid.NewString()
}

func key(sessionID string, kind Kind) string {
	return "flow:v1:" + string(kind) + ":" + sessionID
}

func failuresKey(sessionID string, kind Kind) string {
	return "flow:v1:failures:" + string(kind) + ":" + sessionID
}

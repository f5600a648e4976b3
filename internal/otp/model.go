package otp

import "time"

const (
	minCode = 1000
	maxCode = 9999
)

// Code is a one-time numeric credential bound to a phone number, not to a user.
// Several codes for one number may coexist; only the newest live one verifies.
type Code struct {
	ID        string
	Phone     string
	Value     int
	CreatedAt time.Time
}

package identity

import "time"

const (
	maxUsernameLength = 125
	maxPhoneLength    = 11
)

// User represents a registered menu owner. Phone is the login identifier and
// is unique among users; Username is a display name and may repeat.
type User struct {
	ID           string
	Username     string
	Phone        string
	PasswordHash []byte
	IsActive     bool
	IsAdmin      bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaff mirrors the admin flag for callers that only care about back-office access.
func (u User) IsStaff() bool {
	return u.IsAdmin
}

// NewUser is the data needed to persist a freshly verified registration.
// The password is already hashed by the time a user is created.
type NewUser struct {
	Username     string
	Phone        string
	PasswordHash []byte
}

// ProfileUpdate carries a partial account update. Nil fields are left untouched.
type ProfileUpdate struct {
	Username             *string
	Phone                *string
	Password             *string
	PasswordConfirmation *string
}

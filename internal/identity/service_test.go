package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qr-menu/qr_menu/internal/logging"
	"github.com/qr-menu/qr_menu/internal/validation"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryRepository(), logging.Discard())
}

func createUser(t *testing.T, svc *Service, username, phone, password string) User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user, err := svc.Create(context.Background(), NewUser{Username: username, Phone: phone, PasswordHash: hash})
	require.NoError(t, err)
	return user
}

func TestAuthenticateByUsernameAndPhone(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user := createUser(t, svc, "spongebob", "0123456789", "1234")

	byName, err := svc.Authenticate(ctx, "spongebob", "1234")
	require.NoError(t, err)
	require.Equal(t, user.ID, byName.ID)

	byPhone, err := svc.Authenticate(ctx, "0123456789", "1234")
	require.NoError(t, err)
	require.Equal(t, user.ID, byPhone.ID)
}

func TestAuthenticateFailuresLookIdentical(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	createUser(t, svc, "spongebob", "0123456789", "1234")

	_, unknownErr := svc.Authenticate(ctx, "patrick", "1234")
	_, wrongPassErr := svc.Authenticate(ctx, "spongebob", "4321")

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongPassErr, ErrInvalidCredentials)
	require.Equal(t, unknownErr.Error(), wrongPassErr.Error())
}

func TestAuthenticateUsernameTakesPriority(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	// The first user's username is the second user's phone number.
	named := createUser(t, svc, "0999999999", "0111111111", "name-pass")
	createUser(t, svc, "squidward", "0999999999", "phone-pass")

	got, err := svc.Authenticate(ctx, "0999999999", "name-pass")
	require.NoError(t, err)
	require.Equal(t, named.ID, got.ID)

	// No fallback to the phone match once the username matched.
	_, err = svc.Authenticate(ctx, "0999999999", "phone-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateRegistration(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	createUser(t, svc, "spongebob", "0123456789", "1234")

	err := svc.ValidateRegistration(ctx, "patrick", "0123456789", "1234", "1234")
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	require.Contains(t, verrs, "phone_number")

	err = svc.ValidateRegistration(ctx, "patrick", "0222222222", "1234", "9999")
	require.True(t, errors.As(err, &verrs))
	require.Contains(t, verrs, "non_field_errors")

	err = svc.ValidateRegistration(ctx, "", "", "", "")
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 4)

	require.NoError(t, svc.ValidateRegistration(ctx, "patrick", "0222222222", "1234", "1234"))
}

func TestUpdateProfileOwnership(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := createUser(t, svc, "spongebob", "0123456789", "1234")
	other := createUser(t, svc, "patrick", "0222222222", "1234")

	name := "sandy"
	_, err := svc.UpdateProfile(ctx, other.ID, owner.ID, ProfileUpdate{Username: &name})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateProfile(ctx, owner.ID, "missing", ProfileUpdate{Username: &name})
	require.ErrorIs(t, err, ErrUserNotFound)

	updated, err := svc.UpdateProfile(ctx, owner.ID, owner.ID, ProfileUpdate{Username: &name})
	require.NoError(t, err)
	require.Equal(t, "sandy", updated.Username)
	require.Equal(t, owner.Phone, updated.Phone)
}

func TestUpdateProfilePasswordAndPhoneConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := createUser(t, svc, "spongebob", "0123456789", "1234")
	createUser(t, svc, "patrick", "0222222222", "1234")

	phone := "0222222222"
	_, err := svc.UpdateProfile(ctx, owner.ID, owner.ID, ProfileUpdate{Phone: &phone})
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	require.Contains(t, verrs, "phone_number")

	pass := "krabby"
	_, err = svc.UpdateProfile(ctx, owner.ID, owner.ID, ProfileUpdate{Password: &pass, PasswordConfirmation: &pass})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "spongebob", "krabby")
	require.NoError(t, err)
}

func TestEnsureSuperuserIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	admin, created, err := svc.EnsureSuperuser(ctx, "admin", "0900000000", "secret")
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, admin.IsAdmin)
	require.True(t, admin.IsSuperuser)
	require.True(t, admin.IsStaff())

	again, created, err := svc.EnsureSuperuser(ctx, "admin", "0900000000", "secret")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, admin.ID, again.ID)
}

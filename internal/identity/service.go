package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/qr-menu/qr_menu/internal/validation"
)

var (
	// ErrInvalidCredentials is returned for any failed password login. It does not
	// reveal whether the identifier or the password was wrong.
	ErrInvalidCredentials = errors.New("username or password is incorrect")
	// ErrForbidden is returned when a user tries to change someone else's account.
	ErrForbidden = errors.New("user can only change their own profile")
)

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// Service manages identity lifecycle.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// ValidateRegistration checks the fields of a signup request, including whether
// the phone number already belongs to an active user.
func (s *Service) ValidateRegistration(ctx context.Context, username, phone, password, confirmation string) error {
	errs := validation.Errors{}
	if errs.Required("username", username) {
		errs.MaxLength("username", username, maxUsernameLength)
	}
	if errs.Required("phone_number", phone) {
		validatePhone(errs, phone)
	}
	errs.Required("password", password)
	errs.Required("password_confirmation", confirmation)
	if password != "" && confirmation != "" && password != confirmation {
		errs.Add("non_field_errors", "passwords must match")
	}
	if _, ok := errs["phone_number"]; !ok && phone != "" {
		taken, err := s.PhoneRegistered(ctx, phone)
		if err != nil {
			return err
		}
		if taken {
			errs.Add("phone_number", ErrPhoneTaken.Error()+".")
		}
	}
	return errs.Err()
}

// PhoneRegistered reports whether an active user owns the phone number.
func (s *Service) PhoneRegistered(ctx context.Context, phone string) (bool, error) {
	_, err := s.repo.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUserNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup phone: %w", err)
	}
}

// Create persists a verified registration as an active, non-admin user.
func (s *Service) Create(ctx context.Context, input NewUser) (User, error) {
	if strings.TrimSpace(input.Username) == "" {
		return User{}, errors.New("user name is required")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return User{}, errors.New("phone number is required")
	}
	now := s.now().UTC()
	user := User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	s.logger.Info("identity.user_created", slog.String("user_id", user.ID))
	return user, nil
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByPhone fetches the active user owning a phone number.
func (s *Service) GetByPhone(ctx context.Context, phone string) (User, error) {
	return s.repo.FindByPhone(ctx, phone)
}

// Authenticate resolves identifier as a username first and only then as a
// phone number; the first match is the only candidate. A bcrypt comparison runs
// even when nothing matched so both failure paths cost the same.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (User, error) {
	user, err := s.lookupIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return User{}, err
		}
		_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) lookupIdentifier(ctx context.Context, identifier string) (User, error) {
	user, err := s.repo.FindByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	return s.repo.FindByPhone(ctx, identifier)
}

// UpdateProfile applies a partial update to targetID on behalf of actingID.
// Unknown targets report ErrUserNotFound before the ownership check runs.
func (s *Service) UpdateProfile(ctx context.Context, actingID, targetID string, update ProfileUpdate) (User, error) {
	user, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	if user.ID != actingID {
		return User{}, ErrForbidden
	}

	errs := validation.Errors{}
	if update.Username != nil && errs.Required("username", *update.Username) {
		errs.MaxLength("username", *update.Username, maxUsernameLength)
	}
	if update.Phone != nil && errs.Required("phone_number", *update.Phone) {
		validatePhone(errs, *update.Phone)
	}
	if update.Password != nil {
		errs.Required("password", *update.Password)
		if update.PasswordConfirmation != nil && *update.Password != *update.PasswordConfirmation {
			errs.Add("non_field_errors", "passwords must match")
		}
	}
	if err := errs.Err(); err != nil {
		return User{}, err
	}

	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.Password != nil {
		hash, err := HashPassword(*update.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, ErrPhoneTaken) {
			return User{}, validation.Errors{"phone_number": {ErrPhoneTaken.Error() + "."}}
		}
		return User{}, err
	}
	return user, nil
}

// EnsureSuperuser creates an active admin + superuser account for phone unless
// one already exists. It reports whether a user was created.
func (s *Service) EnsureSuperuser(ctx context.Context, username, phone, password string) (User, bool, error) {
	if strings.TrimSpace(phone) == "" || password == "" {
		return User{}, false, errors.New("superuser bootstrap requires phone and password")
	}
	if existing, err := s.repo.FindByPhone(ctx, phone); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return User{}, false, fmt.Errorf("bootstrap hash password: %w", err)
	}
	user, err := s.Create(ctx, NewUser{Username: username, Phone: phone, PasswordHash: hash})
	if err != nil {
		return User{}, false, fmt.Errorf("bootstrap create user: %w", err)
	}
	user.IsAdmin = true
	user.IsSuperuser = true
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, false, fmt.Errorf("bootstrap promote user: %w", err)
	}
	return user, true, nil
}

func validatePhone(errs validation.Errors, phone string) {
	if !errs.MaxLength("phone_number", phone, maxPhoneLength) {
		return
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			errs.Add("phone_number", "Enter a valid phone number.")
			return
		}
	}
}

func placeholderHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcrypt.DefaultCost)
	})
	return dummyHash
}

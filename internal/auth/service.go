package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qr-menu/qr_menu/internal/identity"
	"github.com/qr-menu/qr_menu/internal/metrics"
	"github.com/qr-menu/qr_menu/internal/otp"
	"github.com/qr-menu/qr_menu/internal/session"
	"github.com/qr-menu/qr_menu/internal/validation"
)

const (
	purposeRegistration = "registration"
	purposeLogin        = "login"

	// MaxCodeAttempts is how many wrong codes a pending flow tolerates before
	// its codes are burned and the client must start over.
	MaxCodeAttempts = 5
)

// Registration is a signup request awaiting phone verification.
type Registration struct {
	Username             string
	Phone                string
	Password             string
	PasswordConfirmation string
}

// Service drives the two-step registration and code login flows, password
// login and logout.
type Service struct {
	users   *identity.Service
	codes   *otp.Service
	flows   session.Store
	tokens  *TokenService
	flowTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the authentication flows.
func NewService(users *identity.Service, codes *otp.Service, flows session.Store, tokens *TokenService, flowTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:   users,
		codes:   codes,
		flows:   flows,
		tokens:  tokens,
		flowTTL: flowTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// Tokens exposes the issuer so middleware can resolve bearer keys.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// SubmitRegistration validates the signup, parks it under sessionID and sends
// a verification code. Nothing is written to the user table yet.
func (s *Service) SubmitRegistration(ctx context.Context, sessionID string, reg Registration) error {
	if err := s.users.ValidateRegistration(ctx, reg.Username, reg.Phone, reg.Password, reg.PasswordConfirmation); err != nil {
		return err
	}
	hash, err := identity.HashPassword(reg.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	flow := session.Flow{
		Kind:         session.KindRegistration,
		Phone:        reg.Phone,
		Username:     reg.Username,
		PasswordHash: hash,
		StartedAt:    s.now().UTC(),
	}
	if err := s.flows.Save(ctx, sessionID, flow, s.flowTTL); err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	if _, err := s.codes.Issue(ctx, reg.Phone, purposeRegistration); err != nil {
		return err
	}
	s.logger.Info("auth.registration_submitted", slog.String("session_id", sessionID))
	return nil
}

// VerifyRegistration completes a pending signup. A wrong code keeps the flow
// so the client may retry, up to MaxCodeAttempts; a missing flow or code
// means it must start over.
func (s *Service) VerifyRegistration(ctx context.Context, sessionID string, code int) (Token, error) {
	flow, err := s.loadFlow(ctx, sessionID, session.KindRegistration)
	if err != nil {
		return Token{}, err
	}
	if err := s.verifyCode(ctx, sessionID, flow, code, purposeRegistration); err != nil {
		return Token{}, err
	}

	user, err := s.users.Create(ctx, identity.NewUser{
		Username:     flow.Username,
		Phone:        flow.Phone,
		PasswordHash: flow.PasswordHash,
	})
	if err != nil {
		if errors.Is(err, identity.ErrPhoneTaken) {
			// Someone registered the number between submit and verify.
			_ = s.flows.Delete(ctx, sessionID, session.KindRegistration)
			errs := validation.Errors{}
			errs.Add("phone_number", identity.ErrPhoneTaken.Error()+".")
			return Token{}, errs
		}
		return Token{}, err
	}
	token, err := s.finish(ctx, sessionID, session.KindRegistration, user)
	if err != nil {
		return Token{}, err
	}
	s.logger.Info("auth.registration_completed", slog.String("user_id", user.ID))
	return token, nil
}

// LoginPassword authenticates by username or phone number and returns the
// user's token. Every credential failure is ErrInvalidCredentials.
func (s *Service) LoginPassword(ctx context.Context, identifier, password string) (Token, error) {
	errs := validation.Errors{}
	errs.Required("identifier", identifier)
	errs.Required("password", password)
	if err := errs.Err(); err != nil {
		return Token{}, err
	}
	user, err := s.users.Authenticate(ctx, identifier, password)
	if err != nil {
		metrics.Login("password", false)
		return Token{}, err
	}
	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return Token{}, err
	}
	metrics.Login("password", true)
	return token, nil
}

// RequestLoginCode sends a code to a registered phone number and parks an
// OTP login flow under sessionID.
func (s *Service) RequestLoginCode(ctx context.Context, sessionID, phone string) error {
	phone = strings.TrimSpace(phone)
	errs := validation.Errors{}
	errs.Required("phone_number", phone)
	if err := errs.Err(); err != nil {
		return err
	}
	registered, err := s.users.PhoneRegistered(ctx, phone)
	if err != nil {
		return err
	}
	if !registered {
		return ErrNotRegistered
	}
	if _, err := s.codes.Issue(ctx, phone, purposeLogin); err != nil {
		return err
	}
	flow := session.Flow{Kind: session.KindOTPLogin, Phone: phone, StartedAt: s.now().UTC()}
	if err := s.flows.Save(ctx, sessionID, flow, s.flowTTL); err != nil {
		return fmt.Errorf("save login flow: %w", err)
	}
	return nil
}

// VerifyLoginCode completes a code login and returns the user's token.
func (s *Service) VerifyLoginCode(ctx context.Context, sessionID string, code int) (Token, error) {
	flow, err := s.loadFlow(ctx, sessionID, session.KindOTPLogin)
	if err != nil {
		return Token{}, err
	}
	if err := s.verifyCode(ctx, sessionID, flow, code, purposeLogin); err != nil {
		metrics.Login("otp", false)
		return Token{}, err
	}
	user, err := s.users.GetByPhone(ctx, flow.Phone)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			_ = s.flows.Delete(ctx, sessionID, session.KindOTPLogin)
			return Token{}, ErrNotRegistered
		}
		return Token{}, err
	}
	token, err := s.finish(ctx, sessionID, session.KindOTPLogin, user)
	if err != nil {
		return Token{}, err
	}
	metrics.Login("otp", true)
	return token, nil
}

// Logout revokes the caller's token. ErrTokenNotFound means there was none.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.Revoke(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("auth.logout", slog.String("user_id", userID))
	return nil
}

func (s *Service) loadFlow(ctx context.Context, sessionID string, kind session.Kind) (session.Flow, error) {
	if sessionID == "" {
		return session.Flow{}, ErrSessionExpired
	}
	flow, err := s.flows.Load(ctx, sessionID, kind)
	if err != nil {
		if errors.Is(err, session.ErrFlowNotFound) {
			return session.Flow{}, ErrSessionExpired
		}
		return session.Flow{}, err
	}
	return flow, nil
}

func (s *Service) verifyCode(ctx context.Context, sessionID string, flow session.Flow, code int, purpose string) error {
	err := s.codes.Verify(ctx, flow.Phone, code, purpose)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, otp.ErrCodeNotFound):
		return ErrSessionExpired
	case errors.Is(err, otp.ErrCodeMismatch):
		return s.codeRejected(ctx, sessionID, flow)
	default:
		return err
	}
}

// codeRejected counts a wrong code against the flow. Once the flow runs out
// of attempts its codes are consumed and the flow is dropped.
func (s *Service) codeRejected(ctx context.Context, sessionID string, flow session.Flow) error {
	failures, err := s.flows.RecordFailure(ctx, sessionID, flow.Kind, s.flowTTL)
	if err != nil {
		return fmt.Errorf("count code failure: %w", err)
	}
	if failures < MaxCodeAttempts {
		return ErrInvalidCode
	}
	if err := s.codes.Consume(ctx, flow.Phone); err != nil {
		return err
	}
	if err := s.flows.Delete(ctx, sessionID, flow.Kind); err != nil {
		s.logger.Warn("auth.flow_cleanup_failed", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	s.logger.Warn("auth.code_attempts_exhausted",
		slog.String("session_id", sessionID),
		slog.String("flow", string(flow.Kind)),
	)
	return ErrSessionExpired
}

// finish consumes the phone's codes, clears the flow and issues the token.
func (s *Service) finish(ctx context.Context, sessionID string, kind session.Kind, user identity.User) (Token, error) {
	if err := s.codes.Consume(ctx, user.Phone); err != nil {
		return Token{}, err
	}
	if err := s.flows.Delete(ctx, sessionID, kind); err != nil {
		s.logger.Warn("auth.flow_cleanup_failed", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	return s.tokens.Issue(ctx, user.ID)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/notes-api/internal/logging"
	"github.com/jsvoboda/notes-api/internal/user"
)

var (
	ErrNameRequired        = errors.New("name, dob and email are required")
	ErrInvalidEmailFormat  = errors.New("invalid email format")
	ErrUserAlreadyExists   = errors.New("user already exists, please login instead")
	ErrUserNotFound        = errors.New("user not found, please signup first")
	ErrInvalidOTP          = errors.New("invalid or expired otp")
	ErrOTPDelivery         = errors.New("failed to send otp")
	ErrRefreshNotFound     = errors.New("refresh token does not match any session")
	ErrRefreshInvalid      = errors.New("invalid or expired refresh token")
	ErrGoogleEmailUnproven = errors.New("email not verified with google")
)

// emailPattern is intentionally loose: one local part, one domain, one tld.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository is the persistence surface the auth flow needs.
// Implemented by user.Repository.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmailAndAuthType(ctx context.Context, email, authType string) (*user.User, error)
	GetByRefreshToken(ctx context.Context, token string) (*user.User, error)
	SetOTP(ctx context.Context, userID uuid.UUID, otp string, expiresAt time.Time) error
	UpdateUnverified(ctx context.Context, userID uuid.UUID, name, dob, otp string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, userID uuid.UUID, refreshToken string) error
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendOTPEmail(ctx context.Context, toEmail, otp string) error
}

// TokenPair bundles the two credentials minted on a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service handles authentication business logic
type Service struct {
	userRepo             UserRepository
	accessTokens         TokenService
	refreshTokens        TokenService
	emailService         EmailService
	logger               *logging.Logger
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
	now                  func() time.Time
}

func NewService(
	userRepo UserRepository,
	accessTokens TokenService,
	refreshTokens TokenService,
	emailService EmailService,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	refreshTokenDuration time.Duration,
) *Service {
	return &Service{
		userRepo:             userRepo,
		accessTokens:         accessTokens,
		refreshTokens:        refreshTokens,
		emailService:         emailService,
		logger:               logger,
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
		now:                  time.Now,
	}
}

// Signup starts or restarts email registration. A verified user with the
// same email is rejected; an unverified one gets its name/dob refreshed
// and a new OTP, so repeated signups stay idempotent.
func (s *Service) Signup(ctx context.Context, name, dob, email string) error {
	if name == "" || dob == "" || email == "" {
		return ErrNameRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmailFormat
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("failed to get user: %w", err)
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(OTPTTL)

	switch {
	case existing == nil:
		_, err = s.userRepo.Create(ctx, &user.User{
			Name:         name,
			DOB:          dob,
			Email:        email,
			AuthType:     user.AuthTypeEmail,
			OTP:          &otp,
			OTPExpiresAt: &expiresAt,
		})
		if err != nil {
			if errors.Is(err, user.ErrDuplicateEmail) {
				// Lost a race with a concurrent signup for the same email.
				return ErrUserAlreadyExists
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
	case existing.Verified:
		return ErrUserAlreadyExists
	default:
		if err := s.userRepo.UpdateUnverified(ctx, existing.ID, name, dob, otp, expiresAt); err != nil {
			return fmt.Errorf("failed to update unverified user: %w", err)
		}
	}

	// Synchronous dispatch: a failure is surfaced to the caller, but the
	// persisted OTP stays valid until its natural expiry.
	if err := s.emailService.SendOTPEmail(ctx, email, otp); err != nil {
		s.logger.Error("failed to send signup otp", "email", email, "error", err)
		return fmt.Errorf("%w: %v", ErrOTPDelivery, err)
	}

	return nil
}

// Signin reissues an OTP for an existing verified user.
func (s *Service) Signin(ctx context.Context, email string) error {
	if email == "" {
		return ErrNameRequired
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	// Unverified accounts must finish signup first; no OTP is sent.
	if !existing.Verified {
		return ErrUserNotFound
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}

	if err := s.userRepo.SetOTP(ctx, existing.ID, otp, s.now().Add(OTPTTL)); err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}

	if err := s.emailService.SendOTPEmail(ctx, email, otp); err != nil {
		s.logger.Error("failed to send signin otp", "email", email, "error", err)
		return fmt.Errorf("%w: %v", ErrOTPDelivery, err)
	}

	return nil
}

// VerifyOTP checks the submitted code against the stored one and, on
// success, marks the user verified, clears the OTP fields, and mints a
// fresh token pair whose refresh half is persisted on the user.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (*user.User, *TokenPair, error) {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, ErrInvalidOTP
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Exact string equality; expiry strictly before now means expired.
	if existing.OTP == nil || *existing.OTP != otp ||
		existing.OTPExpiresAt == nil || existing.OTPExpiresAt.Before(s.now()) {
		return nil, nil, ErrInvalidOTP
	}

	tokens, err := s.mintTokens(existing.ID, existing.Email, existing.AuthType)
	if err != nil {
		return nil, nil, err
	}

	if err := s.userRepo.MarkVerified(ctx, existing.ID, tokens.RefreshToken); err != nil {
		return nil, nil, fmt.Errorf("failed to mark user as verified: %w", err)
	}

	existing.Verified = true
	existing.OTP = nil
	existing.OTPExpiresAt = nil

	return existing, tokens, nil
}

// Refresh validates the presented refresh token and mints a new access
// token. The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	existing, err := s.userRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrRefreshNotFound
		}
		return "", fmt.Errorf("failed to get user by refresh token: %w", err)
	}

	// Independent signature/expiry check against the refresh secret.
	if _, err := s.refreshTokens.VerifyToken(refreshToken); err != nil {
		return "", ErrRefreshInvalid
	}

	accessToken, err := s.accessTokens.CreateToken(existing.ID, existing.Email, existing.AuthType, s.accessTokenDuration)
	if err != nil {
		return "", fmt.Errorf("failed to create access token: %w", err)
	}

	return accessToken, nil
}

// Logout clears the stored refresh token. Idempotent: logging out without
// an active session succeeds.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// Me returns the user for an authenticated id.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GoogleIdentity is the verified claim set extracted from a Google ID token.
type GoogleIdentity struct {
	Email         string
	Name          string
	GoogleID      string
	EmailVerified bool
}

// LoginWithGoogle looks up or provisions a federated user for a verified
// Google identity and mints a token pair. Google users are verified by
// construction; there is no OTP step.
func (s *Service) LoginWithGoogle(ctx context.Context, identity *GoogleIdentity) (*user.User, *TokenPair, error) {
	if !identity.EmailVerified {
		return nil, nil, ErrGoogleEmailUnproven
	}

	existing, err := s.userRepo.GetByEmailAndAuthType(ctx, identity.Email, user.AuthTypeGoogle)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to get user: %w", err)
		}

		googleID := identity.GoogleID
		existing, err = s.userRepo.Create(ctx, &user.User{
			Name:     identity.Name,
			Email:    identity.Email,
			AuthType: user.AuthTypeGoogle,
			GoogleID: &googleID,
			Verified: true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create google user: %w", err)
		}
	}

	tokens, err := s.mintTokens(existing.ID, existing.Email, existing.AuthType)
	if err != nil {
		return nil, nil, err
	}

	if err := s.userRepo.SetRefreshToken(ctx, existing.ID, tokens.RefreshToken); err != nil {
		return nil, nil, fmt.Errorf("failed to set refresh token: %w", err)
	}

	return existing, tokens, nil
}

func (s *Service) mintTokens(userID uuid.UUID, email, authType string) (*TokenPair, error) {
	accessToken, err := s.accessTokens.CreateToken(userID, email, authType, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.refreshTokens.CreateToken(userID, email, authType, s.refreshTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

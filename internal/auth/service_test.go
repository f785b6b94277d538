package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsvoboda/notes-api/internal/logging"
	"github.com/jsvoboda/notes-api/internal/user"
)

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	users map[uuid.UUID]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*user.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) (*user.User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, user.ErrDuplicateEmail
		}
	}
	clone := *u
	clone.ID = uuid.New()
	r.users[clone.ID] = &clone
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmailAndAuthType(_ context.Context, email, authType string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email && u.AuthType == authType {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *fakeUserRepo) GetByRefreshToken(_ context.Context, token string) (*user.User, error) {
	for _, u := range r.users {
		if u.RefreshToken != nil && *u.RefreshToken == token {
			clone := *u
			return &clone, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *fakeUserRepo) SetOTP(_ context.Context, userID uuid.UUID, otp string, expiresAt time.Time) error {
	u, ok := r.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.OTP = &otp
	u.OTPExpiresAt = &expiresAt
	return nil
}

func (r *fakeUserRepo) UpdateUnverified(_ context.Context, userID uuid.UUID, name, dob, otp string, expiresAt time.Time) error {
	u, ok := r.users[userID]
	if !ok || u.Verified {
		return user.ErrNotFound
	}
	u.Name = name
	u.DOB = dob
	u.OTP = &otp
	u.OTPExpiresAt = &expiresAt
	return nil
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, userID uuid.UUID, refreshToken string) error {
	u, ok := r.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.Verified = true
	u.OTP = nil
	u.OTPExpiresAt = nil
	u.RefreshToken = &refreshToken
	return nil
}

func (r *fakeUserRepo) SetRefreshToken(_ context.Context, userID uuid.UUID, token string) error {
	u, ok := r.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.RefreshToken = &token
	return nil
}

func (r *fakeUserRepo) ClearRefreshToken(_ context.Context, userID uuid.UUID) error {
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	u.RefreshToken = nil
	return nil
}

// fakeEmailService records sent OTPs and can be told to fail.
type fakeEmailService struct {
	sent map[string]string // email -> last otp
	fail bool
}

func newFakeEmailService() *fakeEmailService {
	return &fakeEmailService{sent: make(map[string]string)}
}

func (s *fakeEmailService) SendOTPEmail(_ context.Context, toEmail, otp string) error {
	if s.fail {
		return errors.New("smtp unreachable")
	}
	s.sent[toEmail] = otp
	return nil
}

type serviceFixture struct {
	svc     *Service
	repo    *fakeUserRepo
	email   *fakeEmailService
	access  *JWTService
	refresh *JWTService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	access, err := NewJWTService([]byte("access-secret"))
	require.NoError(t, err)
	refresh, err := NewJWTService([]byte("refresh-secret"))
	require.NoError(t, err)

	repo := newFakeUserRepo()
	email := newFakeEmailService()

	svc := NewService(
		repo,
		access,
		refresh,
		email,
		logging.NewLogger(true),
		15*time.Minute,
		7*24*time.Hour,
	)

	return &serviceFixture{svc: svc, repo: repo, email: email, access: access, refresh: refresh}
}

func TestSignup_CreatesUnverifiedUserWithOTP(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	err := f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com")
	require.NoError(t, err)

	stored, err := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)

	assert.False(t, stored.Verified)
	assert.Equal(t, user.AuthTypeEmail, stored.AuthType)
	require.NotNil(t, stored.OTP)
	assert.Equal(t, *stored.OTP, f.email.sent["alice@example.com"])
	require.NotNil(t, stored.OTPExpiresAt)
}

func TestSignup_RepeatForUnverifiedReissuesOTP(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	first, _ := f.repo.GetByEmail(ctx, "alice@example.com")

	require.NoError(t, f.svc.Signup(ctx, "Alicia", "1991-02-02", "alice@example.com"))
	second, _ := f.repo.GetByEmail(ctx, "alice@example.com")

	assert.Equal(t, first.ID, second.ID, "signup must not create a second row")
	assert.Equal(t, "Alicia", second.Name)
	assert.Equal(t, "1991-02-02", second.DOB)
	assert.Equal(t, *second.OTP, f.email.sent["alice@example.com"])
}

func TestSignup_VerifiedUserRejected(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	stored, _ := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, f.repo.MarkVerified(ctx, stored.ID, "rt"))

	err := f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestSignup_Validation(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Signup(ctx, "", "1990-01-01", "a@b.com"), ErrNameRequired)
	assert.ErrorIs(t, f.svc.Signup(ctx, "Alice", "", "a@b.com"), ErrNameRequired)
	assert.ErrorIs(t, f.svc.Signup(ctx, "Alice", "1990-01-01", ""), ErrNameRequired)
	assert.ErrorIs(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "not-an-email"), ErrInvalidEmailFormat)
	assert.ErrorIs(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "a b@c.com"), ErrInvalidEmailFormat)
}

func TestSignup_DeliveryFailureKeepsOTP(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	f.email.fail = true
	err := f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com")
	assert.ErrorIs(t, err, ErrOTPDelivery)

	// The persisted OTP survives the failed send and can still be verified.
	stored, err := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.OTP)

	_, tokens, err := f.svc.VerifyOTP(ctx, "alice@example.com", *stored.OTP)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
}

func TestSignin_UnknownOrUnverified(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Signin(ctx, "ghost@example.com"), ErrUserNotFound)

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	assert.ErrorIs(t, f.svc.Signin(ctx, "alice@example.com"), ErrUserNotFound,
		"unverified user must finish signup before signin")
}

func TestSignin_VerifiedGetsNewOTP(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	stored, _ := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, f.repo.MarkVerified(ctx, stored.ID, "rt"))

	require.NoError(t, f.svc.Signin(ctx, "alice@example.com"))

	stored, _ = f.repo.GetByEmail(ctx, "alice@example.com")
	require.NotNil(t, stored.OTP)
	assert.Equal(t, *stored.OTP, f.email.sent["alice@example.com"])
}

func TestVerifyOTP_Success(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	otp := f.email.sent["alice@example.com"]

	u, tokens, err := f.svc.VerifyOTP(ctx, "alice@example.com", otp)
	require.NoError(t, err)

	assert.True(t, u.Verified)
	assert.Nil(t, u.OTP)
	assert.Nil(t, u.OTPExpiresAt)

	// Access token verifies against the access secret only.
	claims, err := f.access.VerifyToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.UserID)
	_, err = f.refresh.VerifyToken(tokens.AccessToken)
	assert.Error(t, err)

	// The refresh token is mirrored on the stored user.
	stored, _ := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, tokens.RefreshToken, *stored.RefreshToken)
	assert.Nil(t, stored.OTP, "otp must be cleared on verification")
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))

	_, _, err := f.svc.VerifyOTP(ctx, "alice@example.com", "000000")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	_, _, err = f.svc.VerifyOTP(ctx, "ghost@example.com", "123456")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTP_ExpiryBoundary(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	base := time.Now()
	f.svc.now = func() time.Time { return base }

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	otp := f.email.sent["alice@example.com"]

	// Exactly at expiry the code is still accepted.
	f.svc.now = func() time.Time { return base.Add(OTPTTL) }
	_, _, err := f.svc.VerifyOTP(ctx, "alice@example.com", otp)
	assert.NoError(t, err)
}

func TestVerifyOTP_Expired(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	base := time.Now()
	f.svc.now = func() time.Time { return base }

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	otp := f.email.sent["alice@example.com"]

	f.svc.now = func() time.Time { return base.Add(OTPTTL + time.Second) }
	_, _, err := f.svc.VerifyOTP(ctx, "alice@example.com", otp)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestRefresh_MintsNewAccessToken(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	_, tokens, err := f.svc.VerifyOTP(ctx, "alice@example.com", f.email.sent["alice@example.com"])
	require.NoError(t, err)

	accessToken, err := f.svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := f.access.VerifyToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)

	// The stored refresh token is unchanged: no rotation.
	stored, _ := f.repo.GetByEmail(ctx, "alice@example.com")
	assert.Equal(t, tokens.RefreshToken, *stored.RefreshToken)
}

func TestRefresh_UnknownToken(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)

	_, err := f.svc.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrRefreshNotFound)
}

func TestRefresh_StoredButUnverifiableToken(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	stored, _ := f.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, f.repo.SetRefreshToken(ctx, stored.ID, "garbage-token"))

	_, err := f.svc.Refresh(ctx, "garbage-token")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	u, tokens, err := f.svc.VerifyOTP(ctx, "alice@example.com", f.email.sent["alice@example.com"])
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, u.ID))

	_, err = f.svc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshNotFound, "refresh must fail after logout")

	// A second logout, and a logout for an unknown user, both succeed.
	assert.NoError(t, f.svc.Logout(ctx, u.ID))
	assert.NoError(t, f.svc.Logout(ctx, uuid.New()))
}

func TestLoginWithGoogle_UnverifiedEmailRejected(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)

	_, _, err := f.svc.LoginWithGoogle(context.Background(), &GoogleIdentity{
		Email:         "carol@example.com",
		Name:          "Carol",
		GoogleID:      "g-123",
		EmailVerified: false,
	})
	assert.ErrorIs(t, err, ErrGoogleEmailUnproven)
}

func TestLoginWithGoogle_ProvisionsAndReuses(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	identity := &GoogleIdentity{
		Email:         "carol@example.com",
		Name:          "Carol",
		GoogleID:      "g-123",
		EmailVerified: true,
	}

	first, tokens, err := f.svc.LoginWithGoogle(ctx, identity)
	require.NoError(t, err)
	assert.True(t, first.Verified)
	assert.Equal(t, user.AuthTypeGoogle, first.AuthType)
	assert.NotEmpty(t, tokens.RefreshToken)

	second, _, err := f.svc.LoginWithGoogle(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second login must reuse the account")
	assert.Len(t, f.repo.users, 1)
}

func TestMe(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Signup(ctx, "Alice", "1990-01-01", "alice@example.com"))
	stored, _ := f.repo.GetByEmail(ctx, "alice@example.com")

	u, err := f.svc.Me(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)

	_, err = f.svc.Me(ctx, uuid.New())
	assert.ErrorIs(t, err, user.ErrNotFound)
}

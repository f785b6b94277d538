package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/jsvoboda/notes-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. OTP fields may be nil for federated users.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	dbUser := &database.User{
		Name:         u.Name,
		DOB:          u.DOB,
		Email:        u.Email,
		AuthType:     u.AuthType,
		GoogleID:     u.GoogleID,
		OTP:          u.OTP,
		OTPExpiresAt: u.OTPExpiresAt,
		Verified:     u.Verified,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmailAndAuthType retrieves a user by email scoped to an auth type.
// Used by the OAuth flow so a Google login never collides with a local
// email/OTP account of the same address.
func (r *Repository) GetByEmailAndAuthType(ctx context.Context, email, authType string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Where("auth_type = ?", authType).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email and auth type: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByRefreshToken retrieves the user whose stored refresh token equals
// the given value. An exact match is the session-renewal precondition.
func (r *Repository) GetByRefreshToken(ctx context.Context, token string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("refresh_token = ?", token).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by refresh token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// SetOTP overwrites the stored OTP and its expiry for a user.
func (r *Repository) SetOTP(ctx context.Context, userID uuid.UUID, otp string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("otp = ?", otp).
		Set("otp_expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}

	return checkRowsAffected(result)
}

// UpdateUnverified refreshes name, dob and OTP fields on a user that has
// not yet verified. Repeated signups stay idempotent: the guard on
// verified means a concurrent verification wins over a re-signup.
func (r *Repository) UpdateUnverified(ctx context.Context, userID uuid.UUID, name, dob, otp string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("name = ?", name).
		Set("dob = ?", dob).
		Set("otp = ?", otp).
		Set("otp_expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("verified = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update unverified user: %w", err)
	}

	return checkRowsAffected(result)
}

// MarkVerified marks the user verified, clears the OTP fields, and stores
// the freshly minted refresh token, all in a single statement.
func (r *Repository) MarkVerified(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("verified = ?", true).
		Set("otp = ?", nil).
		Set("otp_expires_at = ?", nil).
		Set("refresh_token = ?", refreshToken).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark user as verified: %w", err)
	}

	return checkRowsAffected(result)
}

// SetRefreshToken stores the current refresh token on the user.
func (r *Repository) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("refresh_token = ?", token).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}

	return checkRowsAffected(result)
}

// ClearRefreshToken removes the stored refresh token, invalidating any
// future refresh with the old value.
func (r *Repository) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("refresh_token = ?", nil).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	// Idempotent: clearing an absent token is not an error.
	return nil
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:           dbu.ID,
		Name:         dbu.Name,
		DOB:          dbu.DOB,
		Email:        dbu.Email,
		AuthType:     dbu.AuthType,
		GoogleID:     dbu.GoogleID,
		OTP:          dbu.OTP,
		OTPExpiresAt: dbu.OTPExpiresAt,
		RefreshToken: dbu.RefreshToken,
		Verified:     dbu.Verified,
		CreatedAt:    dbu.CreatedAt,
		UpdatedAt:    dbu.UpdatedAt,
	}
}

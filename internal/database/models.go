package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the database row for the users table. OTP fields and the
// refresh token are nullable: they are only present between issuance
// and consumption.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name         string     `bun:"name,notnull"`
	DOB          string     `bun:"dob"`
	Email        string     `bun:"email,notnull,unique:users_email_auth_type"`
	AuthType     string     `bun:"auth_type,notnull,default:'email',unique:users_email_auth_type"`
	GoogleID     *string    `bun:"google_id"`
	OTP          *string    `bun:"otp"`
	OTPExpiresAt *time.Time `bun:"otp_expires_at"`
	RefreshToken *string    `bun:"refresh_token"`
	Verified     bool       `bun:"verified,notnull,default:false"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Note is the database row for the notes table.
type Note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Title     string    `bun:"title,notnull"`
	Content   string    `bun:"content,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

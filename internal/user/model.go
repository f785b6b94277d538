package user

import (
	"time"

	"github.com/google/uuid"
)

// Auth types discriminate locally registered (email/OTP) users from
// federated (Google) ones.
const (
	AuthTypeEmail  = "email"
	AuthTypeGoogle = "google"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	DOB          string     `json:"dob,omitempty"`
	Email        string     `json:"email"`
	AuthType     string     `json:"auth_type"`
	GoogleID     *string    `json:"-"`
	OTP          *string    `json:"-"` // never serialized
	OTPExpiresAt *time.Time `json:"-"`
	RefreshToken *string    `json:"-"` // never serialized
	Verified     bool       `json:"verified"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

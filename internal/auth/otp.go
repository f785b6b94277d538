package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OTPTTL is how long an issued one-time passcode stays valid.
const OTPTTL = 5 * time.Minute

var otpRange = big.NewInt(900000)

// generateOTP returns a uniformly random 6-digit decimal code in
// [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

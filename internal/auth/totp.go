package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
)

// TOTPKey is a freshly generated second-factor secret.
type TOTPKey struct {
	Secret string
	URL    string
}

func GenerateTOTP(issuer, account string) (TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return TOTPKey{}, fmt.Errorf("generate totp: %w", err)
	}
	return TOTPKey{Secret: key.Secret(), URL: key.URL()}, nil
}

// ValidateTOTP accepts codes from the current 30s step and one step either side.
func ValidateTOTP(secret, code string) bool {
	_, ok := MatchTOTP(secret, code, time.Now())
	return ok
}

func validateTOTPAt(secret, code string, at time.Time) bool {
	_, ok := MatchTOTP(secret, code, at)
	return ok
}

// MatchTOTP reports the time step a code belongs to. Callers persist the
// step and reject any later code whose step is not strictly greater, so a
// code cannot be replayed inside the skew window.
func MatchTOTP(secret, code string, at time.Time) (int64, bool) {
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != 6 {
		return 0, false
	}
	current := at.UTC().Unix() / totpPeriod
	for step := current - totpSkew; step <= current+totpSkew; step++ {
		expected, err := totp.GenerateCodeCustom(secret, time.Unix(step*totpPeriod, 0).UTC(), totp.ValidateOpts{
			Period:    totpPeriod,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

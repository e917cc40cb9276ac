package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "user-1",
		Name: "Asha",
		Role: "user",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "user-1" || claims.Name != "Asha" || claims.Role != "user" || claims.JTI != "jti-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "user-1",
		Name: "Asha",
		Role: "user",
		JTI:  "jti-1",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	_, err = ParseToken(secret, issued)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issued, err := IssueToken([]byte("one"), Claims{Sub: "u", Name: "n", JTI: "j", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken([]byte("two"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsMissingJTI(t *testing.T) {
	issued, err := IssueToken([]byte("s"), Claims{Sub: "u", Name: "n", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken([]byte("s"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken([]byte("s"), "definitely-not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected stable hash")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(HashToken("abc")))
	}
}

func TestTOTPRoundTrip(t *testing.T) {
	key, err := GenerateTOTP("Nyay Sakhi", "asha@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTP() error = %v", err)
	}
	if !strings.HasPrefix(key.URL, "otpauth://totp/") {
		t.Fatalf("unexpected otpauth url %q", key.URL)
	}

	now := time.Now()
	code, err := totp.GenerateCode(key.Secret, now)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}
	if !validateTOTPAt(key.Secret, code, now) {
		t.Fatal("expected current code to validate")
	}
	if !validateTOTPAt(key.Secret, code, now.Add(30*time.Second)) {
		t.Fatal("expected one-step skew to validate")
	}
	if validateTOTPAt(key.Secret, code, now.Add(5*time.Minute)) {
		t.Fatal("expected stale code to fail")
	}
}

func TestValidateTOTPRejectsMalformed(t *testing.T) {
	if ValidateTOTP("", "123456") {
		t.Fatal("empty secret must fail")
	}
	if ValidateTOTP("JBSWY3DPEHPK3PXP", "12345") {
		t.Fatal("short code must fail")
	}
}

func TestMatchTOTPReportsStep(t *testing.T) {
	key, err := GenerateTOTP("Nyay Sakhi", "asha@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTP() error = %v", err)
	}
	at := time.Unix(1_700_000_010, 0)
	code, err := totp.GenerateCode(key.Secret, at)
	if err != nil {
		t.Fatalf("GenerateCode() error = %v", err)
	}
	want := at.Unix() / 30

	step, ok := MatchTOTP(key.Secret, code, at)
	if !ok || step != want {
		t.Fatalf("MatchTOTP() = %d, %v; want %d, true", step, ok, want)
	}
	step, ok = MatchTOTP(key.Secret, " "+code+" ", at.Add(30*time.Second))
	if !ok || step != want {
		t.Fatalf("MatchTOTP() one step later = %d, %v; want %d, true", step, ok, want)
	}
	if _, ok := MatchTOTP(key.Secret, code, at.Add(2*time.Minute)); ok {
		t.Fatal("expected code outside the skew window to fail")
	}
}

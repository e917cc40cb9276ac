// Package authpw provides email/password accounts with verification and
// password reset.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nyaysakhi/api/internal/auth"
	"nyaysakhi/api/internal/rbac"
	"nyaysakhi/api/internal/store"
	"nyaysakhi/api/internal/util"
)

const (
	MinPasswordLength = 8
	VerificationTTL   = 24 * time.Hour
	ResetTTL          = time.Hour
)

var (
	ErrMissingFields      = errors.New("email, password, and display name are required")
	ErrInvalidEmail       = errors.New("email address is invalid")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Service provides email/password authentication
type Service struct {
	store UserStore
	cost  int
	now   func() time.Time
}

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	VerifyUserEmail(ctx context.Context, token string) (string, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	CreatePasswordReset(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash string) (string, error)
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

type SignUpResponse struct {
	User                store.User
	VerificationToken   string
	RequiresEmailVerify bool
}

// SignUp creates an unverified account. Only user and lawyer roles can be
// self-assigned.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResponse, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.DisplayName)
	if email == "" || req.Password == "" || name == "" {
		return nil, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	expiresAt := s.now().Add(VerificationTTL)
	user := store.User{
		ID:                    util.NewID("usr"),
		DisplayName:           name,
		Email:                 email,
		PasswordHash:          string(hash),
		Role:                  string(signupRole(req.Role)),
		VerificationToken:     util.NewToken(),
		VerificationExpiresAt: &expiresAt,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &SignUpResponse{
		User:                user,
		VerificationToken:   user.VerificationToken,
		RequiresEmailVerify: true,
	}, nil
}

func signupRole(role string) rbac.Role {
	if rbac.Role(strings.ToLower(strings.TrimSpace(role))) == rbac.RoleLawyer {
		return rbac.RoleLawyer
	}
	return rbac.RoleUser
}

type SignInRequest struct {
	Email    string
	Password string
}

// SignInResponse carries the user plus any step still required before a
// session may be issued.
type SignInResponse struct {
	User              store.User
	RequiresVerify    bool
	RequiresTwoFactor bool
}

func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.DeactivatedAt != nil {
		return nil, ErrAccountDisabled
	}

	return &SignInResponse{
		User:              user,
		RequiresVerify:    !user.IsEmailVerified,
		RequiresTwoFactor: user.IsEmailVerified && user.TOTPEnabled,
	}, nil
}

// VerifyEmail consumes a verification token and returns the verified user id.
func (s *Service) VerifyEmail(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	userID, err := s.store.VerifyUserEmail(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("verify email: %w", err)
	}
	return userID, nil
}

// RequestPasswordReset returns a one-hour reset token and the account it
// belongs to. Unknown emails return an empty token and no error.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", store.User{}, nil
		}
		return "", store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.DeactivatedAt != nil {
		return "", store.User{}, nil
	}

	token := util.NewToken()
	if err := s.store.CreatePasswordReset(ctx, user.ID, auth.HashToken(token), s.now().Add(ResetTTL)); err != nil {
		return "", store.User{}, fmt.Errorf("create password reset: %w", err)
	}
	return token, user, nil
}

type ResetPasswordRequest struct {
	Token       string
	NewPassword string
}

// ResetPassword sets a new password using a single-use token and returns the
// user id so callers can revoke existing sessions.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	if strings.TrimSpace(req.Token) == "" {
		return "", ErrInvalidToken
	}
	if len(req.NewPassword) < MinPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.store.ConsumePasswordReset(ctx, auth.HashToken(strings.TrimSpace(req.Token)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("consume password reset: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	return userID, nil
}

// HashPassword is used by seeding and admin tooling.
func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package app

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nyaysakhi/api/internal/auth"
	"nyaysakhi/api/internal/authpw"
	"nyaysakhi/api/internal/rbac"
	"nyaysakhi/api/internal/store"
	"nyaysakhi/api/internal/util"
)

const (
	minRetentionDays = 30
	maxRetentionDays = 3650
	maxAuditLimit    = 200
)

type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type SignUpResult struct {
	UserID            string
	Role              string
	VerificationToken string
}

// SignInResult holds either a session or, for two-factor accounts, a
// challenge token to exchange with a TOTP code.
type SignInResult struct {
	Session          *Session
	ChallengeToken   string
	ChallengeExpires time.Time
}

type PrivacyInput struct {
	ShareDocumentsWithLawyers *bool `json:"shareDocumentsWithLawyers"`
	AllowLawyerContact        *bool `json:"allowLawyerContact"`
	ShowInDirectory           *bool `json:"showInDirectory"`
	MarketingEmails           *bool `json:"marketingEmails"`
	DataRetentionDays         *int  `json:"dataRetentionDays"`
}

func (s *Service) link(path, token string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	return base + path + "?token=" + url.QueryEscape(token)
}

func (s *Service) SignUp(ctx context.Context, input SignUpInput, meta ClientMeta) (SignUpResult, error) {
	resp, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
		Role:        input.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, authpw.ErrEmailExists):
			return SignUpResult{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail), errors.Is(err, authpw.ErrWeakPassword):
			return SignUpResult{}, domainError(http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		}
		return SignUpResult{}, err
	}

	user := resp.User
	s.audit(ctx, user.ID, "auth.signup", "user", user.ID, meta, map[string]any{"role": user.Role})
	verifyURL := s.link("/verify-email", resp.VerificationToken)
	s.sendMail("verification", func(m mailer) error {
		return m.SendVerificationEmail(user.Email, user.DisplayName, verifyURL)
	})
	return SignUpResult{UserID: user.ID, Role: user.Role, VerificationToken: resp.VerificationToken}, nil
}

func (s *Service) SignIn(ctx context.Context, emailAddress, password string, meta ClientMeta) (SignInResult, error) {
	resp, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: emailAddress, Password: password})
	if err != nil {
		switch {
		case errors.Is(err, authpw.ErrInvalidCredentials):
			s.audit(ctx, "", "auth.signin_failed", "user", "", meta, map[string]any{"email": strings.ToLower(strings.TrimSpace(emailAddress))})
			return SignInResult{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		case errors.Is(err, authpw.ErrAccountDisabled):
			return SignInResult{}, domainError(http.StatusForbidden, "ACCOUNT_DISABLED", "This account has been deactivated", nil)
		}
		return SignInResult{}, err
	}
	if resp.RequiresVerify {
		return SignInResult{}, domainError(http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil)
	}

	if resp.RequiresTwoFactor {
		expires := s.now().Add(challengeTTL)
		token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
			Sub:  resp.User.ID,
			Name: resp.User.DisplayName,
			Role: challengeRole,
			JTI:  util.NewID("chl"),
			Exp:  expires.Unix(),
		})
		if err != nil {
			return SignInResult{}, err
		}
		return SignInResult{ChallengeToken: token, ChallengeExpires: expires}, nil
	}

	session, err := s.issueSession(ctx, resp.User, meta)
	if err != nil {
		return SignInResult{}, err
	}
	s.audit(ctx, resp.User.ID, "auth.signin", "user", resp.User.ID, meta, nil)
	return SignInResult{Session: &session}, nil
}

// VerifyTwoFactor completes a two-factor sign-in. A challenge can be used once.
func (s *Service) VerifyTwoFactor(ctx context.Context, challengeToken, code string, meta ClientMeta) (Session, error) {
	invalid := domainError(http.StatusUnauthorized, "INVALID_CHALLENGE", "Sign-in challenge is invalid or expired", nil)
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), strings.TrimSpace(challengeToken))
	if err != nil || claims.Role != challengeRole {
		return Session{}, invalid
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, invalid
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, invalid
		}
		return Session{}, err
	}
	if user.DeactivatedAt != nil || !user.TOTPEnabled {
		return Session{}, invalid
	}
	if ok, err := s.acceptTOTP(ctx, user.ID, user.TOTPSecret, code); err != nil {
		return Session{}, err
	} else if !ok {
		s.audit(ctx, user.ID, "auth.2fa_failed", "user", user.ID, meta, nil)
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CODE", "The authentication code is incorrect", nil)
	}
	if err := s.store.RevokeAccessToken(ctx, claims.JTI, time.Unix(claims.Exp, 0)); err != nil {
		return Session{}, err
	}

	session, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return Session{}, err
	}
	s.audit(ctx, user.ID, "auth.signin", "user", user.ID, meta, map[string]any{"twoFactor": true})
	return session, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if _, err := s.authpw.VerifyEmail(ctx, token); err != nil {
		if errors.Is(err, authpw.ErrInvalidToken) {
			return domainError(http.StatusBadRequest, "VERIFICATION_FAILED", err.Error(), nil)
		}
		return err
	}
	return nil
}

// RequestPasswordReset mails a reset link and returns the token so callers
// can expose it when email is not configured. Unknown emails return "".
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddress string) (string, error) {
	token, user, err := s.authpw.RequestPasswordReset(ctx, emailAddress)
	if err != nil || token == "" {
		return "", err
	}
	resetURL := s.link("/reset-password", token)
	s.sendMail("password_reset", func(m mailer) error {
		return m.SendPasswordResetEmail(user.Email, user.DisplayName, resetURL)
	})
	return token, nil
}

// ResetPassword sets the new password and signs the account out everywhere.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string, meta ClientMeta) error {
	userID, err := s.authpw.ResetPassword(ctx, authpw.ResetPasswordRequest{Token: token, NewPassword: newPassword})
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidToken) || errors.Is(err, authpw.ErrWeakPassword) {
			return domainError(http.StatusBadRequest, "RESET_FAILED", err.Error(), nil)
		}
		return err
	}
	if err := s.sessions.RevokeUserSessions(ctx, userID); err != nil {
		return err
	}
	s.audit(ctx, userID, "auth.password_reset", "user", userID, meta, nil)
	return nil
}

func (s *Service) Me(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return userView(user), nil
}

func (s *Service) GetPrivacy(ctx context.Context, session Session) (map[string]any, error) {
	settings, err := s.store.GetPrivacySettings(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return privacyView(settings), nil
}

// UpdatePrivacy applies the fields present in input.
func (s *Service) UpdatePrivacy(ctx context.Context, session Session, input PrivacyInput, meta ClientMeta) (map[string]any, error) {
	settings, err := s.store.GetPrivacySettings(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	before := privacyView(settings)

	fields := map[string]string{}
	if input.ShareDocumentsWithLawyers != nil {
		settings.ShareDocumentsWithLawyers = *input.ShareDocumentsWithLawyers
	}
	if input.AllowLawyerContact != nil {
		settings.AllowLawyerContact = *input.AllowLawyerContact
	}
	if input.ShowInDirectory != nil {
		if *input.ShowInDirectory && rbac.Normalize(session.Role) != rbac.RoleLawyer {
			fields["showInDirectory"] = "is only available to lawyers"
		}
		settings.ShowInDirectory = *input.ShowInDirectory
	}
	if input.MarketingEmails != nil {
		settings.MarketingEmails = *input.MarketingEmails
	}
	if input.DataRetentionDays != nil {
		days := *input.DataRetentionDays
		if days != 0 && (days < minRetentionDays || days > maxRetentionDays) {
			fields["dataRetentionDays"] = "must be 0 or between 30 and 3650"
		}
		settings.DataRetentionDays = days
	}
	if len(fields) > 0 {
		return nil, errValidation(fields)
	}

	settings.UserID = session.UserID
	if err := s.store.SavePrivacySettings(ctx, settings); err != nil {
		return nil, err
	}
	after := privacyView(settings)
	changed := map[string]any{}
	for key, value := range after {
		if before[key] != value {
			changed[key] = value
		}
	}
	if len(changed) > 0 {
		s.audit(ctx, session.UserID, "privacy.update", "user", session.UserID, meta, changed)
	}
	return after, nil
}

// SetupTwoFactor stores a pending secret that EnableTwoFactor confirms.
func (s *Service) SetupTwoFactor(ctx context.Context, session Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, domainError(http.StatusConflict, "TWO_FACTOR_ENABLED", "Two-factor authentication is already enabled", nil)
	}
	key, err := auth.GenerateTOTP(s.cfg.TOTPIssuer, user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPendingTOTP(ctx, user.ID, key.Secret); err != nil {
		return nil, err
	}
	return map[string]any{"secret": key.Secret, "otpauthUrl": key.URL}, nil
}

// acceptTOTP checks code against secret and claims its time step, so each
// code is accepted at most once.
func (s *Service) acceptTOTP(ctx context.Context, userID, secret, code string) (bool, error) {
	step, ok := auth.MatchTOTP(secret, code, s.now())
	if !ok {
		return false, nil
	}
	return s.store.ClaimTOTPStep(ctx, userID, step)
}

func (s *Service) EnableTwoFactor(ctx context.Context, session Session, code string, meta ClientMeta) error {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return err
	}
	if user.TOTPEnabled {
		return domainError(http.StatusConflict, "TWO_FACTOR_ENABLED", "Two-factor authentication is already enabled", nil)
	}
	if user.TOTPPendingSecret == "" {
		return domainError(http.StatusBadRequest, "TWO_FACTOR_NOT_SETUP", "Start two-factor setup first", nil)
	}
	if ok, err := s.acceptTOTP(ctx, user.ID, user.TOTPPendingSecret, code); err != nil {
		return err
	} else if !ok {
		return domainError(http.StatusBadRequest, "INVALID_CODE", "The authentication code is incorrect", nil)
	}
	if err := s.store.EnableTOTP(ctx, user.ID); err != nil {
		return err
	}
	s.audit(ctx, user.ID, "2fa.enable", "user", user.ID, meta, nil)
	return nil
}

func (s *Service) DisableTwoFactor(ctx context.Context, session Session, code string, meta ClientMeta) error {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled {
		return domainError(http.StatusConflict, "TWO_FACTOR_DISABLED", "Two-factor authentication is not enabled", nil)
	}
	if ok, err := s.acceptTOTP(ctx, user.ID, user.TOTPSecret, code); err != nil {
		return err
	} else if !ok {
		return domainError(http.StatusBadRequest, "INVALID_CODE", "The authentication code is incorrect", nil)
	}
	if err := s.store.DisableTOTP(ctx, user.ID); err != nil {
		return err
	}
	s.audit(ctx, user.ID, "2fa.disable", "user", user.ID, meta, nil)
	return nil
}

func (s *Service) ListSessions(ctx context.Context, session Session) ([]map[string]any, error) {
	sessions, err := s.sessions.ListUserSessions(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(sessions))
	for _, item := range sessions {
		items = append(items, map[string]any{
			"id":        item.ID,
			"createdAt": item.CreatedAt,
			"expiresAt": item.ExpiresAt,
			"userAgent": item.UserAgent,
			"ip":        item.IP,
		})
	}
	return items, nil
}

// RevokeSessions signs the caller out on every device, including this one.
func (s *Service) RevokeSessions(ctx context.Context, session Session, meta ClientMeta) error {
	if err := s.sessions.RevokeUserSessions(ctx, session.UserID); err != nil {
		return err
	}
	if session.JTI != "" {
		if err := s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			return err
		}
	}
	s.audit(ctx, session.UserID, "sessions.revoke_all", "user", session.UserID, meta, nil)
	return nil
}

func (s *Service) ListAudit(ctx context.Context, session Session, limit int) ([]map[string]any, error) {
	return s.auditEvents(ctx, session.UserID, limit)
}

// ListAllAudit is the admin view. An empty userID lists every account.
func (s *Service) ListAllAudit(ctx context.Context, session Session, userID string, limit int) ([]map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionAdmin) {
		return nil, errForbidden()
	}
	return s.auditEvents(ctx, strings.TrimSpace(userID), limit)
}

func (s *Service) auditEvents(ctx context.Context, userID string, limit int) ([]map[string]any, error) {
	events, err := s.store.ListAuditEvents(ctx, userID, clampLimit(limit, 50, maxAuditLimit))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, event := range events {
		metadata := event.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		items = append(items, map[string]any{
			"id":         event.ID,
			"userId":     event.UserID,
			"action":     event.Action,
			"targetType": event.TargetType,
			"targetId":   event.TargetID,
			"ip":         event.IP,
			"userAgent":  event.UserAgent,
			"metadata":   metadata,
			"createdAt":  event.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) ListUsers(ctx context.Context, session Session, limit, offset int) ([]map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionAdmin) {
		return nil, errForbidden()
	}
	users, err := s.store.ListUsers(ctx, clampLimit(limit, 50, 200), max(offset, 0))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userView(user))
	}
	return items, nil
}

func (s *Service) SetUserRole(ctx context.Context, session Session, userID, role string, meta ClientMeta) error {
	if !s.Can(session.Role, rbac.ActionAdmin) {
		return errForbidden()
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if rbac.Normalize(role) != rbac.Role(role) {
		return errValidation(map[string]string{"role": "must be user, lawyer or admin"})
	}
	if userID == session.UserID {
		return domainError(http.StatusConflict, "SELF_CHANGE", "You cannot change your own role", nil)
	}
	if err := s.store.UpdateUserRole(ctx, userID, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errNotFound("User")
		}
		return err
	}
	s.audit(ctx, session.UserID, "admin.user_role", "user", userID, meta, map[string]any{"role": role})
	return nil
}

// SetUserActive deactivates or reactivates an account. Deactivation ends its
// sessions.
func (s *Service) SetUserActive(ctx context.Context, session Session, userID string, active bool, meta ClientMeta) error {
	if !s.Can(session.Role, rbac.ActionAdmin) {
		return errForbidden()
	}
	if userID == session.UserID {
		return domainError(http.StatusConflict, "SELF_CHANGE", "You cannot deactivate your own account", nil)
	}
	if err := s.store.SetUserDeactivated(ctx, userID, !active); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errNotFound("User")
		}
		return err
	}
	if !active {
		if err := s.sessions.RevokeUserSessions(ctx, userID); err != nil {
			return err
		}
	}
	action := "admin.user_activate"
	if !active {
		action = "admin.user_deactivate"
	}
	s.audit(ctx, session.UserID, action, "user", userID, meta, nil)
	return nil
}

func userView(user store.User) map[string]any {
	return map[string]any{
		"id":               user.ID,
		"email":            user.Email,
		"displayName":      user.DisplayName,
		"role":             user.Role,
		"emailVerified":    user.IsEmailVerified,
		"twoFactorEnabled": user.TOTPEnabled,
		"deactivated":      user.DeactivatedAt != nil,
		"createdAt":        user.CreatedAt,
	}
}

func privacyView(settings store.PrivacySettings) map[string]any {
	return map[string]any{
		"shareDocumentsWithLawyers": settings.ShareDocumentsWithLawyers,
		"allowLawyerContact":        settings.AllowLawyerContact,
		"showInDirectory":           settings.ShowInDirectory,
		"marketingEmails":           settings.MarketingEmails,
		"dataRetentionDays":         settings.DataRetentionDays,
	}
}

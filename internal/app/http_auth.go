package app

import (
	"net/http"

	"go.uber.org/zap"
)

// rateLimitedAuthRoutes are throttled per client IP.
var rateLimitedAuthRoutes = map[string]bool{
	"signup":                 true,
	"signin":                 true,
	"2fa/verify":             true,
	"reset-password/request": true,
	"reset-password":         true,
}

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, route string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if rateLimitedAuthRoutes[route] && !s.authLimiter.Allow(clientIP(r)) {
		s.log.Warn("auth rate limit exceeded", zap.String("route", route), zap.String("ip", clientIP(r)))
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts, try again in a minute", nil)
		return
	}

	switch route {
	case "signup":
		s.handleAuthSignUp(w, r)
	case "signin":
		s.handleAuthSignIn(w, r)
	case "2fa/verify":
		s.handleAuthVerifyTwoFactor(w, r)
	case "verify-email":
		s.handleAuthVerifyEmail(w, r)
	case "reset-password/request":
		s.handleAuthRequestReset(w, r)
	case "reset-password":
		s.handleAuthResetPassword(w, r)
	case "refresh":
		s.handleAuthRefresh(w, r)
	case "logout":
		s.handleAuthLogout(w, r)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken":      session.Token,
		"refreshToken":     session.RefreshToken,
		"userId":           session.UserID,
		"userName":         session.UserName,
		"email":            session.Email,
		"role":             session.Role,
		"expiresAt":        session.ExpiresAt.Unix(),
		"refreshExpiresAt": session.RefreshExpiresAt.Unix(),
	}
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body SignUpInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	result, err := s.service.SignUp(r.Context(), body, clientMeta(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	response := map[string]any{
		"userId":  result.UserID,
		"role":    result.Role,
		"message": "Please check your email to verify your account",
	}
	if s.service.DevMode() {
		response["devVerificationToken"] = result.VerificationToken
		response["message"] = "Account created. Verify your email to continue."
	}
	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	result, err := s.service.SignIn(r.Context(), body.Email, body.Password, clientMeta(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if result.Session == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"requiresTwoFactor": true,
			"challengeToken":    result.ChallengeToken,
			"expiresAt":         result.ChallengeExpires.Unix(),
		})
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(*result.Session))
}

func (s *HTTPServer) handleAuthVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChallengeToken string `json:"challengeToken"`
		Code           string `json:"code"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.VerifyTwoFactor(r.Context(), body.ChallengeToken, body.Code, clientMeta(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.VerifyEmail(r.Context(), body.Token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

func (s *HTTPServer) handleAuthRequestReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	token, err := s.service.RequestPasswordReset(r.Context(), body.Email)
	if err != nil {
		// Same answer as for unknown emails.
		s.log.Error("password reset request failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
	}

	response := map[string]any{
		"message": "If an account exists, a reset email has been sent",
	}
	if s.service.DevMode() && token != "" {
		response["devResetToken"] = token
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleAuthResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ResetPassword(r.Context(), body.Token, body.NewPassword, clientMeta(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}

func (s *HTTPServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "refreshToken is required", nil)
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken, clientMeta(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	_ = s.service.Logout(r.Context(), session, body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

package app

import (
	"net/http"

	"nyaysakhi/api/internal/rbac"
)

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	route := ""
	if len(parts) > 0 {
		route = parts[0]
	}

	switch {
	case route == "" && r.Method == http.MethodGet:
		payload, err := s.service.Me(r.Context(), session)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case route == "privacy" && len(parts) == 1 && r.Method == http.MethodGet:
		payload, err := s.service.GetPrivacy(r.Context(), session)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case route == "privacy" && len(parts) == 1 && r.Method == http.MethodPut:
		var body PrivacyInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdatePrivacy(r.Context(), session, body, clientMeta(r))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case route == "2fa" && len(parts) == 2 && r.Method == http.MethodPost:
		s.handleTwoFactor(w, r, session, parts[1])

	case route == "sessions" && len(parts) == 1 && r.Method == http.MethodGet:
		items, err := s.service.ListSessions(r.Context(), session)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": items})

	case route == "sessions" && len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.RevokeSessions(r.Context(), session, clientMeta(r)); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case route == "audit" && len(parts) == 1 && r.Method == http.MethodGet:
		items, err := s.service.ListAudit(r.Context(), session, queryInt(r, "limit"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": items})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleTwoFactor(w http.ResponseWriter, r *http.Request, session Session, action string) {
	if action == "setup" {
		payload, err := s.service.SetupTwoFactor(r.Context(), session)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	var err error
	switch action {
	case "enable":
		err = s.service.EnableTwoFactor(r.Context(), session, body.Code, clientMeta(r))
	case "disable":
		err = s.service.DisableTwoFactor(r.Context(), session, body.Code, clientMeta(r))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"twoFactorEnabled": action == "enable"})
}

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if !s.service.Can(session.Role, rbac.ActionAdmin) {
		s.forbid(w, r, session, rbac.ActionAdmin)
		return
	}

	switch {
	case len(parts) == 1 && parts[0] == "audit" && r.Method == http.MethodGet:
		items, err := s.service.ListAllAudit(r.Context(), session, r.URL.Query().Get("userId"), queryInt(r, "limit"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": items})

	case len(parts) == 1 && parts[0] == "users" && r.Method == http.MethodGet:
		items, err := s.service.ListUsers(r.Context(), session, queryInt(r, "limit"), queryInt(r, "offset"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": items})

	case len(parts) == 3 && parts[0] == "users" && parts[2] == "role" && r.Method == http.MethodPut:
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetUserRole(r.Context(), session, parts[1], body.Role, clientMeta(r)); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 3 && parts[0] == "users" && (parts[2] == "activate" || parts[2] == "deactivate") && r.Method == http.MethodPost:
		if err := s.service.SetUserActive(r.Context(), session, parts[1], parts[2] == "activate", clientMeta(r)); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

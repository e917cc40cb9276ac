package app

import (
	"net/http"

	"nyaysakhi/api/internal/rbac"
)

func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListAppointments(r.Context(), session)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
		case http.MethodPost:
			var body AppointmentInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.BookAppointment(r.Context(), session, body, clientMeta(r))
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	appointmentID := parts[0]
	switch parts[1] {
	case "cancel":
		payload, err := s.service.CancelAppointment(r.Context(), session, appointmentID, clientMeta(r))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case "status":
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SetAppointmentStatus(r.Context(), session, appointmentID, body.Status, clientMeta(r))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 0 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if !s.service.Can(session.Role, rbac.ActionChat) {
		s.forbid(w, r, session, rbac.ActionChat)
		return
	}
	if !s.chatLimiter.Allow(session.UserID) {
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many messages, try again in a minute", nil)
		return
	}

	var body ChatInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	reply, err := s.service.Chat(r.Context(), session, body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

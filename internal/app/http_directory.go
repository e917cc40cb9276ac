package app

import (
	"net/http"
	"strings"
)

func (s *HTTPServer) handleListLawyers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	payload, err := s.service.ListLawyers(r.Context(), LawyerQuery{
		Text:          query.Get("q"),
		PracticeArea:  query.Get("practiceArea"),
		District:      query.Get("district"),
		Language:      query.Get("language"),
		MinExperience: queryInt(r, "minExperience"),
		Available:     queryBool(r, "available"),
		Sort:          strings.ToLower(strings.TrimSpace(query.Get("sort"))),
		Limit:         queryInt(r, "limit"),
		Offset:        queryInt(r, "offset"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleLawyerWrites serves the session-only lawyer routes: matches and
// directory edits.
func (s *HTTPServer) handleLawyerWrites(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 2 && parts[0] == "matches" && r.Method == http.MethodGet {
		payload, err := s.service.MatchLawyers(r.Context(), session, parts[1], queryInt(r, "limit"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 0 && r.Method == http.MethodPost {
		var body LawyerInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateLawyer(r.Context(), session, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var body LawyerInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateLawyer(r.Context(), session, parts[0], body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodDelete:
		if err := s.service.DeleteLawyer(r.Context(), session, parts[0]); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleFAQReads(w http.ResponseWriter, r *http.Request, parts []string) {
	query := r.URL.Query()
	switch {
	case len(parts) == 0:
		items, err := s.service.ListFAQs(r.Context(), query.Get("category"), query.Get("language"), queryInt(r, "limit"), queryInt(r, "offset"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"faqs": items})
	case len(parts) == 1 && parts[0] == "search":
		payload, err := s.service.SearchFAQs(r.Context(), query.Get("q"), query.Get("category"), query.Get("language"), queryInt(r, "limit"), queryInt(r, "offset"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(parts) == 1 && parts[0] == "categories":
		items, err := s.service.FAQCategories(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": items})
	case len(parts) == 1:
		payload, err := s.service.GetFAQ(r.Context(), parts[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleFAQWrites(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var body FAQInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateFAQ(r.Context(), session, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body FAQInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateFAQ(r.Context(), session, parts[0], body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteFAQ(r.Context(), session, parts[0]); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

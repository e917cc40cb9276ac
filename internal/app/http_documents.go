package app

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// multipartOverhead covers form boundaries and the title field.
const multipartOverhead = 1 << 20

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListDocuments(r.Context(), session, queryInt(r, "limit"), queryInt(r, "offset"))
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": items})
		case http.MethodPost:
			s.handleDocumentUpload(w, r, session)
		default:
			methodNotAllowed(w)
		}
		return
	}

	documentID := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetDocument(r.Context(), session, documentID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodDelete:
			if err := s.service.DeleteDocument(r.Context(), session, documentID, clientMeta(r)); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch {
	case parts[1] == "file" && r.Method == http.MethodGet:
		s.handleDocumentDownload(w, r, session, documentID)
	case parts[1] == "reprocess" && r.Method == http.MethodPost:
		payload, err := s.service.ReprocessDocument(r.Context(), session, documentID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, payload)
	case parts[1] == "report" && r.Method == http.MethodPost:
		s.handleDocumentReport(w, r, session, documentID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDocumentUpload(w http.ResponseWriter, r *http.Request, session Session) {
	limit := s.service.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeServiceError(w, r, errFileTooLarge(limit))
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Expected a multipart form with a file field", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "FILE_REQUIRED", "A file is required", nil)
		return
	}
	defer file.Close()

	payload, err := s.service.UploadDocument(r.Context(), session, UploadInput{
		Title:    r.FormValue("title"),
		FileName: header.Filename,
		Size:     header.Size,
		Content:  file,
	}, clientMeta(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleDocumentDownload(w http.ResponseWriter, r *http.Request, session Session, documentID string) {
	reader, document, err := s.service.OpenDocument(r.Context(), session, documentID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", document.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(document.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": document.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		s.log.Warn("stream document", zap.String("document_id", documentID), zap.Error(err))
	}
}

func (s *HTTPServer) handleDocumentReport(w http.ResponseWriter, r *http.Request, session Session, documentID string) {
	var body struct {
		Format string `json:"format"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.ExportReport(r.Context(), session, documentID, body.Format)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"nyaysakhi/api/internal/blob"
	"nyaysakhi/api/internal/extract"
	"nyaysakhi/api/internal/rbac"
	"nyaysakhi/api/internal/store"
	"nyaysakhi/api/internal/util"
)

const defaultMaxUploadBytes = 10 << 20

// UploadInput is one file from a multipart upload.
type UploadInput struct {
	Title    string
	FileName string
	Size     int64
	Content  io.Reader
}

func (s *Service) maxUploadBytes() int64 {
	if s.cfg.MaxUploadBytes > 0 {
		return s.cfg.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func errFileTooLarge(limit int64) *DomainError {
	return domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
		"File exceeds the "+humanize.IBytes(uint64(limit))+" upload limit",
		map[string]any{"maxBytes": limit})
}

// UploadDocument stores the file, creates the document row and queues it for
// processing.
func (s *Service) UploadDocument(ctx context.Context, session Session, input UploadInput, meta ClientMeta) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionUpload) {
		return nil, errForbidden()
	}
	limit := s.maxUploadBytes()
	if input.Size > limit {
		return nil, errFileTooLarge(limit)
	}
	if input.Content == nil {
		return nil, domainError(http.StatusBadRequest, "FILE_REQUIRED", "A file is required", nil)
	}

	head := make([]byte, blob.SniffLen)
	n, err := io.ReadFull(input.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]
	if n == 0 {
		return nil, domainError(http.StatusBadRequest, "FILE_REQUIRED", "The uploaded file is empty", nil)
	}
	contentType, ok := blob.DetectType(head)
	if !ok {
		return nil, domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
			"Upload a PDF, PNG, JPEG, TIFF or plain text file",
			map[string]any{"detected": contentType})
	}

	// Buffer the remainder so the real size is known before storing.
	rest, err := readAllLimited(input.Content, limit-int64(n))
	if err != nil {
		return nil, errFileTooLarge(limit)
	}
	data := append(head, rest...)

	fileName := blob.SafeName(input.FileName)
	document := store.Document{
		ID:          util.NewID("doc"),
		OwnerID:     session.UserID,
		Title:       firstNonBlank(input.Title, strings.TrimSuffix(fileName, extOf(fileName)), "Untitled document"),
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Status:      store.DocumentUploaded,
	}
	document.ObjectKey = blob.DocumentKey(session.UserID, document.ID, fileName)

	if err := s.blobs.Put(ctx, document.ObjectKey, bytes.NewReader(data), document.SizeBytes, contentType); err != nil {
		if errors.Is(err, blob.ErrNotConfigured) {
			return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured", nil)
		}
		return nil, err
	}
	if err := s.store.InsertDocument(ctx, document); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), document.ObjectKey); delErr != nil {
			s.log.Warn("remove orphaned upload", zap.String("key", document.ObjectKey), zap.Error(delErr))
		}
		return nil, err
	}

	s.audit(ctx, session.UserID, "document.upload", "document", document.ID, meta, map[string]any{
		"fileName":    fileName,
		"contentType": contentType,
		"sizeBytes":   document.SizeBytes,
	})
	s.processor.Submit(document.ID)

	document.CreatedAt = s.now()
	document.UpdatedAt = document.CreatedAt
	return documentView(document, false), nil
}

func extOf(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[idx:]
	}
	return ""
}

func (s *Service) ListDocuments(ctx context.Context, session Session, limit, offset int) ([]map[string]any, error) {
	documents, err := s.store.ListDocuments(ctx, session.UserID, clampLimit(limit, 50, 200), max(offset, 0))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(documents))
	for _, document := range documents {
		items = append(items, documentView(document, false))
	}
	return items, nil
}

// visibleDocument loads a document the caller may read. Owners and admins
// always can; a lawyer can when the owner shares documents and an appointment
// with that lawyer references it.
func (s *Service) visibleDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, errNotFound("Document")
		}
		return store.Document{}, err
	}
	if document.OwnerID == session.UserID || rbac.Normalize(session.Role) == rbac.RoleAdmin {
		return document, nil
	}
	if rbac.Normalize(session.Role) == rbac.RoleLawyer {
		profile, err := s.store.GetLawyerByUserID(ctx, session.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.Document{}, err
		}
		if err == nil {
			allowed, err := s.store.LawyerCanSeeDocument(ctx, profile.ID, documentID)
			if err != nil {
				return store.Document{}, err
			}
			if allowed {
				return document, nil
			}
		}
	}
	return store.Document{}, errNotFound("Document")
}

// ownedDocument loads a document the caller may change.
func (s *Service) ownedDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, errNotFound("Document")
		}
		return store.Document{}, err
	}
	if document.OwnerID != session.UserID && rbac.Normalize(session.Role) != rbac.RoleAdmin {
		return store.Document{}, errNotFound("Document")
	}
	return document, nil
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	document, err := s.visibleDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}
	return documentView(document, true), nil
}

// OpenDocument returns the original upload for download.
func (s *Service) OpenDocument(ctx context.Context, session Session, documentID string) (io.ReadCloser, store.Document, error) {
	document, err := s.visibleDocument(ctx, session, documentID)
	if err != nil {
		return nil, store.Document{}, err
	}
	reader, _, err := s.blobs.Get(ctx, document.ObjectKey)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrNotFound):
			return nil, store.Document{}, errNotFound("File")
		case errors.Is(err, blob.ErrNotConfigured):
			return nil, store.Document{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured", nil)
		}
		return nil, store.Document{}, err
	}
	return reader, document, nil
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string, meta ClientMeta) error {
	document, err := s.ownedDocument(ctx, session, documentID)
	if err != nil {
		return err
	}
	if err := s.removeDocument(ctx, document); err != nil {
		return err
	}
	s.audit(ctx, session.UserID, "document.delete", "document", document.ID, meta, map[string]any{"fileName": document.FileName})
	return nil
}

const retentionBatch = 100

// PurgeExpiredDocuments deletes documents older than their owner's
// dataRetentionDays, files included, and returns how many went.
func (s *Service) PurgeExpiredDocuments(ctx context.Context) (int, error) {
	removed := 0
	for {
		documents, err := s.store.ListExpiredDocuments(ctx, retentionBatch)
		if err != nil {
			return removed, err
		}
		for _, document := range documents {
			if err := s.removeDocument(ctx, document); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return removed, err
			}
			s.audit(ctx, document.OwnerID, "document.expire", "document", document.ID, ClientMeta{}, map[string]any{"fileName": document.FileName})
			removed++
		}
		if len(documents) < retentionBatch {
			return removed, nil
		}
	}
}

// removeDocument drops the row first so a failed file delete leaves only an
// orphaned object behind.
func (s *Service) removeDocument(ctx context.Context, document store.Document) error {
	if err := s.store.DeleteDocument(ctx, document.ID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, document.ObjectKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.log.Warn("delete document file", zap.String("document_id", document.ID), zap.String("key", document.ObjectKey), zap.Error(err))
	}
	return nil
}

// ReprocessDocument queues OCR and extraction again.
func (s *Service) ReprocessDocument(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	document, err := s.ownedDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}
	if document.Status == store.DocumentProcessing {
		return nil, domainError(http.StatusConflict, "DOCUMENT_BUSY", "Document is already being processed", nil)
	}
	if !s.processor.Submit(document.ID) {
		return nil, domainError(http.StatusServiceUnavailable, "PROCESSING_UNAVAILABLE", "Processing is shutting down", nil)
	}
	return map[string]any{"id": document.ID, "status": "queued"}, nil
}

func decodeExtracted(document store.Document) (extract.Data, bool) {
	if len(document.ExtractedData) == 0 {
		return extract.Data{}, false
	}
	var data extract.Data
	if err := json.Unmarshal(document.ExtractedData, &data); err != nil {
		return extract.Data{}, false
	}
	return data, true
}

func documentView(document store.Document, detail bool) map[string]any {
	view := map[string]any{
		"id":              document.ID,
		"title":           document.Title,
		"fileName":        document.FileName,
		"contentType":     document.ContentType,
		"sizeBytes":       document.SizeBytes,
		"size":            humanize.IBytes(uint64(max(document.SizeBytes, 0))),
		"status":          document.Status,
		"processingError": document.ProcessingError,
		"processedAt":     document.ProcessedAt,
		"createdAt":       document.CreatedAt,
		"updatedAt":       document.UpdatedAt,
		"uploaded":        humanize.Time(document.CreatedAt),
	}
	if data, ok := decodeExtracted(document); ok {
		view["extractedData"] = data
		view["summary"] = data.Summary()
	} else {
		view["extractedData"] = nil
	}
	if detail {
		view["ocrText"] = document.OCRText
	}
	return view
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const documentColumns = `id, owner_id, title, file_name, content_type, size_bytes, object_key, status,
	ocr_text, extracted_data, processing_error, processed_at, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.Title,
		&item.FileName,
		&item.ContentType,
		&item.SizeBytes,
		&item.ObjectKey,
		&item.Status,
		&item.OCRText,
		&item.ExtractedData,
		&item.ProcessingError,
		&item.ProcessedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	status := item.Status
	if status == "" {
		status = DocumentUploaded
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, title, file_name, content_type, size_bytes, object_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.OwnerID, item.Title, item.FileName, item.ContentType, item.SizeBytes, item.ObjectKey, status)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (Document, error) {
	item, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id))
	if err != nil {
		return Document{}, notFound(err)
	}
	return item, nil
}

// ListDocuments returns the owner's documents newest first, without OCR text.
func (s *PostgresStore) ListDocuments(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, file_name, content_type, size_bytes, object_key, status,
			'' AS ocr_text, extracted_data, processing_error, processed_at, created_at, updated_at
		FROM documents
		WHERE owner_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

// MarkDocumentProcessing moves a document into processing unless it is
// already there.
func (s *PostgresStore) MarkDocumentProcessing(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status='processing', processing_error='', updated_at=NOW()
		WHERE id=$1 AND status <> 'processing'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark processing rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CompleteDocument(ctx context.Context, id, ocrText string, extracted []byte) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status='processed', ocr_text=$2, extracted_data=$3::jsonb, processing_error='', processed_at=NOW(), updated_at=NOW()
		WHERE id=$1
	`, id, ocrText, string(extracted))
	if err != nil {
		return fmt.Errorf("complete document: %w", err)
	}
	return requireAffected(result, "complete document")
}

func (s *PostgresStore) FailDocument(ctx context.Context, id, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status='failed', processing_error=$2, updated_at=NOW()
		WHERE id=$1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("fail document: %w", err)
	}
	return requireAffected(result, "fail document")
}

// ResetStuckDocuments returns documents left in processing by a previous
// process to uploaded so they can be queued again.
func (s *PostgresStore) ResetStuckDocuments(ctx context.Context, olderThan time.Duration) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE documents
		SET status='uploaded', updated_at=NOW()
		WHERE status IN ('uploaded', 'processing') AND updated_at < $1
		RETURNING id
	`, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("reset stuck documents: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stuck document: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(result, "delete document")
}

// ListExpiredDocuments returns documents older than their owner's retention
// period, oldest first. Owners with a zero retention keep everything.
func (s *PostgresStore) ListExpiredDocuments(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.owner_id, d.title, d.file_name, d.content_type, d.size_bytes, d.object_key, d.status,
			'' AS ocr_text, d.extracted_data, d.processing_error, d.processed_at, d.created_at, d.updated_at
		FROM documents d
		JOIN privacy_settings p ON p.user_id = d.owner_id
		WHERE p.data_retention_days > 0
		  AND d.created_at < NOW() - make_interval(days => p.data_retention_days)
		ORDER BY d.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired documents: %w", err)
	}
	return items, nil
}

// LawyerCanSeeDocument reports whether the lawyer has an appointment
// referencing the document and its owner shares documents with lawyers.
func (s *PostgresStore) LawyerCanSeeDocument(ctx context.Context, lawyerID, documentID string) (bool, error) {
	var allowed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM appointments a
			JOIN documents d ON d.id = a.document_id
			JOIN privacy_settings p ON p.user_id = d.owner_id
			WHERE a.lawyer_id=$1 AND a.document_id=$2 AND a.status <> 'cancelled'
			  AND p.share_documents_with_lawyers
		)
	`, lawyerID, documentID).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("check document access: %w", err)
	}
	return allowed, nil
}

const appointmentColumns = `id, user_id, lawyer_id, COALESCE(document_id, ''), scheduled_at, duration_minutes,
	mode, status, notes, created_at, updated_at`

func scanAppointment(row interface{ Scan(...any) error }) (Appointment, error) {
	var item Appointment
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.LawyerID,
		&item.DocumentID,
		&item.ScheduledAt,
		&item.DurationMinutes,
		&item.Mode,
		&item.Status,
		&item.Notes,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

// InsertAppointment books a slot. The overlap check and the insert share a
// transaction holding a per-lawyer advisory lock.
func (s *PostgresStore) InsertAppointment(ctx context.Context, item Appointment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin appointment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, item.LawyerID); err != nil {
		return fmt.Errorf("lock lawyer schedule: %w", err)
	}

	var overlapping bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE lawyer_id=$1
			  AND status IN ('pending', 'confirmed')
			  AND scheduled_at < $3
			  AND scheduled_at + make_interval(mins => duration_minutes) > $2
		)
	`, item.LawyerID, item.ScheduledAt, item.EndsAt()).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if overlapping {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO appointments (id, user_id, lawyer_id, document_id, scheduled_at, duration_minutes, mode, status, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
	`, item.ID, item.UserID, item.LawyerID, item.DocumentID, item.ScheduledAt, item.DurationMinutes, item.Mode, item.Status, item.Notes); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit appointment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	item, err := scanAppointment(s.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id=$1`, id))
	if err != nil {
		return Appointment{}, notFound(err)
	}
	return item, nil
}

// ListAppointments lists by client when userID is set, else by lawyer.
func (s *PostgresStore) ListAppointments(ctx context.Context, userID, lawyerID string) ([]Appointment, error) {
	if userID == "" && lawyerID == "" {
		return nil, errors.New("list appointments: user or lawyer required")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1<>'' AND user_id=$1) OR ($2<>'' AND lawyer_id=$2)
		ORDER BY scheduled_at DESC
	`, userID, lawyerID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := make([]Appointment, 0)
	for rows.Next() {
		item, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return items, nil
}

// UpdateAppointmentStatus applies a transition only from the expected status.
func (s *PostgresStore) UpdateAppointmentStatus(ctx context.Context, id, from, to string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE appointments SET status=$3, updated_at=NOW()
		WHERE id=$1 AND status=$2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update appointment status rows: %w", err)
	}
	return affected > 0, nil
}

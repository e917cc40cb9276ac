package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// notFound folds sql.ErrNoRows into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const userColumns = `id, display_name, email, password_hash, role, is_email_verified,
	COALESCE(verification_token, ''), verification_expires_at, totp_secret, totp_pending_secret,
	totp_enabled, deactivated_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.TOTPSecret,
		&user.TOTPPendingSecret,
		&user.TOTPEnabled,
		&user.DeactivatedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, NULLIF($7, ''), $8)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken, user.VerificationExpiresAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=LOWER($1)`, strings.TrimSpace(email)))
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

// VerifyUserEmail consumes an unexpired verification token.
func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
		RETURNING id
	`, token).Scan(&userID)
	if err != nil {
		return "", notFound(err)
	}
	return userID, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(result, "update password")
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, userID, role string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1`, userID, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireAffected(result, "update role")
}

func (s *PostgresStore) SetUserDeactivated(ctx context.Context, userID string, deactivated bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET deactivated_at=CASE WHEN $2 THEN NOW() ELSE NULL END, updated_at=NOW()
		WHERE id=$1
	`, userID, deactivated)
	if err != nil {
		return fmt.Errorf("set deactivated: %w", err)
	}
	return requireAffected(result, "set deactivated")
}

// SetPendingTOTP stores a secret that becomes active once confirmed.
func (s *PostgresStore) SetPendingTOTP(ctx context.Context, userID, secret string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET totp_pending_secret=$2, updated_at=NOW() WHERE id=$1`, userID, secret)
	if err != nil {
		return fmt.Errorf("set pending totp: %w", err)
	}
	return requireAffected(result, "set pending totp")
}

func (s *PostgresStore) EnableTOTP(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET totp_secret=totp_pending_secret, totp_pending_secret='', totp_enabled=TRUE, updated_at=NOW()
		WHERE id=$1 AND totp_pending_secret <> ''
	`, userID)
	if err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}
	return requireAffected(result, "enable totp")
}

func (s *PostgresStore) DisableTOTP(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET totp_secret='', totp_pending_secret='', totp_enabled=FALSE, updated_at=NOW()
		WHERE id=$1
	`, userID)
	if err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}
	return requireAffected(result, "disable totp")
}

// ClaimTOTPStep records step as the user's last accepted TOTP step. It
// returns false when a code from that step or a later one was already used.
func (s *PostgresStore) ClaimTOTPStep(ctx context.Context, userID string, step int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET totp_last_step=$2 WHERE id=$1 AND totp_last_step < $2`, userID, step)
	if err != nil {
		return false, fmt.Errorf("claim totp step: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim totp step: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset marks an unused, unexpired reset token as used and
// returns its user.
func (s *PostgresStore) ConsumePasswordReset(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE password_resets
		SET used_at=NOW()
		WHERE token_hash=$1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING user_id
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", notFound(err)
	}
	return userID, nil
}

func (s *PostgresStore) GetPrivacySettings(ctx context.Context, userID string) (PrivacySettings, error) {
	settings := PrivacySettings{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT share_documents_with_lawyers, allow_lawyer_contact, show_in_directory, marketing_emails, data_retention_days, updated_at
		FROM privacy_settings
		WHERE user_id=$1
	`, userID).Scan(
		&settings.ShareDocumentsWithLawyers,
		&settings.AllowLawyerContact,
		&settings.ShowInDirectory,
		&settings.MarketingEmails,
		&settings.DataRetentionDays,
		&settings.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultPrivacy(userID), nil
	}
	if err != nil {
		return PrivacySettings{}, fmt.Errorf("read privacy settings: %w", err)
	}
	return settings, nil
}

func (s *PostgresStore) SavePrivacySettings(ctx context.Context, settings PrivacySettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO privacy_settings (user_id, share_documents_with_lawyers, allow_lawyer_contact, show_in_directory, marketing_emails, data_retention_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			share_documents_with_lawyers=EXCLUDED.share_documents_with_lawyers,
			allow_lawyer_contact=EXCLUDED.allow_lawyer_contact,
			show_in_directory=EXCLUDED.show_in_directory,
			marketing_emails=EXCLUDED.marketing_emails,
			data_retention_days=EXCLUDED.data_retention_days,
			updated_at=NOW()
	`, settings.UserID, settings.ShareDocumentsWithLawyers, settings.AllowLawyerContact, settings.ShowInDirectory, settings.MarketingEmails, settings.DataRetentionDays)
	if err != nil {
		return fmt.Errorf("save privacy settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, session RefreshSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, session_id, user_id, user_agent, ip, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, session.TokenHash, session.ID, session.UserID, session.UserAgent, session.IP, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (RefreshSession, error) {
	var session RefreshSession
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, token_hash, user_id, user_agent, ip, created_at, expires_at
		FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&session.ID, &session.TokenHash, &session.UserID, &session.UserAgent, &session.IP, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return RefreshSession{}, notFound(err)
	}
	return session, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeUserSessions(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE user_id=$1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUserSessions(ctx context.Context, userID string) ([]RefreshSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, token_hash, user_id, user_agent, ip, created_at, expires_at
		FROM refresh_sessions
		WHERE user_id=$1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	items := make([]RefreshSession, 0)
	for rows.Next() {
		var item RefreshSession
		if err := rows.Scan(&item.ID, &item.TokenHash, &item.UserID, &item.UserAgent, &item.IP, &item.CreatedAt, &item.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// PurgeExpired drops revoked tokens and sessions that can no longer be used.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	var total int64
	for _, query := range []string{
		`DELETE FROM revoked_tokens WHERE expires_at < NOW()`,
		`DELETE FROM refresh_sessions WHERE expires_at < NOW() OR revoked_at < NOW() - INTERVAL '7 days'`,
		`DELETE FROM password_resets WHERE expires_at < NOW() - INTERVAL '1 day'`,
	} {
		result, err := s.db.ExecContext(ctx, query)
		if err != nil {
			return total, fmt.Errorf("purge expired: %w", err)
		}
		affected, _ := result.RowsAffected()
		total += affected
	}
	return total, nil
}

func (s *PostgresStore) InsertAuditEvent(ctx context.Context, event AuditEvent) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (user_id, action, target_type, target_id, ip, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`, event.UserID, event.Action, event.TargetType, event.TargetID, event.IP, event.UserAgent, string(encoded))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns events newest first. An empty userID lists every user.
func (s *PostgresStore) ListAuditEvents(ctx context.Context, userID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, target_type, target_id, ip, user_agent, metadata, created_at
		FROM audit_events
		WHERE ($1='' OR user_id=$1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	items := make([]AuditEvent, 0)
	for rows.Next() {
		var item AuditEvent
		var metadataRaw []byte
		if err := rows.Scan(&item.ID, &item.UserID, &item.Action, &item.TargetType, &item.TargetID, &item.IP, &item.UserAgent, &metadataRaw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		_ = json.Unmarshal(metadataRaw, &item.Metadata)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return items, nil
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"nyaysakhi/api/internal/auth"
	"nyaysakhi/api/internal/authpw"
	"nyaysakhi/api/internal/blob"
	"nyaysakhi/api/internal/cache"
	"nyaysakhi/api/internal/chat"
	"nyaysakhi/api/internal/config"
	"nyaysakhi/api/internal/email"
	"nyaysakhi/api/internal/export"
	"nyaysakhi/api/internal/rbac"
	"nyaysakhi/api/internal/search"
	"nyaysakhi/api/internal/session"
	"nyaysakhi/api/internal/store"
	"nyaysakhi/api/internal/util"
)

// challengeRole marks a token that only proves the password step of a
// two-factor sign-in.
const challengeRole = "2fa_pending"

const challengeTTL = 5 * time.Minute

type Session struct {
	Token            string
	RefreshToken     string
	UserID           string
	UserName         string
	Email            string
	Role             string
	JTI              string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// ClientMeta identifies the caller for sessions and audit events.
type ClientMeta struct {
	IP        string
	UserAgent string
}

type dataStore interface {
	authpw.UserStore
	Ping(ctx context.Context) error

	ListUsers(ctx context.Context, limit, offset int) ([]store.User, error)
	UpdateUserRole(ctx context.Context, userID, role string) error
	SetUserDeactivated(ctx context.Context, userID string, deactivated bool) error
	SetPendingTOTP(ctx context.Context, userID, secret string) error
	EnableTOTP(ctx context.Context, userID string) error
	DisableTOTP(ctx context.Context, userID string) error
	ClaimTOTPStep(ctx context.Context, userID string, step int64) (bool, error)
	GetPrivacySettings(ctx context.Context, userID string) (store.PrivacySettings, error)
	SavePrivacySettings(ctx context.Context, settings store.PrivacySettings) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	InsertAuditEvent(ctx context.Context, event store.AuditEvent) error
	ListAuditEvents(ctx context.Context, userID string, limit int) ([]store.AuditEvent, error)

	ListLawyers(ctx context.Context, filter store.LawyerFilter) ([]store.Lawyer, int, error)
	ListMatchCandidates(ctx context.Context, practiceArea, district string) ([]store.Lawyer, error)
	GetLawyer(ctx context.Context, id string) (store.Lawyer, error)
	GetLawyerByUserID(ctx context.Context, userID string) (store.Lawyer, error)
	UpsertLawyer(ctx context.Context, item store.Lawyer) (store.Lawyer, error)
	DeleteLawyer(ctx context.Context, id string) error

	InsertDocument(ctx context.Context, item store.Document) error
	GetDocument(ctx context.Context, id string) (store.Document, error)
	ListDocuments(ctx context.Context, ownerID string, limit, offset int) ([]store.Document, error)
	MarkDocumentProcessing(ctx context.Context, id string) (bool, error)
	CompleteDocument(ctx context.Context, id, ocrText string, extracted []byte) error
	FailDocument(ctx context.Context, id, reason string) error
	ResetStuckDocuments(ctx context.Context, olderThan time.Duration) ([]string, error)
	DeleteDocument(ctx context.Context, id string) error
	ListExpiredDocuments(ctx context.Context, limit int) ([]store.Document, error)
	LawyerCanSeeDocument(ctx context.Context, lawyerID, documentID string) (bool, error)

	InsertAppointment(ctx context.Context, item store.Appointment) error
	GetAppointment(ctx context.Context, id string) (store.Appointment, error)
	ListAppointments(ctx context.Context, userID, lawyerID string) ([]store.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id, from, to string) (bool, error)

	ListFAQs(ctx context.Context, category, language string, limit, offset int) ([]store.FAQ, error)
	ListFAQsByID(ctx context.Context, ids []string) ([]store.FAQ, error)
	GetFAQ(ctx context.Context, id string) (store.FAQ, error)
	ViewFAQ(ctx context.Context, id string) (store.FAQ, error)
	UpsertFAQ(ctx context.Context, item store.FAQ) (store.FAQ, error)
	DeleteFAQ(ctx context.Context, id string) error
	ListFAQCategories(ctx context.Context) ([]store.FAQCategory, error)
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexLawyer(record search.LawyerRecord)
	DeleteLawyer(id string)
	IndexFAQ(record search.FAQRecord)
	DeleteFAQ(id string)
}

type textReader interface {
	Text(ctx context.Context, data []byte, contentType string) (string, error)
}

type reporter interface {
	Export(ctx context.Context, report export.Report, format export.Format) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
	SendAppointmentEmail(to string, data email.AppointmentData) error
}

// Pinger is a backend the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the backends a Service runs on. Only Store is required.
type Deps struct {
	Store    dataStore
	Sessions session.Store
	Search   searchService
	Cache    cache.Cache
	Blobs    blob.Store
	OCR      textReader
	Chat     *chat.Assistant
	Export   reporter
	Mail     mailer
	Log      *zap.Logger
	Checks   map[string]Pinger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  session.Store
	search    searchService
	cache     cache.Cache
	blobs     blob.Store
	ocr       textReader
	assistant *chat.Assistant
	exporter  reporter
	mail      mailer
	log       *zap.Logger
	checks    map[string]Pinger
	authpw    *authpw.Service
	processor *processor
	now       func() time.Time
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		search:    deps.Search,
		cache:     deps.Cache,
		blobs:     deps.Blobs,
		ocr:       deps.OCR,
		assistant: deps.Chat,
		exporter:  deps.Export,
		mail:      deps.Mail,
		log:       deps.Log,
		checks:    deps.Checks,
		now:       time.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.sessions == nil {
		if fallback, ok := deps.Store.(session.Store); ok {
			s.sessions = fallback
		}
	}
	if s.search == nil {
		s.search = search.NewService(nil, nil, s.log)
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.blobs == nil {
		s.blobs = blob.Disabled{}
	}
	if s.assistant == nil {
		s.assistant = chat.NewAssistant(nil, s.log)
	}
	if s.exporter == nil {
		s.exporter = export.NewService(s.log)
	}
	s.authpw = authpw.NewService(deps.Store)
	s.processor = newProcessor(s.processDocument, cfg.ProcessingWorkers, s.log)
	return s
}

// Start queues documents that an earlier process left unfinished.
func (s *Service) Start(ctx context.Context) error {
	ids, err := s.store.ResetStuckDocuments(ctx, 10*time.Minute)
	if err != nil {
		return fmt.Errorf("reset stuck documents: %w", err)
	}
	for _, id := range ids {
		s.processor.Submit(id)
	}
	if len(ids) > 0 {
		s.log.Info("requeued unfinished documents", zap.Int("count", len(ids)))
	}
	return nil
}

// Shutdown waits for in-flight document processing.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.processor.Shutdown(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Readiness runs every backend check. The database is always checked.
func (s *Service) Readiness(ctx context.Context) (map[string]any, bool) {
	checks := map[string]any{}
	ready := true
	record := func(name string, err error) {
		if err != nil {
			ready = false
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			return
		}
		checks[name] = map[string]any{"status": "ok"}
	}
	record("database", s.store.Ping(ctx))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		record(name, s.checks[name].Ping(ctx))
	}
	return checks, ready
}

func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// DevMode reports whether one-time tokens may be echoed in responses.
func (s *Service) DevMode() bool {
	return s.cfg.DevMode
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) issueSession(ctx context.Context, user store.User, meta ClientMeta) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, store.RefreshSession{
		ID:        util.NewID("ses"),
		TokenHash: auth.HashToken(refresh),
		UserID:    user.ID,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		CreatedAt: now,
		ExpiresAt: refreshExpires,
	}); err != nil {
		return Session{}, err
	}

	return Session{
		Token:            token,
		RefreshToken:     refresh,
		UserID:           user.ID,
		UserName:         user.DisplayName,
		Email:            user.Email,
		Role:             user.Role,
		JTI:              jti,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if claims.Role == challengeRole {
		return Session{}, auth.ErrInvalidToken
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (Session, error) {
	tokenHash := auth.HashToken(strings.TrimSpace(refreshToken))
	current, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, current.UserID)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user, meta)
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// audit records an event. Failures are logged, never returned.
func (s *Service) audit(ctx context.Context, userID, action, targetType, targetID string, meta ClientMeta, metadata map[string]any) {
	event := store.AuditEvent{
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		Metadata:   metadata,
	}
	if err := s.store.InsertAuditEvent(ctx, event); err != nil {
		s.log.Warn("record audit event", zap.String("action", action), zap.String("user_id", userID), zap.Error(err))
	}
}

// sendMail runs send in the background when email is configured.
func (s *Service) sendMail(kind string, send func(mailer) error) {
	if !s.SMTPConfigured() {
		return
	}
	go func() {
		if err := send(s.mail); err != nil {
			s.log.Warn("send email", zap.String("kind", kind), zap.Error(err))
		}
	}()
}

func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("content exceeds %d bytes", limit)
	}
	return data, nil
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}

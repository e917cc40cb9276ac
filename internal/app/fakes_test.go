package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"nyaysakhi/api/internal/auth"
	"nyaysakhi/api/internal/config"
	"nyaysakhi/api/internal/search"
	"nyaysakhi/api/internal/store"
)

// fakeStore is an in-memory dataStore and session.Store. The *Fn fields
// override single methods.
type fakeStore struct {
	mu sync.Mutex

	users        map[string]store.User
	privacy      map[string]store.PrivacySettings
	resets       map[string]string
	revoked      map[string]bool
	refresh      map[string]store.RefreshSession
	lawyers      map[string]store.Lawyer
	documents    map[string]store.Document
	appointments map[string]store.Appointment
	faqs         map[string]store.FAQ
	audits       []store.AuditEvent
	totpSteps    map[string]int64

	pingFn                func(context.Context) error
	insertAppointmentFn   func(context.Context, store.Appointment) error
	lawyerCanSeeFn        func(context.Context, string, string) (bool, error)
	listMatchCandidatesFn func(context.Context, string, string) ([]store.Lawyer, error)
	completeDocumentFn    func(context.Context, string) error

	matchCandidateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        map[string]store.User{},
		privacy:      map[string]store.PrivacySettings{},
		resets:       map[string]string{},
		revoked:      map[string]bool{},
		refresh:      map[string]store.RefreshSession{},
		lawyers:      map[string]store.Lawyer{},
		documents:    map[string]store.Document{},
		appointments: map[string]store.Appointment{},
		faqs:         map[string]store.FAQ{},
		totpSteps:    map[string]int64{},
	}
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) addUser(user store.User) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) user(id string) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return store.ErrConflict
		}
	}
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) VerifyUserEmail(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, user := range f.users {
		if user.VerificationToken != "" && user.VerificationToken == token {
			user.IsEmailVerified = true
			user.VerificationToken = ""
			f.users[id] = user
			return id, nil
		}
	}
	return "", store.ErrNotFound
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[tokenHash] = userID
	return nil
}

func (f *fakeStore) ConsumePasswordReset(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[tokenHash]
	if !ok {
		return "", store.ErrNotFound
	}
	delete(f.resets, tokenHash)
	return userID, nil
}

func (f *fakeStore) ListUsers(_ context.Context, limit, offset int) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (f *fakeStore) UpdateUserRole(_ context.Context, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.Role = role
	f.users[userID] = user
	return nil
}

func (f *fakeStore) SetUserDeactivated(_ context.Context, userID string, deactivated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.DeactivatedAt = nil
	if deactivated {
		now := time.Now()
		user.DeactivatedAt = &now
	}
	f.users[userID] = user
	return nil
}

func (f *fakeStore) SetPendingTOTP(_ context.Context, userID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.TOTPPendingSecret = secret
	f.users[userID] = user
	return nil
}

func (f *fakeStore) EnableTOTP(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.TOTPSecret = user.TOTPPendingSecret
	user.TOTPPendingSecret = ""
	user.TOTPEnabled = true
	f.users[userID] = user
	return nil
}

func (f *fakeStore) DisableTOTP(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.TOTPSecret = ""
	user.TOTPEnabled = false
	f.users[userID] = user
	return nil
}

func (f *fakeStore) ClaimTOTPStep(_ context.Context, userID string, step int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if step <= f.totpSteps[userID] {
		return false, nil
	}
	f.totpSteps[userID] = step
	return true, nil
}

func (f *fakeStore) GetPrivacySettings(_ context.Context, userID string) (store.PrivacySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if settings, ok := f.privacy[userID]; ok {
		return settings, nil
	}
	return store.DefaultPrivacy(userID), nil
}

func (f *fakeStore) SavePrivacySettings(_ context.Context, settings store.PrivacySettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.privacy[settings.UserID] = settings
	return nil
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func (f *fakeStore) InsertAuditEvent(_ context.Context, event store.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = int64(len(f.audits) + 1)
	event.CreatedAt = time.Now()
	f.audits = append(f.audits, event)
	return nil
}

func (f *fakeStore) ListAuditEvents(_ context.Context, userID string, limit int) ([]store.AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.AuditEvent{}
	for i := len(f.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if userID == "" || f.audits[i].UserID == userID {
			out = append(out, f.audits[i])
		}
	}
	return out, nil
}

// auditActions lists recorded actions in order.
func (f *fakeStore) auditActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.audits))
	for _, event := range f.audits {
		out = append(out, event.Action)
	}
	return out
}

func (f *fakeStore) SaveRefreshSession(_ context.Context, session store.RefreshSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[session.TokenHash] = session
	return nil
}

func (f *fakeStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.refresh[tokenHash]
	if !ok {
		return store.RefreshSession{}, store.ErrNotFound
	}
	return session, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeUserSessions(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, session := range f.refresh {
		if session.UserID == userID {
			delete(f.refresh, hash)
		}
	}
	return nil
}

func (f *fakeStore) ListUserSessions(_ context.Context, userID string) ([]store.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.RefreshSession{}
	for _, session := range f.refresh {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (f *fakeStore) ListLawyers(_ context.Context, filter store.LawyerFilter) ([]store.Lawyer, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	out := []store.Lawyer{}
	for _, lawyer := range f.lawyers {
		if len(wanted) > 0 && !wanted[lawyer.ID] {
			continue
		}
		if filter.PracticeArea != "" && !containsFold(lawyer.PracticeAreas, filter.PracticeArea) {
			continue
		}
		if filter.District != "" && !strings.EqualFold(lawyer.District, filter.District) {
			continue
		}
		if filter.Language != "" && !containsFold(lawyer.Languages, filter.Language) {
			continue
		}
		if lawyer.ExperienceYears < filter.MinExperience {
			continue
		}
		if filter.Available != nil && lawyer.Available != *filter.Available {
			continue
		}
		if filter.Listed && !f.listed(lawyer) {
			continue
		}
		out = append(out, lawyer)
	}
	sort.Slice(out, func(i, j int) bool {
		switch filter.Sort {
		case "experience":
			if out[i].ExperienceYears != out[j].ExperienceYears {
				return out[i].ExperienceYears > out[j].ExperienceYears
			}
		case "rating":
			if out[i].Rating != out[j].Rating {
				return out[i].Rating > out[j].Rating
			}
		}
		return out[i].Name < out[j].Name
	})
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

// listed mirrors the store's directory opt-in rule. Callers hold f.mu.
func (f *fakeStore) listed(lawyer store.Lawyer) bool {
	return lawyer.UserID == "" || f.privacyFor(lawyer.UserID).ShowInDirectory
}

func (f *fakeStore) ListMatchCandidates(ctx context.Context, practiceArea, district string) ([]store.Lawyer, error) {
	f.mu.Lock()
	f.matchCandidateCalls++
	f.mu.Unlock()
	if f.listMatchCandidatesFn != nil {
		return f.listMatchCandidatesFn(ctx, practiceArea, district)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Lawyer{}
	for _, lawyer := range f.lawyers {
		if !lawyer.Available || !f.listed(lawyer) {
			continue
		}
		if practiceArea == "" && district == "" ||
			containsFold(lawyer.PracticeAreas, practiceArea) ||
			(district != "" && strings.EqualFold(lawyer.District, district)) {
			out = append(out, lawyer)
		}
	}
	return out, nil
}

func (f *fakeStore) GetLawyer(_ context.Context, id string) (store.Lawyer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lawyer, ok := f.lawyers[id]
	if !ok {
		return store.Lawyer{}, store.ErrNotFound
	}
	return lawyer, nil
}

func (f *fakeStore) GetLawyerByUserID(_ context.Context, userID string) (store.Lawyer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lawyer := range f.lawyers {
		if lawyer.UserID != "" && lawyer.UserID == userID {
			return lawyer, nil
		}
	}
	return store.Lawyer{}, store.ErrNotFound
}

func (f *fakeStore) UpsertLawyer(_ context.Context, item store.Lawyer) (store.Lawyer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lawyer := range f.lawyers {
		if item.UserID != "" && lawyer.UserID == item.UserID && lawyer.ID != item.ID {
			return store.Lawyer{}, store.ErrConflict
		}
	}
	now := time.Now()
	if existing, ok := f.lawyers[item.ID]; ok {
		item.CreatedAt = existing.CreatedAt
	} else {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	f.lawyers[item.ID] = item
	return item, nil
}

func (f *fakeStore) DeleteLawyer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lawyers[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.lawyers, id)
	return nil
}

func (f *fakeStore) InsertDocument(_ context.Context, item store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	f.documents[item.ID] = item
	return nil
}

func (f *fakeStore) document(id string) store.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.documents[id]
}

func (f *fakeStore) GetDocument(_ context.Context, id string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	document, ok := f.documents[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return document, nil
}

func (f *fakeStore) ListDocuments(_ context.Context, ownerID string, limit, offset int) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Document{}
	for _, document := range f.documents {
		if document.OwnerID == ownerID {
			out = append(out, document)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (f *fakeStore) MarkDocumentProcessing(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	document, ok := f.documents[id]
	if !ok || document.Status == store.DocumentProcessing {
		return false, nil
	}
	document.Status = store.DocumentProcessing
	f.documents[id] = document
	return true, nil
}

func (f *fakeStore) CompleteDocument(ctx context.Context, id, ocrText string, extracted []byte) error {
	if f.completeDocumentFn != nil {
		if err := f.completeDocumentFn(ctx, id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	document := f.documents[id]
	now := time.Now()
	document.Status = store.DocumentProcessed
	document.OCRText = ocrText
	document.ExtractedData = extracted
	document.ProcessingError = ""
	document.ProcessedAt = &now
	f.documents[id] = document
	return nil
}

func (f *fakeStore) FailDocument(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	document := f.documents[id]
	document.Status = store.DocumentFailed
	document.ProcessingError = reason
	f.documents[id] = document
	return nil
}

func (f *fakeStore) ResetStuckDocuments(context.Context, time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for id, document := range f.documents {
		if document.Status == store.DocumentProcessing || document.Status == store.DocumentUploaded {
			document.Status = store.DocumentUploaded
			f.documents[id] = document
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.documents, id)
	return nil
}

func (f *fakeStore) ListExpiredDocuments(_ context.Context, limit int) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	out := []store.Document{}
	for _, document := range f.documents {
		days := f.privacyFor(document.OwnerID).DataRetentionDays
		if days > 0 && document.CreatedAt.Before(now.AddDate(0, 0, -days)) {
			out = append(out, document)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) LawyerCanSeeDocument(ctx context.Context, lawyerID, documentID string) (bool, error) {
	if f.lawyerCanSeeFn != nil {
		return f.lawyerCanSeeFn(ctx, lawyerID, documentID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	document, ok := f.documents[documentID]
	if !ok || !f.privacyFor(document.OwnerID).ShareDocumentsWithLawyers {
		return false, nil
	}
	for _, appointment := range f.appointments {
		if appointment.LawyerID == lawyerID && appointment.DocumentID == documentID && appointment.Status != store.AppointmentCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) privacyFor(userID string) store.PrivacySettings {
	if settings, ok := f.privacy[userID]; ok {
		return settings
	}
	return store.DefaultPrivacy(userID)
}

func (f *fakeStore) InsertAppointment(ctx context.Context, item store.Appointment) error {
	if f.insertAppointmentFn != nil {
		if err := f.insertAppointmentFn(ctx, item); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.appointments {
		if existing.LawyerID != item.LawyerID || existing.Status == store.AppointmentCancelled {
			continue
		}
		if item.ScheduledAt.Before(existing.EndsAt()) && existing.ScheduledAt.Before(item.EndsAt()) {
			return store.ErrConflict
		}
	}
	f.appointments[item.ID] = item
	return nil
}

func (f *fakeStore) GetAppointment(_ context.Context, id string) (store.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appointment, ok := f.appointments[id]
	if !ok {
		return store.Appointment{}, store.ErrNotFound
	}
	return appointment, nil
}

func (f *fakeStore) ListAppointments(_ context.Context, userID, lawyerID string) ([]store.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Appointment{}
	for _, appointment := range f.appointments {
		if (userID != "" && appointment.UserID == userID) || (lawyerID != "" && appointment.LawyerID == lawyerID) {
			out = append(out, appointment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (f *fakeStore) UpdateAppointmentStatus(_ context.Context, id, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appointment, ok := f.appointments[id]
	if !ok || appointment.Status != from {
		return false, nil
	}
	appointment.Status = to
	f.appointments[id] = appointment
	return true, nil
}

func (f *fakeStore) ListFAQs(_ context.Context, category, language string, limit, offset int) ([]store.FAQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.FAQ{}
	for _, faq := range f.faqs {
		if category != "" && faq.Category != category {
			continue
		}
		if language != "" && faq.Language != language {
			continue
		}
		out = append(out, faq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (f *fakeStore) ListFAQsByID(_ context.Context, ids []string) ([]store.FAQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.FAQ{}
	for _, id := range ids {
		if faq, ok := f.faqs[id]; ok {
			out = append(out, faq)
		}
	}
	return out, nil
}

func (f *fakeStore) GetFAQ(_ context.Context, id string) (store.FAQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	faq, ok := f.faqs[id]
	if !ok {
		return store.FAQ{}, store.ErrNotFound
	}
	return faq, nil
}

func (f *fakeStore) ViewFAQ(_ context.Context, id string) (store.FAQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	faq, ok := f.faqs[id]
	if !ok {
		return store.FAQ{}, store.ErrNotFound
	}
	faq.ViewCount++
	f.faqs[id] = faq
	return faq, nil
}

func (f *fakeStore) UpsertFAQ(_ context.Context, item store.FAQ) (store.FAQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faqs[item.ID] = item
	return item, nil
}

func (f *fakeStore) DeleteFAQ(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.faqs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.faqs, id)
	return nil
}

func (f *fakeStore) ListFAQCategories(context.Context) ([]store.FAQCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, faq := range f.faqs {
		counts[faq.Category]++
	}
	out := []store.FAQCategory{}
	for category, count := range counts {
		out = append(out, store.FAQCategory{Category: category, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func containsFold(list []string, want string) bool {
	if want == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}

// fakeSearch records index calls and returns fixed hits.
type fakeSearch struct {
	mu      sync.Mutex
	hits    map[search.Index][]search.Hit
	queries []search.Query
	indexed []string
	removed []string
	backend string
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	hits := f.hits[q.Index]
	if hits == nil {
		hits = []search.Hit{}
	}
	backend := f.backend
	if backend == "" {
		backend = search.BackendPG
	}
	return search.Response{Hits: hits, Total: len(hits), Query: q.Text, Backend: backend}
}

func (f *fakeSearch) IndexLawyer(record search.LawyerRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, record.ID)
}

func (f *fakeSearch) DeleteLawyer(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
}

func (f *fakeSearch) IndexFAQ(record search.FAQRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, record.ID)
}

func (f *fakeSearch) DeleteFAQ(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
}

// fakeOCR returns text for every file.
type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) Text(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

const testSecret = "test-secret"

func testConfig() config.Config {
	return config.Config{
		JWTSecret:         testSecret,
		AccessTTL:         time.Hour,
		RefreshTTL:        24 * time.Hour,
		PublicBaseURL:     "http://localhost:3000",
		TOTPIssuer:        "Nyay Sakhi",
		MaxUploadBytes:    1 << 20,
		ProcessingWorkers: 2,
	}
}

// newTestService builds a Service on fakes and shuts its worker pool down
// when the test ends.
func newTestService(t *testing.T, fs *fakeStore, deps Deps) *Service {
	t.Helper()
	deps.Store = fs
	if deps.Search == nil {
		deps.Search = &fakeSearch{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	svc := New(testConfig(), deps)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

// bearerFor issues an access token for user without going through sign-in.
func bearerFor(t *testing.T, user store.User) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  "jti-" + user.ID,
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func seedUser(fs *fakeStore, id, role string) store.User {
	return fs.addUser(store.User{
		ID:              id,
		DisplayName:     strings.ToUpper(id[:1]) + id[1:],
		Email:           id + "@example.com",
		Role:            role,
		IsEmailVerified: true,
	})
}

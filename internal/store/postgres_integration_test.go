package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openIntegrationStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("NYAY_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("NYAY_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if _, err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func TestPostgresUsersAndPrivacy(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	user := User{ID: "usr_1", DisplayName: "Asha", Email: "Asha@Example.com", PasswordHash: "x", Role: "user"}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, User{ID: "usr_2", DisplayName: "Dup", Email: "asha@example.com", PasswordHash: "x", Role: "user"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, " ASHA@example.com ")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if got.ID != "usr_1" || got.Email != "asha@example.com" {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := s.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	settings, err := s.GetPrivacySettings(ctx, "usr_1")
	if err != nil {
		t.Fatalf("get privacy: %v", err)
	}
	if settings != DefaultPrivacy("usr_1") {
		t.Fatalf("expected default privacy, got %+v", settings)
	}
	settings.ShareDocumentsWithLawyers = true
	settings.DataRetentionDays = 90
	if err := s.SavePrivacySettings(ctx, settings); err != nil {
		t.Fatalf("save privacy: %v", err)
	}
	settings, err = s.GetPrivacySettings(ctx, "usr_1")
	if err != nil {
		t.Fatalf("reload privacy: %v", err)
	}
	if !settings.ShareDocumentsWithLawyers || settings.DataRetentionDays != 90 {
		t.Fatalf("privacy not saved: %+v", settings)
	}

	for _, tc := range []struct {
		step int64
		want bool
	}{{100, true}, {100, false}, {99, false}, {101, true}} {
		claimed, err := s.ClaimTOTPStep(ctx, "usr_1", tc.step)
		if err != nil {
			t.Fatalf("claim totp step %d: %v", tc.step, err)
		}
		if claimed != tc.want {
			t.Fatalf("claim totp step %d = %v, want %v", tc.step, claimed, tc.want)
		}
	}
}

func TestPostgresLawyerFilters(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	for _, lawyer := range []Lawyer{
		{ID: "law_1", Name: "Meera Rao", PracticeAreas: []string{"Criminal"}, District: "Pune", Languages: []string{"Marathi", "English"}, ExperienceYears: 12, Rating: 4.5, Available: true},
		{ID: "law_2", Name: "Kabir Singh", PracticeAreas: []string{"family"}, District: "Lucknow", Languages: []string{"Hindi"}, ExperienceYears: 4, Rating: 4.8, Available: true},
		{ID: "law_3", Name: "Ira Das", PracticeAreas: []string{"criminal", "cyber"}, District: "Lucknow", ExperienceYears: 7, Rating: 3.9, Available: false},
	} {
		if _, err := s.UpsertLawyer(ctx, lawyer); err != nil {
			t.Fatalf("upsert %s: %v", lawyer.ID, err)
		}
	}

	items, total, err := s.ListLawyers(ctx, LawyerFilter{PracticeArea: "CRIMINAL"})
	if err != nil {
		t.Fatalf("list lawyers: %v", err)
	}
	if total != 2 || len(items) != 2 || items[0].ID != "law_1" {
		t.Fatalf("unexpected criminal listing total=%d items=%+v", total, items)
	}

	available := true
	items, _, err = s.ListLawyers(ctx, LawyerFilter{District: "lucknow", Available: &available})
	if err != nil {
		t.Fatalf("list by district: %v", err)
	}
	if len(items) != 1 || items[0].ID != "law_2" {
		t.Fatalf("unexpected district listing %+v", items)
	}

	items, _, err = s.ListLawyers(ctx, LawyerFilter{Language: "english"})
	if err != nil {
		t.Fatalf("list by language: %v", err)
	}
	if len(items) != 1 || items[0].ID != "law_1" {
		t.Fatalf("unexpected language listing %+v", items)
	}

	candidates, err := s.ListMatchCandidates(ctx, "cyber", "Pune")
	if err != nil {
		t.Fatalf("match candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != "law_1" {
		t.Fatalf("unexpected candidates %+v", candidates)
	}
}

func TestPostgresAppointmentOverlap(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	if err := s.CreateUser(ctx, User{ID: "usr_1", DisplayName: "Asha", Email: "asha@example.com", PasswordHash: "x", Role: "user"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.UpsertLawyer(ctx, Lawyer{ID: "law_1", Name: "Meera", PracticeAreas: []string{"civil"}, Available: true}); err != nil {
		t.Fatalf("upsert lawyer: %v", err)
	}

	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	first := Appointment{ID: "apt_1", UserID: "usr_1", LawyerID: "law_1", ScheduledAt: start, DurationMinutes: 60, Mode: "video", Status: AppointmentPending}
	if err := s.InsertAppointment(ctx, first); err != nil {
		t.Fatalf("insert first: %v", err)
	}

	overlapping := first
	overlapping.ID = "apt_2"
	overlapping.ScheduledAt = start.Add(30 * time.Minute)
	if err := s.InsertAppointment(ctx, overlapping); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	adjacent := first
	adjacent.ID = "apt_3"
	adjacent.ScheduledAt = start.Add(time.Hour)
	if err := s.InsertAppointment(ctx, adjacent); err != nil {
		t.Fatalf("insert adjacent: %v", err)
	}

	moved, err := s.UpdateAppointmentStatus(ctx, "apt_1", AppointmentPending, AppointmentCancelled)
	if err != nil || !moved {
		t.Fatalf("cancel first: moved=%v err=%v", moved, err)
	}
	if err := s.InsertAppointment(ctx, overlapping); err != nil {
		t.Fatalf("insert after cancel: %v", err)
	}
}

func TestPostgresFAQsByIDKeepsOrder(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	for _, id := range []string{"faq_a", "faq_b", "faq_c"} {
		if _, err := s.UpsertFAQ(ctx, FAQ{ID: id, Question: "Q " + id, Answer: "A", Category: "general", Language: "en"}); err != nil {
			t.Fatalf("upsert faq: %v", err)
		}
	}
	items, err := s.ListFAQsByID(ctx, []string{"faq_c", "faq_a"})
	if err != nil {
		t.Fatalf("list by id: %v", err)
	}
	if len(items) != 2 || items[0].ID != "faq_c" || items[1].ID != "faq_a" {
		t.Fatalf("unexpected order %+v", items)
	}

	viewed, err := s.ViewFAQ(ctx, "faq_b")
	if err != nil {
		t.Fatalf("view faq: %v", err)
	}
	if viewed.ViewCount != 1 {
		t.Fatalf("expected view count 1, got %d", viewed.ViewCount)
	}
}

func TestPostgresDirectoryOptInAndRetention(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	for _, user := range []User{
		{ID: "usr_law", DisplayName: "Meera", Email: "meera@example.com", PasswordHash: "x", Role: "lawyer"},
		{ID: "usr_keep", DisplayName: "Asha", Email: "asha@example.com", PasswordHash: "x", Role: "user"},
		{ID: "usr_short", DisplayName: "Ravi", Email: "ravi@example.com", PasswordHash: "x", Role: "user"},
	} {
		if err := s.CreateUser(ctx, user); err != nil {
			t.Fatalf("create %s: %v", user.ID, err)
		}
	}
	for _, lawyer := range []Lawyer{
		{ID: "law_curated", Name: "Kabir Singh", PracticeAreas: []string{"criminal"}, District: "Pune", Available: true},
		{ID: "law_linked", UserID: "usr_law", Name: "Meera Rao", PracticeAreas: []string{"criminal"}, District: "Pune", Available: true},
	} {
		if _, err := s.UpsertLawyer(ctx, lawyer); err != nil {
			t.Fatalf("upsert %s: %v", lawyer.ID, err)
		}
	}

	listedIDs := func() []string {
		t.Helper()
		items, _, err := s.ListLawyers(ctx, LawyerFilter{Listed: true})
		if err != nil {
			t.Fatalf("list listed lawyers: %v", err)
		}
		candidates, err := s.ListMatchCandidates(ctx, "criminal", "")
		if err != nil {
			t.Fatalf("match candidates: %v", err)
		}
		if len(candidates) != len(items) {
			t.Fatalf("listing and candidates disagree: %+v vs %+v", items, candidates)
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		return ids
	}
	if ids := listedIDs(); len(ids) != 1 || ids[0] != "law_curated" {
		t.Fatalf("expected only the curated profile before opt-in, got %v", ids)
	}
	settings := DefaultPrivacy("usr_law")
	settings.ShowInDirectory = true
	if err := s.SavePrivacySettings(ctx, settings); err != nil {
		t.Fatalf("save privacy: %v", err)
	}
	if ids := listedIDs(); len(ids) != 2 {
		t.Fatalf("expected both profiles after opt-in, got %v", ids)
	}

	short := DefaultPrivacy("usr_short")
	short.DataRetentionDays = 30
	if err := s.SavePrivacySettings(ctx, short); err != nil {
		t.Fatalf("save retention: %v", err)
	}
	for id, owner := range map[string]string{"doc_keep": "usr_keep", "doc_old": "usr_short", "doc_new": "usr_short"} {
		if err := s.InsertDocument(ctx, Document{ID: id, OwnerID: owner, Title: id, FileName: "fir.pdf", ContentType: "application/pdf", ObjectKey: "documents/" + id}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	for _, id := range []string{"doc_keep", "doc_old"} {
		if _, err := s.db.ExecContext(ctx, `UPDATE documents SET created_at = NOW() - INTERVAL '45 days' WHERE id=$1`, id); err != nil {
			t.Fatalf("age %s: %v", id, err)
		}
	}

	expired, err := s.ListExpiredDocuments(ctx, 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "doc_old" || expired[0].ObjectKey != "documents/doc_old" {
		t.Fatalf("expected only doc_old to be expired, got %+v", expired)
	}
}

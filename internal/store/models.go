package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would break a uniqueness rule.
var ErrConflict = errors.New("conflict")

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	TOTPSecret            string
	TOTPPendingSecret     string
	TOTPEnabled           bool
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type PrivacySettings struct {
	UserID                    string
	ShareDocumentsWithLawyers bool
	AllowLawyerContact        bool
	ShowInDirectory           bool
	MarketingEmails           bool
	DataRetentionDays         int
	UpdatedAt                 time.Time
}

// DefaultPrivacy is what a user gets before saving any settings.
func DefaultPrivacy(userID string) PrivacySettings {
	return PrivacySettings{UserID: userID, AllowLawyerContact: true}
}

type RefreshSession struct {
	ID        string
	TokenHash string
	UserID    string
	UserAgent string
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Lawyer struct {
	ID              string
	UserID          string
	Name            string
	Email           string
	Phone           string
	PracticeAreas   []string
	District        string
	State           string
	Languages       []string
	ExperienceYears int
	Rating          float64
	FeeMin          int
	FeeMax          int
	Bio             string
	BarCouncilID    string
	Available       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LawyerFilter narrows a directory listing. Zero values do not filter.
type LawyerFilter struct {
	IDs           []string
	PracticeArea  string
	District      string
	Language      string
	MinExperience int
	Available     *bool
	// Listed hides profiles linked to an account that has not opted into
	// the public directory.
	Listed bool
	Sort   string
	Limit  int
	Offset int
}

// Document statuses.
const (
	DocumentUploaded   = "uploaded"
	DocumentProcessing = "processing"
	DocumentProcessed  = "processed"
	DocumentFailed     = "failed"
)

type Document struct {
	ID              string
	OwnerID         string
	Title           string
	FileName        string
	ContentType     string
	SizeBytes       int64
	ObjectKey       string
	Status          string
	OCRText         string
	ExtractedData   []byte
	ProcessingError string
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Appointment statuses.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

type Appointment struct {
	ID              string
	UserID          string
	LawyerID        string
	DocumentID      string
	ScheduledAt     time.Time
	DurationMinutes int
	Mode            string
	Status          string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndsAt is the end of the booked slot.
func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

type FAQ struct {
	ID        string
	Question  string
	Answer    string
	Category  string
	Language  string
	Tags      []string
	ViewCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type FAQCategory struct {
	Category string
	Count    int
}

type AuditEvent struct {
	ID         int64
	UserID     string
	Action     string
	TargetType string
	TargetID   string
	IP         string
	UserAgent  string
	Metadata   map[string]any
	CreatedAt  time.Time
}

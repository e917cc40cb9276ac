// Package export renders case reports as PDF or DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat accepts "pdf" or "docx", defaulting to PDF when empty.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatDOCX:
		return FormatDOCX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Report is everything shown in a case report.
type Report struct {
	DocumentID  string
	Title       string
	FileName    string
	ContentType string
	SizeBytes   int64
	Status      string
	UploadedAt  time.Time
	ProcessedAt *time.Time
	OwnerName   string

	DocumentType string
	Summary      string
	Confidence   float64
	Fields       []Field
	Matches      []Match
	GeneratedAt  time.Time
}

// Field is one labelled extracted value.
type Field struct {
	Label string
	Value string
}

// Match is one recommended lawyer.
type Match struct {
	Name            string
	PracticeAreas   string
	District        string
	ExperienceYears int
	Rating          float64
	Score           float64
	Reasons         string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("export format must be pdf or docx")
	// ErrPDFDependencyMissing indicates headless Chrome is not installed.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates pandoc is not installed.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

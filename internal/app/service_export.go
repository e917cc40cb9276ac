package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"nyaysakhi/api/internal/export"
	"nyaysakhi/api/internal/extract"
	"nyaysakhi/api/internal/store"
)

const reportMatches = 5

// ExportReport renders a case report for a document the caller can see.
func (s *Service) ExportReport(ctx context.Context, session Session, documentID, format string) (*export.Result, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_FORMAT", err.Error(), nil)
	}
	document, err := s.visibleDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}

	ownerName := session.UserName
	if document.OwnerID != session.UserID {
		if owner, err := s.store.GetUserByID(ctx, document.OwnerID); err == nil {
			ownerName = owner.DisplayName
		}
	}
	report := export.Report{
		DocumentID:  document.ID,
		Title:       document.Title,
		FileName:    document.FileName,
		ContentType: document.ContentType,
		SizeBytes:   document.SizeBytes,
		Status:      document.Status,
		UploadedAt:  document.CreatedAt,
		ProcessedAt: document.ProcessedAt,
		OwnerName:   ownerName,
		GeneratedAt: s.now(),
	}
	if data, ok := decodeExtracted(document); ok && document.Status == store.DocumentProcessed {
		report.DocumentType = data.DocumentType
		report.Summary = data.Summary()
		report.Confidence = data.Confidence
		report.Fields = reportFields(data)

		matches, err := s.documentMatches(ctx, document, reportMatches)
		if err != nil {
			return nil, err
		}
		for _, match := range matches.Matches {
			report.Matches = append(report.Matches, export.Match{
				Name:            match.Profile.Name,
				PracticeAreas:   strings.Join(match.Profile.PracticeAreas, ", "),
				District:        match.Profile.District,
				ExperienceYears: match.Profile.ExperienceYears,
				Rating:          match.Profile.Rating,
				Score:           match.Score,
				Reasons:         strings.Join(match.Reasons, ", "),
			})
		}
	}

	result, err := s.exporter.Export(ctx, report, parsed)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Report export is not available on this server", nil)
		}
		return nil, err
	}
	return result, nil
}

func reportFields(data extract.Data) []export.Field {
	var fields []export.Field
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fields = append(fields, export.Field{Label: label, Value: value})
		}
	}
	add("Case number", data.CaseNumber)
	add("FIR number", data.FIRNumber)
	add("Police station", data.PoliceStation)
	add("Court", data.CourtName)
	add("Petitioners", strings.Join(data.Petitioners, "; "))
	add("Respondents", strings.Join(data.Respondents, "; "))
	add("Dates", strings.Join(data.Dates, ", "))
	add("Sections", strings.Join(data.Sections, ", "))
	add("Acts", strings.Join(data.Acts, ", "))
	add("Amounts", strings.Join(data.Amounts, ", "))
	add("District", data.District)
	add("State", data.State)
	add("Practice area", data.PracticeArea)
	add("Keywords", strings.Join(data.Keywords, ", "))
	return fields
}

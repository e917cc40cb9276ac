package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type converter func(ctx context.Context, html, title string) (*Result, error)

// Service provides report export functionality
type Service struct {
	pdf  converter
	docx converter
	log  *zap.Logger
}

// NewService returns a service backed by chromedp and pandoc.
func NewService(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{pdf: exportPDF, docx: exportDOCX, log: log}
}

// Export renders the report HTML and converts it to the requested format.
func (s *Service) Export(ctx context.Context, report Report, format Format) (*Result, error) {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	html, err := RenderReportHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := report.Title
	if title == "" {
		title = "case-report"
	}

	var convert converter
	switch format {
	case FormatPDF:
		convert = s.pdf
	case FormatDOCX:
		convert = s.docx
	default:
		return nil, ErrUnsupportedFormat
	}

	started := time.Now()
	result, err := convert(ctx, html, title)
	if err != nil {
		return nil, err
	}
	s.log.Info("report exported",
		zap.String("document_id", report.DocumentID),
		zap.String("format", string(format)),
		zap.Int("bytes", len(result.Data)),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

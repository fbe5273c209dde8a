package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
	"github.com/estudio-sys/estudio-adm-api/pkg/export"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportLogRepository interface {
	List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationEntry, int, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	MaxRows int
}

// ExportResult carries a rendered file ready to stream to the caller.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders verification log extracts as CSV or PDF. Files are
// built in memory and streamed back; nothing is persisted on disk.
type ExportService struct {
	log    exportLogRepository
	csv    csvRenderer
	pdf    pdfRenderer
	cfg    ExportConfig
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(log exportLogRepository, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{log: log, csv: csv, pdf: pdf, cfg: cfg, logger: logger}
}

// ExportVerificationsRequest scopes the extract.
type ExportVerificationsRequest struct {
	Format   string `json:"format" validate:"omitempty,oneof=csv pdf"`
	DNI      *int64 `json:"dni"`
	Activity string `json:"activity"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// ExportVerifications builds and renders a verification log extract.
func (s *ExportService) ExportVerifications(ctx context.Context, req ExportVerificationsRequest) (*ExportResult, error) {
	format := ExportFormat(strings.ToLower(req.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	filter := models.VerificationFilter{
		DNI:          req.DNI,
		ActivityName: req.Activity,
		Page:         1,
		PageSize:     s.cfg.MaxRows,
		SortBy:       "verified_on",
		SortOrder:    "asc",
	}
	if req.From != "" {
		from, err := time.Parse(dateLayout, req.From)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid from date, expected YYYY-MM-DD")
		}
		day := startOfDay(from)
		filter.From = &day
	}
	if req.To != "" {
		to, err := time.Parse(dateLayout, req.To)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid to date, expected YYYY-MM-DD")
		}
		day := startOfDay(to)
		filter.To = &day
	}

	entries, total, err := s.log.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verifications")
	}
	if total > s.cfg.MaxRows {
		s.logger.Warn("export truncated", zap.Int("total", total), zap.Int("max_rows", s.cfg.MaxRows))
	}

	dataset := buildVerificationDataset(entries)
	title := "Registro de Verificaciones"

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportResult{
		Filename:    buildExportFilename(format),
		ContentType: contentTypeFor(format),
		Payload:     payload,
	}, nil
}

func buildVerificationDataset(entries []models.VerificationEntry) export.Dataset {
	headers := []string{"DNI", "Client", "Activity", "Date", "Method", "Kind"}
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		kind := ""
		if entry.Kind != nil {
			kind = *entry.Kind
		}
		rows = append(rows, map[string]string{
			"DNI":      fmt.Sprintf("%d", entry.ClientDNI),
			"Client":   entry.ClientName,
			"Activity": entry.ActivityName,
			"Date":     entry.VerifiedOn.UTC().Format(dateLayout),
			"Method":   string(entry.Method),
			"Kind":     kind,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func buildExportFilename(format ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("verificaciones_%s.%s", timestamp, format)
}

func contentTypeFor(format ExportFormat) string {
	if format == ExportFormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

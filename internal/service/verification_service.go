package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
	"github.com/estudio-sys/estudio-adm-api/internal/repository"
	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
)

type verificationLogRepository interface {
	List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationEntry, int, error)
	ExistsForDay(ctx context.Context, dni int64, activityName string, day time.Time) (bool, error)
	Insert(ctx context.Context, entry *models.VerificationEntry) (bool, error)
	DeleteByID(ctx context.Context, id string) error
}

type verificationLedgerRepository interface {
	GetEntry(ctx context.Context, dni int64, activityName string) (*models.LedgerEntry, error)
	ApplyVerification(ctx context.Context, dni int64, activityName string, asOf time.Time) (bool, error)
}

// VerificationService exposes the verification log: listings, manual
// in-person marks and admin deletes. Manual marks follow the same
// idempotency and counter rules as the reconciliation engine.
type VerificationService struct {
	log       verificationLogRepository
	ledger    verificationLedgerRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVerificationService constructs the service.
func NewVerificationService(log verificationLogRepository, ledger verificationLedgerRepository, validate *validator.Validate, logger *zap.Logger) *VerificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &VerificationService{log: log, ledger: ledger, validator: validate, logger: logger}
	svc.validator.RegisterValidation("verification_method", func(fl validator.FieldLevel) bool {
		return models.VerificationMethod(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// ListVerificationsRequest filters log listings.
type ListVerificationsRequest struct {
	DNI       *int64  `json:"dni"`
	Activity  string  `json:"activity"`
	Method    *string `json:"method" validate:"omitempty,verification_method"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
}

// MarkPresencialRequest records an in-person class check.
type MarkPresencialRequest struct {
	DNI        int64  `json:"dni" validate:"required,gt=0"`
	ClientName string `json:"client_name" validate:"required"`
	Activity   string `json:"activity" validate:"required"`
	Date       string `json:"date" validate:"required"`
}

// List returns paginated log entries.
func (s *VerificationService) List(ctx context.Context, req ListVerificationsRequest) ([]models.VerificationEntry, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	filter, err := buildVerificationFilter(req)
	if err != nil {
		return nil, nil, err
	}
	rows, total, err := s.log.List(ctx, *filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list verifications")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// MarkPresencial logs an in-person verification and credits the ledger.
func (s *VerificationService) MarkPresencial(ctx context.Context, req MarkPresencialRequest) (*models.VerificationEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	day := startOfDay(date)

	entry, err := s.ledger.GetEntry(ctx, req.DNI, req.Activity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no enrollment ledger entry for this activity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger entry")
	}
	if entry.PendingClasses <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no pending classes left")
	}

	exists, err := s.log.ExistsForDay(ctx, req.DNI, req.Activity, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check verification log")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already verified that day")
	}

	record := &models.VerificationEntry{
		ClientDNI:    req.DNI,
		ClientName:   req.ClientName,
		ActivityName: req.Activity,
		VerifiedOn:   day,
		Method:       models.MethodPresencial,
	}
	inserted, err := s.log.Insert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert verification")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already verified that day")
	}

	if updated, err := s.ledger.ApplyVerification(ctx, req.DNI, req.Activity, day); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ledger counters")
	} else if !updated {
		s.logger.Warn("presencial verification logged but counters not updated",
			zap.Int64("dni", req.DNI), zap.String("activity", req.Activity))
	}

	return record, nil
}

// Delete removes a log entry by id. Counters are not restored; the admin
// fixes the ledger separately when needed.
func (s *VerificationService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "verification id required")
	}
	if err := s.log.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return appErrors.Clone(appErrors.ErrNotFound, "verification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete verification")
	}
	return nil
}

func buildVerificationFilter(req ListVerificationsRequest) (*models.VerificationFilter, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	filter := &models.VerificationFilter{
		DNI:          req.DNI,
		ActivityName: req.Activity,
		Page:         page,
		PageSize:     size,
		SortBy:       req.SortBy,
		SortOrder:    req.SortOrder,
	}
	if req.Method != nil {
		method := models.VerificationMethod(strings.ToLower(*req.Method))
		filter.Method = &method
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
	return filter, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
)

type clientRepository interface {
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error)
	FindByDNI(ctx context.Context, dni int64) (*models.Client, error)
	ListActivities(ctx context.Context, dni int64) ([]models.ClientActivity, error)
	Create(ctx context.Context, client *models.Client, activities []models.ClientActivity) error
	Update(ctx context.Context, client *models.Client, activities []models.ClientActivity) error
	Delete(ctx context.Context, dni int64) error
}

type ledgerSyncRepository interface {
	ListAll(ctx context.Context) ([]models.LedgerEntry, error)
	ListByDNI(ctx context.Context, dni int64) ([]models.LedgerEntry, error)
	ReplaceForClient(ctx context.Context, dni int64, entries []models.LedgerEntry) error
	DeleteForClient(ctx context.Context, dni int64) error
}

// ClientService owns the client registry and keeps the enrollment ledger in
// sync with activity edits.
type ClientService struct {
	repo      clientRepository
	ledger    ledgerSyncRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClientService constructs the service.
func NewClientService(repo clientRepository, ledger ledgerSyncRepository, validate *validator.Validate, logger *zap.Logger) *ClientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{repo: repo, ledger: ledger, validator: validate, logger: logger}
}

// ActivityPayload is one enrollment inside a create/update request. Visit
// days accept numbers or Spanish day names; unrecognized values are dropped.
type ActivityPayload struct {
	Name           string        `json:"name" validate:"required"`
	Rate           float64       `json:"rate"`
	MonthlyClasses int           `json:"monthly_classes" validate:"gte=0"`
	PendingClasses int           `json:"pending_classes" validate:"gte=0"`
	Instructor     *string       `json:"instructor"`
	VisitDays      []interface{} `json:"visit_days"`
}

// CreateClientRequest registers a new member.
type CreateClientRequest struct {
	DNI        int64             `json:"dni" validate:"required,gt=0"`
	FullName   string            `json:"full_name" validate:"required"`
	Phone      *string           `json:"phone"`
	Email      *string           `json:"email" validate:"omitempty,email"`
	Activities []ActivityPayload `json:"activities" validate:"dive"`
}

// UpdateClientRequest rewrites a member's record and activity list.
type UpdateClientRequest struct {
	FullName   string            `json:"full_name" validate:"required"`
	Phone      *string           `json:"phone"`
	Email      *string           `json:"email" validate:"omitempty,email"`
	Activities []ActivityPayload `json:"activities" validate:"dive"`
}

// ListClientsRequest filters registry listings.
type ListClientsRequest struct {
	Search    string `json:"search"`
	Activity  string `json:"activity"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// List returns paginated clients.
func (s *ClientService) List(ctx context.Context, req ListClientsRequest) ([]models.Client, *models.Pagination, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	filter := models.ClientFilter{
		Search:    req.Search,
		Activity:  req.Activity,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clients")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// Get returns a client with its activity list.
func (s *ClientService) Get(ctx context.Context, dni int64) (*models.ClientDetail, error) {
	client, err := s.repo.FindByDNI(ctx, dni)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	activities, err := s.repo.ListActivities(ctx, dni)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activities")
	}
	return &models.ClientDetail{Client: *client, Activities: activities}, nil
}

// Create registers a client and seeds one ledger entry per activity.
func (s *ClientService) Create(ctx context.Context, req CreateClientRequest) (*models.ClientDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}

	if _, err := s.repo.FindByDNI(ctx, req.DNI); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a client with this dni already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check dni")
	}

	client := &models.Client{
		DNI:      req.DNI,
		FullName: req.FullName,
		Phone:    req.Phone,
		Email:    req.Email,
	}
	activities := buildActivities(req.DNI, req.Activities)
	if err := s.repo.Create(ctx, client, activities); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client")
	}

	if err := s.ledger.ReplaceForClient(ctx, req.DNI, buildLedgerEntries(req.DNI, activities)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed enrollment ledger")
	}

	return s.Get(ctx, req.DNI)
}

// Update rewrites the client and replaces both its activity list and its
// ledger entries. Full replace, not a merge: completed-class counters on the
// ledger reset to zero on every edit.
func (s *ClientService) Update(ctx context.Context, dni int64, req UpdateClientRequest) (*models.ClientDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}

	existing, err := s.repo.FindByDNI(ctx, dni)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}

	client := &models.Client{
		ID:        existing.ID,
		DNI:       dni,
		FullName:  req.FullName,
		Phone:     req.Phone,
		Email:     req.Email,
		CreatedAt: existing.CreatedAt,
	}
	activities := buildActivities(dni, req.Activities)
	if err := s.repo.Update(ctx, client, activities); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update client")
	}

	if err := s.ledger.ReplaceForClient(ctx, dni, buildLedgerEntries(dni, activities)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync enrollment ledger")
	}

	return s.Get(ctx, dni)
}

// Delete removes a client and its ledger entries. The verification log is
// left intact as history.
func (s *ClientService) Delete(ctx context.Context, dni int64) error {
	if _, err := s.repo.FindByDNI(ctx, dni); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	if err := s.ledger.DeleteForClient(ctx, dni); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete ledger entries")
	}
	if err := s.repo.Delete(ctx, dni); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete client")
	}
	return nil
}

// Ledger returns ledger entries, either all or scoped to one client.
func (s *ClientService) Ledger(ctx context.Context, dni *int64) ([]models.LedgerEntry, error) {
	var (
		entries []models.LedgerEntry
		err     error
	)
	if dni != nil {
		entries, err = s.ledger.ListByDNI(ctx, *dni)
	} else {
		entries, err = s.ledger.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger entries")
	}
	return entries, nil
}

func buildActivities(dni int64, payloads []ActivityPayload) []models.ClientActivity {
	activities := make([]models.ClientActivity, 0, len(payloads))
	for _, p := range payloads {
		days := models.NormalizeWeekdays(p.VisitDays)
		visitDays := make(pq.Int64Array, 0, len(days))
		for _, day := range days {
			visitDays = append(visitDays, int64(day))
		}
		activities = append(activities, models.ClientActivity{
			ClientDNI:      dni,
			ActivityName:   p.Name,
			Rate:           p.Rate,
			MonthlyClasses: p.MonthlyClasses,
			PendingClasses: p.PendingClasses,
			Instructor:     p.Instructor,
			VisitDays:      visitDays,
		})
	}
	return activities
}

func buildLedgerEntries(dni int64, activities []models.ClientActivity) []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, len(activities))
	for _, act := range activities {
		entries = append(entries, models.LedgerEntry{
			ClientDNI:      dni,
			ActivityName:   act.ActivityName,
			PendingClasses: act.PendingClasses,
			MonthlyClasses: act.MonthlyClasses,
			VisitDays:      act.VisitDays,
		})
	}
	return entries
}

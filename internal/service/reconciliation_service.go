package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
)

const (
	dateLayout = "2006-01-02"

	reasonNoLedgerEntry   = "no enrollment ledger entry"
	reasonNoPending       = "no pending classes left"
	reasonAlreadyVerified = "already verified that day"
	reasonCountersStale   = "verification logged but counters not updated"
)

type reconciliationClientRepository interface {
	ListAll(ctx context.Context) ([]models.Client, error)
	FindByDNI(ctx context.Context, dni int64) (*models.Client, error)
}

type reconciliationLedgerRepository interface {
	ListAll(ctx context.Context) ([]models.LedgerEntry, error)
	GetEntry(ctx context.Context, dni int64, activityName string) (*models.LedgerEntry, error)
	ApplyVerification(ctx context.Context, dni int64, activityName string, asOf time.Time) (bool, error)
}

type reconciliationLogRepository interface {
	FindInRange(ctx context.Context, from, to time.Time) ([]models.VerificationEntry, error)
	ExistsForDay(ctx context.Context, dni int64, activityName string, day time.Time) (bool, error)
	Insert(ctx context.Context, entry *models.VerificationEntry) (bool, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ReconciliationService derives which (client, activity) pairs are owed a
// class verification and commits confirmed days against the ledger.
type ReconciliationService struct {
	clients   reconciliationClientRepository
	ledger    reconciliationLedgerRepository
	log       reconciliationLogRepository
	cache     summaryCache
	cacheTTL  time.Duration
	locks     *keyedMutex
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReconciliationService constructs the service. Cache may be nil.
func NewReconciliationService(clients reconciliationClientRepository, ledger reconciliationLedgerRepository, log reconciliationLogRepository, cache summaryCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ReconciliationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		clients:   clients,
		ledger:    ledger,
		log:       log,
		cache:     cache,
		cacheTTL:  cacheTTL,
		locks:     newKeyedMutex(),
		validator: validate,
		logger:    logger,
	}
}

// WeeklySummary computes the owed days for every (client, activity) pair in
// the ISO week (Monday start) containing the evaluation date. Purely
// derivational: no writes. The second return reports a cache hit.
func (s *ReconciliationService) WeeklySummary(ctx context.Context, rawDate string) (*models.WeeklySummary, bool, error) {
	evalDate, err := parseEvaluationDate(rawDate)
	if err != nil {
		return nil, false, err
	}

	cacheKey := fmt.Sprintf("reconciliation:weekly:%s", evalDate.Format(dateLayout))
	if s.cache != nil {
		var cached models.WeeklySummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, true, nil
		}
	}

	weekStart := startOfISOWeek(evalDate)
	weekEnd := weekStart.AddDate(0, 0, 6)

	clients, err := s.clients.ListAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clients")
	}
	entries, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment ledger")
	}
	logged, err := s.log.FindInRange(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification log")
	}

	clientsByDNI := make(map[int64]models.Client, len(clients))
	for _, client := range clients {
		clientsByDNI[client.DNI] = client
	}
	loggedDays := make(map[string]struct{}, len(logged))
	for _, entry := range logged {
		loggedDays[verificationKey(entry.ClientDNI, entry.ActivityName, entry.VerifiedOn)] = struct{}{}
	}

	summary := &models.WeeklySummary{
		EvaluationDate: evalDate,
		WeekStart:      weekStart,
		WeekEnd:        weekEnd,
		Rows:           make([]models.SummaryRow, 0, len(entries)),
	}

	for _, entry := range entries {
		client, ok := clientsByDNI[entry.ClientDNI]
		if !ok {
			// Orphaned ledger entry; the registry row was deleted out of band.
			s.logger.Warn("ledger entry without client", zap.Int64("dni", entry.ClientDNI), zap.String("activity", entry.ActivityName))
			continue
		}

		visitSet := entry.VisitDaySet()
		row := models.SummaryRow{
			ClientDNI:      client.DNI,
			ClientName:     client.FullName,
			ClientSince:    client.CreatedAt,
			ActivityName:   entry.ActivityName,
			PendingClasses: entry.PendingClasses,
			VisitDays:      sortedDays(visitSet),
			OwedDays:       []models.OwedDay{},
		}

		if len(visitSet) > 0 {
			enrolledFloor := startOfDay(client.CreatedAt)
			for i := 0; i < 7; i++ {
				day := weekStart.AddDate(0, 0, i)
				if day.After(evalDate) {
					break
				}
				weekday := int(day.Weekday())
				if _, due := visitSet[weekday]; !due {
					continue
				}
				if _, done := loggedDays[verificationKey(entry.ClientDNI, entry.ActivityName, day)]; done {
					continue
				}
				if day.Before(enrolledFloor) {
					continue
				}
				row.OwedDays = append(row.OwedDays, models.OwedDay{Weekday: weekday, Date: day})
			}
		}

		row.HasPending = len(row.OwedDays) > 0 && entry.PendingClasses > 0
		summary.Rows = append(summary.Rows, row)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache weekly summary", zap.Error(err))
		}
	}

	return summary, false, nil
}

// ConfirmItem names a client, an activity and the calendar days to commit.
type ConfirmItem struct {
	DNI          int64    `json:"dni" validate:"required"`
	ActivityName string   `json:"activity" validate:"required"`
	ClientName   string   `json:"client_name"`
	Dates        []string `json:"dates" validate:"required,min=1,dive,required"`
}

// ConfirmVerificationsRequest is the batch confirmation payload.
type ConfirmVerificationsRequest struct {
	Items []ConfirmItem `json:"items" validate:"required,min=1,dive"`
}

// ConfirmVerifications commits verification days. Items are processed oldest
// date first so a limited pending balance settles older debts before newer
// ones. Per-day business failures accumulate; only infrastructure errors
// abort the batch.
func (s *ReconciliationService) ConfirmVerifications(ctx context.Context, req ConfirmVerificationsRequest) (*models.ConfirmationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirmation payload")
	}

	items, err := parseConfirmItems(req.Items)
	if err != nil {
		return nil, err
	}

	result := &models.ConfirmationResult{
		Successes: []models.ConfirmationSuccess{},
		Failures:  []models.ConfirmationFailure{},
	}

	for _, item := range items {
		clientName, err := s.resolveClientName(ctx, item)
		if err != nil {
			return nil, err
		}

		for _, date := range item.dates {
			if err := s.confirmDay(ctx, item, clientName, date, result); err != nil {
				return nil, err
			}
		}
	}

	if result.VerificationsCreated > 0 && s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "reconciliation:weekly:*"); err != nil {
			s.logger.Warn("failed to invalidate summary cache", zap.Error(err))
		}
	}

	return result, nil
}

func (s *ReconciliationService) confirmDay(ctx context.Context, item confirmItem, clientName string, date time.Time, result *models.ConfirmationResult) error {
	lock := s.locks.Lock(lockKey(item.dni, item.activityName))
	defer lock.Unlock()

	entry, err := s.ledger.GetEntry(ctx, item.dni, item.activityName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Failures = append(result.Failures, failure(item, date, reasonNoLedgerEntry))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger entry")
	}
	if entry.PendingClasses <= 0 {
		result.Failures = append(result.Failures, failure(item, date, reasonNoPending))
		return nil
	}

	exists, err := s.log.ExistsForDay(ctx, item.dni, item.activityName, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check verification log")
	}
	if exists {
		result.Failures = append(result.Failures, failure(item, date, reasonAlreadyVerified))
		return nil
	}

	inserted, err := s.log.Insert(ctx, &models.VerificationEntry{
		ClientDNI:    item.dni,
		ClientName:   clientName,
		ActivityName: item.activityName,
		VerifiedOn:   date,
		Method:       models.MethodAutomatica,
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert verification")
	}
	if !inserted {
		// Lost the race against a concurrent writer; the unique index held.
		result.Failures = append(result.Failures, failure(item, date, reasonAlreadyVerified))
		return nil
	}
	result.VerificationsCreated++

	updated, err := s.ledger.ApplyVerification(ctx, item.dni, item.activityName, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ledger counters")
	}
	if !updated {
		// The log entry stays; operators reconcile the drift by hand.
		result.Partials = append(result.Partials, failure(item, date, reasonCountersStale))
		return nil
	}
	result.CountersUpdated++
	result.Successes = append(result.Successes, models.ConfirmationSuccess{
		DNI:          item.dni,
		ActivityName: item.activityName,
		Date:         date,
	})
	return nil
}

func (s *ReconciliationService) resolveClientName(ctx context.Context, item confirmItem) (string, error) {
	if item.clientName != "" {
		return item.clientName, nil
	}
	client, err := s.clients.FindByDNI(ctx, item.dni)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	return client.FullName, nil
}

type confirmItem struct {
	dni          int64
	activityName string
	clientName   string
	dates        []time.Time
}

func parseConfirmItems(raw []ConfirmItem) ([]confirmItem, error) {
	items := make([]confirmItem, 0, len(raw))
	for _, in := range raw {
		item := confirmItem{
			dni:          in.DNI,
			activityName: in.ActivityName,
			clientName:   in.ClientName,
			dates:        make([]time.Time, 0, len(in.Dates)),
		}
		for _, rawDate := range in.Dates {
			date, err := time.Parse(dateLayout, rawDate)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", rawDate))
			}
			item.dates = append(item.dates, startOfDay(date))
		}
		sort.Slice(item.dates, func(i, j int) bool { return item.dates[i].Before(item.dates[j]) })
		items = append(items, item)
	}
	// Oldest debts first across items as well.
	sort.SliceStable(items, func(i, j int) bool { return items[i].dates[0].Before(items[j].dates[0]) })
	return items, nil
}

func failure(item confirmItem, date time.Time, reason string) models.ConfirmationFailure {
	return models.ConfirmationFailure{
		DNI:          item.dni,
		ActivityName: item.activityName,
		Date:         date,
		Reason:       reason,
	}
}

func parseEvaluationDate(raw string) (time.Time, error) {
	if raw == "" {
		return startOfDay(time.Now().UTC()), nil
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return startOfDay(date), nil
}

func verificationKey(dni int64, activityName string, day time.Time) string {
	return fmt.Sprintf("%d|%s|%s", dni, activityName, day.Format(dateLayout))
}

func lockKey(dni int64, activityName string) string {
	return fmt.Sprintf("%d|%s", dni, activityName)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfISOWeek returns the Monday of the week containing t.
func startOfISOWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func sortedDays(set map[int]struct{}) []int {
	days := make([]int, 0, len(set))
	for day := range set {
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

package service

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
)

type cadenceClientRepository interface {
	ListAll(ctx context.Context) ([]models.Client, error)
}

type cadenceLedgerRepository interface {
	ListByDNI(ctx context.Context, dni int64) ([]models.LedgerEntry, error)
	ApplyVerification(ctx context.Context, dni int64, activityName string, asOf time.Time) (bool, error)
}

type cadenceLogRepository interface {
	DNIsVerifiedOn(ctx context.Context, day time.Time) (map[int64]struct{}, error)
	Insert(ctx context.Context, entry *models.VerificationEntry) (bool, error)
}

type cadenceStateStore interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, counters map[string]int) error
}

// CadenceService tracks consecutive missed days per client and auto-verifies
// once a plan-dependent threshold is reached. It is a separate policy from
// the weekly reconciliation engine and the two never cross-check each other.
type CadenceService struct {
	clients   cadenceClientRepository
	ledger    cadenceLedgerRepository
	log       cadenceLogRepository
	state     cadenceStateStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCadenceService constructs the service.
func NewCadenceService(clients cadenceClientRepository, ledger cadenceLedgerRepository, log cadenceLogRepository, state cadenceStateStore, validate *validator.Validate, logger *zap.Logger) *CadenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CadenceService{clients: clients, ledger: ledger, log: log, state: state, validator: validate, logger: logger}
}

// RunDailyCadenceRequest triggers one cadence evaluation. MissCounters, when
// present, overrides the stored state for this run; the updated map is
// persisted and returned either way.
type RunDailyCadenceRequest struct {
	Date         string         `json:"date"`
	MissCounters map[string]int `json:"miss_counters"`
}

// Miss thresholds by monthly plan size. Plans without an entry have no
// auto-verification rule.
var cadenceThresholds = map[int]int{
	12: 2,
	8:  3,
}

// RunDailyCadence evaluates the daily miss counters for the given date.
// Weekends are no-ops: counters are neither incremented nor reset.
func (s *CadenceService) RunDailyCadence(ctx context.Context, req RunDailyCadenceRequest) (*models.CadenceResult, error) {
	day, err := parseEvaluationDate(req.Date)
	if err != nil {
		return nil, err
	}

	counters := req.MissCounters
	if counters == nil {
		counters, err = s.state.Load(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cadence state")
		}
	}

	result := &models.CadenceResult{
		Date:         day,
		Decisions:    []models.CadenceDecision{},
		MissCounters: counters,
	}

	if weekday := day.Weekday(); weekday == time.Saturday || weekday == time.Sunday {
		result.Skipped = true
		result.SkipReason = "cadence does not run on weekends"
		return result, nil
	}

	clients, err := s.clients.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clients")
	}
	verifiedToday, err := s.log.DNIsVerifiedOn(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load today's verifications")
	}

	for _, client := range clients {
		decision, err := s.evaluateClient(ctx, client, day, verifiedToday, counters)
		if err != nil {
			return nil, err
		}
		result.Decisions = append(result.Decisions, decision)
	}

	if err := s.state.Save(ctx, counters); err != nil {
		s.logger.Warn("failed to persist cadence state", zap.Error(err))
	}

	return result, nil
}

func (s *CadenceService) evaluateClient(ctx context.Context, client models.Client, day time.Time, verifiedToday map[int64]struct{}, counters map[string]int) (models.CadenceDecision, error) {
	key := strconv.FormatInt(client.DNI, 10)
	decision := models.CadenceDecision{
		DNI:        client.DNI,
		ClientName: client.FullName,
		MissCount:  counters[key],
	}

	if _, verified := verifiedToday[client.DNI]; verified {
		decision.Reason = models.CadenceReasonVerifiedToday
		return decision, nil
	}

	counters[key]++
	decision.MissCount = counters[key]

	entries, err := s.ledger.ListByDNI(ctx, client.DNI)
	if err != nil {
		return decision, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger entries")
	}
	if len(entries) == 0 {
		decision.Reason = models.CadenceReasonNoLedger
		return decision, nil
	}

	// The plan size is read from the first ledger entry, as the legacy
	// system did; mixed-plan clients follow their first activity.
	quota := entries[0].MonthlyClasses
	decision.MonthlyClasses = quota

	if quota == 1 {
		decision.Reason = models.CadenceReasonSingleClass
		return decision, nil
	}
	threshold, hasRule := cadenceThresholds[quota]
	if !hasRule {
		decision.Reason = models.CadenceReasonNoAutoRule
		return decision, nil
	}
	if counters[key] < threshold {
		decision.Reason = models.CadenceReasonBelowThreshold
		return decision, nil
	}

	created := 0
	for _, entry := range entries {
		if entry.PendingClasses <= 0 {
			continue
		}
		kind := models.KindRegularClass
		inserted, err := s.log.Insert(ctx, &models.VerificationEntry{
			ClientDNI:    client.DNI,
			ClientName:   client.FullName,
			ActivityName: entry.ActivityName,
			VerifiedOn:   day,
			Method:       models.MethodAutomatica,
			Kind:         &kind,
		})
		if err != nil {
			return decision, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert verification")
		}
		if !inserted {
			continue
		}
		created++
		if updated, err := s.ledger.ApplyVerification(ctx, client.DNI, entry.ActivityName, day); err != nil {
			return decision, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ledger counters")
		} else if !updated {
			s.logger.Warn("cadence verification logged but counters not updated",
				zap.Int64("dni", client.DNI), zap.String("activity", entry.ActivityName))
		}
	}

	if created == 0 {
		decision.Reason = models.CadenceReasonNoPending
		return decision, nil
	}

	counters[key] = 0
	decision.MissCount = 0
	decision.Verified = true
	decision.VerificationsCreated = created
	decision.Reason = models.CadenceReasonAutoVerified
	return decision, nil
}

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
)

type fakeClientRepo struct {
	clients []models.Client
}

func (f *fakeClientRepo) ListAll(ctx context.Context) ([]models.Client, error) {
	return f.clients, nil
}

func (f *fakeClientRepo) FindByDNI(ctx context.Context, dni int64) (*models.Client, error) {
	for _, c := range f.clients {
		if c.DNI == dni {
			client := c
			return &client, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeLedgerRepo struct {
	entries      map[string]*models.LedgerEntry
	applyRefuses bool
}

func ledgerKey(dni int64, activity string) string {
	return lockKey(dni, activity)
}

func (f *fakeLedgerRepo) ListAll(ctx context.Context) ([]models.LedgerEntry, error) {
	out := make([]models.LedgerEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeLedgerRepo) ListByDNI(ctx context.Context, dni int64) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.ClientDNI == dni {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) GetEntry(ctx context.Context, dni int64, activity string) (*models.LedgerEntry, error) {
	if e, ok := f.entries[ledgerKey(dni, activity)]; ok {
		entry := *e
		return &entry, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLedgerRepo) ApplyVerification(ctx context.Context, dni int64, activity string, asOf time.Time) (bool, error) {
	if f.applyRefuses {
		return false, nil
	}
	e, ok := f.entries[ledgerKey(dni, activity)]
	if !ok || e.PendingClasses <= 0 {
		return false, nil
	}
	e.PendingClasses--
	e.CompletedClasses++
	e.WeeklyTally++
	e.UpdatedAt = asOf
	return true, nil
}

type fakeLogRepo struct {
	entries map[string]models.VerificationEntry
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{entries: map[string]models.VerificationEntry{}}
}

func (f *fakeLogRepo) FindInRange(ctx context.Context, from, to time.Time) ([]models.VerificationEntry, error) {
	var out []models.VerificationEntry
	for _, e := range f.entries {
		if !e.VerifiedOn.Before(from) && !e.VerifiedOn.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogRepo) ExistsForDay(ctx context.Context, dni int64, activity string, day time.Time) (bool, error) {
	_, ok := f.entries[verificationKey(dni, activity, day)]
	return ok, nil
}

func (f *fakeLogRepo) Insert(ctx context.Context, entry *models.VerificationEntry) (bool, error) {
	key := verificationKey(entry.ClientDNI, entry.ActivityName, entry.VerifiedOn)
	if _, ok := f.entries[key]; ok {
		return false, nil
	}
	f.entries[key] = *entry
	return true, nil
}

func (f *fakeLogRepo) DNIsVerifiedOn(ctx context.Context, day time.Time) (map[int64]struct{}, error) {
	set := map[int64]struct{}{}
	for _, e := range f.entries {
		if e.VerifiedOn.Equal(day) {
			set[e.ClientDNI] = struct{}{}
		}
	}
	return set, nil
}

func mustDay(t *testing.T, raw string) time.Time {
	t.Helper()
	day, err := time.Parse(dateLayout, raw)
	require.NoError(t, err)
	return day.UTC()
}

func pilatesFixture(t *testing.T) (*fakeClientRepo, *fakeLedgerRepo, *fakeLogRepo) {
	t.Helper()
	clients := &fakeClientRepo{clients: []models.Client{
		{ID: "c1", DNI: 1001, FullName: "Ana Paredes", CreatedAt: mustDay(t, "2024-01-08")},
	}}
	ledger := &fakeLedgerRepo{entries: map[string]*models.LedgerEntry{
		ledgerKey(1001, "Pilates"): {
			ID:             "l1",
			ClientDNI:      1001,
			ActivityName:   "Pilates",
			PendingClasses: 5,
			MonthlyClasses: 8,
			VisitDays:      pq.Int64Array{1, 3},
		},
	}}
	return clients, ledger, newFakeLogRepo()
}

func TestWeeklySummaryOwedDays(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	// 2024-01-10 is a Wednesday; the week runs Mon 2024-01-08 to Sun 2024-01-14.
	summary, cacheHit, err := svc.WeeklySummary(context.Background(), "2024-01-10")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, mustDay(t, "2024-01-08"), summary.WeekStart)
	assert.Equal(t, mustDay(t, "2024-01-14"), summary.WeekEnd)

	require.Len(t, summary.Rows, 1)
	row := summary.Rows[0]
	assert.Equal(t, int64(1001), row.ClientDNI)
	assert.Equal(t, "Pilates", row.ActivityName)
	assert.True(t, row.HasPending)
	require.Len(t, row.OwedDays, 2)
	assert.Equal(t, mustDay(t, "2024-01-08"), row.OwedDays[0].Date)
	assert.Equal(t, 1, row.OwedDays[0].Weekday)
	assert.Equal(t, mustDay(t, "2024-01-10"), row.OwedDays[1].Date)
	assert.Equal(t, 3, row.OwedDays[1].Weekday)
}

func TestWeeklySummaryStopsAtEvaluationDate(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	// Evaluate on Monday: Wednesday has not happened yet.
	summary, _, err := svc.WeeklySummary(context.Background(), "2024-01-08")
	require.NoError(t, err)
	require.Len(t, summary.Rows, 1)
	require.Len(t, summary.Rows[0].OwedDays, 1)
	assert.Equal(t, mustDay(t, "2024-01-08"), summary.Rows[0].OwedDays[0].Date)
}

func TestWeeklySummarySkipsLoggedDays(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	log.entries[verificationKey(1001, "Pilates", mustDay(t, "2024-01-08"))] = models.VerificationEntry{
		ClientDNI:    1001,
		ActivityName: "Pilates",
		VerifiedOn:   mustDay(t, "2024-01-08"),
		Method:       models.MethodPresencial,
	}
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	summary, _, err := svc.WeeklySummary(context.Background(), "2024-01-10")
	require.NoError(t, err)
	require.Len(t, summary.Rows, 1)
	require.Len(t, summary.Rows[0].OwedDays, 1)
	assert.Equal(t, mustDay(t, "2024-01-10"), summary.Rows[0].OwedDays[0].Date)
}

func TestWeeklySummaryEnrollmentFloor(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	// Client joined mid-week: Monday predates the enrollment.
	clients.clients[0].CreatedAt = mustDay(t, "2024-01-10")
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	summary, _, err := svc.WeeklySummary(context.Background(), "2024-01-12")
	require.NoError(t, err)
	require.Len(t, summary.Rows, 1)
	require.Len(t, summary.Rows[0].OwedDays, 1)
	assert.Equal(t, mustDay(t, "2024-01-10"), summary.Rows[0].OwedDays[0].Date)
}

func TestWeeklySummaryEmptyVisitDays(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	ledger.entries[ledgerKey(1001, "Pilates")].VisitDays = pq.Int64Array{}
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	summary, _, err := svc.WeeklySummary(context.Background(), "2024-01-10")
	require.NoError(t, err)
	require.Len(t, summary.Rows, 1)
	assert.Empty(t, summary.Rows[0].OwedDays)
	assert.False(t, summary.Rows[0].HasPending)
}

func TestWeeklySummarySkipsOrphanedLedgerEntries(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	ledger.entries[ledgerKey(9999, "Yoga")] = &models.LedgerEntry{
		ClientDNI:      9999,
		ActivityName:   "Yoga",
		PendingClasses: 3,
		VisitDays:      pq.Int64Array{2},
	}
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	summary, _, err := svc.WeeklySummary(context.Background(), "2024-01-10")
	require.NoError(t, err)
	assert.Len(t, summary.Rows, 1)
}

func TestConfirmVerifications(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	result, err := svc.ConfirmVerifications(context.Background(), ConfirmVerificationsRequest{
		Items: []ConfirmItem{
			{DNI: 1001, ActivityName: "Pilates", Dates: []string{"2024-01-08", "2024-01-10"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.VerificationsCreated)
	assert.Equal(t, 2, result.CountersUpdated)
	assert.Len(t, result.Successes, 2)
	assert.Empty(t, result.Failures)
	assert.Empty(t, result.Partials)

	entry := ledger.entries[ledgerKey(1001, "Pilates")]
	assert.Equal(t, 3, entry.PendingClasses)
	assert.Equal(t, 2, entry.CompletedClasses)

	logged := log.entries[verificationKey(1001, "Pilates", mustDay(t, "2024-01-08"))]
	assert.Equal(t, models.MethodAutomatica, logged.Method)
	assert.Equal(t, "Ana Paredes", logged.ClientName)
}

func TestConfirmVerificationsIdempotent(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	req := ConfirmVerificationsRequest{
		Items: []ConfirmItem{{DNI: 1001, ActivityName: "Pilates", Dates: []string{"2024-01-08"}}},
	}
	first, err := svc.ConfirmVerifications(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.VerificationsCreated)

	second, err := svc.ConfirmVerifications(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.VerificationsCreated)
	require.Len(t, second.Failures, 1)
	assert.Equal(t, reasonAlreadyVerified, second.Failures[0].Reason)
	assert.Equal(t, 4, ledger.entries[ledgerKey(1001, "Pilates")].PendingClasses)
}

func TestConfirmVerificationsOldestFirst(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	ledger.entries[ledgerKey(1001, "Pilates")].PendingClasses = 1
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	// Dates submitted newest first; the single pending class must settle the
	// older day.
	result, err := svc.ConfirmVerifications(context.Background(), ConfirmVerificationsRequest{
		Items: []ConfirmItem{
			{DNI: 1001, ActivityName: "Pilates", Dates: []string{"2024-01-10", "2024-01-08"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.VerificationsCreated)
	require.Len(t, result.Successes, 1)
	assert.Equal(t, mustDay(t, "2024-01-08"), result.Successes[0].Date)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, reasonNoPending, result.Failures[0].Reason)
	assert.Equal(t, mustDay(t, "2024-01-10"), result.Failures[0].Date)
}

func TestConfirmVerificationsNoLedgerEntry(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	result, err := svc.ConfirmVerifications(context.Background(), ConfirmVerificationsRequest{
		Items: []ConfirmItem{{DNI: 1001, ActivityName: "Crossfit", Dates: []string{"2024-01-08"}}},
	})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, reasonNoLedgerEntry, result.Failures[0].Reason)
	assert.Equal(t, 0, result.VerificationsCreated)
}

func TestConfirmVerificationsPartialOnStaleCounters(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	ledger.applyRefuses = true
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	result, err := svc.ConfirmVerifications(context.Background(), ConfirmVerificationsRequest{
		Items: []ConfirmItem{{DNI: 1001, ActivityName: "Pilates", Dates: []string{"2024-01-08"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.VerificationsCreated)
	assert.Equal(t, 0, result.CountersUpdated)
	require.Len(t, result.Partials, 1)
	assert.Equal(t, reasonCountersStale, result.Partials[0].Reason)
	// The log entry is kept even though the counter update was refused.
	_, logged := log.entries[verificationKey(1001, "Pilates", mustDay(t, "2024-01-08"))]
	assert.True(t, logged)
}

func TestConfirmVerificationsRejectsBadDate(t *testing.T) {
	clients, ledger, log := pilatesFixture(t)
	svc := NewReconciliationService(clients, ledger, log, nil, 0, nil, nil)

	_, err := svc.ConfirmVerifications(context.Background(), ConfirmVerificationsRequest{
		Items: []ConfirmItem{{DNI: 1001, ActivityName: "Pilates", Dates: []string{"08/01/2024"}}},
	})
	assert.Error(t, err)
}

func TestStartOfISOWeek(t *testing.T) {
	cases := map[string]string{
		"2024-01-08": "2024-01-08", // Monday maps to itself
		"2024-01-10": "2024-01-08",
		"2024-01-14": "2024-01-08", // Sunday belongs to the preceding Monday
	}
	for input, expected := range cases {
		assert.Equal(t, mustDay(t, expected), startOfISOWeek(mustDay(t, input)), input)
	}
}

package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
)

func TestLedgerRepositoryApplyVerification(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	asOf := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE enrollment_ledger").
		WithArgs(int64(1001), "Pilates", asOf).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.ApplyVerification(context.Background(), 1001, "Pilates", asOf)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryApplyVerificationNoPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	// The guard on pending_classes > 0 leaves zero rows affected.
	mock.ExpectExec("UPDATE enrollment_ledger").
		WithArgs(int64(1001), "Pilates", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.ApplyVerification(context.Background(), 1001, "Pilates", time.Now())
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryReplaceForClient(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM enrollment_ledger").
		WithArgs(int64(1001)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollment_ledger").
		WithArgs(sqlmock.AnyArg(), int64(1001), "Pilates", 8, 0, 8, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReplaceForClient(context.Background(), 1001, []models.LedgerEntry{
		{ActivityName: "Pilates", PendingClasses: 8, MonthlyClasses: 8, VisitDays: pq.Int64Array{1, 3}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryGetEntry(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	rows := sqlmock.NewRows([]string{"id", "dni", "activity_name", "pending_classes", "completed_classes", "monthly_classes", "weekly_tally", "visit_days", "updated_at"}).
		AddRow("l1", int64(1001), "Pilates", 5, 3, 8, 1, pq.Int64Array{1, 3}, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM enrollment_ledger WHERE dni").
		WithArgs(int64(1001), "Pilates").
		WillReturnRows(rows)

	entry, err := repo.GetEntry(context.Background(), 1001, "Pilates")
	require.NoError(t, err)
	assert.Equal(t, 5, entry.PendingClasses)
	assert.EqualValues(t, pq.Int64Array{1, 3}, entry.VisitDays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestVerificationRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectQuery("INSERT INTO verification_log").
		WithArgs(sqlmock.AnyArg(), int64(1001), "Ana Paredes", "Pilates", sqlmock.AnyArg(), models.MethodAutomatica, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v1"))

	inserted, err := repo.Insert(context.Background(), &models.VerificationEntry{
		ClientDNI:    1001,
		ClientName:   "Ana Paredes",
		ActivityName: "Pilates",
		VerifiedOn:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Method:       models.MethodAutomatica,
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryInsertConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	// ON CONFLICT DO NOTHING returns no row; the repo reports (false, nil).
	mock.ExpectQuery("INSERT INTO verification_log").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inserted, err := repo.Insert(context.Background(), &models.VerificationEntry{
		ClientDNI:    1001,
		ActivityName: "Pilates",
		VerifiedOn:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Method:       models.MethodAutomatica,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryExistsForDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM verification_log WHERE dni = $1 AND activity_name = $2 AND verified_on = $3)")).
		WithArgs(int64(1001), "Pilates", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForDay(context.Background(), 1001, "Pilates", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "dni", "client_name", "activity_name", "verified_on", "method", "kind", "created_at"}).
		AddRow("v1", int64(1001), "Ana Paredes", "Pilates", time.Now(), "presencial", nil, time.Now())
	mock.ExpectQuery("SELECT v.id, v.dni, v.client_name, v.activity_name, v.verified_on, v.method, v.kind, v.created_at FROM verification_log v").
		WithArgs(int64(1001)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM verification_log v")).
		WithArgs(int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	dni := int64(1001)
	entries, total, err := repo.List(context.Background(), models.VerificationFilter{DNI: &dni})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryDeleteByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectExec("DELETE FROM verification_log").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoRowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

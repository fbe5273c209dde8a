package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
	"github.com/estudio-sys/estudio-adm-api/internal/repository"
)

func (f *fakeLogRepo) List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationEntry, int, error) {
	var out []models.VerificationEntry
	for _, e := range f.entries {
		if filter.DNI != nil && e.ClientDNI != *filter.DNI {
			continue
		}
		if filter.ActivityName != "" && e.ActivityName != filter.ActivityName {
			continue
		}
		if filter.Method != nil && e.Method != *filter.Method {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeLogRepo) DeleteByID(ctx context.Context, id string) error {
	for key, e := range f.entries {
		if e.ID == id {
			delete(f.entries, key)
			return nil
		}
	}
	return fmt.Errorf("delete verification %s: %w", id, repository.ErrNoRowsAffected)
}

func TestMarkPresencialCreditsLedger(t *testing.T) {
	_, ledger, log := pilatesFixture(t)
	svc := NewVerificationService(log, ledger, nil, nil)

	entry, err := svc.MarkPresencial(context.Background(), MarkPresencialRequest{
		DNI:        1001,
		ClientName: "Ana Paredes",
		Activity:   "Pilates",
		Date:       "2024-01-08",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MethodPresencial, entry.Method)
	assert.Equal(t, mustDay(t, "2024-01-08"), entry.VerifiedOn)
	assert.Equal(t, 4, ledger.entries[ledgerKey(1001, "Pilates")].PendingClasses)
}

func TestMarkPresencialRejectsDuplicateDay(t *testing.T) {
	_, ledger, log := pilatesFixture(t)
	svc := NewVerificationService(log, ledger, nil, nil)

	req := MarkPresencialRequest{DNI: 1001, ClientName: "Ana", Activity: "Pilates", Date: "2024-01-08"}
	_, err := svc.MarkPresencial(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.MarkPresencial(context.Background(), req)
	assert.Error(t, err)
	assert.Equal(t, 4, ledger.entries[ledgerKey(1001, "Pilates")].PendingClasses)
}

func TestMarkPresencialRequiresLedgerEntry(t *testing.T) {
	_, ledger, log := pilatesFixture(t)
	svc := NewVerificationService(log, ledger, nil, nil)

	_, err := svc.MarkPresencial(context.Background(), MarkPresencialRequest{
		DNI: 1001, ClientName: "Ana", Activity: "Crossfit", Date: "2024-01-08",
	})
	assert.Error(t, err)
}

func TestMarkPresencialRequiresPendingBalance(t *testing.T) {
	_, ledger, log := pilatesFixture(t)
	ledger.entries[ledgerKey(1001, "Pilates")].PendingClasses = 0
	svc := NewVerificationService(log, ledger, nil, nil)

	_, err := svc.MarkPresencial(context.Background(), MarkPresencialRequest{
		DNI: 1001, ClientName: "Ana", Activity: "Pilates", Date: "2024-01-08",
	})
	assert.Error(t, err)
}

func TestVerificationListFiltersByMethod(t *testing.T) {
	_, ledger, log := pilatesFixture(t)
	presencial := models.MethodPresencial
	log.entries["a"] = models.VerificationEntry{ID: "v1", ClientDNI: 1001, ActivityName: "Pilates", Method: models.MethodPresencial}
	log.entries["b"] = models.VerificationEntry{ID: "v2", ClientDNI: 1001, ActivityName: "Pilates", Method: models.MethodAutomatica}
	svc := NewVerificationService(log, ledger, nil, nil)

	method := string(presencial)
	rows, pagination, err := svc.List(context.Background(), ListVerificationsRequest{Method: &method})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "v1", rows[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestVerificationDeleteNotFound(t *testing.T) {
	_, ledger, log := pilatesFixture(t)
	svc := NewVerificationService(log, ledger, nil, nil)

	err := svc.Delete(context.Background(), "missing")
	assert.Error(t, err)
}

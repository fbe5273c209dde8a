package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
)

// LedgerRepository handles persistence for enrollment ledger entries.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const ledgerColumns = `id, dni, activity_name, pending_classes, completed_classes, monthly_classes, weekly_tally, visit_days, updated_at`

// ListAll returns every ledger entry, ordered for stable reconciliation runs.
func (r *LedgerRepository) ListAll(ctx context.Context) ([]models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_ledger ORDER BY dni, activity_name`, ledgerColumns)
	var rows []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return rows, nil
}

// ListByDNI returns the ledger entries for one client.
func (r *LedgerRepository) ListByDNI(ctx context.Context, dni int64) ([]models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_ledger WHERE dni = $1 ORDER BY activity_name`, ledgerColumns)
	var rows []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &rows, query, dni); err != nil {
		return nil, fmt.Errorf("list ledger entries for %d: %w", dni, err)
	}
	return rows, nil
}

// GetEntry fetches the single entry for a (client, activity) pair. The
// activity name is the join key; there is no activity id.
func (r *LedgerRepository) GetEntry(ctx context.Context, dni int64, activityName string) (*models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_ledger WHERE dni = $1 AND activity_name = $2`, ledgerColumns)
	var entry models.LedgerEntry
	if err := r.db.GetContext(ctx, &entry, query, dni, activityName); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReplaceForClient deletes every entry for the client and re-inserts fresh
// ones from the registry's activity list. Completed counters and tallies are
// reset to zero on purpose: the registry is the source of truth on edit.
func (r *LedgerRepository) ReplaceForClient(ctx context.Context, dni int64, entries []models.LedgerEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace ledger: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollment_ledger WHERE dni = $1`, dni); err != nil {
		return fmt.Errorf("delete ledger entries for %d: %w", dni, err)
	}

	insert := `INSERT INTO enrollment_ledger (id, dni, activity_name, pending_classes, completed_classes, monthly_classes, weekly_tally, visit_days, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	now := time.Now().UTC()
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.ClientDNI = dni
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = now
		}
		if _, err := tx.ExecContext(ctx, insert, entry.ID, entry.ClientDNI, entry.ActivityName, entry.PendingClasses, entry.CompletedClasses, entry.MonthlyClasses, entry.WeeklyTally, entry.VisitDays, entry.UpdatedAt); err != nil {
			return fmt.Errorf("insert ledger entry %s: %w", entry.ActivityName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace ledger: %w", err)
	}
	commit = true
	return nil
}

// DeleteForClient removes every ledger entry for the client.
func (r *LedgerRepository) DeleteForClient(ctx context.Context, dni int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM enrollment_ledger WHERE dni = $1`, dni); err != nil {
		return fmt.Errorf("delete ledger entries for %d: %w", dni, err)
	}
	return nil
}

// ApplyVerification credits one verified class: pending down, completed and
// the weekly tally up, last-update stamped with the verified day rather than
// wall-clock now. Returns false when the entry is missing or has no pending
// balance left, so callers can record the drift instead of failing the batch.
func (r *LedgerRepository) ApplyVerification(ctx context.Context, dni int64, activityName string, asOf time.Time) (bool, error) {
	query := `UPDATE enrollment_ledger
SET pending_classes = pending_classes - 1,
    completed_classes = completed_classes + 1,
    weekly_tally = weekly_tally + 1,
    updated_at = $3
WHERE dni = $1 AND activity_name = $2 AND pending_classes > 0`
	res, err := r.db.ExecContext(ctx, query, dni, activityName, asOf)
	if err != nil {
		return false, fmt.Errorf("apply verification for %d/%s: %w", dni, activityName, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply verification rows affected: %w", err)
	}
	return affected > 0, nil
}

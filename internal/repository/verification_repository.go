package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
)

// VerificationRepository handles persistence for the verification log.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository constructs the repository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

const verificationColumns = `id, dni, client_name, activity_name, verified_on, method, kind, created_at`

// List returns log entries matching the provided filter.
func (r *VerificationRepository) List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationEntry, int, error) {
	base := `FROM verification_log v`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.DNI != nil {
		where = append(where, fmt.Sprintf("v.dni = $%d", len(args)+1))
		args = append(args, *filter.DNI)
	}
	if filter.ActivityName != "" {
		where = append(where, fmt.Sprintf("v.activity_name = $%d", len(args)+1))
		args = append(args, filter.ActivityName)
	}
	if filter.Method != nil && filter.Method.Valid() {
		where = append(where, fmt.Sprintf("v.method = $%d", len(args)+1))
		args = append(args, *filter.Method)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("v.verified_on >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("v.verified_on <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"verified_on": "v.verified_on",
		"dni":         "v.dni",
		"created_at":  "v.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "v.verified_on"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		qualify(verificationColumns), base, whereClause, sortColumn, order, size, offset)

	var rows []models.VerificationEntry
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list verification log: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count verification log: %w", err)
	}
	return rows, total, nil
}

// FindInRange returns every log entry with verified_on inside [from, to].
func (r *VerificationRepository) FindInRange(ctx context.Context, from, to time.Time) ([]models.VerificationEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM verification_log WHERE verified_on >= $1 AND verified_on <= $2 ORDER BY verified_on`, verificationColumns)
	var rows []models.VerificationEntry
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("find verifications in range: %w", err)
	}
	return rows, nil
}

// ExistsForDay reports whether a (client, activity) pair already has a log
// entry on the given calendar day, regardless of method.
func (r *VerificationRepository) ExistsForDay(ctx context.Context, dni int64, activityName string, day time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM verification_log WHERE dni = $1 AND activity_name = $2 AND verified_on = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, dni, activityName, day); err != nil {
		return false, fmt.Errorf("check verification exists: %w", err)
	}
	return exists, nil
}

// Insert appends a log entry. The unique index on (dni, activity_name,
// verified_on) closes the race between a concurrent existence check and the
// insert: a conflicting write returns (false, nil) and the caller records
// the day as already verified.
func (r *VerificationRepository) Insert(ctx context.Context, entry *models.VerificationEntry) (bool, error) {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	query := `INSERT INTO verification_log (id, dni, client_name, activity_name, verified_on, method, kind, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (dni, activity_name, verified_on) DO NOTHING
RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query, entry.ID, entry.ClientDNI, entry.ClientName, entry.ActivityName, entry.VerifiedOn, entry.Method, entry.Kind, entry.CreatedAt).Scan(&insertedID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("insert verification: %w", err)
	}
	return true, nil
}

// DNIsVerifiedOn returns the set of clients with at least one log entry on
// the given day. Used by the daily cadence engine.
func (r *VerificationRepository) DNIsVerifiedOn(ctx context.Context, day time.Time) (map[int64]struct{}, error) {
	query := `SELECT DISTINCT dni FROM verification_log WHERE verified_on = $1`
	var dnis []int64
	if err := r.db.SelectContext(ctx, &dnis, query, day); err != nil {
		return nil, fmt.Errorf("list verified dnis: %w", err)
	}
	set := make(map[int64]struct{}, len(dnis))
	for _, dni := range dnis {
		set[dni] = struct{}{}
	}
	return set, nil
}

// DeleteByID removes one log entry. Admin action only; the engine never
// deletes.
func (r *VerificationRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM verification_log WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete verification %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("delete verification %s: %w", id, ErrNoRowsAffected)
	}
	return nil
}

func qualify(columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = "v." + part
	}
	return strings.Join(parts, ", ")
}

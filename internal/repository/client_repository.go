package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/estudio-sys/estudio-adm-api/internal/models"
)

// ClientRepository handles persistence for the client registry.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository constructs the repository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// List returns clients matching the provided filter.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error) {
	base := `FROM clients c`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(c.full_name ILIKE $%d OR CAST(c.dni AS TEXT) LIKE $%d)", len(args)+1, len(args)+2))
		args = append(args, "%"+filter.Search+"%", filter.Search+"%")
	}
	if filter.Activity != "" {
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM client_activities ca WHERE ca.dni = c.dni AND ca.activity_name = $%d)", len(args)+1))
		args = append(args, filter.Activity)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"dni":        "c.dni",
		"full_name":  "c.full_name",
		"created_at": "c.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "c.full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.dni, c.full_name, c.phone, c.email, c.created_at, c.updated_at
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.Client
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}
	return rows, total, nil
}

// ListAll returns the projection the reconciliation engine needs: identity
// plus the enrollment timestamp used as the verification floor.
func (r *ClientRepository) ListAll(ctx context.Context) ([]models.Client, error) {
	query := `SELECT id, dni, full_name, phone, email, created_at, updated_at FROM clients ORDER BY dni`
	var rows []models.Client
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list all clients: %w", err)
	}
	return rows, nil
}

// FindByDNI fetches a single client by its business key.
func (r *ClientRepository) FindByDNI(ctx context.Context, dni int64) (*models.Client, error) {
	query := `SELECT id, dni, full_name, phone, email, created_at, updated_at FROM clients WHERE dni = $1`
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, dni); err != nil {
		return nil, err
	}
	return &client, nil
}

// ListActivities returns the activity list for a client.
func (r *ClientRepository) ListActivities(ctx context.Context, dni int64) ([]models.ClientActivity, error) {
	query := `SELECT id, dni, activity_name, rate, monthly_classes, pending_classes, instructor, visit_days
FROM client_activities WHERE dni = $1 ORDER BY activity_name`
	var rows []models.ClientActivity
	if err := r.db.SelectContext(ctx, &rows, query, dni); err != nil {
		return nil, fmt.Errorf("list client activities: %w", err)
	}
	return rows, nil
}

// Create inserts a client and its activity list in one transaction.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client, activities []models.ClientActivity) error {
	now := time.Now().UTC()
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create client: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	insertClient := `INSERT INTO clients (id, dni, full_name, phone, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertClient, client.ID, client.DNI, client.FullName, client.Phone, client.Email, client.CreatedAt, client.UpdatedAt); err != nil {
		return fmt.Errorf("insert client: %w", err)
	}

	if err := insertActivitiesTx(ctx, tx, client.DNI, activities); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create client: %w", err)
	}
	commit = true
	return nil
}

// Update rewrites the client row and replaces its activity list. The
// activity replacement is a full delete-and-reinsert, mirroring how the
// ledger sync treats activity edits.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client, activities []models.ClientActivity) error {
	client.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update client: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	updateClient := `UPDATE clients SET full_name = $1, phone = $2, email = $3, updated_at = $4 WHERE dni = $5`
	res, err := tx.ExecContext(ctx, updateClient, client.FullName, client.Phone, client.Email, client.UpdatedAt, client.DNI)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("update client %d: %w", client.DNI, ErrNoRowsAffected)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM client_activities WHERE dni = $1`, client.DNI); err != nil {
		return fmt.Errorf("delete client activities: %w", err)
	}
	if err := insertActivitiesTx(ctx, tx, client.DNI, activities); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update client: %w", err)
	}
	commit = true
	return nil
}

// Delete removes the client and its activity list.
func (r *ClientRepository) Delete(ctx context.Context, dni int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete client: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM client_activities WHERE dni = $1`, dni); err != nil {
		return fmt.Errorf("delete client activities: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE dni = $1`, dni)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("delete client %d: %w", dni, ErrNoRowsAffected)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete client: %w", err)
	}
	commit = true
	return nil
}

func insertActivitiesTx(ctx context.Context, tx *sqlx.Tx, dni int64, activities []models.ClientActivity) error {
	insert := `INSERT INTO client_activities (id, dni, activity_name, rate, monthly_classes, pending_classes, instructor, visit_days)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i := range activities {
		act := &activities[i]
		if act.ID == "" {
			act.ID = uuid.NewString()
		}
		act.ClientDNI = dni
		if _, err := tx.ExecContext(ctx, insert, act.ID, act.ClientDNI, act.ActivityName, act.Rate, act.MonthlyClasses, act.PendingClasses, act.Instructor, act.VisitDays); err != nil {
			return fmt.Errorf("insert client activity %s: %w", act.ActivityName, err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lsls-dev/school-portal-api/internal/models"
)

// ParentRepository provides database access for parent profiles.
type ParentRepository struct {
	db *sqlx.DB
}

// NewParentRepository creates a new instance of ParentRepository.
func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

// List returns all parent profiles with account metadata.
func (r *ParentRepository) List(ctx context.Context) ([]models.ParentDetail, error) {
	const query = `SELECT p.id, p.user_id, p.created_at, p.updated_at, u.name, u.email
FROM parents p JOIN users u ON u.id = p.user_id ORDER BY u.name ASC`
	var rows []models.ParentDetail
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	return rows, nil
}

// FindByUserID resolves the profile owned by an account.
func (r *ParentRepository) FindByUserID(ctx context.Context, userID string) (*models.ParentDetail, error) {
	const query = `SELECT p.id, p.user_id, p.created_at, p.updated_at, u.name, u.email
FROM parents p JOIN users u ON u.id = p.user_id WHERE p.user_id = $1 LIMIT 1`
	var detail models.ParentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find parent by user id: %w", err)
	}
	return &detail, nil
}

// FindByName matches a parent by the account display name, used by the
// admin student-provisioning flow. Returns sql.ErrNoRows when absent.
func (r *ParentRepository) FindByName(ctx context.Context, name string) (*models.ParentDetail, error) {
	const query = `SELECT p.id, p.user_id, p.created_at, p.updated_at, u.name, u.email
FROM parents p JOIN users u ON u.id = p.user_id WHERE u.name = $1 ORDER BY p.created_at ASC LIMIT 1`
	var detail models.ParentDetail
	if err := r.db.GetContext(ctx, &detail, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find parent by name: %w", err)
	}
	return &detail, nil
}

// Children aggregates the parent-dashboard read model: each child with
// its class and attendance counts.
func (r *ParentRepository) Children(ctx context.Context, parentID string) ([]models.ChildSummary, error) {
	const query = `SELECT s.id AS student_id, u.name, c.name AS class_name,
COUNT(a.id) FILTER (WHERE a.status = 'PRESENT') AS present,
COUNT(a.id) AS total
FROM students s
JOIN users u ON u.id = s.user_id
LEFT JOIN classes c ON c.id = s.class_id
LEFT JOIN attendance a ON a.student_id = s.id
WHERE s.parent_id = $1
GROUP BY s.id, u.name, c.name
ORDER BY u.name ASC`
	rows, err := r.db.QueryxContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list parent children: %w", err)
	}
	defer rows.Close()

	var out []models.ChildSummary
	for rows.Next() {
		var row struct {
			StudentID string  `db:"student_id"`
			Name      string  `db:"name"`
			ClassName *string `db:"class_name"`
			Present   int     `db:"present"`
			Total     int     `db:"total"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan parent child: %w", err)
		}
		summary := models.ChildSummary{
			StudentID:    row.StudentID,
			Name:         row.Name,
			ClassName:    row.ClassName,
			TotalRecords: row.Total,
		}
		if row.Total > 0 {
			summary.AttendanceRate = int(float64(row.Present)/float64(row.Total)*100 + 0.5)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parent children: %w", err)
	}
	return out, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lsls-dev/school-portal-api/internal/models"
)

// ResultRepository provides database access for subject results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new instance of ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// ListByStudent returns results for one student, newest first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ResultRecord, error) {
	const query = `SELECT r.id, r.student_id, r.teacher_id, r.subject, r.marks, r.created_at, r.updated_at,
su.name AS student_name, tu.name AS teacher_name
FROM results r
JOIN students s ON s.id = r.student_id
JOIN users su ON su.id = s.user_id
JOIN teachers t ON t.id = r.teacher_id
JOIN users tu ON tu.id = t.user_id
WHERE r.student_id = $1
ORDER BY r.created_at DESC`
	var rows []models.ResultRecord
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return rows, nil
}

// FindByID returns one result or sql.ErrNoRows.
func (r *ResultRepository) FindByID(ctx context.Context, id string) (*models.Result, error) {
	const query = `SELECT id, student_id, teacher_id, subject, marks, created_at, updated_at FROM results WHERE id = $1 LIMIT 1`
	var result models.Result
	if err := r.db.GetContext(ctx, &result, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find result by id: %w", err)
	}
	return &result, nil
}

// Create inserts a result.
func (r *ResultRepository) Create(ctx context.Context, result *models.Result) error {
	now := time.Now().UTC()
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.CreatedAt = now
	result.UpdatedAt = now
	const query = `INSERT INTO results (id, student_id, teacher_id, subject, marks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query, result.ID, result.StudentID, result.TeacherID, result.Subject, result.Marks, result.CreatedAt, result.UpdatedAt); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// UpdateMarks overwrites the marks for a result.
func (r *ResultRepository) UpdateMarks(ctx context.Context, id string, marks int, ts time.Time) (*models.Result, error) {
	const query = `UPDATE results SET marks = $2, updated_at = $3 WHERE id = $1
RETURNING id, student_id, teacher_id, subject, marks, created_at, updated_at`
	var stored models.Result
	if err := r.db.GetContext(ctx, &stored, query, id, marks, ts); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update result marks: %w", err)
	}
	return &stored, nil
}

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

// StudentRepository provides database access for student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new instance of StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailColumns = `s.id, s.user_id, s.class_id, s.parent_id, s.created_at, s.updated_at,
u.name, u.email, c.name AS class_name, pu.name AS parent_name`

const studentDetailJoins = `FROM students s
JOIN users u ON u.id = s.user_id
LEFT JOIN classes c ON c.id = s.class_id
LEFT JOIN parents p ON p.id = s.parent_id
LEFT JOIN users pu ON pu.id = p.user_id`

// List returns all student profiles with account and class metadata.
func (r *StudentRepository) List(ctx context.Context) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s ORDER BY u.name ASC`, studentDetailColumns, studentDetailJoins)
	var rows []models.StudentDetail
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return rows, nil
}

// ListByParent returns the children owned by a parent profile.
func (r *StudentRepository) ListByParent(ctx context.Context, parentID string) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.parent_id = $1 ORDER BY u.name ASC`, studentDetailColumns, studentDetailJoins)
	var rows []models.StudentDetail
	if err := r.db.SelectContext(ctx, &rows, query, parentID); err != nil {
		return nil, fmt.Errorf("list students by parent: %w", err)
	}
	return rows, nil
}

// FindByID returns one student profile or sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = $1 LIMIT 1`, studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &detail, nil
}

// FindByUserID resolves the profile owned by an account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.user_id = $1 LIMIT 1`, studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user id: %w", err)
	}
	return &detail, nil
}

// Create inserts a student profile.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, class_id, parent_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, student.ID, student.UserID, student.ClassID, student.ParentID, student.CreatedAt, student.UpdatedAt); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// Update overwrites class and parent references.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET class_id = $2, parent_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, student.ID, student.ClassID, student.ParentID, student.UpdatedAt); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes the profile row. The owning account is removed by the
// service through the user repository.
func (r *StudentRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete student rows affected: %w", err)
	}
	return affected, nil
}

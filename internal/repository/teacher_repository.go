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

// TeacherRepository provides database access for teacher profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository creates a new instance of TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherDetailColumns = `t.id, t.user_id, t.class_id, t.created_at, t.updated_at,
u.name, u.email, c.name AS class_name`

const teacherDetailJoins = `FROM teachers t
JOIN users u ON u.id = t.user_id
LEFT JOIN classes c ON c.id = t.class_id`

// List returns all teacher profiles with account metadata.
func (r *TeacherRepository) List(ctx context.Context) ([]models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s ORDER BY u.name ASC`, teacherDetailColumns, teacherDetailJoins)
	var rows []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return rows, nil
}

// FindByID returns one teacher profile or sql.ErrNoRows.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE t.id = $1 LIMIT 1`, teacherDetailColumns, teacherDetailJoins)
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by id: %w", err)
	}
	return &detail, nil
}

// FindByUserID resolves the profile owned by an account.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE t.user_id = $1 LIMIT 1`, teacherDetailColumns, teacherDetailJoins)
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by user id: %w", err)
	}
	return &detail, nil
}

// FindByClass returns a teacher assigned to the class or sql.ErrNoRows.
func (r *TeacherRepository) FindByClass(ctx context.Context, classID string) (*models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE t.class_id = $1 ORDER BY t.created_at ASC LIMIT 1`, teacherDetailColumns, teacherDetailJoins)
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by class: %w", err)
	}
	return &detail, nil
}

// FindAny returns an arbitrary teacher or sql.ErrNoRows when none exist.
func (r *TeacherRepository) FindAny(ctx context.Context) (*models.TeacherDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s ORDER BY t.created_at ASC LIMIT 1`, teacherDetailColumns, teacherDetailJoins)
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find any teacher: %w", err)
	}
	return &detail, nil
}

// Update overwrites the class assignment.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET class_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, teacher.ID, teacher.ClassID, teacher.UpdatedAt); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// Create inserts a teacher profile.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	now := time.Now().UTC()
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, user_id, class_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, teacher.ID, teacher.UserID, teacher.ClassID, teacher.CreatedAt, teacher.UpdatedAt); err != nil {
		return fmt.Errorf("insert teacher: %w", err)
	}
	return nil
}

// Delete removes the profile row.
func (r *TeacherRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete teacher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete teacher rows affected: %w", err)
	}
	return affected, nil
}

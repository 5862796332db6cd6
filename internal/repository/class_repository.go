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

// ClassRepository provides database access for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new instance of ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns all classes with roster counts.
func (r *ClassRepository) List(ctx context.Context) ([]models.ClassDetail, error) {
	const query = `SELECT c.id, c.name, c.created_at, c.updated_at,
(SELECT COUNT(*) FROM students s WHERE s.class_id = c.id) AS student_count,
(SELECT COUNT(*) FROM teachers t WHERE t.class_id = c.id) AS teacher_count
FROM classes c ORDER BY c.name ASC`
	var rows []models.ClassDetail
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return rows, nil
}

// FindByID returns one class or sql.ErrNoRows.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, created_at, updated_at FROM classes WHERE id = $1 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// FindByName matches a class by exact name, used by the admin
// student-provisioning flow. Returns sql.ErrNoRows when absent.
func (r *ClassRepository) FindByName(ctx context.Context, name string) (*models.Class, error) {
	const query = `SELECT id, name, created_at, updated_at FROM classes WHERE name = $1 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by name: %w", err)
	}
	return &class, nil
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	now := time.Now().UTC()
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, class.ID, class.Name, class.CreatedAt, class.UpdatedAt); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

// Update renames the class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, class.ID, class.Name, class.UpdatedAt); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes the class. Student and teacher references are cleared
// by the schema's ON DELETE SET NULL.
func (r *ClassRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete class rows affected: %w", err)
	}
	return affected, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lsls-dev/school-portal-api/internal/models"
)

// AttendanceRepository handles persistence for the attendance register.
//
// The one-row-per-(student, day) rule is backed by a unique index on
// (student_id, ((timezone('UTC', date))::date)). The two-argument
// timezone() is immutable, unlike a bare timestamptz cast, so Postgres
// accepts it in the index and as the ON CONFLICT arbiter below; a
// losing concurrent writer lands as an update, never a duplicate-key
// error.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByStudentAndDay returns the record whose timestamp falls inside
// [dayStart, dayEnd) for the student, or sql.ErrNoRows.
func (r *AttendanceRepository) FindByStudentAndDay(ctx context.Context, studentID string, dayStart, dayEnd time.Time) (*models.Attendance, error) {
	const query = `SELECT id, student_id, teacher_id, status, date, created_at, updated_at
FROM attendance WHERE student_id = $1 AND date >= $2 AND date < $3 LIMIT 1`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, studentID, dayStart, dayEnd); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance by student and day: %w", err)
	}
	return &record, nil
}

// Insert stores a new record. A concurrent writer that already inserted
// for the same (student, day) turns this into an in-place update.
func (r *AttendanceRepository) Insert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, student_id, teacher_id, status, date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (student_id, ((timezone('UTC', date))::date))
DO UPDATE SET status = EXCLUDED.status, teacher_id = EXCLUDED.teacher_id, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, teacher_id, status, date, created_at, updated_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.TeacherID, record.Status, record.Date, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return &stored, nil
}

// UpdateMark overwrites status and attributed teacher for a re-mark.
func (r *AttendanceRepository) UpdateMark(ctx context.Context, id string, status models.AttendanceStatus, teacherID string, ts time.Time) (*models.Attendance, error) {
	const query = `UPDATE attendance SET status = $2, teacher_id = $3, updated_at = $4 WHERE id = $1
RETURNING id, student_id, teacher_id, status, date, created_at, updated_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query, id, status, teacherID, ts); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update attendance mark: %w", err)
	}
	return &stored, nil
}

// UpdateStatus overwrites status only, preserving teacher and date.
func (r *AttendanceRepository) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus, ts time.Time) (*models.Attendance, error) {
	const query = `UPDATE attendance SET status = $2, updated_at = $3 WHERE id = $1
RETURNING id, student_id, teacher_id, status, date, created_at, updated_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query, id, status, ts); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update attendance status: %w", err)
	}
	return &stored, nil
}

// Delete removes the record. Returns the number of rows removed so the
// service can report NotFound on repeat deletes.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attendance rows affected: %w", err)
	}
	return affected, nil
}

// List returns register rows matching the filter, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := `FROM attendance a
JOIN students s ON s.id = a.student_id
JOIN users su ON su.id = s.user_id
JOIN teachers t ON t.id = a.teacher_id
JOIN users tu ON tu.id = t.user_id
LEFT JOIN classes c ON c.id = s.class_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Date != nil {
		dayStart, dayEnd := models.DayBounds(*filter.Date)
		where = append(where, fmt.Sprintf("a.date >= $%d AND a.date < $%d", len(args)+1, len(args)+2))
		args = append(args, dayStart, dayEnd)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.teacher_id, a.status, a.date, a.created_at, a.updated_at,
        su.name AS student_name, tu.name AS teacher_name, s.class_id, c.name AS class_name
        %s WHERE %s
        ORDER BY a.date DESC
        LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// Summarize aggregates per-status counts for a student, optionally
// windowed by [from, to].
func (r *AttendanceRepository) Summarize(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT
        COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE status = 'LATE') AS late,
        COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
        COUNT(*) AS total
        FROM attendance WHERE %s`, strings.Join(where, " AND "))

	var row struct {
		Present int `db:"present"`
		Late    int `db:"late"`
		Absent  int `db:"absent"`
		Total   int `db:"total"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("summarize attendance: %w", err)
	}
	return &models.AttendanceSummary{Present: row.Present, Late: row.Late, Absent: row.Absent, Total: row.Total}, nil
}

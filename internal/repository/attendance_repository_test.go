package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/lsls-dev/school-portal-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceColumns() []string {
	return []string{"id", "student_id", "teacher_id", "status", "date", "created_at", "updated_at"}
}

func TestAttendanceRepositoryFindByStudentAndDay(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	dayStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows := sqlmock.NewRows(attendanceColumns()).
		AddRow("att-1", "student-1", "teacher-1", "PRESENT", dayStart.Add(8*time.Hour), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, teacher_id, status, date, created_at, updated_at")).
		WithArgs("student-1", dayStart, dayEnd).
		WillReturnRows(rows)

	record, err := repo.FindByStudentAndDay(context.Background(), "student-1", dayStart, dayEnd)
	require.NoError(t, err)
	require.Equal(t, "att-1", record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindByStudentAndDayNoRows(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	mock.ExpectQuery("SELECT id, student_id").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByStudentAndDay(context.Background(), "student-1", time.Now(), time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAttendanceRepositoryInsertUpsertsOnConflict(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	date := time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows(attendanceColumns()).
		AddRow("att-1", "student-1", "teacher-1", "LATE", date, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, ((timezone('UTC', date))::date))")).
		WillReturnRows(rows)

	stored, err := repo.Insert(context.Background(), &models.Attendance{
		StudentID: "student-1",
		TeacherID: "teacher-1",
		Status:    models.AttendanceLate,
		Date:      date,
	})
	require.NoError(t, err)
	require.Equal(t, models.AttendanceLate, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE attendance SET status")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateStatus(context.Background(), "missing", models.AttendanceAbsent, time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAttendanceRepositoryDeleteReportsAffected(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance WHERE id = $1")).
		WithArgs("att-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance WHERE id = $1")).
		WithArgs("att-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.Delete(context.Background(), "att-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	affected, err = repo.Delete(context.Background(), "att-1")
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListFiltersByDay(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	day := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	dayStart, dayEnd := models.DayBounds(day)

	listRows := sqlmock.NewRows([]string{"id", "student_id", "teacher_id", "status", "date", "created_at", "updated_at", "student_name", "teacher_name", "class_id", "class_name"}).
		AddRow("att-1", "student-1", "teacher-1", "PRESENT", day, time.Now(), time.Now(), "Student One", "Teacher One", "class-1", "Class 1")
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY a.date DESC")).
		WithArgs("student-1", dayStart, dayEnd).
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("student-1", dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.List(context.Background(), models.AttendanceFilter{StudentID: "student-1", Date: &day})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "Student One", rows[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySummarize(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	rows := sqlmock.NewRows([]string{"present", "late", "absent", "total"}).AddRow(3, 0, 1, 4)
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE status = 'PRESENT')")).
		WithArgs("student-1").
		WillReturnRows(rows)

	summary, err := repo.Summarize(context.Background(), "student-1", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Present)
	require.Equal(t, 4, summary.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

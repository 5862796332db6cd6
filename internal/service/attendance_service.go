package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lsls-dev/school-portal-api/internal/models"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
	"github.com/lsls-dev/school-portal-api/pkg/export"
)

type attendanceRepository interface {
	FindByStudentAndDay(ctx context.Context, studentID string, dayStart, dayEnd time.Time) (*models.Attendance, error)
	Insert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	UpdateMark(ctx context.Context, id string, status models.AttendanceStatus, teacherID string, ts time.Time) (*models.Attendance, error)
	UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus, ts time.Time) (*models.Attendance, error)
	Delete(ctx context.Context, id string) (int64, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Summarize(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

type attendanceTeacherReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error)
	FindByClass(ctx context.Context, classID string) (*models.TeacherDetail, error)
	FindAny(ctx context.Context) (*models.TeacherDetail, error)
}

// RecordAttendanceRequest marks one student for one calendar day.
type RecordAttendanceRequest struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Date      *models.AttendanceDate  `json:"date,omitempty"`
}

// RecordAttendanceResult reports whether the mark created a new row or
// overwrote the existing one for that day.
type RecordAttendanceResult struct {
	Record  *models.Attendance `json:"record"`
	Created bool               `json:"created"`
}

// AttendanceService enforces the one-record-per-student-per-day rule
// and decides who may write on whose behalf.
type AttendanceService struct {
	repo      attendanceRepository
	students  attendanceStudentReader
	teachers  attendanceTeacherReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentReader, teachers attendanceTeacherReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{
		repo:      repo,
		students:  students,
		teachers:  teachers,
		cache:     cache,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
}

// Record performs the day-scoped upsert. A teacher may mark any student;
// a student may mark only themself, attributed to a teacher of their
// class when one exists, otherwise any teacher.
func (s *AttendanceService) Record(ctx context.Context, claims *models.JWTClaims, req RecordAttendanceRequest) (*RecordAttendanceResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", req.Status))
	}

	teacherID, err := s.resolveWriter(ctx, claims, req.StudentID)
	if err != nil {
		return nil, err
	}

	target := time.Now()
	if req.Date != nil {
		target = req.Date.Time
	}
	dayStart, dayEnd := models.DayBounds(target)

	existing, err := s.repo.FindByStudentAndDay(ctx, req.StudentID, dayStart, dayEnd)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query attendance")
	}

	if existing != nil {
		updated, err := s.repo.UpdateMark(ctx, existing.ID, req.Status, teacherID, time.Now().UTC())
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
		}
		s.invalidateCache(ctx, req.StudentID)
		return &RecordAttendanceResult{Record: updated, Created: false}, nil
	}

	inserted, err := s.repo.Insert(ctx, &models.Attendance{
		StudentID: req.StudentID,
		TeacherID: teacherID,
		Status:    req.Status,
		Date:      target,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.invalidateCache(ctx, req.StudentID)
	return &RecordAttendanceResult{Record: inserted, Created: true}, nil
}

// resolveWriter authorizes the caller and returns the teacher to
// attribute the record to.
func (s *AttendanceService) resolveWriter(ctx context.Context, claims *models.JWTClaims, studentID string) (string, error) {
	switch claims.Role {
	case models.RoleTeacher:
		teacher, err := s.teachers.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrNotFound, "teacher profile not found")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
		}
		if _, err := s.students.FindByID(ctx, studentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		return teacher.ID, nil

	case models.RoleStudent:
		student, err := s.students.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
		}
		if student.ID != studentID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "students may only mark their own attendance")
		}
		return s.attributeTeacher(ctx, student)

	case models.RoleAdmin, models.RoleParent:
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "role may not record attendance")
	}
	return "", appErrors.ErrUnauthorized
}

// attributeTeacher picks the teacher a self-marked record is credited
// to: the student's class teacher when assigned, else any teacher.
func (s *AttendanceService) attributeTeacher(ctx context.Context, student *models.StudentDetail) (string, error) {
	if student.ClassID != nil {
		teacher, err := s.teachers.FindByClass(ctx, *student.ClassID)
		if err == nil {
			return teacher.ID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class teacher")
		}
	}
	teacher, err := s.teachers.FindAny(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "no teacher available")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher.ID, nil
}

// UpdateStatus overwrites the status of an existing record, preserving
// its teacher and date. Teacher callers only.
func (s *AttendanceService) UpdateStatus(ctx context.Context, claims *models.JWTClaims, recordID string, status models.AttendanceStatus) (*models.Attendance, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers may update attendance")
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", status))
	}

	updated, err := s.repo.UpdateStatus(ctx, recordID, status, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	s.invalidateCache(ctx, updated.StudentID)
	return updated, nil
}

// Delete removes a record. A repeat delete reports NotFound.
func (s *AttendanceService) Delete(ctx context.Context, claims *models.JWTClaims, recordID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers may delete attendance")
	}

	affected, err := s.repo.Delete(ctx, recordID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	s.invalidateCache(ctx, "")
	return nil
}

// List returns register rows for any authenticated caller, newest first.
func (s *AttendanceService) List(ctx context.Context, claims *models.JWTClaims, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary computes per-status counts and the attendance rate for a
// student. Rate is 0 for an empty register.
func (s *AttendanceService) Summary(ctx context.Context, claims *models.JWTClaims, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}

	key := summaryCacheKey(studentID, from, to)
	var cached models.AttendanceSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	summary, err := s.repo.Summarize(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize attendance")
	}
	if summary.Total > 0 {
		summary.Rate = int(math.Round(float64(summary.Present) / float64(summary.Total) * 100))
	}

	if err := s.cache.Set(ctx, key, summary, 0); err != nil {
		s.logger.Warn("failed to cache attendance summary", zap.String("student_id", studentID), zap.Error(err))
	}
	return summary, nil
}

// Export renders the filtered register as CSV or PDF.
func (s *AttendanceService) Export(ctx context.Context, claims *models.JWTClaims, filter models.AttendanceFilter, format string) ([]byte, string, error) {
	if claims == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	filter.Page = 1
	filter.PageSize = 200
	rows, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance for export")
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Student", "Class", "Status", "Recorded By"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		className := ""
		if row.ClassName != nil {
			className = *row.ClassName
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":        row.Date.Format("2006-01-02"),
			"Student":     row.StudentName,
			"Class":       className,
			"Status":      string(row.Status),
			"Recorded By": row.TeacherName,
		})
	}

	switch format {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Attendance Report")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
}

func (s *AttendanceService) invalidateCache(ctx context.Context, studentID string) {
	pattern := "attendance:*"
	if studentID != "" {
		pattern = "attendance:summary:" + studentID + ":*"
	}
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate attendance cache", zap.String("pattern", pattern), zap.Error(err))
	}
}

func summaryCacheKey(studentID string, from, to *time.Time) string {
	fromPart, toPart := "-", "-"
	if from != nil {
		fromPart = from.Format("2006-01-02")
	}
	if to != nil {
		toPart = to.Format("2006-01-02")
	}
	return fmt.Sprintf("attendance:summary:%s:%s:%s", studentID, fromPart, toPart)
}

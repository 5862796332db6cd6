package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lsls-dev/school-portal-api/internal/models"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
)

type resultRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.ResultRecord, error)
	FindByID(ctx context.Context, id string) (*models.Result, error)
	Create(ctx context.Context, result *models.Result) error
	UpdateMarks(ctx context.Context, id string, marks int, ts time.Time) (*models.Result, error)
}

type resultTeacherReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error)
}

type resultStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// CreateResultRequest records a subject result for a student.
type CreateResultRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	Marks     int    `json:"marks" validate:"min=0,max=100"`
}

// UpdateResultRequest overwrites the marks of a result.
type UpdateResultRequest struct {
	Marks int `json:"marks" validate:"min=0,max=100"`
}

// ResultService provides subject result use cases.
type ResultService struct {
	repo      resultRepository
	teachers  resultTeacherReader
	students  resultStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResultService constructs a ResultService instance.
func NewResultService(repo resultRepository, teachers resultTeacherReader, students resultStudentReader, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResultService{repo: repo, teachers: teachers, students: students, validator: validate, logger: logger}
}

// ListByStudent returns results for one student, newest first.
func (s *ResultService) ListByStudent(ctx context.Context, claims *models.JWTClaims, studentID string) ([]models.ResultRecord, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	rows, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return rows, nil
}

// Create records a result. Teacher callers only.
func (s *ResultService) Create(ctx context.Context, claims *models.JWTClaims, req CreateResultRequest) (*models.Result, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers may record results")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}

	teacher, err := s.teachers.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	result := &models.Result{
		StudentID: req.StudentID,
		TeacherID: teacher.ID,
		Subject:   req.Subject,
		Marks:     req.Marks,
	}
	if err := s.repo.Create(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record result")
	}
	return result, nil
}

// UpdateMarks overwrites the marks of a result. Teacher callers only.
func (s *ResultService) UpdateMarks(ctx context.Context, claims *models.JWTClaims, id string, req UpdateResultRequest) (*models.Result, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers may update results")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}

	updated, err := s.repo.UpdateMarks(ctx, id, req.Marks, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update result")
	}
	return updated, nil
}

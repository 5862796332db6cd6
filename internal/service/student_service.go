package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lsls-dev/school-portal-api/internal/models"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
)

// Parents provisioned alongside a student get a placeholder mailbox and
// a temporary password the admin is expected to reset.
const (
	parentEmailDomain   = "parent.lsls"
	parentTempPassword  = "temp123"
	parentEmailAttempts = 100
)

type studentRepository interface {
	List(ctx context.Context) ([]models.StudentDetail, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) (int64, error)
}

type studentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateWithProfile(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

type studentClassRepository interface {
	FindByName(ctx context.Context, name string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
}

type studentParentRepository interface {
	FindByName(ctx context.Context, name string) (*models.ParentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.ParentDetail, error)
}

// CreateStudentRequest provisions a student account plus profile.
// ClassNumber and ParentName trigger find-or-create side records.
type CreateStudentRequest struct {
	Name        string  `json:"name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=6"`
	ClassNumber *string `json:"class_number,omitempty"`
	ParentName  *string `json:"parent_name,omitempty"`
}

// UpdateStudentRequest mutates account and profile fields; nil fields
// are left unchanged.
type UpdateStudentRequest struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6"`
	ClassNumber *string `json:"class_number,omitempty"`
	ParentName  *string `json:"parent_name,omitempty"`
}

// StudentService provides student roster use cases.
type StudentService struct {
	students  studentRepository
	users     studentUserRepository
	classes   studentClassRepository
	parents   studentParentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(students studentRepository, users studentUserRepository, classes studentClassRepository, parents studentParentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{students: students, users: users, classes: classes, parents: parents, validator: validate, logger: logger}
}

// List returns the full student roster.
func (s *StudentService) List(ctx context.Context) ([]models.StudentDetail, error) {
	rows, err := s.students.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return rows, nil
}

// Get returns one student profile.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// Me returns the profile owned by the calling student account.
func (s *StudentService) Me(ctx context.Context, claims *models.JWTClaims) (*models.StudentDetail, error) {
	if claims == nil || claims.Role != models.RoleStudent {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.students.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// Create provisions the student account, profile, and any referenced
// class or parent records.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	email := req.Email
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.ErrEmailTaken
	}

	classID, err := s.resolveClass(ctx, req.ClassNumber)
	if err != nil {
		return nil, err
	}
	parentID, err := s.resolveParent(ctx, req.ParentName)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{Email: email, PasswordHash: string(hash), Name: req.Name, Role: models.RoleStudent}
	if err := s.users.CreateWithProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student account")
	}

	profile, err := s.students.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load created student")
	}

	if classID != nil || parentID != nil {
		profile.ClassID = classID
		profile.ParentID = parentID
		if err := s.students.Update(ctx, &profile.Student); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link student profile")
		}
	}

	return s.Get(ctx, profile.ID)
}

// Update applies partial changes to the account and profile.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	profile, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	user, err := s.users.FindByID(ctx, profile.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student account")
	}

	accountChanged := false
	if req.Name != nil && *req.Name != "" {
		user.Name = *req.Name
		accountChanged = true
	}
	if req.Email != nil && *req.Email != "" {
		user.Email = normalizeEmail(*req.Email)
		accountChanged = true
	}
	if accountChanged {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student account")
		}
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		if err := s.users.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
		}
	}

	profileChanged := false
	if req.ClassNumber != nil {
		classID, err := s.resolveClass(ctx, req.ClassNumber)
		if err != nil {
			return nil, err
		}
		profile.ClassID = classID
		profileChanged = true
	}
	if req.ParentName != nil {
		parentID, err := s.resolveParent(ctx, req.ParentName)
		if err != nil {
			return nil, err
		}
		profile.ParentID = parentID
		profileChanged = true
	}
	if profileChanged {
		if err := s.students.Update(ctx, &profile.Student); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student profile")
		}
	}

	return s.Get(ctx, id)
}

// Delete removes the student profile.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	affected, err := s.students.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return nil
}

// resolveClass maps a class number to a class id, creating the class on
// first reference. An empty value clears the assignment.
func (s *StudentService) resolveClass(ctx context.Context, classNumber *string) (*string, error) {
	if classNumber == nil || strings.TrimSpace(*classNumber) == "" {
		return nil, nil
	}
	name := fmt.Sprintf("Class %s", strings.TrimSpace(*classNumber))
	class, err := s.classes.FindByName(ctx, name)
	if err == nil {
		return &class.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up class")
	}
	created := &models.Class{Name: name}
	if err := s.classes.Create(ctx, created); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return &created.ID, nil
}

// resolveParent maps a display name to a parent profile, provisioning a
// placeholder parent account on first reference.
func (s *StudentService) resolveParent(ctx context.Context, parentName *string) (*string, error) {
	if parentName == nil || strings.TrimSpace(*parentName) == "" {
		return nil, nil
	}
	name := strings.TrimSpace(*parentName)

	existing, err := s.parents.FindByName(ctx, name)
	if err == nil {
		return &existing.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up parent")
	}

	email, err := s.generateParentEmail(ctx, name)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(parentTempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash parent password")
	}

	user := &models.User{Email: email, PasswordHash: string(hash), Name: name, Role: models.RoleParent}
	if err := s.users.CreateWithProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create parent account")
	}

	parent, err := s.parents.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load created parent")
	}
	return &parent.ID, nil
}

func (s *StudentService) generateParentEmail(ctx context.Context, name string) (string, error) {
	local := strings.Join(strings.Fields(strings.ToLower(name)), ".")
	candidate := fmt.Sprintf("%s@%s", local, parentEmailDomain)
	for i := 1; i <= parentEmailAttempts; i++ {
		exists, err := s.users.ExistsByEmail(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check parent email")
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d@%s", local, i, parentEmailDomain)
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "could not allocate parent email")
}

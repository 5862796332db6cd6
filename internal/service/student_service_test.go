package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lsls-dev/school-portal-api/internal/models"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
)

type studentFixture struct {
	students map[string]*models.StudentDetail
	users    map[string]*models.User
	classes  map[string]*models.Class
	parents  map[string]*models.ParentDetail
	nextID   int
}

func (f *studentFixture) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

type fixtureStudentRepo struct{ f *studentFixture }

func (r fixtureStudentRepo) List(_ context.Context) ([]models.StudentDetail, error) {
	out := make([]models.StudentDetail, 0, len(r.f.students))
	for _, s := range r.f.students {
		out = append(out, *s)
	}
	return out, nil
}

func (r fixtureStudentRepo) FindByID(_ context.Context, id string) (*models.StudentDetail, error) {
	s, ok := r.f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (r fixtureStudentRepo) FindByUserID(_ context.Context, userID string) (*models.StudentDetail, error) {
	for _, s := range r.f.students {
		if s.UserID == userID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r fixtureStudentRepo) Update(_ context.Context, student *models.Student) error {
	s, ok := r.f.students[student.ID]
	if !ok {
		return sql.ErrNoRows
	}
	s.Student = *student
	return nil
}

func (r fixtureStudentRepo) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := r.f.students[id]; !ok {
		return 0, nil
	}
	delete(r.f.students, id)
	return 1, nil
}

type fixtureUserRepo struct{ f *studentFixture }

func (r fixtureUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (r fixtureUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, u := range r.f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r fixtureUserRepo) CreateWithProfile(_ context.Context, user *models.User) error {
	user.ID = r.f.id("user")
	stored := *user
	r.f.users[user.ID] = &stored
	switch user.Role {
	case models.RoleStudent:
		id := r.f.id("student")
		r.f.students[id] = &models.StudentDetail{
			Student: models.Student{ID: id, UserID: user.ID},
			Name:    user.Name,
			Email:   user.Email,
		}
	case models.RoleParent:
		id := r.f.id("parent")
		r.f.parents[id] = &models.ParentDetail{
			Parent: models.Parent{ID: id, UserID: user.ID},
			Name:   user.Name,
			Email:  user.Email,
		}
	}
	return nil
}

func (r fixtureUserRepo) Update(_ context.Context, user *models.User) error {
	u, ok := r.f.users[user.ID]
	if !ok {
		return sql.ErrNoRows
	}
	*u = *user
	return nil
}

func (r fixtureUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	u, ok := r.f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

type fixtureClassRepo struct{ f *studentFixture }

func (r fixtureClassRepo) FindByName(_ context.Context, name string) (*models.Class, error) {
	for _, c := range r.f.classes {
		if c.Name == name {
			copied := *c
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r fixtureClassRepo) Create(_ context.Context, class *models.Class) error {
	class.ID = r.f.id("class")
	stored := *class
	r.f.classes[class.ID] = &stored
	return nil
}

type fixtureParentRepo struct{ f *studentFixture }

func (r fixtureParentRepo) FindByName(_ context.Context, name string) (*models.ParentDetail, error) {
	for _, p := range r.f.parents {
		if p.Name == name {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r fixtureParentRepo) FindByUserID(_ context.Context, userID string) (*models.ParentDetail, error) {
	for _, p := range r.f.parents {
		if p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func newStudentFixture() (*StudentService, *studentFixture) {
	f := &studentFixture{
		students: make(map[string]*models.StudentDetail),
		users:    make(map[string]*models.User),
		classes:  make(map[string]*models.Class),
		parents:  make(map[string]*models.ParentDetail),
	}
	svc := NewStudentService(fixtureStudentRepo{f}, fixtureUserRepo{f}, fixtureClassRepo{f}, fixtureParentRepo{f}, nil, zap.NewNop())
	return svc, f
}

func strPtr(s string) *string { return &s }

func TestCreateStudentProvisionsClassAndParent(t *testing.T) {
	svc, f := newStudentFixture()

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		Name:        "Alice Lee",
		Email:       "alice@school.test",
		Password:    "secret1",
		ClassNumber: strPtr("3"),
		ParentName:  strPtr("Bob Lee"),
	})
	require.NoError(t, err)
	require.NotNil(t, student.ClassID)
	require.NotNil(t, student.ParentID)

	class := f.classes[*student.ClassID]
	require.NotNil(t, class)
	assert.Equal(t, "Class 3", class.Name)

	parent := f.parents[*student.ParentID]
	require.NotNil(t, parent)
	assert.Equal(t, "bob.lee@parent.lsls", parent.Email)
}

func TestCreateStudentReusesExistingClassAndParent(t *testing.T) {
	svc, f := newStudentFixture()
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateStudentRequest{
		Name:        "Alice Lee",
		Email:       "alice@school.test",
		Password:    "secret1",
		ClassNumber: strPtr("3"),
		ParentName:  strPtr("Bob Lee"),
	})
	require.NoError(t, err)

	second, err := svc.Create(ctx, CreateStudentRequest{
		Name:        "Ann Lee",
		Email:       "ann@school.test",
		Password:    "secret1",
		ClassNumber: strPtr("3"),
		ParentName:  strPtr("Bob Lee"),
	})
	require.NoError(t, err)

	assert.Equal(t, *first.ClassID, *second.ClassID)
	assert.Equal(t, *first.ParentID, *second.ParentID)
	assert.Len(t, f.classes, 1)
	assert.Len(t, f.parents, 1)
}

func TestCreateStudentGeneratedParentEmailAvoidsCollisions(t *testing.T) {
	svc, f := newStudentFixture()
	ctx := context.Background()

	taken := &models.User{ID: "user-x", Email: "bob.lee@parent.lsls", Role: models.RoleAdmin}
	f.users[taken.ID] = taken

	student, err := svc.Create(ctx, CreateStudentRequest{
		Name:       "Alice Lee",
		Email:      "alice@school.test",
		Password:   "secret1",
		ParentName: strPtr("Bob Lee"),
	})
	require.NoError(t, err)

	parent := f.parents[*student.ParentID]
	require.NotNil(t, parent)
	assert.Equal(t, "bob.lee1@parent.lsls", parent.Email)
}

func TestCreateStudentDuplicateEmail(t *testing.T) {
	svc, _ := newStudentFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateStudentRequest{Name: "A", Email: "a@school.test", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateStudentRequest{Name: "B", Email: "A@School.TEST", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErrors.FromError(err).Code)
}

func TestUpdateStudentMovesClass(t *testing.T) {
	svc, f := newStudentFixture()
	ctx := context.Background()

	student, err := svc.Create(ctx, CreateStudentRequest{
		Name:        "Alice Lee",
		Email:       "alice@school.test",
		Password:    "secret1",
		ClassNumber: strPtr("3"),
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, student.ID, UpdateStudentRequest{ClassNumber: strPtr("5")})
	require.NoError(t, err)
	require.NotNil(t, updated.ClassID)
	assert.Equal(t, "Class 5", f.classes[*updated.ClassID].Name)
	assert.Len(t, f.classes, 2)
}

func TestDeleteStudentTwiceReportsNotFound(t *testing.T) {
	svc, _ := newStudentFixture()
	ctx := context.Background()

	student, err := svc.Create(ctx, CreateStudentRequest{Name: "A", Email: "a@school.test", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, student.ID))
	err = svc.Delete(ctx, student.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMeRequiresStudentRole(t *testing.T) {
	svc, _ := newStudentFixture()

	_, err := svc.Me(context.Background(), &models.JWTClaims{UserID: "u", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lsls-dev/school-portal-api/internal/models"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
)

type mockUserRepo struct {
	byEmail map[string]*models.User
	created []*models.User
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range m.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *mockUserRepo) CreateWithProfile(_ context.Context, user *models.User) error {
	user.ID = "user-new"
	if m.byEmail == nil {
		m.byEmail = make(map[string]*models.User)
	}
	m.byEmail[user.Email] = user
	m.created = append(m.created, user)
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	for _, user := range m.byEmail {
		if user.ID == id {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return sql.ErrNoRows
}

func newAuthFixture(t *testing.T) (*AuthService, *mockUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"teacher@school.test": {
			ID:           "user-t1",
			Email:        "teacher@school.test",
			Name:         "T. Teacher",
			Role:         models.RoleTeacher,
			PasswordHash: string(hash),
		},
	}}
	svc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{TokenSecret: "test-secret", TokenExpiry: time.Hour})
	return svc, repo
}

func TestLoginNormalizesEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	result, err := svc.Login(context.Background(), models.LoginRequest{Email: "  Teacher@School.TEST ", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, models.RoleTeacher, result.User.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.test", Password: "nope123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownUserLooksLikeWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@school.test", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestSignupStoresNormalizedEmail(t *testing.T) {
	svc, repo := newAuthFixture(t)

	user, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "New Student",
		Email:    " New.Student@School.TEST ",
		Password: "secret1",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.student@school.test", user.Email)
	require.Len(t, repo.created, 1)
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "Dup",
		Email:    "teacher@school.test",
		Password: "secret1",
		Role:     models.RoleTeacher,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErrors.FromError(err).Code)
}

func TestSignupRejectsUnknownRole(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "X",
		Email:    "x@school.test",
		Password: "secret1",
		Role:     "JANITOR",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc, _ := newAuthFixture(t)

	result, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.test", Password: "secret1"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-t1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestValidateTokenRejectsUnknownRole(t *testing.T) {
	svc, _ := newAuthFixture(t)

	now := time.Now()
	claims := &models.JWTClaims{
		UserID: "user-x",
		Role:   "SUPERUSER",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, _ := newAuthFixture(t)

	other := NewAuthService(&mockUserRepo{}, nil, zap.NewNop(), AuthConfig{TokenSecret: "other", TokenExpiry: time.Hour})
	token, err := other.issueToken(&models.User{ID: "u", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestResetPasswordUnknownUser(t *testing.T) {
	svc, _ := newAuthFixture(t)

	err := svc.ResetPassword(context.Background(), "missing", models.ResetPasswordRequest{Password: "newpass1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResetPasswordRehashes(t *testing.T) {
	svc, repo := newAuthFixture(t)

	require.NoError(t, svc.ResetPassword(context.Background(), "user-t1", models.ResetPasswordRequest{Password: "newpass1"}))

	stored := repo.byEmail["teacher@school.test"]
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpass1")))
}

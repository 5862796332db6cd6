package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsls-dev/school-portal-api/internal/models"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
)

func TestDecideUnauthenticatedGoesToLoginWithCallback(t *testing.T) {
	decision := Decide("/teacher/attendance", Session{})
	assert.False(t, decision.Allow)
	assert.Equal(t, "/login?callbackUrl=%2Fteacher%2Fattendance", decision.RedirectTo)
	assert.False(t, decision.ClearSession)
}

func TestDecideUnauthenticatedMayViewAuthPages(t *testing.T) {
	for _, path := range []string{"/login", "/signup"} {
		decision := Decide(path, Session{})
		assert.True(t, decision.Allow, path)
	}
}

func TestDecideAuthenticatedLeavesAuthPages(t *testing.T) {
	decision := Decide("/login", Session{Present: true, Valid: true, Role: models.RoleTeacher})
	assert.False(t, decision.Allow)
	assert.Equal(t, "/teacher", decision.RedirectTo)
}

func TestDecideWrongNamespaceRedirectsHome(t *testing.T) {
	cases := []struct {
		path string
		role models.Role
		home string
	}{
		{"/admin", models.RoleTeacher, "/teacher"},
		{"/admin/users", models.RoleStudent, "/student"},
		{"/teacher/attendance", models.RoleParent, "/parent"},
		{"/student", models.RoleAdmin, "/admin"},
	}
	for _, tc := range cases {
		decision := Decide(tc.path, Session{Present: true, Valid: true, Role: tc.role})
		assert.False(t, decision.Allow, tc.path)
		assert.Equal(t, tc.home, decision.RedirectTo, tc.path)
	}
}

func TestDecideOwnNamespaceAllowed(t *testing.T) {
	decision := Decide("/teacher/attendance", Session{Present: true, Valid: true, Role: models.RoleTeacher})
	assert.True(t, decision.Allow)
}

func TestDecideHomeRedirectDoesNotLoop(t *testing.T) {
	session := Session{Present: true, Valid: true, Role: models.RoleParent}
	decision := Decide("/admin", session)
	require.False(t, decision.Allow)

	followup := Decide(decision.RedirectTo, session)
	assert.True(t, followup.Allow)
}

func TestDecideRootRedirectsToHome(t *testing.T) {
	decision := Decide("/", Session{Present: true, Valid: true, Role: models.RoleStudent})
	assert.Equal(t, "/student", decision.RedirectTo)
}

func TestDecideRootOpenWithoutSession(t *testing.T) {
	decision := Decide("/", Session{})
	assert.True(t, decision.Allow)
	assert.Empty(t, decision.RedirectTo)
}

func TestDecideRootClearsInvalidSession(t *testing.T) {
	decision := Decide("/", Session{Present: true, Valid: false})
	assert.True(t, decision.Allow)
	assert.True(t, decision.ClearSession)
}

func TestDecideInvalidSessionIsCleared(t *testing.T) {
	decision := Decide("/teacher", Session{Present: true, Valid: false})
	assert.False(t, decision.Allow)
	assert.True(t, decision.ClearSession)
	assert.True(t, strings.HasPrefix(decision.RedirectTo, "/login?callbackUrl="))
}

type stubValidator struct {
	claims map[string]*models.JWTClaims
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s.claims[token]
	if !ok {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func gateRouter(validator TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	gate := Gate(validator, "portal_session")
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/login", gate, ok)
	r.GET("/admin", gate, ok)
	r.GET("/teacher", gate, ok)
	return r
}

func TestGateRedirectsAndClearsBadCookie(t *testing.T) {
	r := gateRouter(&stubValidator{})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: "stale"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fadmin", w.Header().Get("Location"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "portal_session=;")
}

func TestGateSendsWrongRoleHome(t *testing.T) {
	validator := &stubValidator{claims: map[string]*models.JWTClaims{
		"tok-teacher": {UserID: "u1", Role: models.RoleTeacher},
	}}
	r := gateRouter(validator)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: "tok-teacher"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/teacher", w.Header().Get("Location"))
}

func TestGateAllowsOwnNamespace(t *testing.T) {
	validator := &stubValidator{claims: map[string]*models.JWTClaims{
		"tok-teacher": {UserID: "u1", Role: models.RoleTeacher},
	}}
	r := gateRouter(validator)

	req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: "tok-teacher"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

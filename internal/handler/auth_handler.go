package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lsls-dev/school-portal-api/internal/models"
	"github.com/lsls-dev/school-portal-api/internal/service"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
	"github.com/lsls-dev/school-portal-api/pkg/response"
)

// AuthHandler exposes session endpoints. On login the token is returned
// in the body and mirrored into the session cookie the page gate reads.
type AuthHandler struct {
	service      *service.AuthService
	cookieName   string
	cookieMaxAge int
	secureCookie bool
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(svc *service.AuthService, cookieName string, cookieMaxAge int, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		service:      svc,
		cookieName:   cookieName,
		cookieMaxAge: cookieMaxAge,
		secureCookie: secureCookie,
	}
}

// Login godoc
// @Summary Sign in with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.SetCookie(h.cookieName, result.AccessToken, h.cookieMaxAge, "/", "", h.secureCookie, true)
	response.JSON(c, http.StatusOK, result, nil)
}

// Signup godoc
// @Summary Create an account with its role profile
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.SignupRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	user, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, models.UserInfo{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role})
}

// Logout godoc
// @Summary Clear the session cookie
// @Tags Auth
// @Produce json
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookie, true)
	response.NoContent(c)
}

// Me godoc
// @Summary Describe the authenticated user
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, models.UserInfo{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}, nil)
}

// ResetPassword godoc
// @Summary Reset a user's password
// @Tags Auth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.ResetPasswordRequest true "New password"
// @Success 204
// @Security BearerAuth
// @Router /admin/users/{id}/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.ResetPassword(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

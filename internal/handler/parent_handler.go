package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lsls-dev/school-portal-api/internal/service"
	"github.com/lsls-dev/school-portal-api/pkg/response"
)

// ParentHandler exposes parent endpoints.
type ParentHandler struct {
	service *service.ParentService
}

// NewParentHandler constructs a parent handler.
func NewParentHandler(svc *service.ParentService) *ParentHandler {
	return &ParentHandler{service: svc}
}

// List godoc
// @Summary List parents
// @Tags Parents
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /parents [get]
func (h *ParentHandler) List(c *gin.Context) {
	parents, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, parents, nil)
}

// Children godoc
// @Summary List the caller's children with attendance rates
// @Tags Parents
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /parents/me/children [get]
func (h *ParentHandler) Children(c *gin.Context) {
	children, err := h.service.Children(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, children, nil)
}

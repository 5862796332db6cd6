package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lsls-dev/school-portal-api/internal/service"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
	"github.com/lsls-dev/school-portal-api/pkg/response"
)

// ResultHandler exposes subject result endpoints.
type ResultHandler struct {
	service *service.ResultService
}

// NewResultHandler constructs a result handler.
func NewResultHandler(svc *service.ResultService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// ListByStudent godoc
// @Summary List a student's subject results
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/results [get]
func (h *ResultHandler) ListByStudent(c *gin.Context) {
	results, err := h.service.ListByStudent(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Create godoc
// @Summary Record a subject result
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body service.CreateResultRequest true "Result payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /results [post]
func (h *ResultHandler) Create(c *gin.Context) {
	var req service.CreateResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// UpdateMarks godoc
// @Summary Overwrite the marks of a result
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Result ID"
// @Param payload body service.UpdateResultRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results/{id} [put]
func (h *ResultHandler) UpdateMarks(c *gin.Context) {
	var req service.UpdateResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.UpdateMarks(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

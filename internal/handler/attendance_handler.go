package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lsls-dev/school-portal-api/internal/models"
	"github.com/lsls-dev/school-portal-api/internal/service"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
	"github.com/lsls-dev/school-portal-api/pkg/response"
)

// AttendanceHandler exposes the attendance register endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Record godoc
// @Summary Mark a student for a calendar day
// @Description Overwrites the student's existing record for that day if one exists.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RecordAttendanceRequest true "Attendance mark"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Record(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil)
}

// UpdateStatus godoc
// @Summary Overwrite the status of an attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body handler.updateAttendanceRequest true "New status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/{id} [patch]
func (h *AttendanceHandler) UpdateStatus(c *gin.Context) {
	var req updateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.UpdateStatus(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

type updateAttendanceRequest struct {
	Status models.AttendanceStatus `json:"status" binding:"required"`
}

// Delete godoc
// @Summary Delete an attendance record
// @Tags Attendance
// @Param id path string true "Record ID"
// @Success 204
// @Security BearerAuth
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param class_id query string false "Filter by class"
// @Param date query string false "Calendar day (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter, err := h.filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Summary godoc
// @Summary Attendance counts and rate for one student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/students/{id}/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	from, err := queryDate(c, "from")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date"))
		return
	}
	to, err := queryDate(c, "to")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date"))
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), claimsFromContext(c), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export the register as CSV or PDF
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param student_id query string false "Filter by student"
// @Param class_id query string false "Filter by class"
// @Param date query string false "Calendar day (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	filter, err := h.filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.service.Export(c.Request.Context(), claimsFromContext(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := "attendance-" + time.Now().Format("20060102") + "." + format
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}

func (h *AttendanceHandler) filterFromQuery(c *gin.Context) (models.AttendanceFilter, error) {
	filter := models.AttendanceFilter{
		StudentID: c.Query("student_id"),
		ClassID:   c.Query("class_id"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 50),
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	filter.Date = date
	return filter, nil
}

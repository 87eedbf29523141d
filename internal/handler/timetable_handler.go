package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ccsit-tools/schedule-api/internal/dto"
	"github.com/ccsit-tools/schedule-api/internal/service"
	appErrors "github.com/ccsit-tools/schedule-api/pkg/errors"
	"github.com/ccsit-tools/schedule-api/pkg/response"
)

// TimetableHandler exposes timetable generation endpoints.
type TimetableHandler struct {
	timetables *service.TimetableService
	timeout    time.Duration
}

// NewTimetableHandler constructs TimetableHandler.
func NewTimetableHandler(timetables *service.TimetableService, timeout time.Duration) *TimetableHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TimetableHandler{timetables: timetables, timeout: timeout}
}

// Generate godoc
// @Summary Generate conflict-free timetables
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Course selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.timetables.Generate(ctx, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

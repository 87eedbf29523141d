package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ccsit-tools/schedule-api/internal/dto"
	"github.com/ccsit-tools/schedule-api/internal/models"
	"github.com/ccsit-tools/schedule-api/internal/service"
	appErrors "github.com/ccsit-tools/schedule-api/pkg/errors"
	"github.com/ccsit-tools/schedule-api/pkg/response"
)

// CatalogHandler exposes course catalog endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List godoc
// @Summary List catalog courses
// @Tags Catalog
// @Produce json
// @Param search query string false "Search by course code or title"
// @Param instructor query string false "Filter by instructor name"
// @Param day query string false "Filter by day token"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Instructor = strings.TrimSpace(c.Query("instructor"))
	filter.Day = strings.TrimSpace(c.Query("day"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	courses, pagination, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get one course with its sections
// @Tags Catalog
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /courses/{code} [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	course, err := h.catalog.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Refresh godoc
// @Summary Re-ingest catalog snapshots
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body dto.RefreshCatalogRequest false "Snapshot names (all when empty)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/catalog/refresh [post]
func (h *CatalogHandler) Refresh(c *gin.Context) {
	var req dto.RefreshCatalogRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload"))
			return
		}
	}

	reports, err := h.catalog.Refresh(c.Request.Context(), req.Snapshots)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RefreshCatalogResponse{Reports: reports}, nil)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classtrack/classtrack-api/internal/service"
	"github.com/classtrack/classtrack-api/pkg/response"
)

// AnalyticsHandler exposes class insight endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// AtRisk godoc
// @Summary Students at risk in a class
// @Tags Analytics
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/analytics/at-risk [get]
func (h *AnalyticsHandler) AtRisk(c *gin.Context) {
	flagged, err := h.analytics.AtRiskStudents(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, flagged, nil)
}

// Distribution godoc
// @Summary Tentative grade distribution for a class
// @Tags Analytics
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/analytics/distribution [get]
func (h *AnalyticsHandler) Distribution(c *gin.Context) {
	distribution, err := h.analytics.GradeDistribution(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, distribution, nil)
}

// ReviewQueue godoc
// @Summary Pending submission count for a class
// @Tags Analytics
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/analytics/review-queue [get]
func (h *AnalyticsHandler) ReviewQueue(c *gin.Context) {
	depth, err := h.analytics.ReviewQueueDepth(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"pending": depth}, nil)
}

// System godoc
// @Summary Instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(c.Request.Context()), nil)
}

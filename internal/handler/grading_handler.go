package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/service"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
	"github.com/classtrack/classtrack-api/pkg/response"
)

// GradingHandler exposes computed standings and scheme endpoints.
type GradingHandler struct {
	grading *service.GradingService
	schemes *service.SchemeService
}

// NewGradingHandler constructs handler.
func NewGradingHandler(grading *service.GradingService, schemes *service.SchemeService) *GradingHandler {
	return &GradingHandler{grading: grading, schemes: schemes}
}

// ClassStandings godoc
// @Summary Computed standings for every student in a class
// @Tags Grading
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/standings [get]
func (h *GradingHandler) ClassStandings(c *gin.Context) {
	standings, err := h.grading.ClassStandings(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// StudentStanding godoc
// @Summary Computed standing for one student in a class
// @Tags Grading
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/standings/{studentId} [get]
func (h *GradingHandler) StudentStanding(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := c.Param("studentId")
	// Students only ever see their own standing.
	if claims.Role == models.RoleStudent && studentID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	standing, err := h.grading.StudentStanding(c.Request.Context(), c.Param("classId"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}

// MyStanding godoc
// @Summary Computed standing for the authenticated student
// @Tags Grading
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/standings/me [get]
func (h *GradingHandler) MyStanding(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	standing, err := h.grading.StudentStanding(c.Request.Context(), c.Param("classId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}

// GetScheme godoc
// @Summary Get the grading scheme for a class
// @Tags Grading
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/scheme [get]
func (h *GradingHandler) GetScheme(c *gin.Context) {
	scheme, err := h.schemes.Get(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scheme, nil)
}

// UpsertScheme godoc
// @Summary Set the grading scheme for a class
// @Tags Grading
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body service.UpsertSchemeRequest true "Scheme payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/scheme [put]
func (h *GradingHandler) UpsertScheme(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpsertSchemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	scheme, err := h.schemes.Upsert(c.Request.Context(), claims.UserID, c.Param("classId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scheme, nil)
}

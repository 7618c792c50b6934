package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/common/middleware"
	"github.com/tachyonedu/practice-engine/internal/recommendation/services"
)

const defaultRecommendationLimit = 10

// RecommendationHandler exposes the recommendation endpoints.
type RecommendationHandler struct {
	service *services.Service
}

func NewRecommendationHandler(service *services.Service) *RecommendationHandler {
	return &RecommendationHandler{service: service}
}

// List returns recommendations for the authenticated student. The type
// query parameter selects the personalized mix (default) or the revision
// list.
// GET /api/v1/recommendations?type=&limit=
func (h *RecommendationHandler) List(c *gin.Context) {
	studentID, ok := studentID(c)
	if !ok {
		return
	}

	limit := defaultRecommendationLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.JSONErrorResponse(c, errors.BadRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	recType := c.DefaultQuery("type", "personalized")
	switch recType {
	case "personalized":
		recs, err := h.service.Personalized(c.Request.Context(), studentID, limit)
		if err != nil {
			middleware.JSONErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"type": recType, "recommendations": recs})

	case "revision":
		recs, err := h.service.Revision(c.Request.Context(), studentID, limit)
		if err != nil {
			middleware.JSONErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"type": recType, "recommendations": recs})

	default:
		middleware.JSONErrorResponse(c, errors.BadRequest("type must be personalized or revision"))
	}
}

// Similar returns questions similar to the given one.
// GET /api/v1/recommendations/similar/:question_id
func (h *RecommendationHandler) Similar(c *gin.Context) {
	studentID, ok := studentID(c)
	if !ok {
		return
	}

	questionID, ok := uintParam(c, "question_id")
	if !ok {
		return
	}

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.JSONErrorResponse(c, errors.BadRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	recs, err := h.service.Similar(c.Request.Context(), questionID, studentID, limit)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// GenerateForLecture creates recommendation rows for a lecture. Called by
// the content workflow after a lecture is authored.
// POST /api/v1/recommendations/lectures/:id/generate
func (h *RecommendationHandler) GenerateForLecture(c *gin.Context) {
	lectureID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	created, err := h.service.GenerateForLecture(c.Request.Context(), lectureID)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": created})
}

// Complete marks one recommendation as done.
// POST /api/v1/recommendations/:id/complete
func (h *RecommendationHandler) Complete(c *gin.Context) {
	if _, ok := studentID(c); !ok {
		return
	}

	recID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.MarkCompleted(c.Request.Context(), recID); err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed": true})
}

func studentID(c *gin.Context) (uint, bool) {
	raw := c.GetString("student_id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		c.Abort()
		return 0, false
	}
	return uint(id), true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid "+name+" parameter"))
		return 0, false
	}
	return uint(id), true
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/common/middleware"
	"github.com/tachyonedu/practice-engine/internal/gamification/services"
)

// GamificationHandler exposes the points and streak profile.
type GamificationHandler struct {
	service *services.Service
}

func NewGamificationHandler(service *services.Service) *GamificationHandler {
	return &GamificationHandler{service: service}
}

// Profile returns the student's current points total and streak.
// GET /api/v1/gamification/profile
func (h *GamificationHandler) Profile(c *gin.Context) {
	raw := c.GetString("student_id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		c.Abort()
		return
	}

	ledger, streak, err := h.service.Profile(c.Request.Context(), uint(id))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_points":   ledger.TotalPoints,
		"current_streak": streak.CurrentStreak,
		"longest_streak": streak.LongestStreak,
	})
}

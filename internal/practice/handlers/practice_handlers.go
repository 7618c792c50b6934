package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
	"github.com/tachyonedu/practice-engine/internal/common/middleware"
	"github.com/tachyonedu/practice-engine/internal/practice/models"
	"github.com/tachyonedu/practice-engine/internal/practice/services"
)

// PracticeHandler exposes the practice session and attempt endpoints.
type PracticeHandler struct {
	sessions *services.SessionService
	attempts *services.AttemptService
}

func NewPracticeHandler(sessions *services.SessionService, attempts *services.AttemptService) *PracticeHandler {
	return &PracticeHandler{
		sessions: sessions,
		attempts: attempts,
	}
}

// StartSession opens a new practice session for the authenticated student.
// POST /api/v1/practice/sessions
func (h *PracticeHandler) StartSession(c *gin.Context) {
	studentID, ok := studentID(c)
	if !ok {
		return
	}

	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid request body", err.Error()))
		return
	}

	session, err := h.sessions.StartSession(c.Request.Context(), studentID, &req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.StartSessionResponse{
		SessionID: session.ID,
		Mode:      session.Mode,
		Message:   "session started",
	})
}

// EndSession closes a session and returns its summary.
// PATCH /api/v1/practice/sessions/:id/end
func (h *PracticeHandler) EndSession(c *gin.Context) {
	studentID, ok := studentID(c)
	if !ok {
		return
	}

	sessionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	summary, err := h.sessions.EndSession(c.Request.Context(), studentID, sessionID)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// NextQuestion serves the next question for an active session. An exhausted
// question pool responds 404: the session has nothing left to serve.
// GET /api/v1/practice/next-question?session_id=
func (h *PracticeHandler) NextQuestion(c *gin.Context) {
	studentID, ok := studentID(c)
	if !ok {
		return
	}

	sessionID, err := strconv.ParseUint(c.Query("session_id"), 10, 64)
	if err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("session_id query parameter is required"))
		return
	}

	question, err := h.attempts.NextQuestion(c.Request.Context(), studentID, uint(sessionID))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	if question == nil {
		middleware.JSONErrorResponse(c, &errors.AppError{
			Code:    errors.CodeNotFound,
			Message: "no more questions available",
			Status:  http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, question)
}

// SubmitAttempt grades an answer submission.
// POST /api/v1/practice/attempts
func (h *PracticeHandler) SubmitAttempt(c *gin.Context) {
	studentID, ok := studentID(c)
	if !ok {
		return
	}

	var req models.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.Validation("invalid request body", err.Error()))
		return
	}

	result, err := h.attempts.SubmitAttempt(c.Request.Context(), studentID, &req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// WeakTopics lists the student's weak topics, optionally scoped to subjects.
// GET /api/v1/practice/weak-topics?subject=
func (h *PracticeHandler) WeakTopics(c *gin.Context) {
	studentID, ok := studentID(c)
	if !ok {
		return
	}

	var subjects []string
	if subject := c.Query("subject"); subject != "" {
		subjects = []string{subject}
	}

	topics, err := h.sessions.WeakTopics(c.Request.Context(), studentID, subjects)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"weak_topics": topics})
}

// Performance lists the student's per-subject performance summaries.
// GET /api/v1/practice/performance
func (h *PracticeHandler) Performance(c *gin.Context) {
	studentID, ok := studentID(c)
	if !ok {
		return
	}

	summaries, err := h.attempts.Performance(c.Request.Context(), studentID)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"performance": summaries})
}

// studentID parses the authenticated student id placed by the auth
// middleware. Writes the error response itself when missing or malformed.
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

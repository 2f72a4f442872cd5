package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/exambuddy/exambuddy-backend/internal/middleware"
	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/exambuddy/exambuddy-backend/internal/response"
	"github.com/exambuddy/exambuddy-backend/internal/service"
	"github.com/exambuddy/exambuddy-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// ExamHandler exposes the exam session engine over HTTP.
type ExamHandler struct {
	sessions  *service.ExamSessionService
	questions *service.QuestionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessions *service.ExamSessionService, questions *service.QuestionService) *ExamHandler {
	return &ExamHandler{sessions: sessions, questions: questions}
}

// StartExam godoc
// POST /api/v1/exams/start
// Builds a random question set for the project and opens a session over it.
// The response never carries correct indices.
func (h *ExamHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, difficulty, err := h.questions.SelectForSession(c.Request.Context(), req.ProjectID, req.QuestionCount, req.Difficulty)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if len(questions) == 0 {
		response.Fail(c, http.StatusNotFound, response.ErrNoQuestions)
		return
	}

	sess, err := h.sessions.Start(
		c.Request.Context(),
		claims.CandidateID,
		req.ProjectID,
		model.ExamMode(req.Mode),
		difficulty,
		questions,
	)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidInput)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session_id":         sess.SessionID,
		"questions":          model.SanitizeQuestions(sess.Questions),
		"mode":               sess.Mode,
		"started_at":         sess.StartedAt,
		"total_time_seconds": sess.TotalTimeSeconds(),
	})
}

// RecordPresentation godoc
// POST /api/v1/exams/:session_id/present
// Stamps the presentation time of a question. An invalid or missing
// client timestamp falls back to server time.
func (h *ExamHandler) RecordPresentation(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req model.PresentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var presentedAt *time.Time
	if req.PresentedAt != "" {
		if t, err := time.Parse(time.RFC3339, req.PresentedAt); err == nil {
			presentedAt = &t
		}
	}

	if err := h.sessions.RecordPresentation(c.Request.Context(), sessionID, req.QuestionID, presentedAt); err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "presentation recorded"})
}

// SubmitAnswer godoc
// POST /api/v1/exams/:session_id/answers
// Records an answer; submission time is the server receive time. The correct
// index appears in the response only for test-mode sessions.
func (h *ExamHandler) SubmitAnswer(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessions.SubmitAnswer(c.Request.Context(), sessionID, req.QuestionID, *req.AnswerIndex, time.Now())
	if err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// EnterReview godoc
// GET /api/v1/exams/:session_id/review
// Transitions an exam-mode session into its review phase.
func (h *ExamHandler) EnterReview(c *gin.Context) {
	review, err := h.sessions.EnterReview(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, review)
}

// GetProgress godoc
// GET /api/v1/exams/:session_id/score
// Returns the live score summary without mutating the session.
func (h *ExamHandler) GetProgress(c *gin.Context) {
	summary, err := h.sessions.Score(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// FinalizeExam godoc
// POST /api/v1/exams/:session_id/submit
// Scores the session, archives the attempt, and closes the session.
func (h *ExamHandler) FinalizeExam(c *gin.Context) {
	attempt, err := h.sessions.Finalize(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.failFromServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt_id":      attempt.AttemptID,
		"score":           attempt.Score,
		"correct_count":   attempt.CorrectCount,
		"total_questions": attempt.QuestionCount,
		"answers":         attempt.Answers,
		"completed_at":    attempt.CompletedAt,
	})
}

// CancelExam godoc
// DELETE /api/v1/exams/:session_id
// Discards the session without archiving. Cancelling an unknown session is
// not an error; the response just reports cancelled=false.
func (h *ExamHandler) CancelExam(c *gin.Context) {
	cancelled, err := h.sessions.Cancel(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"cancelled": cancelled})
}

// failFromServiceError maps engine errors onto HTTP error codes.
func (h *ExamHandler) failFromServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
	case errors.Is(err, service.ErrInvalidState):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidState)
	case errors.Is(err, service.ErrInvalidInput):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidInput)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

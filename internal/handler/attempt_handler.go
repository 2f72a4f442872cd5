package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/exambuddy/exambuddy-backend/internal/middleware"
	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/exambuddy/exambuddy-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// AttemptDirectory is the read side of the attempt archive.
type AttemptDirectory interface {
	ListByCandidate(ctx context.Context, candidateID string) ([]model.Attempt, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Attempt, error)
	GetByID(ctx context.Context, attemptID string) (*model.Attempt, error)
}

// AttemptHandler serves archived attempt records.
type AttemptHandler struct {
	attempts AttemptDirectory
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts AttemptDirectory) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

// ListMyAttempts godoc
// GET /api/v1/attempts
// Returns the authenticated candidate's archived attempts, newest first.
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attempts.ListByCandidate(c.Request.Context(), claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// ListProjectAttempts godoc
// GET /api/v1/projects/:project_id/attempts
func (h *AttemptHandler) ListProjectAttempts(c *gin.Context) {
	attempts, err := h.attempts.ListByProject(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttempt godoc
// GET /api/v1/attempts/:attempt_id
// Returns one archived attempt with its full answer breakdown.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attempt, err := h.attempts.GetByID(c.Request.Context(), c.Param("attempt_id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

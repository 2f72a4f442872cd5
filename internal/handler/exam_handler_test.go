package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/exambuddy/exambuddy-backend/internal/config"
	"github.com/exambuddy/exambuddy-backend/internal/handler"
	"github.com/exambuddy/exambuddy-backend/internal/middleware"
	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/exambuddy/exambuddy-backend/internal/router"
	"github.com/exambuddy/exambuddy-backend/internal/service"
	"github.com/exambuddy/exambuddy-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

var setupOnce sync.Once

// envelope mirrors the API response wrapper for assertions.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
	Metadata struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
}

type memSessionStore struct {
	mu   sync.Mutex
	recs map[string]model.SessionRecord
}

func (s *memSessionStore) Save(_ context.Context, sess *model.ExamSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[sess.SessionID] = model.SessionRecord{ExamSession: *sess}
	return nil
}

func (s *memSessionStore) Get(_ context.Context, sessionID string) (*model.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memSessionStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recs[sessionID]
	delete(s.recs, sessionID)
	return ok, nil
}

type memArchive struct {
	mu       sync.Mutex
	attempts []*model.Attempt
}

func (a *memArchive) Save(_ context.Context, attempt *model.Attempt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = append(a.attempts, attempt)
	return nil
}

type memQueue struct{}

func (memQueue) Enqueue(context.Context, *model.Attempt) error { return nil }

// fixedBank serves the same question set for selection and rehydration.
type fixedBank struct {
	questions []model.Question
}

func (b *fixedBank) RandomSelect(_ context.Context, _ string, count int, _ *model.DifficultyLevel) ([]model.Question, error) {
	if count > len(b.questions) {
		count = len(b.questions)
	}
	return b.questions[:count], nil
}

func (b *fixedBank) GetByIDs(_ context.Context, ids []string) ([]model.Question, error) {
	var out []model.Question
	for _, q := range b.questions {
		for _, id := range ids {
			if q.ID == id {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

type stubAttemptDirectory struct {
	byID map[string]*model.Attempt
}

func (d *stubAttemptDirectory) ListByCandidate(_ context.Context, candidateID string) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range d.byID {
		if a.CandidateID == candidateID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (d *stubAttemptDirectory) ListByProject(context.Context, string) ([]model.Attempt, error) {
	return nil, nil
}

func (d *stubAttemptDirectory) GetByID(_ context.Context, attemptID string) (*model.Attempt, error) {
	a, ok := d.byID[attemptID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func bankQuestions(n int) []model.Question {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:               fmt.Sprintf("q%d", i+1),
			ProjectID:        "proj-1",
			Text:             fmt.Sprintf("question %d", i+1),
			AnswerOptions:    []string{"a", "b", "c", "d"},
			CorrectIndex:     i % 4,
			Difficulty:       model.DifficultyMedium,
			TimeLimitSeconds: 60,
		}
	}
	return questions
}

type testApp struct {
	router   *gin.Engine
	archive  *memArchive
	attempts *stubAttemptDirectory
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	setupOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		validator.Setup()
	})

	bank := &fixedBank{questions: bankQuestions(5)}
	archive := &memArchive{}
	store := &memSessionStore{recs: make(map[string]model.SessionRecord)}
	attempts := &stubAttemptDirectory{byID: make(map[string]*model.Attempt)}

	sessions := service.NewExamSessionService(
		service.NewSessionRegistry(), store, archive, memQueue{}, bank, zerolog.Nop(),
	)
	questions := service.NewQuestionService(bank, zerolog.Nop())

	r := router.SetupRouter(&router.Handlers{
		Exam:    handler.NewExamHandler(sessions, questions),
		Attempt: handler.NewAttemptHandler(attempts),
	}, &config.Config{GinMode: gin.TestMode, JWTSecret: testSecret})

	return &testApp{router: r, archive: archive, attempts: attempts}
}

func signToken(t *testing.T, candidateID string) string {
	t.Helper()
	claims := &middleware.CandidateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		CandidateID: candidateID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (app *testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func startExam(t *testing.T, app *testApp, token, mode string) string {
	t.Helper()
	w, env := app.do(t, http.MethodPost, "/api/v1/exams/start", token, gin.H{
		"project_id":     "proj-1",
		"mode":           mode,
		"question_count": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.True(t, strings.HasPrefix(data.SessionID, "session-"))
	return data.SessionID
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, http.MethodPost, "/api/v1/exams/start", "", gin.H{
		"project_id": "proj-1", "mode": "exam", "question_count": 5,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	require.Equal(t, "TOKEN_REQUIRED", env.Error.Code)
}

func TestStartExam_NeverLeaksCorrectIndex(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")

	w, env := app.do(t, http.MethodPost, "/api/v1/exams/start", token, gin.H{
		"project_id":     "proj-1",
		"mode":           "exam",
		"difficulty":     "medium",
		"question_count": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, env.Metadata.RequestID)
	require.NotContains(t, string(env.Data), "correct_index")

	var data struct {
		SessionID        string                       `json:"session_id"`
		Questions        []model.QuestionForCandidate `json:"questions"`
		Mode             string                       `json:"mode"`
		TotalTimeSeconds int                          `json:"total_time_seconds"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Questions, 5)
	require.Equal(t, "exam", data.Mode)
	require.Equal(t, 300, data.TotalTimeSeconds)
}

func TestStartExam_ValidationFailure(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")

	w, env := app.do(t, http.MethodPost, "/api/v1/exams/start", token, gin.H{
		"project_id":     "proj-1",
		"mode":           "marathon",
		"question_count": 2,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	require.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Contains(t, env.Error.Fields, "mode")
	require.Contains(t, env.Error.Fields, "question_count")
}

func TestSubmitAnswer_IndexZeroIsValid(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")
	sessionID := startExam(t, app, token, "exam")

	w, env := app.do(t, http.MethodPost, "/api/v1/exams/"+sessionID+"/answers", token, gin.H{
		"question_id":  "q1",
		"answer_index": 0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result service.SubmitAnswerResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.True(t, result.IsCorrect)
	require.True(t, result.Accepted)
	// Exam mode keeps the correct index out of the response.
	require.Nil(t, result.CorrectIndex)
}

func TestSubmitAnswer_TestModeRevealsCorrectIndex(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")
	sessionID := startExam(t, app, token, "test")

	w, env := app.do(t, http.MethodPost, "/api/v1/exams/"+sessionID+"/answers", token, gin.H{
		"question_id":  "q2",
		"answer_index": 0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result service.SubmitAnswerResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.False(t, result.IsCorrect)
	require.NotNil(t, result.CorrectIndex)
	require.Equal(t, 1, *result.CorrectIndex)
}

func TestSubmitAnswer_UnknownQuestion(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")
	sessionID := startExam(t, app, token, "exam")

	w, env := app.do(t, http.MethodPost, "/api/v1/exams/"+sessionID+"/answers", token, gin.H{
		"question_id":  "q999",
		"answer_index": 1,
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "QUESTION_NOT_FOUND", env.Error.Code)
}

func TestGetProgress_ExamModeHidesAnswerKey(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")
	sessionID := startExam(t, app, token, "exam")

	// Before a single answer, the progress breakdown covers every question;
	// none of it may reveal the key.
	w, env := app.do(t, http.MethodGet, "/api/v1/exams/"+sessionID+"/score", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, string(env.Data), "correct_index")
	require.NotContains(t, string(env.Data), "is_correct")

	var progress service.ScoreSummary
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	require.Len(t, progress.Answers, 5)
}

func TestEnterReview_TestModeRejected(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")
	sessionID := startExam(t, app, token, "test")

	w, env := app.do(t, http.MethodGet, "/api/v1/exams/"+sessionID+"/review", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_SESSION_STATE", env.Error.Code)
}

func TestExamFlow_StartAnswerReviewFinalize(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")
	sessionID := startExam(t, app, token, "exam")

	w, _ := app.do(t, http.MethodPost, "/api/v1/exams/"+sessionID+"/present", token, gin.H{
		"question_id":  "q1",
		"presented_at": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)

	// q1's correct option is index 0, q2's is index 1.
	w, _ = app.do(t, http.MethodPost, "/api/v1/exams/"+sessionID+"/answers", token, gin.H{
		"question_id": "q1", "answer_index": 0,
	})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(t, http.MethodPost, "/api/v1/exams/"+sessionID+"/answers", token, gin.H{
		"question_id": "q2", "answer_index": 3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := app.do(t, http.MethodGet, "/api/v1/exams/"+sessionID+"/score", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, string(env.Data), "correct_index")
	var progress service.ScoreSummary
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	require.Equal(t, 1, progress.CorrectCount)
	require.Equal(t, 2, progress.AnsweredCount)

	w, env = app.do(t, http.MethodGet, "/api/v1/exams/"+sessionID+"/review", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var review service.ReviewPhase
	require.NoError(t, json.Unmarshal(env.Data, &review))
	require.Len(t, review.Questions, 5)
	// Half of 5x60s.
	require.Equal(t, 150, review.ReviewTimeSeconds)
	require.NotContains(t, string(env.Data), "correct_index")

	w, env = app.do(t, http.MethodPost, "/api/v1/exams/"+sessionID+"/submit", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var final struct {
		AttemptID      string  `json:"attempt_id"`
		Score          float64 `json:"score"`
		CorrectCount   int     `json:"correct_count"`
		TotalQuestions int     `json:"total_questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &final))
	require.True(t, strings.HasPrefix(final.AttemptID, "attempt-"))
	require.Equal(t, 20.0, final.Score)
	require.Equal(t, 1, final.CorrectCount)
	require.Equal(t, 5, final.TotalQuestions)
	require.Len(t, app.archive.attempts, 1)

	// The session is closed; further operations report not found.
	w, env = app.do(t, http.MethodPost, "/api/v1/exams/"+sessionID+"/submit", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "SESSION_NOT_FOUND", env.Error.Code)
}

func TestFinalize_UnknownSession(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")

	w, env := app.do(t, http.MethodPost, "/api/v1/exams/session-missing/submit", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "SESSION_NOT_FOUND", env.Error.Code)
}

func TestCancelExam(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")
	sessionID := startExam(t, app, token, "exam")

	w, env := app.do(t, http.MethodDelete, "/api/v1/exams/"+sessionID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Cancelled bool `json:"cancelled"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.True(t, data.Cancelled)

	// Unknown (or already cancelled) ids report false, still 200.
	w, env = app.do(t, http.MethodDelete, "/api/v1/exams/"+sessionID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.False(t, data.Cancelled)
	require.Empty(t, app.archive.attempts)
}

func TestGetAttempt(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")

	app.attempts.byID["attempt-abc"] = &model.Attempt{
		AttemptID:   "attempt-abc",
		CandidateID: "cand-1",
		Score:       80,
	}

	w, env := app.do(t, http.MethodGet, "/api/v1/attempts/attempt-abc", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Attempt model.Attempt `json:"attempt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, 80.0, data.Attempt.Score)

	w, env = app.do(t, http.MethodGet, "/api/v1/attempts/attempt-missing", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestListMyAttempts(t *testing.T) {
	app := newTestApp(t)
	token := signToken(t, "cand-1")

	app.attempts.byID["attempt-abc"] = &model.Attempt{AttemptID: "attempt-abc", CandidateID: "cand-1"}
	app.attempts.byID["attempt-def"] = &model.Attempt{AttemptID: "attempt-def", CandidateID: "cand-2"}

	w, env := app.do(t, http.MethodGet, "/api/v1/attempts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Attempts []model.Attempt `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Attempts, 1)
	require.Equal(t, "attempt-abc", data.Attempts[0].AttemptID)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// answerGraceSeconds is the fixed tolerance added to a question's time limit
// before a submission is marked unaccepted.
const answerGraceSeconds = 2

// SessionStore is the durable session record collaborator (Redis in
// production). Records expire on the store's own TTL.
type SessionStore interface {
	Save(ctx context.Context, sess *model.ExamSession) error
	Get(ctx context.Context, sessionID string) (*model.SessionRecord, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// AttemptArchive stores the immutable result record of a finalized session.
type AttemptArchive interface {
	Save(ctx context.Context, attempt *model.Attempt) error
}

// ArchiveQueue buffers attempts whose synchronous archive insert failed, for
// background retry.
type ArchiveQueue interface {
	Enqueue(ctx context.Context, attempt *model.Attempt) error
}

// QuestionSource resolves question bodies by id set so a persisted session
// can be fully rehydrated after a process restart.
type QuestionSource interface {
	GetByIDs(ctx context.Context, ids []string) ([]model.Question, error)
}

// ExamSessionService is the session state machine. It owns every live
// ExamSession for the session's lifetime and is the only component that
// mutates one.
//
// States: IN_PROGRESS → IN_REVIEW → COMPLETED, with CANCELLED reachable from
// the first two. Review is reachable only in exam mode. Nothing leaves
// COMPLETED or CANCELLED: closed sessions drop out of the working set and
// every later operation on their id fails with ErrSessionNotFound.
type ExamSessionService struct {
	registry   *SessionRegistry
	store      SessionStore
	archive    AttemptArchive
	retryQueue ArchiveQueue
	questions  QuestionSource
	log        zerolog.Logger

	now func() time.Time
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	registry *SessionRegistry,
	store SessionStore,
	archive AttemptArchive,
	retryQueue ArchiveQueue,
	questions QuestionSource,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		registry:   registry,
		store:      store,
		archive:    archive,
		retryQueue: retryQueue,
		questions:  questions,
		log:        log.With().Str("component", "exam_session").Logger(),
		now:        time.Now,
	}
}

// Start creates a new session over a frozen question set. The input order is
// the session's order for its whole life; it is never re-randomized.
func (s *ExamSessionService) Start(
	ctx context.Context,
	candidateID, projectID string,
	mode model.ExamMode,
	difficulty model.DifficultyLevel,
	questions []model.Question,
) (*model.ExamSession, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: question set is empty", ErrInvalidInput)
	}

	questionIDs := make([]string, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
	}

	now := s.now().UTC()
	sess := &model.ExamSession{
		SessionID:      "session-" + uuid.New().String(),
		CandidateID:    candidateID,
		ProjectID:      projectID,
		Mode:           mode,
		Difficulty:     difficulty,
		Questions:      questions,
		QuestionIDs:    questionIDs,
		QuestionCount:  len(questions),
		StartedAt:      now,
		Answers:        make(map[string]model.AnswerEntry),
		PresentedTimes: make(map[string]time.Time),
		LastActionTime: now,
		Status:         model.SessionStatusInProgress,
	}

	s.registry.Add(sess)

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.SessionID).
		Str("candidate_id", candidateID).
		Str("mode", string(mode)).
		Int("questions", len(questions)).
		Msg("Session started")

	return sess, nil
}

// RecordPresentation stamps the last presentation time of a question and
// advances the session's action anchor. The question id is deliberately not
// checked against the session's set; presentations for unknown ids only move
// the anchor.
func (s *ExamSessionService) RecordPresentation(ctx context.Context, sessionID, questionID string, presentedAt *time.Time) error {
	live, err := s.resolve(ctx, sessionID)
	if err != nil {
		return err
	}

	live.Lock()
	defer live.Unlock()

	sess := live.Sess
	if closed(sess) {
		return ErrSessionNotFound
	}

	t := s.now().UTC()
	if presentedAt != nil {
		t = presentedAt.UTC()
	}
	// Keep the anchor invariant: never earlier than session start.
	if t.Before(sess.StartedAt) {
		t = sess.StartedAt
	}

	sess.PresentedTimes[questionID] = t
	sess.LastActionTime = t

	return s.store.Save(ctx, sess)
}

// SubmitAnswerResult is the outcome of one answer submission. CorrectIndex is
// populated only in test mode; exam mode never reveals it mid-session.
type SubmitAnswerResult struct {
	IsCorrect    bool    `json:"is_correct"`
	TimeSpent    float64 `json:"time_spent"`
	Accepted     bool    `json:"accepted"`
	CorrectIndex *int    `json:"correct_index,omitempty"`
}

// SubmitAnswer validates and records an answer. Correctness is computed
// regardless of acceptance; a repeat submission for the same question
// overwrites the prior entry entirely.
func (s *ExamSessionService) SubmitAnswer(ctx context.Context, sessionID, questionID string, selectedIndex int, submittedAt time.Time) (*SubmitAnswerResult, error) {
	live, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	live.Lock()
	defer live.Unlock()

	sess := live.Sess
	if closed(sess) {
		return nil, ErrSessionNotFound
	}

	question, position, ok := sess.QuestionByID(questionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}

	submittedAt = submittedAt.UTC()

	// Timing anchor: the question's own presentation timestamp when one was
	// recorded, else the most recent action, else session start.
	anchor := sess.StartedAt
	if !sess.LastActionTime.IsZero() {
		anchor = sess.LastActionTime
	}
	if presented, ok := sess.PresentedTimes[questionID]; ok {
		anchor = presented
	}

	timeSpent := submittedAt.Sub(anchor).Seconds()
	if timeSpent < 0 {
		// Clock skew between client and server is not an error.
		timeSpent = 0
	}

	accepted := timeSpent <= float64(question.TimeLimitSeconds+answerGraceSeconds)
	isCorrect := selectedIndex == question.CorrectIndex

	sess.Answers[questionID] = model.AnswerEntry{
		SelectedIndex: selectedIndex,
		SubmittedAt:   submittedAt,
		TimeSpent:     timeSpent,
		IsCorrect:     isCorrect,
		Accepted:      accepted,
	}

	if next := position + 1; next > sess.CurrentQuestionIndex {
		sess.CurrentQuestionIndex = next
	}
	sess.LastActionTime = submittedAt

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist answer: %w", err)
	}

	result := &SubmitAnswerResult{
		IsCorrect: isCorrect,
		TimeSpent: timeSpent,
		Accepted:  accepted,
	}
	if sess.Mode == model.ModeTest {
		correct := question.CorrectIndex
		result.CorrectIndex = &correct
	}

	return result, nil
}

// ReviewPhase is the payload returned when an exam-mode session enters review.
type ReviewPhase struct {
	Questions         []model.QuestionForCandidate `json:"questions"`
	Answers           map[string]model.AnswerEntry `json:"answers"`
	ReviewTimeSeconds int                          `json:"review_time_seconds"`
	ReviewStartedAt   time.Time                    `json:"review_started_at"`
}

// EnterReview transitions an exam-mode session into its review phase. The
// review budget is half the sum of all question time limits, in whole seconds.
func (s *ExamSessionService) EnterReview(ctx context.Context, sessionID string) (*ReviewPhase, error) {
	live, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	live.Lock()
	defer live.Unlock()

	sess := live.Sess
	if closed(sess) {
		return nil, ErrSessionNotFound
	}
	if sess.Mode != model.ModeExam {
		return nil, fmt.Errorf("%w: review phase is only available in exam mode", ErrInvalidState)
	}

	now := s.now().UTC()
	sess.IsReviewPhase = true
	sess.ReviewStartedAt = &now
	sess.Status = model.SessionStatusInReview

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist review transition: %w", err)
	}

	return &ReviewPhase{
		Questions:         model.SanitizeQuestions(sess.Questions),
		Answers:           sess.Answers,
		ReviewTimeSeconds: sess.TotalTimeSeconds() / 2,
		ReviewStartedAt:   now,
	}, nil
}

// Score computes the current score summary without mutating the session.
// Usable at any point for progress queries. For live exam-mode sessions the
// breakdown is redacted: the answer key only ever surfaces through finalize.
func (s *ExamSessionService) Score(ctx context.Context, sessionID string) (*ScoreSummary, error) {
	live, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	live.Lock()
	defer live.Unlock()

	if closed(live.Sess) {
		return nil, ErrSessionNotFound
	}

	summary := ScoreSession(live.Sess)
	if live.Sess.Mode == model.ModeExam {
		summary = summary.RedactForCandidate()
	}
	return &summary, nil
}

// Finalize closes a session: scores it, archives the immutable attempt,
// marks the session completed, and drops it from the working set. A second
// call for the same id fails with ErrSessionNotFound rather than
// double-archiving.
//
// Consistency choice: the session state is applied in memory first, the
// attempt insert is tried synchronously, and on archive failure the attempt
// is queued for background retry instead of failing the candidate's submit.
func (s *ExamSessionService) Finalize(ctx context.Context, sessionID string) (*model.Attempt, error) {
	live, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	live.Lock()
	defer live.Unlock()

	sess := live.Sess
	if closed(sess) {
		return nil, ErrSessionNotFound
	}

	summary := ScoreSession(sess)
	now := s.now().UTC()

	totalTime := 0.0
	for _, ans := range sess.Answers {
		totalTime += ans.TimeSpent
	}

	// Archive answers in question order; skipped questions leave no record.
	records := make([]model.AnswerRecord, 0, len(sess.Answers))
	for _, q := range sess.Questions {
		ans, ok := sess.Answers[q.ID]
		if !ok {
			continue
		}
		records = append(records, model.AnswerRecord{
			QuestionID:       q.ID,
			SelectedIndex:    ans.SelectedIndex,
			IsCorrect:        ans.IsCorrect,
			TimeSpentSeconds: int(ans.TimeSpent),
			AnsweredAt:       ans.SubmittedAt,
		})
	}

	attempt := &model.Attempt{
		AttemptID:        "attempt-" + uuid.New().String(),
		CandidateID:      sess.CandidateID,
		ProjectID:        sess.ProjectID,
		Mode:             model.ArchiveMode(sess.Mode),
		Difficulty:       sess.Difficulty,
		Status:           model.AttemptStatusCompleted,
		QuestionCount:    sess.QuestionCount,
		Score:            summary.Score,
		CorrectCount:     summary.CorrectCount,
		StartedAt:        sess.StartedAt,
		CompletedAt:      now,
		TotalTimeSeconds: int(totalTime),
		Answers:          records,
	}

	if err := s.archive.Save(ctx, attempt); err != nil {
		s.log.Warn().Err(err).
			Str("attempt_id", attempt.AttemptID).
			Msg("Archive insert failed, queueing for retry")
		if qErr := s.retryQueue.Enqueue(ctx, attempt); qErr != nil {
			return nil, fmt.Errorf("archive attempt: %w", err)
		}
	}

	sess.Completed = true
	sess.Status = model.SessionStatusCompleted

	// Persist the terminal state, then retire the session from the working
	// set. The stored record still expires on its TTL.
	if err := s.store.Save(ctx, sess); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", sess.SessionID).
			Msg("Failed to persist completed session state")
	}
	s.registry.Remove(sess.SessionID)

	s.log.Info().
		Str("session_id", sess.SessionID).
		Str("attempt_id", attempt.AttemptID).
		Float64("score", attempt.Score).
		Msg("Session finalized")

	return attempt, nil
}

// Cancel discards a session without creating an attempt. Returns false when
// no live or persisted session existed for the id.
func (s *ExamSessionService) Cancel(ctx context.Context, sessionID string) (bool, error) {
	live, ok := s.registry.Get(sessionID)
	if ok {
		live.Lock()
		live.Sess.Status = model.SessionStatusCancelled
		live.Unlock()
		s.registry.Remove(sessionID)
	}

	existed, err := s.store.Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session record: %w", err)
	}

	if ok || existed {
		s.log.Info().Str("session_id", sessionID).Msg("Session cancelled")
	}
	return ok || existed, nil
}

// resolve finds the live session, falling back to the persisted record plus
// a fresh question fetch so sessions survive process restarts.
func (s *ExamSessionService) resolve(ctx context.Context, sessionID string) (*LiveSession, error) {
	if live, ok := s.registry.Get(sessionID); ok {
		return live, nil
	}

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session record: %w", err)
	}
	if rec == nil || rec.Completed || rec.Status == model.SessionStatusCancelled {
		return nil, ErrSessionNotFound
	}

	bodies, err := s.questions.GetByIDs(ctx, rec.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("rehydrate questions: %w", err)
	}
	byID := make(map[string]model.Question, len(bodies))
	for _, q := range bodies {
		byID[q.ID] = q
	}

	ordered := make([]model.Question, 0, len(rec.QuestionIDs))
	for _, id := range rec.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("rehydrate session %s: question %s missing from source", sessionID, id)
		}
		ordered = append(ordered, q)
	}

	sess := rec.ExamSession
	sess.Questions = ordered
	if sess.Answers == nil {
		sess.Answers = make(map[string]model.AnswerEntry)
	}
	if sess.PresentedTimes == nil {
		sess.PresentedTimes = make(map[string]time.Time)
	}

	s.log.Info().Str("session_id", sessionID).Msg("Session rehydrated from store")

	return s.registry.Add(&sess), nil
}

// closed reports whether a session has reached a terminal state. Terminal
// sessions behave as removed: operations against them report not found.
func closed(sess *model.ExamSession) bool {
	return sess.Completed ||
		sess.Status == model.SessionStatusCompleted ||
		sess.Status == model.SessionStatusCancelled
}

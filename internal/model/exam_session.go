package model

import (
	"time"
)

// ExamMode distinguishes the two session flavors.
type ExamMode string

const (
	// ModeExam is the timed exam with a review phase and no immediate feedback.
	ModeExam ExamMode = "exam"
	// ModeTest gives immediate feedback (correct index revealed per answer)
	// and has no review phase.
	ModeTest ExamMode = "test"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusInReview   SessionStatus = "IN_REVIEW"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
)

// AnswerEntry is one recorded answer, keyed by question id inside a session.
// A later submission for the same question overwrites the whole entry.
type AnswerEntry struct {
	SelectedIndex int       `json:"selected_index"`
	SubmittedAt   time.Time `json:"submitted_at"`
	TimeSpent     float64   `json:"time_spent"`
	IsCorrect     bool      `json:"is_correct"`
	Accepted      bool      `json:"accepted"`
}

// ExamSession is one candidate's in-flight attempt at a fixed question set.
// The session state machine owns it exclusively for its lifetime.
//
// Question bodies are held in memory only; the persisted record carries the
// frozen question id order and the session is rehydrated from the question
// source after a process restart.
type ExamSession struct {
	SessionID     string          `json:"session_id"`
	CandidateID   string          `json:"candidate_id"`
	ProjectID     string          `json:"project_id"`
	Mode          ExamMode        `json:"mode"`
	Difficulty    DifficultyLevel `json:"difficulty"`
	Questions     []Question      `json:"-"`
	QuestionIDs   []string        `json:"question_ids"`
	QuestionCount int             `json:"question_count"`
	StartedAt     time.Time       `json:"started_at"`
	// Answers maps question id → recorded answer. At most one entry per
	// question; insertion order is irrelevant.
	Answers map[string]AnswerEntry `json:"answers"`
	// PresentedTimes maps question id → timestamp of the last presentation.
	// Re-presentation overwrites.
	PresentedTimes map[string]time.Time `json:"presented_times"`
	// LastActionTime anchors time-spent computation when no presentation
	// timestamp exists for a question. Invariant: never before StartedAt.
	LastActionTime       time.Time     `json:"last_action_time"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	IsReviewPhase        bool          `json:"is_review_phase"`
	ReviewStartedAt      *time.Time    `json:"review_started_at,omitempty"`
	Completed            bool          `json:"completed"`
	Status               SessionStatus `json:"status"`
}

// QuestionByID finds a question in the session's frozen list.
// Returns the question, its position, and whether it was found.
func (s *ExamSession) QuestionByID(questionID string) (*Question, int, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return &s.Questions[i], i, true
		}
	}
	return nil, 0, false
}

// TotalTimeSeconds is the sum of all per-question time limits.
func (s *ExamSession) TotalTimeSeconds() int {
	total := 0
	for _, q := range s.Questions {
		total += q.TimeLimitSeconds
	}
	return total
}

// SessionRecord is the persisted session store layout: every ExamSession
// field plus an explicit expiration marker matching the store's TTL.
type SessionRecord struct {
	ExamSession
	ExpiresAt time.Time `json:"expires_at"`
}

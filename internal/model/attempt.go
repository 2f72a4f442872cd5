package model

import "time"

// AttemptMode is the archived mode label. The engine's internal "test" mode
// is stored as "practice" for archive compatibility.
type AttemptMode string

const (
	AttemptModeExam     AttemptMode = "exam"
	AttemptModePractice AttemptMode = "practice"
)

// ArchiveMode maps a session mode to its archived label.
func ArchiveMode(mode ExamMode) AttemptMode {
	if mode == ModeTest {
		return AttemptModePractice
	}
	return AttemptModeExam
}

// AttemptStatus enumerates attempt states. Archived attempts are always
// completed; the other values exist for wire compatibility with older records.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusInReview   AttemptStatus = "in_review"
	AttemptStatusCompleted  AttemptStatus = "completed"
	AttemptStatusCancelled  AttemptStatus = "cancelled"
)

// AnswerRecord is a single archived answer. Only questions that received a
// recorded answer appear in an attempt's answer list.
type AnswerRecord struct {
	QuestionID       string    `json:"question_id"`
	SelectedIndex    int       `json:"selected_index"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	AnsweredAt       time.Time `json:"answered_at"`
}

// Attempt is the immutable archived result of a finalized session.
type Attempt struct {
	AttemptID        string          `json:"attempt_id"`
	CandidateID      string          `json:"candidate_id"`
	ProjectID        string          `json:"project_id"`
	Mode             AttemptMode     `json:"mode"`
	Difficulty       DifficultyLevel `json:"difficulty"`
	Status           AttemptStatus   `json:"status"`
	QuestionCount    int             `json:"question_count"`
	Score            float64         `json:"score"`
	CorrectCount     int             `json:"correct_count"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      time.Time       `json:"completed_at"`
	TotalTimeSeconds int             `json:"total_time_seconds"`
	Answers          []AnswerRecord  `json:"answers"`
}

// StartExamRequest is the payload for starting a new exam session.
type StartExamRequest struct {
	ProjectID     string `json:"project_id" binding:"required,min=1,max=128"`
	Mode          string `json:"mode" binding:"required,oneof=exam test"`
	Difficulty    string `json:"difficulty" binding:"omitempty,oneof=easy medium hard expert"`
	QuestionCount int    `json:"question_count" binding:"required,min=5,max=100"`
}

// PresentRequest is the payload for recording a question presentation.
// PresentedAt is an optional ISO 8601 timestamp; invalid or missing values
// fall back to server time.
type PresentRequest struct {
	QuestionID  string `json:"question_id" binding:"required,min=1,max=128"`
	PresentedAt string `json:"presented_at" binding:"omitempty"`
}

// SubmitAnswerRequest is the payload for submitting an answer.
// AnswerIndex is a pointer so index 0 survives required-field validation.
type SubmitAnswerRequest struct {
	QuestionID  string `json:"question_id" binding:"required,min=1,max=128"`
	AnswerIndex *int   `json:"answer_index" binding:"required,min=0"`
}

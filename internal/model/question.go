package model

import "time"

// DifficultyLevel enumerates question difficulty tags.
type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
	DifficultyExpert DifficultyLevel = "expert"
)

// Question represents a single multiple-choice question. The session engine
// treats questions as immutable: it never mutates one after selection.
type Question struct {
	ID               string          `json:"question_id"`
	ProjectID        string          `json:"project_id"`
	Text             string          `json:"text"`
	AnswerOptions    []string        `json:"answer_options"`
	CorrectIndex     int             `json:"correct_index"`
	Difficulty       DifficultyLevel `json:"difficulty"`
	TimeLimitSeconds int             `json:"time_limit_seconds"`
	Source           string          `json:"source"`
	CreatedAt        time.Time       `json:"created_at"`
}

// QuestionForCandidate is a question without the correct index, safe to send
// to a candidate during an in-flight session.
type QuestionForCandidate struct {
	ID               string   `json:"question_id"`
	Text             string   `json:"text"`
	AnswerOptions    []string `json:"answer_options"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
}

// ForCandidate strips the correct index from a question.
func (q Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:               q.ID,
		Text:             q.Text,
		AnswerOptions:    q.AnswerOptions,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
}

// SanitizeQuestions strips correct indices from a question list, preserving order.
func SanitizeQuestions(questions []Question) []QuestionForCandidate {
	out := make([]QuestionForCandidate, len(questions))
	for i, q := range questions {
		out[i] = q.ForCandidate()
	}
	return out
}

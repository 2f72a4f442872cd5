package service

import (
	"math"

	"github.com/exambuddy/exambuddy-backend/internal/model"
)

// AnswerBreakdown is one line of the per-question score breakdown. Every
// question in the session appears exactly once, answered or not; unanswered
// questions carry a nil selected index and zeroed timing/acceptance.
// CorrectIndex and IsCorrect are pointers so a redacted summary can drop
// them entirely from the wire.
type AnswerBreakdown struct {
	QuestionID    string  `json:"question_id"`
	QuestionText  string  `json:"question_text"`
	SelectedIndex *int    `json:"selected_index"`
	CorrectIndex  *int    `json:"correct_index,omitempty"`
	IsCorrect     *bool   `json:"is_correct,omitempty"`
	TimeSpent     float64 `json:"time_spent"`
	Accepted      bool    `json:"accepted"`
}

// ScoreSummary is the scoring engine's output for one session.
type ScoreSummary struct {
	Score          float64           `json:"score"`
	CorrectCount   int               `json:"correct_count"`
	TotalQuestions int               `json:"total_questions"`
	AnsweredCount  int               `json:"answered_count"`
	Answers        []AnswerBreakdown `json:"answers"`
}

// RedactForCandidate strips the answer key from the breakdown so the summary
// can be shown during a live exam-mode session: correct indices and
// per-question verdicts go, timing and acceptance stay. Aggregate counts are
// kept; they reveal progress, not which option was right.
func (s ScoreSummary) RedactForCandidate() ScoreSummary {
	answers := make([]AnswerBreakdown, len(s.Answers))
	for i, a := range s.Answers {
		a.CorrectIndex = nil
		a.IsCorrect = nil
		answers[i] = a
	}
	out := s
	out.Answers = answers
	return out
}

// ScoreSession derives the score summary from a session's recorded answers
// against its frozen question list. It is a pure function of the session:
// callable at finalize time or for progress queries, never mutating state.
//
// Only answers that are both correct and accepted count toward the score; a
// right answer submitted past the limit plus grace earns nothing.
func ScoreSession(sess *model.ExamSession) ScoreSummary {
	total := len(sess.Questions)

	correct := 0
	for _, ans := range sess.Answers {
		if ans.IsCorrect && ans.Accepted {
			correct++
		}
	}

	score := 0.0
	if total > 0 {
		score = roundScore(float64(correct) / float64(total) * 100)
	}

	// Iterating the question list, not the answers map, guarantees the
	// breakdown has exactly one entry per question even when some were skipped.
	breakdown := make([]AnswerBreakdown, 0, total)
	for _, q := range sess.Questions {
		correctIdx := q.CorrectIndex
		isCorrect := false
		entry := AnswerBreakdown{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			CorrectIndex: &correctIdx,
		}
		if ans, ok := sess.Answers[q.ID]; ok {
			selected := ans.SelectedIndex
			entry.SelectedIndex = &selected
			isCorrect = ans.IsCorrect
			entry.TimeSpent = ans.TimeSpent
			entry.Accepted = ans.Accepted
		}
		entry.IsCorrect = &isCorrect
		breakdown = append(breakdown, entry)
	}

	return ScoreSummary{
		Score:          score,
		CorrectCount:   correct,
		TotalQuestions: total,
		AnsweredCount:  len(sess.Answers),
		Answers:        breakdown,
	}
}

// roundScore rounds to two decimals.
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

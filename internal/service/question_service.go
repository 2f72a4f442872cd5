package service

import (
	"context"
	"fmt"

	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/rs/zerolog"
)

// QuestionPicker is the random-selection side of the question bank.
type QuestionPicker interface {
	RandomSelect(ctx context.Context, projectID string, count int, difficulty *model.DifficultyLevel) ([]model.Question, error)
}

// QuestionService assembles question sets for new sessions.
type QuestionService struct {
	source QuestionPicker
	log    zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(source QuestionPicker, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		source: source,
		log:    log.With().Str("component", "question_service").Logger(),
	}
}

// SelectForSession pulls a random question set for a new session. An empty
// difficulty defaults to medium; the resolved difficulty is returned so the
// session records the filter it was actually built with.
func (s *QuestionService) SelectForSession(ctx context.Context, projectID string, count int, difficulty string) ([]model.Question, model.DifficultyLevel, error) {
	resolved := model.DifficultyMedium
	var filter *model.DifficultyLevel
	if difficulty != "" {
		resolved = model.DifficultyLevel(difficulty)
		filter = &resolved
	}

	questions, err := s.source.RandomSelect(ctx, projectID, count, filter)
	if err != nil {
		return nil, resolved, fmt.Errorf("select questions: %w", err)
	}

	return questions, resolved, nil
}

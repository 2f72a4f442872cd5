package repository

import (
	"context"
	"fmt"

	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository is the read side of the question bank. The session
// engine consumes it as its question source: random selection when a session
// starts, lookup by id set when a session is rehydrated after a restart.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, project_id, text, answer_options, correct_index, difficulty, time_limit_seconds, source, created_at`

// RandomSelect picks up to count random questions from a project, optionally
// filtered by difficulty. Returns fewer than count if the bank is small.
func (r *QuestionRepository) RandomSelect(ctx context.Context, projectID string, count int, difficulty *model.DifficultyLevel) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + `
		 FROM questions
		 WHERE project_id = $1`
	args := []any{projectID}

	if difficulty != nil {
		args = append(args, *difficulty)
		query += ` AND difficulty = $2`
	}
	args = append(args, count)
	query += fmt.Sprintf(" ORDER BY random() LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// GetByIDs fetches question bodies for an id set. Order of the result is
// unspecified; callers reorder against their own frozen id list.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

type questionRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanQuestions(rows questionRows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(
			&q.ID, &q.ProjectID, &q.Text, &q.AnswerOptions, &q.CorrectIndex,
			&q.Difficulty, &q.TimeLimitSeconds, &q.Source, &q.CreatedAt,
		); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

package repository

import (
	"context"
	"fmt"

	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository is the attempt archive: one immutable record per
// finalized session, queryable by candidate and by project.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Save inserts an attempt and its answer records in one transaction.
// Re-inserting the same attempt id is a no-op, so archive retries are safe.
func (r *AttemptRepository) Save(ctx context.Context, a *model.Attempt) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO attempts
			(id, candidate_id, project_id, mode, difficulty, status, question_count,
			 score, correct_count, started_at, completed_at, total_time_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		a.AttemptID, a.CandidateID, a.ProjectID, a.Mode, a.Difficulty, a.Status,
		a.QuestionCount, a.Score, a.CorrectCount, a.StartedAt, a.CompletedAt,
		a.TotalTimeSeconds,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already archived by an earlier try.
		return tx.Commit(ctx)
	}

	for pos, ans := range a.Answers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO attempt_answers
				(attempt_id, position, question_id, selected_index, is_correct,
				 time_spent_seconds, answered_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.AttemptID, pos, ans.QuestionID, ans.SelectedIndex, ans.IsCorrect,
			ans.TimeSpentSeconds, ans.AnsweredAt,
		); err != nil {
			return fmt.Errorf("insert answer record: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListByCandidate retrieves a candidate's archived attempts, newest first.
// Answer records are not loaded for listings.
func (r *AttemptRepository) ListByCandidate(ctx context.Context, candidateID string) ([]model.Attempt, error) {
	return r.list(ctx, `candidate_id = $1`, candidateID)
}

// ListByProject retrieves all archived attempts for a project, newest first.
func (r *AttemptRepository) ListByProject(ctx context.Context, projectID string) ([]model.Attempt, error) {
	return r.list(ctx, `project_id = $1`, projectID)
}

func (r *AttemptRepository) list(ctx context.Context, where string, arg any) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, candidate_id, project_id, mode, difficulty, status, question_count,
		        score, correct_count, started_at, completed_at, total_time_seconds
		 FROM attempts
		 WHERE `+where+`
		 ORDER BY completed_at DESC`, arg,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(
			&a.AttemptID, &a.CandidateID, &a.ProjectID, &a.Mode, &a.Difficulty,
			&a.Status, &a.QuestionCount, &a.Score, &a.CorrectCount,
			&a.StartedAt, &a.CompletedAt, &a.TotalTimeSeconds,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// GetByID retrieves a single attempt with its full answer breakdown.
func (r *AttemptRepository) GetByID(ctx context.Context, attemptID string) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, candidate_id, project_id, mode, difficulty, status, question_count,
		        score, correct_count, started_at, completed_at, total_time_seconds
		 FROM attempts
		 WHERE id = $1`, attemptID,
	).Scan(
		&a.AttemptID, &a.CandidateID, &a.ProjectID, &a.Mode, &a.Difficulty,
		&a.Status, &a.QuestionCount, &a.Score, &a.CorrectCount,
		&a.StartedAt, &a.CompletedAt, &a.TotalTimeSeconds,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_index, is_correct, time_spent_seconds, answered_at
		 FROM attempt_answers
		 WHERE attempt_id = $1
		 ORDER BY position ASC`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ans model.AnswerRecord
		if err := rows.Scan(&ans.QuestionID, &ans.SelectedIndex, &ans.IsCorrect, &ans.TimeSpentSeconds, &ans.AnsweredAt); err != nil {
			return nil, err
		}
		a.Answers = append(a.Answers, ans)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

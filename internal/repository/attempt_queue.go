package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/exambuddy/exambuddy-backend/internal/config"
	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// AttemptQueue is the Redis retry buffer for attempts whose synchronous
// archive insert failed. The archive worker drains it.
type AttemptQueue struct {
	rdb *redis.Client
}

// NewAttemptQueue creates a new AttemptQueue.
func NewAttemptQueue(rdb *redis.Client) *AttemptQueue {
	return &AttemptQueue{rdb: rdb}
}

// Enqueue pushes an attempt onto the retry queue.
func (q *AttemptQueue) Enqueue(ctx context.Context, attempt *model.Attempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue attempt: %w", err)
	}
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/exambuddy/exambuddy-backend/internal/config"
	"github.com/exambuddy/exambuddy-backend/internal/model"
	"github.com/exambuddy/exambuddy-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	archivePollTimeout = 1 * time.Second
	archiveRetryDelay  = 5 * time.Second
)

// ArchiveWorker drains the attempt retry queue: attempts whose synchronous
// archive insert failed at finalize time are re-inserted here until
// PostgreSQL takes them. Inserts are idempotent by attempt id, so replays
// are harmless.
type ArchiveWorker struct {
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewArchiveWorker creates a new ArchiveWorker.
func NewArchiveWorker(attempts *repository.AttemptRepository, rdb *redis.Client, log zerolog.Logger) *ArchiveWorker {
	return &ArchiveWorker{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "archive_worker").Logger(),
	}
}

// Start runs the drain loop until the context is cancelled.
func (w *ArchiveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ArchiveWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ArchiveWorker shutting down")
			return
		default:
			item, err := w.rdb.BLPop(ctx, archivePollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var attempt model.Attempt
			if err := json.Unmarshal([]byte(item[1]), &attempt); err != nil {
				w.log.Error().Err(err).Msg("Invalid attempt payload, dropping")
				continue
			}

			if err := w.attempts.Save(ctx, &attempt); err != nil {
				w.log.Warn().Err(err).
					Str("attempt_id", attempt.AttemptID).
					Msg("Archive retry failed — requeueing")
				w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, item[1])

				// Back off so a dead database does not spin the queue.
				select {
				case <-ctx.Done():
					return
				case <-time.After(archiveRetryDelay):
				}
				continue
			}

			w.log.Info().
				Str("attempt_id", attempt.AttemptID).
				Msg("Attempt archived on retry")
		}
	}
}

package requestlog

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Checkpointer truncates the write-ahead log after large deletes.
type Checkpointer interface {
	WALCheckpoint(mode string) error
}

// CleanupJob removes records older than the retention period.
// It should be scheduled to run daily.
type CleanupJob struct {
	store     Store
	db        Checkpointer
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewCleanupJob creates a new request log cleanup job.
// db may be nil when the store is not WAL-backed.
func NewCleanupJob(store Store, db Checkpointer, retention time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		store:     store,
		db:        db,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("job", "request_log_cleanup").Logger(),
	}
}

// Run deletes every record older than now minus the retention period.
func (j *CleanupJob) Run() error {
	cutoff := j.now().Add(-j.retention)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.store.Purge(ctx, cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to purge request log")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Request log cleanup completed")

		if j.db != nil {
			if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
				j.log.Warn().Err(err).Msg("WAL checkpoint after cleanup failed")
			}
		}
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "request_log_cleanup"
}

package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/JamesB-1qbit/Tangelo/internal/database/repositories"
)

// CleanupJob prunes old terminal runs and fails runs orphaned by an unclean
// shutdown. Runs hourly.
type CleanupJob struct {
	log       zerolog.Logger
	runs      *repositories.RunRepository
	retention time.Duration
	staleAge  time.Duration
}

// NewCleanupJob creates a cleanup job. retention bounds how long finished
// runs are kept; staleAge is how long a non-terminal run may sit before it is
// declared abandoned.
func NewCleanupJob(runs *repositories.RunRepository, retention, staleAge time.Duration, log zerolog.Logger) *CleanupJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if staleAge <= 0 {
		staleAge = 24 * time.Hour
	}
	return &CleanupJob{
		log:       log.With().Str("job", "cleanup").Logger(),
		runs:      runs,
		retention: retention,
		staleAge:  staleAge,
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "cleanup"
}

// Run executes the cleanup
func (j *CleanupJob) Run() error {
	now := time.Now()

	deleted, err := j.runs.DeleteOlderThan(now.Add(-j.retention))
	if err != nil {
		return err
	}

	failed, err := j.runs.FailStale(now.Add(-j.staleAge))
	if err != nil {
		return err
	}

	if deleted > 0 || failed > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Int64("failed_stale", failed).
			Msg("Run cleanup completed")
	} else {
		j.log.Debug().Msg("Run cleanup found nothing to do")
	}
	return nil
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by *database.DB
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Name() string
}

// CheckHistoryStoreJob verifies the history database is reachable and intact
type CheckHistoryStoreJob struct {
	log     zerolog.Logger
	db      HealthChecker
	timeout time.Duration
}

// NewCheckHistoryStoreJob creates a new CheckHistoryStoreJob
func NewCheckHistoryStoreJob(db HealthChecker) *CheckHistoryStoreJob {
	return &CheckHistoryStoreJob{
		log:     zerolog.Nop(),
		db:      db,
		timeout: 30 * time.Second,
	}
}

// SetLogger sets the logger for the job
func (j *CheckHistoryStoreJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckHistoryStoreJob) Name() string {
	return "check_history_store"
}

// Run executes the check
func (j *CheckHistoryStoreJob) Run() error {
	if j.db == nil {
		j.log.Debug().Msg("History store not configured, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		// Analytics keeps working from caller-supplied data, so this is not fatal
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("History store health check failed")
		return fmt.Errorf("history store %s unhealthy: %w", j.db.Name(), err)
	}

	j.log.Debug().Str("database", j.db.Name()).Msg("History store healthy")
	return nil
}

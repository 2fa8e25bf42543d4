package scheduler

import (
	"github.com/rs/zerolog"
)

// Sweeper drops expired entries and reports how many it removed.
// backtest.Cache and analytics.SessionStore implement it.
type Sweeper interface {
	Sweep() int
}

// SweepJob evicts expired entries from an in-memory store
type SweepJob struct {
	name    string
	target  Sweeper
	log     zerolog.Logger
	removed int
}

// NewSweepBacktestCacheJob creates the job that evicts expired backtest results
func NewSweepBacktestCacheJob(cache Sweeper) *SweepJob {
	return &SweepJob{name: "sweep_backtest_cache", target: cache, log: zerolog.Nop()}
}

// NewSweepSessionsJob creates the job that drops idle analysis sessions
func NewSweepSessionsJob(sessions Sweeper) *SweepJob {
	return &SweepJob{name: "sweep_sessions", target: sessions, log: zerolog.Nop()}
}

// SetLogger sets the logger for the job
func (j *SweepJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.name).Logger()
}

// Name returns the job name
func (j *SweepJob) Name() string {
	return j.name
}

// Removed returns the total number of entries removed so far
func (j *SweepJob) Removed() int {
	return j.removed
}

// Run executes one sweep
func (j *SweepJob) Run() error {
	if j.target == nil {
		return nil
	}

	removed := j.target.Sweep()
	j.removed += removed
	if removed > 0 {
		j.log.Info().Int("removed", removed).Msg("Swept expired entries")
	}
	return nil
}

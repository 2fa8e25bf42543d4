// Package utils holds small helpers shared across the analytics packages.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperationThreshold is the duration above which a timed operation is logged as a warning.
const SlowOperationThreshold = 5 * time.Second

// Timer measures the duration of one operation
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
	now   func() time.Time
}

// NewTimer starts a timer for the named operation
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
		now:   time.Now,
	}
}

// Stop logs the elapsed time and returns it
func (t *Timer) Stop() time.Duration {
	return t.StopWithFields(nil)
}

// StopWithFields logs the elapsed time together with extra fields
func (t *Timer) StopWithFields(fields map[string]interface{}) time.Duration {
	duration := t.now().Sub(t.start)

	event := t.log.Debug()
	if duration > SlowOperationThreshold {
		event = t.log.Warn()
	}
	if len(fields) > 0 {
		event = event.Fields(fields)
	}

	event.
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Operation completed")

	return duration
}

// OperationTimer provides a defer-friendly way to measure an operation
//
// Usage:
//
//	defer utils.OperationTimer("fetch_backtest", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	t := NewTimer(operation, log)
	return func() {
		t.Stop()
	}
}

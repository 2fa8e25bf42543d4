package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/lookthrough/internal/modules/analytics"
	"github.com/aristath/lookthrough/internal/modules/backtest"
	testingpkg "github.com/aristath/lookthrough/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func() error
}

func (j funcJob) Run() error   { return j.run() }
func (j funcJob) Name() string { return j.name }

type fakeChecker struct {
	err   error
	calls int
}

func (f *fakeChecker) HealthCheck(ctx context.Context) error {
	f.calls++
	return f.err
}

func (f *fakeChecker) Name() string { return "history" }

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	boom := errors.New("boom")

	testCases := []struct {
		name    string
		job     Job
		wantErr string
	}{
		{"success", funcJob{"ok", func() error { return nil }}, ""},
		{"error", funcJob{"fails", func() error { return boom }}, "boom"},
		{"panic", funcJob{"panics", func() error { panic("bad") }}, "job panics panicked: bad"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.RunNow(tc.job)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := funcJob{"noop", func() error { return nil }}

	assert.NoError(t, s.AddJob("@every 1m", job))
	assert.NoError(t, s.AddJob("0 */5 * * * *", job))
	assert.Error(t, s.AddJob("not a schedule", job))
}

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("@every 1s", funcJob{"tick", func() error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestSweepJobs_Names(t *testing.T) {
	assert.Equal(t, "sweep_sessions", NewSweepSessionsJob(nil).Name())
	assert.Equal(t, "sweep_backtest_cache", NewSweepBacktestCacheJob(nil).Name())
	assert.Equal(t, "check_history_store", NewCheckHistoryStoreJob(nil).Name())
}

func TestSweepJob_NilTarget(t *testing.T) {
	job := NewSweepSessionsJob(nil)
	assert.NoError(t, job.Run())
	assert.Equal(t, 0, job.Removed())
}

func TestSweepSessionsJob_RemovesIdleSessions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := analytics.NewSessionStore(10*time.Minute, zerolog.Nop())
	store.SetClock(func() time.Time { return now })

	store.Create(nil)
	store.Create(nil)
	require.Equal(t, 2, store.Len())

	job := NewSweepSessionsJob(store)
	job.SetLogger(zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, 0, job.Removed())

	now = now.Add(11 * time.Minute)
	require.NoError(t, job.Run())
	assert.Equal(t, 2, job.Removed())
	assert.Equal(t, 0, store.Len())
}

func TestSweepBacktestCacheJob_RemovesExpiredResults(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := backtest.FetcherFunc(func(context.Context, backtest.Request) (*backtest.Result, error) {
		return &backtest.Result{Status: backtest.StatusOK, RiskMetrics: &backtest.RiskMetrics{VolatilityPct: 5}}, nil
	})
	cache := backtest.NewCache(fetcher, time.Minute, zerolog.Nop())
	cache.SetClock(func() time.Time { return now })

	_, err := cache.Get(context.Background(), backtest.Request{
		Holdings: []backtest.HoldingWeight{{ID: "A", Weight: 100}},
		Period:   "1y",
	})
	require.NoError(t, err)

	job := NewSweepBacktestCacheJob(cache)
	now = now.Add(2 * time.Minute)
	require.NoError(t, job.Run())

	assert.Equal(t, 1, job.Removed())
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestCheckHistoryStoreJob(t *testing.T) {
	t.Run("nil database", func(t *testing.T) {
		assert.NoError(t, NewCheckHistoryStoreJob(nil).Run())
	})

	t.Run("unhealthy", func(t *testing.T) {
		checker := &fakeChecker{err: errors.New("disk I/O error")}
		err := NewCheckHistoryStoreJob(checker).Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "history store history unhealthy")
		assert.Equal(t, 1, checker.calls)
	})

	t.Run("real database", func(t *testing.T) {
		db := testingpkg.NewTestDB(t, "history")
		job := NewCheckHistoryStoreJob(db)
		job.SetLogger(zerolog.Nop())
		assert.NoError(t, job.Run())
	})
}

// Package main is the entry point of the look-through portfolio analytics service.
//
// The service hydrates caller holdings from an optional read-only history
// store, computes risk and allocation analytics, and proxies backtests to an
// external service through a coalescing cache.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	backtestclient "github.com/aristath/lookthrough/internal/clients/backtest"
	"github.com/aristath/lookthrough/internal/clients/history"
	"github.com/aristath/lookthrough/internal/config"
	"github.com/aristath/lookthrough/internal/database"
	"github.com/aristath/lookthrough/internal/modules/analytics"
	"github.com/aristath/lookthrough/internal/modules/backtest"
	"github.com/aristath/lookthrough/internal/scheduler"
	"github.com/aristath/lookthrough/internal/server"
	"github.com/aristath/lookthrough/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting lookthrough analytics")

	deps := analytics.Dependencies{}

	// History store is optional; without it callers must send full series
	var historyDB *database.DB
	if cfg.HistoryDBPath != "" {
		historyDB, err = database.New(database.Config{
			Path:    cfg.HistoryDBPath,
			Profile: database.ProfileReadOnly,
			Name:    "history",
		})
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.HistoryDBPath).Msg("Failed to open history database")
		}
		defer historyDB.Close()

		store := history.NewStore(historyDB, log)
		deps.Prices = store
		deps.Metadata = store
		log.Info().Str("path", historyDB.Path()).Msg("History store attached")
	} else {
		log.Warn().Msg("HISTORY_DB_PATH not set - holdings will not be hydrated")
	}

	var backtestCache *backtest.Cache
	if cfg.BacktestServiceURL != "" {
		client := backtestclient.NewClient(cfg.BacktestServiceURL, cfg.BacktestTimeout, log)
		backtestCache = backtest.NewCache(client, cfg.Analytics.BacktestCacheTTL.Duration, log)
		deps.Backtests = backtestCache
		log.Info().
			Str("url", cfg.BacktestServiceURL).
			Dur("ttl", backtestCache.TTL()).
			Msg("Backtest service configured")
	} else {
		log.Warn().Msg("BACKTEST_SERVICE_URL not set - backtest endpoint disabled")
	}

	engine := analytics.NewEngine(cfg.Analytics, deps, log)
	sessions := analytics.NewSessionStore(cfg.Analytics.SessionIdleTTL.Duration, log)

	sched := scheduler.New(log)
	registerJobs(sched, log, sessions, backtestCache, historyDB)
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Engine:    engine,
		Sessions:  sessions,
		HistoryDB: historyDB,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// registerJobs wires the maintenance jobs. A nil cache or database skips its job.
func registerJobs(
	sched *scheduler.Scheduler,
	log zerolog.Logger,
	sessions *analytics.SessionStore,
	cache *backtest.Cache,
	historyDB *database.DB,
) {
	type scheduled struct {
		schedule string
		job      interface {
			scheduler.Job
			SetLogger(zerolog.Logger)
		}
	}

	jobs := []scheduled{
		{"@every 1m", scheduler.NewSweepSessionsJob(sessions)},
	}
	if cache != nil {
		jobs = append(jobs, scheduled{"@every 1m", scheduler.NewSweepBacktestCacheJob(cache)})
	}
	if historyDB != nil {
		jobs = append(jobs, scheduled{"0 0 * * * *", scheduler.NewCheckHistoryStoreJob(historyDB)})
	}

	for _, j := range jobs {
		j.job.SetLogger(log)
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Msg("Failed to register job")
		}
	}
}

package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/lookthrough/internal/database"
	"github.com/aristath/lookthrough/internal/modules/analytics"
	"github.com/aristath/lookthrough/internal/modules/backtest"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers handles monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	engine      *analytics.Engine
	sessions    *analytics.SessionStore
	historyDB   *database.DB
	cpuPercent  func(ctx context.Context) (float64, error)
	memPercent  func(ctx context.Context) (float64, error)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	engine *analytics.Engine,
	sessions *analytics.SessionStore,
	historyDB *database.DB,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		engine:      engine,
		sessions:    sessions,
		historyDB:   historyDB,
		cpuPercent:  sampleCPU,
		memPercent:  sampleMemory,
	}
}

// SystemStatusResponse represents the service status
type SystemStatusResponse struct {
	Status         string           `json:"status"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
	CPUPercent     float64          `json:"cpu_percent"`
	MemoryPercent  float64          `json:"memory_percent"`
	Goroutines     int              `json:"goroutines"`
	Sessions       int              `json:"sessions"`
	BacktestCache  *backtest.Stats  `json:"backtest_cache,omitempty"`
	HistoryStore   string           `json:"history_store"`
	AnalyticsStats AnalyticsSummary `json:"analytics"`
}

// AnalyticsSummary echoes the tuning that shapes every answer.
type AnalyticsSummary struct {
	MinCommonDates      int     `json:"min_common_dates"`
	AnnualizationDays   int     `json:"annualization_days"`
	RiskFreeRatePct     float64 `json:"risk_free_rate_pct"`
	BacktestCacheTTLSec float64 `json:"backtest_cache_ttl_seconds"`
}

// DatabaseStatsResponse represents history database statistics
type DatabaseStatsResponse struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	SizeMB      float64 `json:"size_mb"`
	PageCount   int64   `json:"page_count"`
	LastChecked string  `json:"last_checked"`
}

// HandleSystemStatus returns resource usage and engine statistics
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		HistoryStore:  "disabled",
	}

	if v, err := h.cpuPercent(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else {
		response.CPUPercent = v
	}
	if v, err := h.memPercent(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		response.MemoryPercent = v
	}

	if h.sessions != nil {
		response.Sessions = h.sessions.Len()
	}
	if h.engine != nil {
		response.BacktestCache = h.engine.BacktestStats()
		settings := h.engine.Settings()
		response.AnalyticsStats = AnalyticsSummary{
			MinCommonDates:      settings.MinCommonDates,
			AnnualizationDays:   settings.AnnualizationDays,
			RiskFreeRatePct:     settings.RiskFreeRatePct,
			BacktestCacheTTLSec: settings.BacktestCacheTTL.Seconds(),
		}
	}

	if h.historyDB != nil {
		response.HistoryStore = "ok"
		if err := h.historyDB.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("History store unreachable")
			response.HistoryStore = "unreachable"
			response.Status = "degraded"
		}
	}

	writeData(w, http.StatusOK, response, h.log)
}

// HandleDatabaseStats returns history database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.historyDB == nil {
		http.Error(w, "History store not configured", http.StatusNotFound)
		return
	}

	stats, err := h.historyDB.GetStats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		http.Error(w, "Failed to get database stats", http.StatusInternalServerError)
		return
	}

	writeData(w, http.StatusOK, DatabaseStatsResponse{
		Name:        h.historyDB.Name(),
		Path:        h.historyDB.Path(),
		SizeMB:      float64(stats.SizeBytes) / 1024 / 1024,
		PageCount:   stats.PageCount,
		LastChecked: time.Now().Format(time.RFC3339),
	}, h.log)
}

// sampleCPU averages all CPUs over 100ms to keep the endpoint fast
func sampleCPU(ctx context.Context) (float64, error) {
	percent, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percent) == 0 {
		return 0, nil
	}
	return percent[0], nil
}

func sampleMemory(ctx context.Context) (float64, error) {
	stat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}

// Package handlers provides HTTP handlers for the analytics engine.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/allocation"
	"github.com/aristath/lookthrough/internal/modules/analytics"
	"github.com/aristath/lookthrough/internal/modules/backtest"
	"github.com/aristath/lookthrough/internal/modules/benchmarks"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies; price histories make them large.
const maxBodyBytes = 16 << 20

// Handler handles analytics HTTP requests
type Handler struct {
	engine   *analytics.Engine
	sessions *analytics.SessionStore
	log      zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(engine *analytics.Engine, sessions *analytics.SessionStore, log zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		sessions: sessions,
		log:      log.With().Str("handler", "analytics").Logger(),
	}
}

type holdingsRequest struct {
	Holdings []domain.RawHolding `json:"holdings"`
}

type createSessionRequest struct {
	Benchmarks []domain.RawHolding `json:"benchmarks"`
}

type explainRequest struct {
	Holdings      []domain.RawHolding `json:"holdings"`
	VolatilityPct *float64            `json:"volatility_pct"`
	ReturnPct     *float64            `json:"return_pct"`
	Target        string              `json:"target"`
	TolerancePP   *float64            `json:"tolerance_pp"`
}

type allocationRequest struct {
	Holdings    []domain.RawHolding   `json:"holdings"`
	TopHoldings []allocation.Position `json:"top_holdings"`
}

type profilesResponse struct {
	Profiles []benchmarks.Profile `json:"profiles"`
	Base     benchmarks.Base      `json:"base"`
}

// HandleCreateSession handles POST /api/sessions
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	// The body is optional
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	raws := req.Benchmarks
	if len(raws) == 0 {
		raws = h.configuredIndices()
	}
	candidates, err := h.engine.Hydrate(r.Context(), raws)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session := h.sessions.Create(candidates)
	h.log.Info().Str("session", session.ID).Int("benchmarks", len(candidates)).Msg("Analysis session created")
	h.writeData(w, http.StatusCreated, session)
}

// configuredIndices returns the base indices named in the settings, to be
// hydrated from the store.
func (h *Handler) configuredIndices() []domain.RawHolding {
	settings := h.engine.Settings()
	var raws []domain.RawHolding
	for _, id := range []string{settings.BondIndexID, settings.EquityIndexID} {
		if id != "" {
			raws = append(raws, domain.RawHolding{ID: id})
		}
	}
	return raws
}

// HandleDeleteSession handles DELETE /api/sessions/{id}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "id")) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSessionStats handles POST /api/sessions/{id}/stats
func (h *Handler) HandleSessionStats(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req holdingsRequest
	if !h.decode(w, r, &req) {
		return
	}
	holdings, err := h.engine.Hydrate(r.Context(), req.Holdings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeData(w, http.StatusOK, h.engine.SessionStats(session, holdings))
}

// HandleSessionProfiles handles POST /api/sessions/{id}/profiles
func (h *Handler) HandleSessionProfiles(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	profiles, base := h.engine.SessionProfiles(session)
	h.writeData(w, http.StatusOK, profilesResponse{Profiles: profiles, Base: base})
}

// HandleSessionExplain handles POST /api/sessions/{id}/explain.
// Without explicit volatility and return the holdings' statistics are used.
func (h *Handler) HandleSessionExplain(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req explainRequest
	if !h.decode(w, r, &req) {
		return
	}

	var vol, ret float64
	switch {
	case req.VolatilityPct != nil && req.ReturnPct != nil:
		vol, ret = *req.VolatilityPct, *req.ReturnPct
	case len(req.Holdings) > 0:
		holdings, err := h.engine.Hydrate(r.Context(), req.Holdings)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stats := h.engine.SessionStats(session, holdings)
		vol, ret = stats.VolatilityPct, stats.ReturnPct
	default:
		http.Error(w, "volatility_pct and return_pct, or holdings, are required", http.StatusBadRequest)
		return
	}

	tolerance := -1.0
	if req.TolerancePP != nil {
		tolerance = *req.TolerancePP
	}

	explanation, err := h.engine.SessionExplain(session, vol, ret, req.Target, tolerance)
	if err != nil {
		h.log.Error().Err(err).Str("session", session.ID).Msg("Failed to explain position")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.writeData(w, http.StatusOK, explanation)
}

// HandleAllocation handles POST /api/analytics/allocation
func (h *Handler) HandleAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	holdings, err := h.engine.Hydrate(r.Context(), req.Holdings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeData(w, http.StatusOK, h.engine.Allocation(holdings, req.TopHoldings))
}

// HandleBacktest handles POST /api/analytics/backtest
func (h *Handler) HandleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtest.Request
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Holdings) == 0 {
		http.Error(w, "holdings are required", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Backtest(r.Context(), req)
	switch {
	case errors.Is(err, analytics.ErrBacktestDisabled):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.log.Debug().Err(err).Msg("Backtest caller went away")
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	case err != nil:
		h.log.Error().Err(err).Msg("Backtest failed")
		h.writeData(w, http.StatusBadGateway, result)
	case result.Rejection() != nil:
		h.writeData(w, http.StatusUnprocessableEntity, result)
	default:
		h.writeData(w, http.StatusOK, result)
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*analytics.Session, bool) {
	session, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
	}
	return session, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeBody(w, r, v); err != nil {
		h.log.Debug().Err(err).Str("path", r.URL.Path).Msg("Invalid request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeData wraps data in the standard response envelope
func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

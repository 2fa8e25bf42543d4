// Package backtest provides the HTTP client for the external backtest service.
package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	bt "github.com/aristath/lookthrough/internal/modules/backtest"
	"github.com/aristath/lookthrough/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries a per-call id the service echoes in its logs.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// Client calls POST {baseURL}/backtest.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new backtest service client
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "backtest-service").Logger(),
	}
}

// Backtest runs one backtest. HTTP 422 and an explicit insufficient-history
// status are logical rejections returned as a Result with a nil error. Any
// other failure returns an error wrapping bt.ErrUnresolvable.
func (c *Client) Backtest(ctx context.Context, req bt.Request) (*bt.Result, error) {
	defer utils.OperationTimer("backtest_request", c.log)()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", bt.ErrUnresolvable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/backtest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", bt.ErrUnresolvable, err)
	}
	requestID := uuid.New().String()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)

	log := c.log.With().Str("request_id", requestID).Logger()
	log.Debug().
		Int("holdings", len(req.Holdings)).
		Str("period", req.Period).
		Int("benchmarks", len(req.BenchmarkIDs)).
		Msg("Requesting backtest")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: API request failed: %v", bt.ErrUnresolvable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		result := c.decodeRejection(resp.Body)
		log.Info().Strs("missing_ids", result.MissingIDs).Msg("Backtest rejected for insufficient history")
		return result, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: API returned status %d: %s",
			bt.ErrUnresolvable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result bt.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", bt.ErrUnresolvable, err)
	}

	switch result.Status {
	case "", bt.StatusOK:
		if len(result.ValueSeries) == 0 && result.RiskMetrics == nil {
			return nil, fmt.Errorf("%w: response carries no backtest data", bt.ErrUnresolvable)
		}
		result.Status = bt.StatusOK
	case bt.StatusInsufficientHistory:
		log.Info().Strs("missing_ids", result.MissingIDs).Msg("Backtest rejected for insufficient history")
	default:
		msg := result.Error
		if msg == "" {
			msg = "status " + result.Status
		}
		return nil, fmt.Errorf("%w: service error: %s", bt.ErrUnresolvable, msg)
	}

	log.Debug().Str("status", result.Status).Int("points", len(result.ValueSeries)).Msg("Backtest completed")
	return &result, nil
}

// decodeRejection reads an optional {missingIds} body of a 422 response.
func (c *Client) decodeRejection(body io.Reader) *bt.Result {
	result := &bt.Result{Status: bt.StatusInsufficientHistory}
	var payload struct {
		MissingIDs []string `json:"missingIds"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil {
		result.MissingIDs = payload.MissingIDs
	}
	return result
}

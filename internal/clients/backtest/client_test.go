package backtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	bt "github.com/aristath/lookthrough/internal/modules/backtest"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRequest = bt.Request{
	Holdings:     []bt.HoldingWeight{{ID: "A", Weight: 60}, {ID: "B", Weight: 40}},
	Period:       "3y",
	BenchmarkIDs: []string{"SPX"},
}

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", 5*time.Second, zerolog.Nop())
}

func TestClient_Backtest_Success(t *testing.T) {
	type seen struct {
		req       bt.Request
		requestID string
	}
	seenCh := make(chan seen, 1)

	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/backtest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req bt.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seenCh <- seen{req: req, requestID: r.Header.Get(RequestIDHeader)}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"valueSeries": [{"date": "2024-01-02", "value": 100}, {"date": "2024-01-03", "value": 101.5}],
			"benchmarkSeries": {"SPX": [{"date": "2024-01-02", "value": 100}]},
			"riskMetrics": {"volatility": 9.1, "return": 6.2, "sharpe": 0.45, "maxDrawdown": -12.3},
			"topHoldings": [{"name": "Apple", "weight": 3.2}]
		}`))
	})

	result, err := client.Backtest(context.Background(), testRequest)
	require.NoError(t, err)

	got := <-seenCh
	assert.Equal(t, testRequest, got.req)
	_, err = uuid.Parse(got.requestID)
	assert.NoError(t, err, "request id must be a uuid")

	assert.True(t, result.OK())
	assert.Len(t, result.ValueSeries, 2)
	require.NotNil(t, result.RiskMetrics)
	assert.Equal(t, 9.1, result.RiskMetrics.VolatilityPct)
	assert.Equal(t, "Apple", result.TopHoldings[0].Name)
}

func TestClient_Backtest_Rejections(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{"unprocessable entity", http.StatusUnprocessableEntity, `{"missingIds": ["B"]}`},
		{"status field", http.StatusOK, `{"status": "insufficient_history", "missingIds": ["B"]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			result, err := client.Backtest(context.Background(), testRequest)
			require.NoError(t, err)
			require.NotNil(t, result.Rejection())
			assert.Equal(t, []string{"B"}, result.Rejection().MissingIDs)
		})
	}
}

func TestClient_Backtest_Unresolvable(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `boom`},
		{"malformed body", http.StatusOK, `{"valueSeries": [`},
		{"empty body", http.StatusOK, `{}`},
		{"error status", http.StatusOK, `{"status": "error", "error": "optimizer down"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			result, err := client.Backtest(context.Background(), testRequest)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, bt.ErrUnresolvable)
		})
	}
}

func TestClient_Backtest_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, time.Second, zerolog.Nop()).Backtest(context.Background(), testRequest)
	assert.ErrorIs(t, err, bt.ErrUnresolvable)
}

func TestClient_WorksBehindCache(t *testing.T) {
	var calls atomic.Int32
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"riskMetrics": {"volatility": 5}}`))
	})

	cache := bt.NewCache(client, bt.DefaultTTL, zerolog.Nop())
	for i := 0; i < 3; i++ {
		res, err := cache.Get(context.Background(), testRequest)
		require.NoError(t, err)
		assert.True(t, res.OK())
	}
	assert.Equal(t, int32(1), calls.Load())
}

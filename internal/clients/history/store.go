// Package history reads daily closes and fund metadata from the history database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/rs/zerolog"
)

// Querier is the subset of *database.DB and *sql.DB the store needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is a read-only view of the history database.
type Store struct {
	db  Querier
	log zerolog.Logger
}

// NewStore creates a new history store
func NewStore(db Querier, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("client", "history_store").Logger(),
	}
}

// PriceHistory returns the daily closes of id keyed by canonical date.
// An unknown id yields an empty map.
func (s *Store) PriceHistory(ctx context.Context, id string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, close
		FROM daily_prices
		WHERE isin = ?
		ORDER BY date ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string]float64)
	skipped := 0
	for rows.Next() {
		var dateUnix sql.NullInt64
		var closePrice sql.NullFloat64
		if err := rows.Scan(&dateUnix, &closePrice); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if !dateUnix.Valid || !closePrice.Valid || closePrice.Float64 <= 0 {
			skipped++
			continue
		}
		date := time.Unix(dateUnix.Int64, 0).UTC().Format(domain.DateLayout)
		prices[date] = closePrice.Float64
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	if skipped > 0 {
		s.log.Debug().Str("isin", id).Int("skipped", skipped).Msg("Dropped unusable price rows")
	}
	return prices, nil
}

// Metadata returns the static description of id, or nil when none is stored.
func (s *Store) Metadata(ctx context.Context, id string) (*domain.RawHolding, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM fund_metadata WHERE isin = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fund metadata: %w", err)
	}

	var raw domain.RawHolding
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
	}
	if raw.ID == "" && raw.ISIN == "" {
		raw.ISIN = id
	}
	return &raw, nil
}

package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is how long a resolved result is served from the cache.
const DefaultTTL = 5 * time.Minute

// Fetcher performs the actual backtest call.
type Fetcher interface {
	Backtest(ctx context.Context, req Request) (*Result, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (*Result, error)

// Backtest implements Fetcher.
func (f FetcherFunc) Backtest(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// entry is a shared future for one key. result and err are written once,
// before done is closed.
type entry struct {
	done       chan struct{}
	result     *Result
	err        error
	createdAt  time.Time
	resolvedAt time.Time // Zero while pending
	waiters    int
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries   int    `json:"entries"`
	Pending   int    `json:"pending"`
	Waiters   int    `json:"waiters"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Coalesced uint64 `json:"coalesced"` // Hits on a still pending call
}

// Cache memoizes backtest results per canonical request for a TTL.
//
// The cache stores the pending call rather than only its value, so every
// caller arriving while a call is in flight waits on that same call. Failed
// calls are cached as error-shaped results for the full TTL.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	stats   Stats
}

// NewCache creates a cache in front of fetcher. A non-positive ttl uses DefaultTTL.
func NewCache(fetcher Fetcher, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		log:     log.With().Str("component", "backtest_cache").Logger(),
		entries: make(map[string]*entry),
	}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// TTL returns the configured time to live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the result for req, sharing an in-flight call or a cached
// result when one exists for the same canonical request.
//
// Logical rejections come back as a Result with a nil error. Transport
// failures return the error-shaped Result together with an error wrapping
// ErrUnresolvable. If ctx ends first, Get returns ctx.Err() while the call
// keeps running and still populates the cache.
func (c *Cache) Get(ctx context.Context, req Request) (*Result, error) {
	key := Key(req)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && c.expiredLocked(e) {
		delete(c.entries, key)
		ok = false
	}
	switch {
	case !ok:
		e = &entry{done: make(chan struct{}), createdAt: c.now()}
		c.entries[key] = e
		c.stats.Misses++
		go c.resolve(context.WithoutCancel(ctx), key, e, Canonical(req))
	case e.resolvedAt.IsZero():
		c.stats.Hits++
		c.stats.Coalesced++
	default:
		c.stats.Hits++
	}
	e.waiters++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		e.waiters--
		c.mu.Unlock()
	}()

	select {
	case <-e.done:
		return e.result, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) resolve(ctx context.Context, key string, e *entry, req Request) {
	result, err := c.call(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrUnresolvable) {
			err = fmt.Errorf("%w: %v", ErrUnresolvable, err)
		}
		result = ErrorResult(err)
		c.log.Warn().Err(err).Str("key", key[:8]).Msg("Backtest failed, caching error result")
	}

	c.mu.Lock()
	e.result, e.err = result, err
	e.resolvedAt = c.now()
	waiters := e.waiters
	c.mu.Unlock()
	close(e.done)

	c.log.Debug().
		Str("key", key[:8]).
		Str("status", result.Status).
		Int("waiters", waiters).
		Msg("Backtest resolved")
}

// call runs the fetcher, turning panics and empty answers into errors so
// waiters are always released.
func (c *Cache) call(ctx context.Context, req Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: backtest call panicked: %v", ErrUnresolvable, r)
		}
	}()

	result, err = c.fetcher.Backtest(ctx, req)
	if err == nil && result == nil {
		err = fmt.Errorf("%w: empty response", ErrUnresolvable)
	}
	return result, err
}

func (c *Cache) expiredLocked(e *entry) bool {
	if e.resolvedAt.IsZero() {
		return false
	}
	return c.now().Sub(e.resolvedAt) >= c.ttl
}

// Sweep drops expired resolved entries and returns how many were removed.
// Pending calls are never dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.expiredLocked(e) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		c.log.Debug().Int("removed", removed).Int("remaining", len(c.entries)).Msg("Swept backtest cache")
	}
	return removed
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = len(c.entries)
	for _, e := range c.entries {
		if e.resolvedAt.IsZero() {
			s.Pending++
		}
		s.Waiters += e.waiters
	}
	return s
}

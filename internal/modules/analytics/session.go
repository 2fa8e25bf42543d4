package analytics

import (
	"sync"
	"time"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/benchmarks"
	"github.com/aristath/lookthrough/internal/modules/risk"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSessionIdleTTL is how long an unused session is kept.
const DefaultSessionIdleTTL = 30 * time.Minute

// Session caches the expensive per-analysis state: the covariance matrix of
// the current holding set and the risk profiles.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	mu            sync.Mutex
	candidates    []domain.Holding
	setKey        string
	matrix        *risk.Matrix
	matrixErr     error
	matrixBuilt   bool
	matrixBuilds  int
	profiles      []benchmarks.Profile
	base          benchmarks.Base
	profilesBuilt bool
}

// MatrixBuilds returns how many times the session computed a matrix.
func (s *Session) MatrixBuilds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matrixBuilds
}

// SessionStats computes statistics reusing the session's matrix while the
// holding set is unchanged. Weight-only changes never rebuild it; a failed
// build is remembered for the same set too.
func (e *Engine) SessionStats(s *Session, holdings []domain.Holding) StatsResult {
	s.mu.Lock()
	key := holdingSetKey(holdings)
	if !s.matrixBuilt || key != s.setKey {
		s.matrix, s.matrixErr = e.covariance.BuildMatrix(holdings)
		s.setKey = key
		s.matrixBuilt = true
		s.matrixBuilds++
	}
	matrix, err := s.matrix, s.matrixErr
	s.mu.Unlock()

	return e.statsFrom(holdings, matrix, err)
}

// SessionProfiles returns the session's risk profiles, building them on first use.
func (e *Engine) SessionProfiles(s *Session) ([]benchmarks.Profile, benchmarks.Base) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profilesBuilt {
		s.profiles, s.base = e.Profiles(s.candidates)
		s.profilesBuilt = true
	}
	return s.profiles, s.base
}

// SessionExplain positions a portfolio against the session's profiles.
func (e *Engine) SessionExplain(s *Session, volatilityPct, returnPct float64, targetID string, tolerance float64) (benchmarks.Explanation, error) {
	profiles, _ := e.SessionProfiles(s)
	return e.Explain(profiles, volatilityPct, returnPct, targetID, tolerance)
}

type sessionEntry struct {
	session  *Session
	lastUsed time.Time
}

// SessionStore keeps sessions in memory and expires idle ones.
type SessionStore struct {
	idleTTL time.Duration
	now     func() time.Time
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionStore creates a store. A non-positive idleTTL uses DefaultSessionIdleTTL.
func NewSessionStore(idleTTL time.Duration, log zerolog.Logger) *SessionStore {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &SessionStore{
		idleTTL:  idleTTL,
		now:      time.Now,
		log:      log.With().Str("component", "session_store").Logger(),
		sessions: make(map[string]*sessionEntry),
	}
}

// SetClock replaces the time source.
func (st *SessionStore) SetClock(now func() time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.now = now
}

// Create opens a session over the given base index candidates.
func (st *SessionStore) Create(candidates []domain.Holding) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	s := &Session{
		ID:         uuid.New().String(),
		CreatedAt:  now,
		candidates: candidates,
	}
	st.sessions[s.ID] = &sessionEntry{session: s, lastUsed: now}

	st.log.Debug().Str("session", s.ID).Int("candidates", len(candidates)).Msg("Session created")
	return s
}

// Get returns a live session and marks it used.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	entry, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	now := st.now()
	if now.Sub(entry.lastUsed) >= st.idleTTL {
		delete(st.sessions, id)
		return nil, false
	}
	entry.lastUsed = now
	return entry.session, true
}

// Delete drops a session and reports whether it existed.
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// Sweep drops idle sessions and returns how many were removed.
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	removed := 0
	for id, entry := range st.sessions {
		if now.Sub(entry.lastUsed) >= st.idleTTL {
			delete(st.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		st.log.Debug().Int("removed", removed).Int("remaining", len(st.sessions)).Msg("Swept idle sessions")
	}
	return removed
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

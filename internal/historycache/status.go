package historycache

import "time"

// State describes the held record.
type State string

const (
	StateNone       State = "none"
	StateFresh      State = "fresh"
	StateStale      State = "stale"
	StateRefreshing State = "refreshing"
)

// Status is a point-in-time view of the service.
type Status struct {
	State              State      `json:"state"`
	CachedAt           *time.Time `json:"cachedAt,omitempty"`
	AgeMs              int64      `json:"ageMs"`
	TTLMs              int64      `json:"ttlMs"`
	Entries            int        `json:"entries"`
	TotalCommits       int        `json:"totalCommits"`
	CommitsWithChanges int        `json:"commitsWithChanges"`
	Watermark          string     `json:"watermark,omitempty"`
	InitialCommit      string     `json:"initialCommit,omitempty"`
	LastRefreshAt      *time.Time `json:"lastRefreshAt,omitempty"`
	LastError          string     `json:"lastError,omitempty"`
	Refreshes          int64      `json:"refreshes"`
	StorePath          string     `json:"storePath"`
}

// Status reports the service state without triggering any work.
func (s *Service) Status() Status {
	s.mu.RLock()
	rec := s.record
	lastErr := s.lastErr
	lastRefresh := s.lastRefresh
	s.mu.RUnlock()

	st := Status{
		State:     StateNone,
		TTLMs:     s.opts.TTL.Milliseconds(),
		Refreshes: s.refreshes.Load(),
		StorePath: s.store.Path(),
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	if !lastRefresh.IsZero() {
		st.LastRefreshAt = &lastRefresh
	}

	if rec != nil {
		cachedAt := rec.CachedAt
		age := s.age(rec)
		st.CachedAt = &cachedAt
		st.AgeMs = age.Milliseconds()
		st.Entries = len(rec.Entries)
		st.TotalCommits = rec.TotalCommits
		st.CommitsWithChanges = rec.CommitsWithChanges
		st.Watermark = rec.Watermark
		if rec.InitialCommit != nil {
			st.InitialCommit = rec.InitialCommit.Hash
		}
		st.State = StateStale
		if age < s.opts.TTL {
			st.State = StateFresh
		}
	}

	if s.refreshing.Load() {
		st.State = StateRefreshing
	}
	return st
}

// Package historycache owns the durable history record: it serves it to
// readers, keeps it fresh in the background and persists it between runs.
package historycache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"taxhist/internal/errors"
	"taxhist/internal/history"
	"taxhist/internal/logging"
	"taxhist/internal/storage"
)

var tracer = otel.Tracer("taxhist.historycache")

// refreshKey is the single singleflight key; at most one refresh runs at a time.
const refreshKey = "refresh"

// Builder produces history batches. *history.Builder satisfies it.
type Builder interface {
	Build(ctx context.Context, olderThan string) (*history.Batch, error)
}

// Options tunes freshness and the periodic refresh task.
type Options struct {
	TTL time.Duration
	// EarlyRefreshRatio is the fraction of TTL after which a fresh record
	// triggers a background refresh.
	EarlyRefreshRatio float64
	// RefreshInterval is the period of the task started by Start.
	RefreshInterval time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultOptions returns 30 minute freshness with early refresh at 80%.
func DefaultOptions() Options {
	return Options{
		TTL:               30 * time.Minute,
		EarlyRefreshRatio: 0.8,
		RefreshInterval:   30 * time.Minute,
	}
}

// Result is what History returns to readers.
type Result struct {
	Entries            []history.HistoryEntry `json:"entries"`
	TotalCommits       int                    `json:"totalCommits"`
	CommitsWithChanges int                    `json:"commitsWithChanges"`
	FromCache          bool                   `json:"fromCache"`
	CacheAgeMs         int64                  `json:"cacheAgeMs"`
	Message            string                 `json:"message,omitempty"`

	// Record is the record the result was taken from, nil when none is held.
	Record *history.Record `json:"-"`
}

// Available reports whether a record backs the result.
func (r *Result) Available() bool {
	return r.Record != nil
}

// PendingMessage is returned alongside an empty result while the first
// computation is still running.
const PendingMessage = "Taxonomy history is being processed, please retry shortly"

// Service holds the in-memory record and coordinates refreshes.
type Service struct {
	builder Builder
	store   storage.Store
	opts    Options
	logger  *logging.Logger

	mu          sync.RWMutex
	record      *history.Record
	loaded      bool
	lastErr     error
	lastRefresh time.Time
	// generation is bumped by Reset; a refresh started under an older
	// generation neither installs nor persists its result.
	generation  uint64

	// loadMu serializes the initial load without holding mu during I/O.
	loadMu    sync.Mutex
	// persistMu orders Save against Delete.
	persistMu sync.Mutex

	group      singleflight.Group
	refreshing atomic.Bool
	pending    atomic.Bool
	refreshes  atomic.Int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
}

// New creates a cache service. The store may be shared with nothing else.
func New(builder Builder, store storage.Store, opts Options, logger *logging.Logger) (*Service, error) {
	if builder == nil || store == nil {
		return nil, errors.New(errors.InternalError, "history cache requires a builder and a store", nil)
	}
	if logger == nil {
		return nil, errors.New(errors.InternalError, "history cache requires a logger", nil)
	}

	d := DefaultOptions()
	if opts.TTL <= 0 {
		opts.TTL = d.TTL
	}
	if opts.EarlyRefreshRatio <= 0 || opts.EarlyRefreshRatio > 1 {
		opts.EarlyRefreshRatio = d.EarlyRefreshRatio
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = d.RefreshInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		builder: builder,
		store:   store,
		opts:    opts,
		logger:  logger.WithFields(map[string]interface{}{"component": "historycache"}),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// History returns the held record according to its freshness. A forced call
// waits for a full refresh and falls back to the held record if it fails.
func (s *Service) History(ctx context.Context, force bool) (*Result, error) {
	s.ensureLoaded(ctx)
	held := s.current()

	if force {
		requestsTotal.WithLabelValues("forced").Inc()
		rec, err := s.refreshShared(ctx, true)
		if err != nil {
			if held == nil {
				return nil, err
			}
			s.logger.Warn("Forced refresh failed, serving held history", map[string]interface{}{
				"error": err.Error(),
			})
			return s.result(held, false), nil
		}
		return s.result(rec, true), nil
	}

	if held == nil {
		requestsTotal.WithLabelValues("missing").Inc()
		s.triggerAsync("missing")
		return s.result(nil, false), nil
	}

	age := s.age(held)
	if age < s.opts.TTL {
		requestsTotal.WithLabelValues("fresh").Inc()
		if age > time.Duration(float64(s.opts.TTL)*s.opts.EarlyRefreshRatio) {
			s.triggerAsync("early")
		}
		return s.result(held, false), nil
	}

	requestsTotal.WithLabelValues("stale").Inc()
	s.triggerAsync("stale")
	return s.result(held, false), nil
}

// Refresh runs one refresh now, or joins the one in flight. Without force
// and with a record held, only commits older than the watermark are walked.
func (s *Service) Refresh(ctx context.Context, force bool) (*history.Record, error) {
	s.ensureLoaded(ctx)
	return s.refreshShared(ctx, force)
}

// Held returns the record currently held, loading the persisted one first
// if needed. It never triggers a refresh.
func (s *Service) Held(ctx context.Context) *history.Record {
	s.ensureLoaded(ctx)
	return s.current()
}

// Reset deletes the durable record and forgets the in-memory one.
func (s *Service) Reset(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.generation++
	s.record = nil
	s.loaded = true
	s.lastErr = nil
	s.mu.Unlock()
	cacheEntries.Set(0)

	if err := s.store.Delete(ctx); err != nil {
		s.logger.Error("Failed to delete persisted history", map[string]interface{}{
			"path":  s.store.Path(),
			"error": err.Error(),
		})
		return err
	}
	s.logger.Info("History cache reset", map[string]interface{}{
		"path": s.store.Path(),
	})
	return nil
}

// Start runs the periodic refresh task until Stop. A refresh is scheduled
// immediately when no fresh record is held.
func (s *Service) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("history cache already started")
	}
	s.logger.Info("Starting history refresh task", map[string]interface{}{
		"interval": s.opts.RefreshInterval.String(),
		"ttl":      s.opts.TTL.String(),
	})
	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop cancels the periodic task and waits for background work to finish.
func (s *Service) Stop(timeout time.Duration) error {
	s.logger.Info("Stopping history refresh task", nil)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("History refresh task stopped", nil)
		return s.store.Close()
	case <-time.After(timeout):
		return fmt.Errorf("history cache shutdown timed out")
	}
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	s.ensureLoaded(s.ctx)
	if held := s.current(); held == nil || s.age(held) >= s.opts.TTL {
		s.triggerAsync("startup")
	}

	for {
		select {
		case <-ticker.C:
			s.triggerAsync("interval")
		case <-s.ctx.Done():
			return
		}
	}
}

// triggerAsync starts a background refresh unless one is already pending
// or running.
func (s *Service) triggerAsync(reason string) {
	if s.ctx.Err() != nil || s.refreshing.Load() {
		return
	}
	if !s.pending.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.pending.Store(false)

		s.logger.Debug("Background refresh scheduled", map[string]interface{}{
			"reason": reason,
		})
		if _, err := s.refreshShared(s.ctx, false); err != nil {
			s.logger.Warn("Background refresh failed", map[string]interface{}{
				"reason": reason,
				"error":  err.Error(),
			})
		}
	}()
}

// refreshShared funnels every refresh through one singleflight key. Callers
// arriving while a refresh runs share its outcome.
func (s *Service) refreshShared(ctx context.Context, force bool) (*history.Record, error) {
	detached := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(refreshKey, func() (interface{}, error) {
		return s.refresh(detached, force)
	})
	if shared {
		s.logger.Debug("Joined in-flight refresh", map[string]interface{}{
			"force": force,
		})
	}
	if err != nil {
		return nil, err
	}
	return v.(*history.Record), nil
}

func (s *Service) refresh(ctx context.Context, force bool) (*history.Record, error) {
	s.refreshing.Store(true)
	defer s.refreshing.Store(false)

	runID := uuid.New().String()
	s.mu.RLock()
	existing, gen := s.record, s.generation
	s.mu.RUnlock()
	olderThan := ""
	if existing != nil && !force {
		olderThan = existing.Watermark
	}

	ctx, span := tracer.Start(ctx, "Service.refresh",
		trace.WithAttributes(
			attribute.String("refresh.id", runID),
			attribute.Bool("refresh.force", force),
			attribute.String("refresh.olderThan", olderThan),
		),
	)
	defer span.End()

	logger := s.logger.WithFields(map[string]interface{}{"refreshId": runID})
	logger.Info("Refreshing taxonomy history", map[string]interface{}{
		"force":     force,
		"olderThan": olderThan,
	})

	start := s.opts.Now()
	batch, err := s.builder.Build(ctx, olderThan)
	elapsed := s.opts.Now().Sub(start)
	refreshDuration.Observe(elapsed.Seconds())
	s.refreshes.Add(1)

	if err != nil {
		refreshTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		logger.Error("History refresh failed", map[string]interface{}{
			"error":    err.Error(),
			"code":     string(errors.CodeOf(err)),
			"duration": elapsed.String(),
		})
		return nil, err
	}

	if batch.Examined == 0 && existing != nil && !force {
		refreshTotal.WithLabelValues("unchanged").Inc()
		s.mu.Lock()
		s.lastErr = nil
		s.lastRefresh = s.opts.Now()
		s.mu.Unlock()
		logger.Info("No older commits to process", map[string]interface{}{
			"watermark": existing.Watermark,
		})
		return existing, nil
	}

	var base *history.Record
	if !force {
		base = existing
	}
	rec := merge(base, batch, s.opts.Now(), elapsed)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	superseded := s.generation != gen
	if !superseded {
		s.record = rec
		s.loaded = true
		s.lastErr = nil
		s.lastRefresh = rec.CachedAt
	}
	s.mu.Unlock()

	if superseded {
		refreshTotal.WithLabelValues("discarded").Inc()
		logger.Info("History was reset during refresh, discarding result", map[string]interface{}{
			"entries": len(rec.Entries),
		})
		return rec, nil
	}

	refreshTotal.WithLabelValues("success").Inc()
	cacheEntries.Set(float64(len(rec.Entries)))
	span.SetAttributes(
		attribute.Int("record.entries", len(rec.Entries)),
		attribute.Int("record.totalCommits", rec.TotalCommits),
	)

	if err := s.store.Save(ctx, rec); err != nil {
		persistErrors.Inc()
		logger.Error("Failed to persist history, continuing in memory", map[string]interface{}{
			"path":  s.store.Path(),
			"error": err.Error(),
		})
	}

	logger.Info("Taxonomy history refreshed", map[string]interface{}{
		"examined":           batch.Examined,
		"newEntries":         len(batch.Entries),
		"totalEntries":       len(rec.Entries),
		"watermark":          rec.Watermark,
		"processingTimeMs":   rec.ProcessingTimeMs,
		"commitsWithChanges": rec.CommitsWithChanges,
	})
	return rec, nil
}

// merge places the batch before the existing entries. The batch covers
// older commits than existing, so the concatenation is not globally
// newest-first; this mirrors how records have always been stored.
func merge(existing *history.Record, batch *history.Batch, now time.Time, elapsed time.Duration) *history.Record {
	rec := &history.Record{
		Version:          history.RecordVersion,
		Watermark:        batch.Oldest,
		InitialCommit:    batch.Initial,
		CachedAt:         now,
		TotalCommits:     batch.Examined,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}

	entries := make([]history.HistoryEntry, 0, len(batch.Entries))
	entries = append(entries, batch.Entries...)
	if existing != nil {
		entries = append(entries, existing.Entries...)
		rec.TotalCommits += existing.TotalCommits
		if existing.InitialCommit != nil {
			rec.InitialCommit = existing.InitialCommit
		}
		if rec.Watermark == "" {
			rec.Watermark = existing.Watermark
		}
	}
	rec.Entries = entries
	rec.CommitsWithChanges = len(entries)
	return rec
}

// ensureLoaded reads the persisted record once. An expired record is still
// held so readers have something to serve while it is rebuilt.
func (s *Service) ensureLoaded(ctx context.Context) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.RLock()
	loaded, gen := s.loaded, s.generation
	s.mu.RUnlock()
	if loaded {
		return
	}

	rec, err := s.store.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	// A refresh or Reset that finished during the load wins.
	if s.loaded || s.generation != gen {
		return
	}
	s.loaded = true

	if err != nil {
		s.logger.Warn("Failed to load persisted history", map[string]interface{}{
			"path":  s.store.Path(),
			"error": err.Error(),
		})
		return
	}
	if rec == nil {
		return
	}
	s.record = rec
	cacheEntries.Set(float64(len(rec.Entries)))
	s.logger.Info("Loaded persisted history", map[string]interface{}{
		"entries":   len(rec.Entries),
		"watermark": rec.Watermark,
		"cachedAt":  rec.CachedAt.Format(time.RFC3339),
	})
}

func (s *Service) current() *history.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

func (s *Service) age(rec *history.Record) time.Duration {
	return s.opts.Now().Sub(rec.CachedAt)
}

// result reports FromCache only for a held record that is still within TTL.
func (s *Service) result(rec *history.Record, rebuilt bool) *Result {
	if rec == nil {
		return &Result{Entries: []history.HistoryEntry{}, Message: PendingMessage}
	}
	age := s.age(rec)
	return &Result{
		Entries:            rec.Entries,
		TotalCommits:       rec.TotalCommits,
		CommitsWithChanges: rec.CommitsWithChanges,
		FromCache:          !rebuilt && age < s.opts.TTL,
		CacheAgeMs:         age.Milliseconds(),
		Record:             rec,
	}
}

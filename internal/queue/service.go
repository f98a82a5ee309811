package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/cache"
	"github.com/ZanzyTHEbar/leadpulse/internal/database"
	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/resilience"
	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

const (
	DefaultViewLimit = 50
	MaxViewLimit     = 500
)

// writeRetry rides out SQLite lock contention between concurrent evaluations
var writeRetry = resilience.RetryConfig{
	MaxAttempts:     4,
	InitialDelay:    25 * time.Millisecond,
	MaxDelay:        500 * time.Millisecond,
	BackoffFactor:   2,
	JitterEnabled:   true,
	RetryableErrors: database.IsBusy,
}

// View is an evaluated collection: its prioritized records, the records
// that could not be scored and the collection insights
type View struct {
	Kind          types.Kind                  `json:"kind"`
	Records       []scoring.ScoredRecord      `json:"records"`
	Rejected      []scoring.Rejected          `json:"rejected"`
	Insights      []scoring.CollectionInsight `json:"insights"`
	Total         int                         `json:"total"`
	ConfigVersion string                      `json:"config_version"`
	EvaluatedAt   time.Time                   `json:"evaluated_at"`
}

// limited returns a copy of v holding at most limit records. Insights and
// Total still describe the whole collection.
func (v *View) limited(limit int) *View {
	out := *v
	if limit < len(out.Records) {
		out.Records = out.Records[:limit]
	}
	return &out
}

// Service keeps prioritized queues of stored records up to date
type Service struct {
	repo    *database.Repository
	engine  atomic.Pointer[scoring.Engine]
	results *cache.ResultCache
	views   *ViewCache
	logger  *monitoring.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewService creates a queue service with default caches
func NewService(repo *database.Repository, engine *scoring.Engine, logger *monitoring.Logger, metrics *monitoring.Metrics) *Service {
	return NewServiceWithCache(repo, engine,
		cache.NewResultCache(time.Hour, metrics),
		NewViewCache(15*time.Minute),
		logger, metrics)
}

// NewServiceWithCache creates a queue service with custom caches
func NewServiceWithCache(repo *database.Repository, engine *scoring.Engine, results *cache.ResultCache, views *ViewCache, logger *monitoring.Logger, metrics *monitoring.Metrics) *Service {
	s := &Service{
		repo:    repo,
		results: results,
		views:   views,
		logger:  logger,
		metrics: metrics,
	}
	s.engine.Store(engine)
	return s
}

// Engine returns the engine currently in use
func (s *Service) Engine() *scoring.Engine {
	return s.engine.Load()
}

// Evaluate scores every active record of kind, stores the resulting ranking
// and snapshots, and caches the view
func (s *Service) Evaluate(ctx context.Context, kind types.Kind) (*View, error) {
	if !kind.Valid() {
		return nil, apperrors.NewValidationError("unknown record kind", fmt.Sprintf("kind %q", kind))
	}

	start := time.Now()
	e := s.engine.Load()
	gen := s.views.Generation(kind)

	records, err := s.repo.ListRecords(ctx, kind, false)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load records", err)
	}

	scored := make([]scoring.ScoredRecord, 0, len(records))
	fresh := make([]scoring.ScoredRecord, 0, len(records))
	rejected := []scoring.Rejected{}
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewTimeoutError("evaluation cancelled", err)
		}

		recordStart := time.Now()
		res, hit, err := s.results.Score(e, r)
		if err != nil {
			rejected = append(rejected, scoring.Rejected{Index: i, ID: r.ID, Reason: err.Error()})
			continue
		}

		sr := scoring.ScoredRecord{Record: r, Result: res}
		scored = append(scored, sr)
		if !hit {
			fresh = append(fresh, sr)
		}
		s.metrics.RecordScore(res.NextBestAction.ID, string(res.Risk.Tier))
		s.logger.ScoringLogger(r.ID, res.Composite, string(res.Risk.Tier), res.NextBestAction.ID, time.Since(recordStart), hit)
	}
	s.metrics.RecordRejected(len(rejected))

	ev := e.Assemble(scored, rejected)

	err = resilience.RetryWithConfig(ctx, writeRetry, func() error {
		return s.repo.ReplaceRankings(ctx, kind, ev.Records)
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to store rankings", err)
	}
	if len(fresh) > 0 {
		err = resilience.RetryWithConfig(ctx, writeRetry, func() error {
			_, saveErr := s.repo.SaveSnapshots(ctx, fresh)
			return saveErr
		})
		if err != nil {
			return nil, apperrors.NewInternalError("failed to store snapshots", err)
		}
	}

	view := &View{
		Kind:          kind,
		Records:       ev.Records,
		Rejected:      ev.Rejected,
		Insights:      ev.Insights,
		Total:         len(ev.Records),
		ConfigVersion: ev.ConfigVersion,
		EvaluatedAt:   time.Now().UTC(),
	}
	if !s.views.SetIfCurrent(view, gen) {
		s.logger.CacheLogger("view_stale", string(kind), false, view.Total)
	}

	s.metrics.IncrementEvaluation()
	s.logger.BatchLogger(string(kind), len(ev.Records), len(ev.Rejected), len(ev.Insights), ev.ConfigVersion, time.Since(start))

	return view, nil
}

// View returns the prioritized queue of kind, evaluating it when no view
// exists for the current configuration
func (s *Service) View(ctx context.Context, kind types.Kind, limit int) (*View, error) {
	if limit <= 0 {
		limit = DefaultViewLimit
	}
	if limit > MaxViewLimit {
		limit = MaxViewLimit
	}

	if view, found := s.views.Get(kind, s.engine.Load().Version()); found {
		s.logger.CacheLogger("view_hit", string(kind), true, view.Total)
		return view.limited(limit), nil
	}

	view, err := s.Evaluate(ctx, kind)
	if err != nil {
		return nil, err
	}
	return view.limited(limit), nil
}

// ScoreRecord scores one stored record and keeps a snapshot of the result
func (s *Service) ScoreRecord(ctx context.Context, id string) (*scoring.ScoredRecord, error) {
	stored, err := s.repo.GetRecord(ctx, id)
	if errors.Is(err, database.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("record", id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load record", err)
	}

	start := time.Now()
	res, hit, err := s.results.Score(s.engine.Load(), stored.Record)
	if err != nil {
		return nil, err
	}
	if !hit {
		if _, err := s.repo.SaveSnapshot(ctx, id, res); err != nil {
			return nil, apperrors.NewInternalError("failed to store snapshot", err)
		}
	}

	s.metrics.RecordScore(res.NextBestAction.ID, string(res.Risk.Tier))
	s.logger.ScoringLogger(id, res.Composite, string(res.Risk.Tier), res.NextBestAction.ID, time.Since(start), hit)

	return &scoring.ScoredRecord{Record: stored.Record, Result: res}, nil
}

// RecordChanged drops the cached view of the collection a record belongs to
func (s *Service) RecordChanged(kind types.Kind) {
	if kind == "" {
		kind = types.KindLead
	}
	s.views.Invalidate(kind)
}

// Reconfigure validates cfg and swaps in a new engine. On error the current
// engine stays in use.
func (s *Service) Reconfigure(cfg scoring.Config) (*scoring.Engine, error) {
	current := s.engine.Load()
	next, err := current.Reconfigure(cfg)
	if err != nil {
		s.metrics.RecordReconfiguration(false)
		s.logger.ConfigLogger("rejected", current.Version(), current.Version())
		return nil, err
	}

	s.engine.Store(next)
	s.views.InvalidateAll()
	pruned := s.results.Prune(next.Version())

	s.metrics.RecordReconfiguration(true)
	s.logger.ConfigLogger("applied", current.Version(), next.Version())
	s.logger.CacheLogger("prune", next.Version(), false, pruned)

	return next, nil
}

// RefreshAll re-evaluates every collection kind
func (s *Service) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, kind := range types.Kinds() {
		if _, err := s.Evaluate(ctx, kind); err != nil {
			s.logger.Error("Failed to refresh queue", "kind", kind, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// StartAutoRefresh re-evaluates all queues every interval until Stop is
// called or ctx ends. Calling it while a refresh loop runs is a no-op.
func (s *Service) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	go func(stop, stopped chan struct{}) {
		defer close(stopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				s.logger.Debug("Auto-refreshing queues")
				_ = s.RefreshAll(ctx)
			}
		}
	}(s.stop, s.stopped)
}

// Stop ends the refresh loop and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

// GetCacheStats returns view and result cache statistics
func (s *Service) GetCacheStats() map[string]interface{} {
	return map[string]interface{}{
		"views":   s.views.GetStats(),
		"results": s.results.Size(),
	}
}

// Close stops background work and releases the caches
func (s *Service) Close() {
	s.Stop()
	s.views.Close()
	s.results.Close()
}

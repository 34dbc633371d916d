// Package service ties the store, the reconciler and the refresh pipeline
// together and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	refreshqueue "github.com/okian/judgeboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/judgeboard/internal/adapters/mq/worker"
	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/app/reconcile"
	"github.com/okian/judgeboard/internal/domain/dedupe"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/types"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Stats describes the running service.
type Stats struct {
	Started         bool                    `json:"started"`
	Sources         []model.Source          `json:"sources"`
	Workers         int                     `json:"workers"`
	QueueCapacity   int                     `json:"queue_capacity"`
	QueueLength     int                     `json:"queue_length"`
	PendingRefresh  int64                   `json:"pending_refreshes"`
	LeaderboardSize int                     `json:"leaderboard_size"`
	RefreshInterval string                  `json:"refresh_interval"`
	CycleRunning    bool                    `json:"cycle_running"`
	LastCycle       *reconcile.CycleSummary `json:"last_cycle,omitempty"`
}

// Service implements the API dependencies for the judgeboard system.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	reconciler *reconcile.Reconciler
	deduper    dedupe.Deduper
	queue      refreshqueue.Queue
	pool       *workerpool.Pool

	workerCount     int
	queueSize       int
	refreshInterval time.Duration
	jobTimeout      time.Duration

	started     bool
	cancelPool  context.CancelFunc
	cancelSched context.CancelFunc
	wg          sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds pending refresh jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRefreshInterval schedules a cycle every d. Zero disables scheduling.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithJobTimeout bounds one single-member refresh.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a service over store and reconciler.
func New(store repository.Store, reconciler *reconcile.Reconciler, opts ...Option) *Service {
	s := &Service{
		store:       store,
		reconciler:  reconciler,
		workerCount: 4,
		queueSize:   1024,
		jobTimeout:  time.Minute,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the refresh workers and the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting judgeboard service...")

	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	schedCtx, cancelSched := context.WithCancel(poolCtx)
	s.cancelPool, s.cancelSched = cancelPool, cancelSched

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.queueSize + s.workerCount))
	s.queue = refreshqueue.NewInMemoryQueue(refreshqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s,
		workerpool.WithLogger(s.logger.Named("worker-pool")),
		workerpool.WithJobTimeout(s.jobTimeout))
	s.pool.Start(poolCtx)

	if s.refreshInterval > 0 {
		s.wg.Add(1)
		go s.schedule(schedCtx)
	}

	s.started = true
	s.logger.Info(ctx, "judgeboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("refresh_interval", s.refreshInterval),
		logger.Any("sources", s.reconciler.Sources()),
	)
	return nil
}

// Stop halts the scheduler, drains the refresh queue and waits for workers.
// A scheduled cycle that is running when Stop is called starts no new members.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping judgeboard service...")
	s.cancelSched()
	s.wg.Wait()
	err := s.pool.Shutdown(ctx)
	s.cancelPool()

	s.started = false
	s.logger.Info(ctx, "judgeboard service stopped")
	return err
}

// schedule runs a cycle immediately and then every refresh interval.
func (s *Service) schedule(ctx context.Context) {
	defer s.wg.Done()
	log := s.logger.Named("scheduler")

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		if _, err := s.reconciler.RunCycle(ctx); err != nil {
			if errors.Is(err, reconcile.ErrCycleInProgress) {
				log.Debug(ctx, "scheduled cycle skipped, another is running")
			} else {
				log.Error(ctx, "scheduled cycle failed", logger.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle runs one reconciliation cycle synchronously.
func (s *Service) RunCycle(ctx context.Context) (reconcile.CycleSummary, error) {
	return s.reconciler.RunCycle(ctx)
}

func refreshKey(memberID int64) string {
	return "member:" + strconv.FormatInt(memberID, 10)
}

// RequestRefresh queues a single-member refresh. While a refresh for the
// member is pending, further requests coalesce into it and report
// coalesced=true.
func (s *Service) RequestRefresh(ctx context.Context, memberID int64) (job model.RefreshJob, coalesced bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.RefreshJob{}, false, ErrNotStarted
	}
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		return model.RefreshJob{}, false, err
	}

	key := refreshKey(memberID)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordRefreshCoalesced()
		return model.RefreshJob{MemberID: memberID}, true, nil
	}

	job = model.RefreshJob{ID: uuid.NewString(), MemberID: memberID, EnqueuedAt: time.Now().UTC()}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, key)
		if errors.Is(err, refreshqueue.ErrFull) {
			return model.RefreshJob{}, false, fmt.Errorf("%w: %w", ErrRefreshBacklog, err)
		}
		return model.RefreshJob{}, false, err
	}
	s.logger.Debug(ctx, "refresh queued",
		logger.String("job_id", job.ID),
		logger.Int64("member_id", memberID))
	return job, false, nil
}

// HandleRefresh implements the worker handler: reconcile the job's member.
func (s *Service) HandleRefresh(ctx context.Context, job model.RefreshJob) error {
	// Release first so a request arriving mid-refresh schedules a new one.
	s.deduper.Unrecord(ctx, refreshKey(job.MemberID))

	roster, err := s.store.ListRoster(ctx)
	if err != nil {
		return fmt.Errorf("list roster: %w", err)
	}
	for _, rm := range roster {
		if rm.MemberID != job.MemberID {
			continue
		}
		out := s.reconciler.ReconcileMember(ctx, rm)
		if out.Status == reconcile.MemberFailed {
			return out.Err
		}
		return nil
	}
	return fmt.Errorf("member %d: %w", job.MemberID, repository.ErrNotFound)
}

// TopN returns the top-N leaderboard rows.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.store.TopN(ctx, n)
}

// Rank returns one member's leaderboard row with its rank.
func (s *Service) Rank(ctx context.Context, memberID int64) (types.Entry, error) {
	return s.store.Rank(ctx, memberID)
}

// Profiles returns the stored snapshots of a member.
func (s *Service) Profiles(ctx context.Context, memberID int64) (types.Profiles, error) {
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		return types.Profiles{}, err
	}
	out := types.Profiles{MemberID: memberID}
	for _, src := range model.Sources {
		p, err := s.store.GetProfile(ctx, memberID, src)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return types.Profiles{}, err
		}
		switch v := p.(type) {
		case model.LeetCodeStats:
			out.LeetCode = &v
		case model.CodeforcesStats:
			out.Codeforces = &v
		}
	}
	return out, nil
}

// AddMember registers a member and the handles it uses on each source.
func (s *Service) AddMember(ctx context.Context, m model.Member, handles map[model.Source]string) (int64, error) {
	id, err := s.store.AddMember(ctx, m, handles)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "member added", logger.Int64("member_id", id))
	return id, nil
}

// SetHandle updates the handle a member uses on source.
func (s *Service) SetHandle(ctx context.Context, memberID int64, source model.Source, handle string) error {
	return s.store.SetHandle(ctx, memberID, source, handle)
}

// AddAttendance records a lab check-in.
func (s *Service) AddAttendance(ctx context.Context, a model.Attendance) error {
	return s.store.AddAttendance(ctx, a)
}

// Ready reports whether storage is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started:         s.started,
		Sources:         s.reconciler.Sources(),
		Workers:         s.workerCount,
		QueueCapacity:   s.queueSize,
		RefreshInterval: s.refreshInterval.String(),
		CycleRunning:    s.reconciler.Running(),
	}
	if last, ok := s.reconciler.LastSummary(); ok {
		st.LastCycle = &last
	}
	if n, err := s.store.CountLeaderboard(ctx); err == nil {
		st.LeaderboardSize = n
		metrics.UpdateLeaderboardSize(n)
	}
	if s.started {
		st.QueueLength = s.queue.Len()
		st.PendingRefresh = s.deduper.Size()
		metrics.UpdateQueueSize(st.QueueLength)
	}
	return st
}

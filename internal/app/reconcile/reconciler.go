// Package reconcile drives leaderboard reconciliation cycles: fetch every
// member's statistics from every source, persist fresh snapshots, fall back
// to the last stored snapshot when a source fails, and write one unified
// leaderboard row per member.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/judgeboard/internal/adapters/fetcher"
	"github.com/okian/judgeboard/internal/adapters/repository"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/scoring"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxInFlight    = 8
	defaultFetchTimeout   = 10 * time.Second
	defaultStorageTimeout = 5 * time.Second
)

// Store is the storage capability the reconciler needs.
type Store interface {
	Ping(ctx context.Context) error
	ListRoster(ctx context.Context) ([]model.RosterMember, error)
	UpsertProfile(ctx context.Context, p model.Profile) error
	GetProfile(ctx context.Context, memberID int64, source model.Source) (model.Profile, error)
	UpsertLeaderboardEntry(ctx context.Context, e model.LeaderboardEntry) error
	CountLeaderboard(ctx context.Context) (int, error)
}

// Reconciler runs reconciliation cycles. It is safe for concurrent use; at
// most one cycle runs at a time.
type Reconciler struct {
	store    Store
	fetchers map[model.Source]fetcher.Fetcher
	scorer   *scoring.Scorer

	maxInFlight    int
	fetchTimeout   time.Duration
	storageTimeout time.Duration

	log logger.Logger
	now func() time.Time

	running atomic.Bool
	lastMu  sync.RWMutex
	last    *CycleSummary
}

// New creates a reconciler over store.
func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:          store,
		fetchers:       make(map[model.Source]fetcher.Fetcher),
		scorer:         scoring.NewScorer(),
		maxInFlight:    defaultMaxInFlight,
		fetchTimeout:   defaultFetchTimeout,
		storageTimeout: defaultStorageTimeout,
		log:            logger.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sources lists the configured sources in a stable order.
func (r *Reconciler) Sources() []model.Source {
	out := make([]model.Source, 0, len(r.fetchers))
	for s := range r.fetchers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Running reports whether a cycle is in progress.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// LastSummary returns the summary of the most recent completed cycle.
func (r *Reconciler) LastSummary() (CycleSummary, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return CycleSummary{}, false
	}
	return *r.last, true
}

// RunCycle reconciles every roster member once. Cancelling ctx stops new
// members from starting; members already started run to completion. The
// returned error is non-nil only when the cycle could not start: the roster
// could not be listed, storage is unreachable or another cycle is running.
func (r *Reconciler) RunCycle(ctx context.Context) (CycleSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return CycleSummary{}, ErrCycleInProgress
	}
	defer r.running.Store(false)
	metrics.SetCycleInProgress(true)
	defer metrics.SetCycleInProgress(false)

	sum := CycleSummary{
		ID:             uuid.NewString(),
		StartedAt:      r.now(),
		SourceFailures: make(map[model.Source]int),
	}
	log := r.log.Named("cycle")

	roster, err := r.listRoster(ctx)
	if err != nil {
		metrics.RecordCycle("aborted", msSince(sum.StartedAt, r.now()))
		log.Error(ctx, "roster listing failed", logger.String("cycle_id", sum.ID), logger.Error(err))
		return sum, fmt.Errorf("%w: %w", ErrRosterUnavailable, err)
	}
	if err := r.ping(ctx); err != nil {
		metrics.RecordCycle("aborted", msSince(sum.StartedAt, r.now()))
		log.Error(ctx, "storage unreachable", logger.String("cycle_id", sum.ID), logger.Error(err))
		return sum, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	log.Info(ctx, "cycle started",
		logger.String("cycle_id", sum.ID),
		logger.Int("members", len(roster)),
		logger.Int("max_in_flight", r.maxInFlight))

	outcomes := make([]MemberOutcome, len(roster))
	ran := make([]bool, len(roster))
	var g errgroup.Group
	g.SetLimit(r.maxInFlight)
	for i, rm := range roster {
		if ctx.Err() != nil {
			break
		}
		// g.Go blocks while the pool is full, so cancellation is checked
		// again once a slot frees up.
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ran[i] = true
			outcomes[i] = r.ReconcileMember(ctx, rm)
			return nil
		})
	}
	_ = g.Wait()

	sum.Members = make([]MemberOutcome, 0, len(roster))
	for i, o := range outcomes {
		if ran[i] {
			sum.Members = append(sum.Members, o)
		}
	}
	sum.Cancelled = len(sum.Members) < len(roster)
	for _, o := range sum.Members {
		switch o.Status {
		case MemberScored:
			sum.Scored++
		case MemberSkipped:
			sum.Skipped++
		case MemberFailed:
			sum.Failed++
		}
		for src, res := range o.Sources {
			if res.FetchErr != nil {
				sum.SourceFailures[src]++
			}
		}
	}
	sum.FinishedAt = r.now()

	result := "completed"
	if sum.Cancelled {
		result = "cancelled"
	}
	metrics.RecordCycle(result, msSince(sum.StartedAt, sum.FinishedAt))
	r.refreshSizeGauge(ctx)

	log.Info(ctx, "cycle finished",
		logger.String("cycle_id", sum.ID),
		logger.String("result", result),
		logger.Int("scored", sum.Scored),
		logger.Int("skipped", sum.Skipped),
		logger.Int("failed", sum.Failed),
		logger.Any("source_failures", sum.SourceFailures),
		logger.Duration("duration", sum.Duration()))

	r.lastMu.Lock()
	stored := sum
	r.last = &stored
	r.lastMu.Unlock()
	return sum, nil
}

// ReconcileMember refreshes one member: every source is fetched
// concurrently, then at most one leaderboard row is written. Once started it
// ignores cancellation of ctx and relies on per-operation timeouts instead.
func (r *Reconciler) ReconcileMember(ctx context.Context, rm model.RosterMember) MemberOutcome {
	ctx = context.WithoutCancel(ctx)
	out := MemberOutcome{MemberID: rm.MemberID, Sources: make(map[model.Source]SourceResult, len(r.fetchers))}

	var (
		mu     sync.Mutex
		scores = make(map[model.Source]int, len(r.fetchers))
		g      errgroup.Group
	)
	for src, f := range r.fetchers {
		g.Go(func() error {
			res, err := r.reconcileSource(ctx, rm, src, f)
			mu.Lock()
			defer mu.Unlock()
			out.Sources[src] = res
			if err == nil && res.HasScore() {
				scores[src] = res.Score
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return r.finish(ctx, out, MemberFailed, err)
	}

	unified, err := scoring.Combine(scores)
	if errors.Is(err, scoring.ErrNoScores) {
		return r.finish(ctx, out, MemberSkipped, ErrNoData)
	}
	if err != nil {
		return r.finish(ctx, out, MemberFailed, err)
	}

	entry := model.LeaderboardEntry{MemberID: rm.MemberID, UnifiedScore: unified, LastUpdated: r.now().UTC()}
	for src, v := range scores {
		entry.SetSourceScore(src, v)
	}
	sctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	err = r.store.UpsertLeaderboardEntry(sctx, entry)
	cancel()
	if err != nil {
		return r.finish(ctx, out, MemberFailed, fmt.Errorf("write leaderboard row: %w", err))
	}
	metrics.RecordLeaderboardUpsert()
	out.Unified = unified
	return r.finish(ctx, out, MemberScored, nil)
}

// reconcileSource produces one source's contribution. A non-nil error means
// storage failed and the member cannot be written this cycle.
func (r *Reconciler) reconcileSource(ctx context.Context, rm model.RosterMember, src model.Source, f fetcher.Fetcher) (SourceResult, error) {
	var fetchErr error
	if handle := rm.Handle(src); handle != "" {
		fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		start := time.Now()
		profile, err := f.Fetch(fctx, rm.MemberID, handle)
		cancel()
		metrics.RecordFetch(string(src), msSince(start, time.Now()))

		if err == nil {
			return r.persistFresh(ctx, src, profile)
		}
		fetchErr = err
		metrics.RecordFetchError(string(src), string(fetcher.KindOf(err)))
		r.log.Warn(ctx, "fetch failed, using stored snapshot if any",
			logger.Int64("member_id", rm.MemberID),
			logger.String("source", string(src)),
			logger.String("kind", string(fetcher.KindOf(err))),
			logger.Error(err))
	}

	sctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	stored, err := r.store.GetProfile(sctx, rm.MemberID, src)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordAbsent(string(src))
		return SourceResult{State: SourceAbsent, FetchErr: fetchErr}, nil
	}
	if err != nil {
		return SourceResult{State: SourceAbsent, FetchErr: fetchErr}, fmt.Errorf("load stored %s profile: %w", src, err)
	}
	score, err := r.scorer.ScoreOf(stored)
	if err != nil {
		return SourceResult{State: SourceAbsent, FetchErr: fetchErr}, fmt.Errorf("score stored %s profile: %w", src, err)
	}
	metrics.RecordFallback(string(src))
	return SourceResult{State: SourceFallback, Score: score, FetchErr: fetchErr}, nil
}

func (r *Reconciler) persistFresh(ctx context.Context, src model.Source, p model.Profile) (SourceResult, error) {
	score, err := r.scorer.ScoreOf(p)
	if err != nil {
		return SourceResult{State: SourceAbsent}, fmt.Errorf("score fresh %s profile: %w", src, err)
	}
	sctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	err = r.store.UpsertProfile(sctx, p)
	cancel()
	if err != nil {
		return SourceResult{State: SourceFetched, Score: score}, fmt.Errorf("persist %s profile: %w", src, err)
	}
	return SourceResult{State: SourceFetched, Score: score}, nil
}

func (r *Reconciler) finish(ctx context.Context, out MemberOutcome, status MemberStatus, err error) MemberOutcome {
	out.Status = status
	out.Err = err
	metrics.RecordMemberOutcome(string(status))

	fields := []logger.Field{
		logger.Int64("member_id", out.MemberID),
		logger.String("status", string(status)),
		logger.Int("unified_score", out.Unified),
	}
	switch status {
	case MemberFailed:
		r.log.Error(ctx, "member reconciliation failed", append(fields, logger.Error(err))...)
	case MemberSkipped:
		r.log.Info(ctx, "member skipped, no data", fields...)
	default:
		r.log.Debug(ctx, "member reconciled", fields...)
	}
	return out
}

func (r *Reconciler) listRoster(ctx context.Context) ([]model.RosterMember, error) {
	sctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	defer cancel()
	return r.store.ListRoster(sctx)
}

func (r *Reconciler) ping(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	defer cancel()
	return r.store.Ping(sctx)
}

func (r *Reconciler) refreshSizeGauge(ctx context.Context) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storageTimeout)
	defer cancel()
	if n, err := r.store.CountLeaderboard(sctx); err == nil {
		metrics.UpdateLeaderboardSize(n)
	}
}

func msSince(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000
}

package reconcile

import (
	"time"

	"github.com/okian/judgeboard/internal/adapters/fetcher"
	"github.com/okian/judgeboard/internal/domain/scoring"
	"github.com/okian/judgeboard/pkg/logger"
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithFetchers registers the fetchers to query, one per source. A later
// fetcher for the same source replaces an earlier one.
func WithFetchers(fs ...fetcher.Fetcher) Option {
	return func(r *Reconciler) {
		for _, f := range fs {
			if f != nil {
				r.fetchers[f.Source()] = f
			}
		}
	}
}

// WithScorer replaces the default scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(r *Reconciler) {
		if s != nil {
			r.scorer = s
		}
	}
}

// WithMaxInFlight bounds how many members are reconciled concurrently.
func WithMaxInFlight(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxInFlight = n
		}
	}
}

// WithFetchTimeout bounds each fetch call.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithStorageTimeout bounds each storage call made for a member.
func WithStorageTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.storageTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

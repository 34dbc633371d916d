// Package worker runs queued refresh jobs on a fixed pool of goroutines.
package worker

import (
	"time"

	"github.com/okian/judgeboard/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithLogger sets a custom logger for the pool and its workers.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithJobTimeout bounds how long one job may run.
func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.jobTimeout = d
		}
	}
}

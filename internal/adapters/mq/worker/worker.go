package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/judgeboard/internal/adapters/mq/queue"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

const (
	defaultJobTimeout   = time.Minute
	poolShutdownTimeout = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Handler processes one refresh job.
type Handler interface {
	HandleRefresh(ctx context.Context, job model.RefreshJob) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job model.RefreshJob) error

// HandleRefresh implements Handler.
func (f HandlerFunc) HandleRefresh(ctx context.Context, job model.RefreshJob) error {
	return f(ctx, job)
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	size       int
	queue      Queue
	handler    Handler
	jobTimeout time.Duration
	logger     logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool creates a pool of workerCount workers. A non-positive count
// defaults to the number of CPUs.
func NewPool(workerCount int, q Queue, h Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		size:       workerCount,
		queue:      q,
		handler:    h,
		jobTimeout: defaultJobTimeout,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Start launches the workers. They stop when ctx ends, when the queue is
// closed and drained, or on Shutdown.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	jobs := p.queue.Dequeue(ctx)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, p.logger.Named("worker-"+strconv.Itoa(i)), jobs)
	}
	metrics.UpdateWorkerCount(p.size)
}

func (p *Pool) run(ctx context.Context, log logger.Logger, jobs <-chan queue.Job) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := p.process(ctx, j); err != nil {
				log.Error(ctx, "refresh job failed",
					logger.String("job_id", j.ID),
					logger.Int64("member_id", j.MemberID),
					logger.Error(err))
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, j queue.Job) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Microseconds()) / 1000)
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh job %s panicked: %v", j.ID, r)
		}
	}()

	jctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()
	return p.handler.HandleRefresh(jctx, j)
}

// Shutdown closes the queue when it supports it, lets workers drain what is
// already queued, and waits until they exit or ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker pool shutdown timed out")
			err = fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
		if p.cancel != nil {
			p.cancel()
		}
		metrics.UpdateWorkerCount(0)
	})
	return err
}

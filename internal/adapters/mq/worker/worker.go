// Package worker runs render jobs from the queue on a fixed pool of
// goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/perfreport/internal/adapters/mq/queue"
	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/pkg/logger"
	"github.com/okian/perfreport/pkg/metrics"
)

const (
	defaultRenderTimeout = 30 * time.Second
	poolShutdownTimeout  = 30 * time.Second
)

// Renderer prints one athlete report.
type Renderer interface {
	Athlete(ctx context.Context, res *assembler.Result, ath assembler.Athlete) (report.Report, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue closes or it is stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue         Queue
	renderer      Renderer
	name          string
	renderTimeout time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, renderer Renderer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:         q,
		renderer:      renderer,
		name:          "worker",
		renderTimeout: defaultRenderTimeout,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
		logger:        logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process renders one job and replies. Jobs whose requester left are
// answered with an error without rendering.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	out := queue.Outcome{JobID: job.ID}
	defer func() {
		select {
		case job.Reply <- out:
		default:
			w.logger.Warn(ctx, "dropping render outcome", logger.String("job_id", job.ID.String()))
		}
	}()

	if job.Cancelled() {
		out.Err = context.Canceled
		return
	}

	metrics.AddWorkerActive(1)
	defer metrics.AddWorkerActive(-1)

	rctx, cancel := context.WithTimeout(ctx, w.renderTimeout)
	defer cancel()
	if job.Done != nil {
		go func() {
			select {
			case <-job.Done:
				cancel()
			case <-rctx.Done():
			}
		}()
	}

	start := time.Now()
	rep, err := w.renderer.Athlete(rctx, job.Result, job.Athlete)
	if err != nil {
		metrics.RecordRenderError(job.Kind)
		metrics.RecordErrorByComponent("worker", "render_error")
		w.logger.Error(ctx, "render failed",
			logger.String("job_id", job.ID.String()),
			logger.Int("row", job.Athlete.Row),
			logger.Error(err),
		)
		out.Err = fmt.Errorf("render job %s: %w", job.ID, err)
		return
	}
	metrics.RecordReportGenerated(job.Kind, float64(time.Since(start).Milliseconds()))
	out.Report = rep
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates workerCount workers reading from q. A count below one
// means one worker per CPU.
func NewPool(workerCount int, q Queue, renderer Renderer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := make([]Option, 0, len(opts)+1)
		wopts = append(wopts, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, renderer, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-shutdownCtx.Done():
		for _, w := range p.workers {
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
}

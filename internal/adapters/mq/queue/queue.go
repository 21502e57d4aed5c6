// Package queue holds render jobs between the request handlers that create
// them and the worker pool that prints them. It is an in-memory bounded
// queue; a full queue rejects work instead of blocking the caller.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/pkg/metrics"
)

const defaultQueueCapacity = 1000

// Job asks for one athlete report.
type Job struct {
	ID      uuid.UUID
	Kind    string
	Result  *assembler.Result
	Athlete assembler.Athlete
	// Done is closed when the requester no longer wants the outcome.
	Done <-chan struct{}
	// Reply must have room for the outcome; workers never block on it.
	Reply      chan<- Outcome
	EnqueuedAt time.Time
}

// Outcome is the answer to a Job.
type Outcome struct {
	JobID  uuid.UUID
	Report report.Report
	Err    error
}

// NewJob builds a job with a fresh id.
func NewJob(ctx context.Context, kind string, res *assembler.Result, ath assembler.Athlete, reply chan<- Outcome) Job {
	return Job{
		ID:         uuid.New(),
		Kind:       kind,
		Result:     res,
		Athlete:    ath,
		Done:       ctx.Done(),
		Reply:      reply,
		EnqueuedAt: time.Now(),
	}
}

// Cancelled reports whether the requester has gone away.
func (j Job) Cancelled() bool {
	if j.Done == nil {
		return false
	}
	select {
	case <-j.Done:
		return true
	default:
		return false
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool
	// EnqueueAll adds every job or none of them.
	EnqueueAll(ctx context.Context, jobs []Job) bool
	// Dequeue returns a channel of jobs that is closed with the queue.
	Dequeue(ctx context.Context) <-chan Job
	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// EnqueueAll adds jobs only when the queue has room for all of them.
// Holding the write lock keeps other producers out, and consumers only free
// room, so the sends below never block.
func (q *InMemoryQueue) EnqueueAll(ctx context.Context, jobs []Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}
	if cap(q.jobs)-len(q.jobs) < len(jobs) {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}

	for _, j := range jobs { //nolint:gocritic // rangeValCopy: jobs are sent by value
		q.jobs <- j
		metrics.RecordQueueEnqueue()
	}
	metrics.UpdateQueueSize(len(q.jobs))
	return true
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Capacity returns the maximum number of pending jobs.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting jobs; queued jobs are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

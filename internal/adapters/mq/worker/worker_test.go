package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/perfreport/internal/adapters/mq/queue"
	"github.com/okian/perfreport/internal/adapters/mq/worker"
	"github.com/okian/perfreport/internal/adapters/report"
	"github.com/okian/perfreport/internal/domain/assembler"
	logging "github.com/okian/perfreport/pkg/logger"
)

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

type mockRenderer struct {
	mu       sync.Mutex
	rendered []string
	fail     map[string]error
	delay    time.Duration
}

func newMockRenderer() *mockRenderer {
	return &mockRenderer{fail: make(map[string]error)}
}

func (m *mockRenderer) Athlete(ctx context.Context, _ *assembler.Result, ath assembler.Athlete) (report.Report, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return report.Report{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[ath.Name]; ok {
		return report.Report{}, err
	}
	m.rendered = append(m.rendered, ath.Name)
	return report.Report{Row: ath.Row, Athlete: ath.Name, Filename: report.Filename(ath.Name), PDF: []byte("%PDF")}, nil
}

func (m *mockRenderer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rendered)
}

func job(ctx context.Context, name string, reply chan queue.Outcome) queue.Job {
	return queue.NewJob(ctx, "single", &assembler.Result{}, assembler.Athlete{Name: name}, reply)
}

func waitOutcome(reply <-chan queue.Outcome) (queue.Outcome, bool) {
	select {
	case out := <-reply:
		return out, true
	case <-time.After(2 * time.Second):
		return queue.Outcome{}, false
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		r := newMockRenderer()
		w := worker.NewInMemoryWorker(q, r, worker.WithName("test-worker"), worker.WithRenderTimeout(time.Second))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is queued", func() {
			reply := make(chan queue.Outcome, 1)
			j := job(context.Background(), "Ana Silva", reply)
			q.jobs <- j

			convey.Convey("Then the outcome carries the report", func() {
				out, ok := waitOutcome(reply)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(out.Err, convey.ShouldBeNil)
				convey.So(out.JobID, convey.ShouldEqual, j.ID)
				convey.So(out.Report.Filename, convey.ShouldEqual, "Ana_Silva_performance_report.pdf")
			})
		})

		convey.Convey("When rendering fails", func() {
			r.fail["Broken"] = errors.New("chromium crashed")
			reply := make(chan queue.Outcome, 1)
			q.jobs <- job(context.Background(), "Broken", reply)

			convey.Convey("Then the error is returned to the requester", func() {
				out, ok := waitOutcome(reply)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(out.Err, convey.ShouldNotBeNil)
				convey.So(out.Err.Error(), convey.ShouldContainSubstring, "chromium crashed")
			})
		})

		convey.Convey("When the requester already left", func() {
			reqCtx, reqCancel := context.WithCancel(context.Background())
			reqCancel()
			reply := make(chan queue.Outcome, 1)
			q.jobs <- job(reqCtx, "Gone", reply)

			convey.Convey("Then nothing is rendered", func() {
				out, ok := waitOutcome(reply)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(errors.Is(out.Err, context.Canceled), convey.ShouldBeTrue)
				convey.So(r.count(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shutting down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPoolDrainsQueueWithoutLeaks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	_ = logging.Init()

	q := queue.NewInMemoryQueue(queue.WithCapacity(32))
	r := newMockRenderer()
	r.delay = 5 * time.Millisecond
	pool := worker.NewPool(4, q, r)
	if pool.Size() != 4 {
		t.Fatalf("expected 4 workers, got %d", pool.Size())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	const jobs = 20
	reply := make(chan queue.Outcome, jobs)
	for i := 0; i < jobs; i++ {
		if !q.Enqueue(ctx, job(ctx, "athlete", reply)) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	for i := 0; i < jobs; i++ {
		out, ok := waitOutcome(reply)
		if !ok {
			t.Fatalf("timed out waiting for outcome %d", i)
		}
		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
	}

	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if r.count() != jobs {
		t.Errorf("expected %d renders, got %d", jobs, r.count())
	}
}

func TestPoolDefaultsToCPUCount(t *testing.T) {
	_ = logging.Init()
	q := queue.NewInMemoryQueue()
	defer func() { _ = q.Close() }()
	if worker.NewPool(0, q, newMockRenderer()).Size() < 1 {
		t.Error("expected at least one worker")
	}
}

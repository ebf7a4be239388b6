package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"ledgerhooks/pkg/queue"
)

// JobExecutor runs one job to completion. The production implementation is
// *Dispatcher.
type JobExecutor interface {
	Execute(ctx context.Context, job queue.Job) error
}

// Worker is the single consumer of the priority queue. It polls the lanes in
// priority order, executes one job at a time, and records the outcome in the
// completed or failed sink. A handler error never stops the loop.
type Worker struct {
	queue        *queue.PriorityQueue
	executor     JobExecutor
	pollInterval time.Duration
	errorBackoff time.Duration
	logger       *log.Logger
	listener     Listener
}

// Option configures a Worker.
type Option func(*Worker)

// WithPollInterval sets the sleep between polls when all lanes are empty.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.pollInterval = d }
}

// WithErrorBackoff sets the sleep after a backend failure.
func WithErrorBackoff(d time.Duration) Option {
	return func(w *Worker) { w.errorBackoff = d }
}

// WithLogger sets the worker logger.
func WithLogger(logger *log.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithListener sets lifecycle callbacks.
func WithListener(listener Listener) Option {
	return func(w *Worker) { w.listener = listener }
}

// New creates a worker over the given queue and executor.
func New(q *queue.PriorityQueue, executor JobExecutor, opts ...Option) *Worker {
	w := &Worker{
		queue:        q,
		executor:     executor,
		pollInterval: 5 * time.Second,
		errorBackoff: 10 * time.Second,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.listener.start(ctx)
	defer w.listener.exit(ctx)
	w.logger.Printf("worker started queue=%s poll=%s backoff=%s", w.queue.Name(), w.pollInterval, w.errorBackoff)

	for {
		if ctx.Err() != nil {
			w.logger.Printf("worker stopping queue=%s", w.queue.Name())
			return nil
		}
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Printf("dequeue failed, backing off err=%v", err)
			w.listener.errored(ctx, err)
			if !w.sleep(ctx, w.errorBackoff) {
				return nil
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx, w.pollInterval) {
				return nil
			}
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	w.listener.jobStart(ctx, job)
	err := w.execute(ctx, *job)
	w.listener.jobFinish(ctx, job, err)
	if err != nil {
		w.logger.Printf("job failed id=%s type=%s attempts=%d err=%v", job.ID, job.Type, job.Attempts, err)
		w.recordFailure(ctx, *job, err)
		return
	}
	w.logger.Printf("job completed id=%s type=%s", job.ID, job.Type)
	if completeErr := w.queue.Complete(ctx, job.ID); completeErr != nil {
		w.logger.Printf("completed sink write failed id=%s err=%v", job.ID, completeErr)
	}
}

// recordFailure writes the job to the failed sink, retrying once after the
// error backoff if the backend drops the first write. A job that cannot be
// recorded after the retry is logged in full so it can be re-enqueued by hand.
func (w *Worker) recordFailure(ctx context.Context, job queue.Job, jobErr error) {
	failErr := w.queue.Fail(ctx, job, jobErr.Error())
	if failErr == nil {
		return
	}
	w.logger.Printf("failed sink write failed, retrying id=%s err=%v", job.ID, failErr)
	w.sleep(ctx, w.errorBackoff)
	if failErr = w.queue.Fail(ctx, job, jobErr.Error()); failErr == nil {
		return
	}
	raw, _ := json.Marshal(job)
	w.logger.Printf("dropping failed job after sink retry id=%s err=%v job=%s", job.ID, failErr, raw)
}

// execute shields the loop from handler panics; a panicking job is recorded
// as failed like any other error.
func (w *Worker) execute(ctx context.Context, job queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("job handler panicked")
			w.logger.Printf("job panic id=%s type=%s recovered=%v", job.ID, job.Type, r)
		}
	}()
	return w.executor.Execute(ctx, job)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

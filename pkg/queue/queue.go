package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrBackendUnavailable signals that the queue backend could not be reached.
// Enqueue degrades to synchronous execution instead of surfacing it when a
// fallback executor is configured; Dequeue callers should back off on it.
var ErrBackendUnavailable = errors.New("queue: backend unavailable")

// Executor runs a job outside the worker loop. The priority queue invokes it
// inline when the backend is down so no job is ever dropped.
type Executor func(ctx context.Context, job Job) error

// PriorityQueue is a three-lane job queue over a list-store backend, with
// completed and failed sinks.
type PriorityQueue struct {
	name      string
	backend   Backend
	fallback  Executor
	logger    *log.Logger
	dedupeTTL time.Duration
}

// Option configures a PriorityQueue.
type Option func(*PriorityQueue)

// WithFallback sets the executor used when the backend is unreachable.
func WithFallback(exec Executor) Option {
	return func(q *PriorityQueue) { q.fallback = exec }
}

// WithLogger sets the queue logger.
func WithLogger(logger *log.Logger) Option {
	return func(q *PriorityQueue) { q.logger = logger }
}

// WithDedupeTTL enables best-effort webhook dedupe keys with the given TTL.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(q *PriorityQueue) { q.dedupeTTL = ttl }
}

// New creates a priority queue named name over the given backend.
func New(name string, backend Backend, opts ...Option) *PriorityQueue {
	if name == "" {
		name = "accounting"
	}
	q := &PriorityQueue{
		name:    name,
		backend: backend,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name returns the queue name.
func (q *PriorityQueue) Name() string { return q.name }

// Ping reports whether the queue backend is reachable.
func (q *PriorityQueue) Ping(ctx context.Context) error {
	return q.backend.Ping(ctx)
}

func (q *PriorityQueue) laneKey(p Priority) string {
	switch NormalizePriority(p) {
	case PriorityHigh:
		return "queue:" + q.name + ":high"
	case PriorityLow:
		return "queue:" + q.name + ":low"
	default:
		return "queue:" + q.name
	}
}

func (q *PriorityQueue) completedKey() string { return "queue:" + q.name + ":completed" }
func (q *PriorityQueue) failedKey() string    { return "queue:" + q.name + ":failed" }
func (q *PriorityQueue) deadKey() string      { return "queue:" + q.name + ":dead" }

// Enqueue wraps the payload into a job envelope and pushes it onto the lane
// for the given priority. When the backend is unreachable the job is executed
// synchronously through the fallback executor; the caller's request absorbs
// the latency but the job is never lost.
func (q *PriorityQueue) Enqueue(ctx context.Context, jobType JobType, payload interface{}, priority Priority) (string, error) {
	job, err := NewJob(jobType, payload, priority)
	if err != nil {
		return "", err
	}
	return q.EnqueueJob(ctx, job)
}

// EnqueueJob pushes an existing envelope onto its lane. Used by Enqueue and
// by the retry manager when re-queueing failed jobs.
func (q *PriorityQueue) EnqueueJob(ctx context.Context, job Job) (string, error) {
	job.Priority = NormalizePriority(job.Priority)
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	if err := q.backend.PushTail(ctx, q.laneKey(job.Priority), raw); err != nil {
		if q.fallback == nil {
			return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		q.logger.Printf("queue backend unavailable, executing inline job_id=%s type=%s err=%v", job.ID, job.Type, err)
		if execErr := q.fallback(ctx, job); execErr != nil {
			return job.ID, fmt.Errorf("inline execution failed: %w", execErr)
		}
		return job.ID, nil
	}
	return job.ID, nil
}

// Dequeue pops the next job, checking lanes strictly high, then normal, then
// low. It returns (nil, nil) when all lanes are empty and wraps backend
// failures in ErrBackendUnavailable so the worker loop can back off.
func (q *PriorityQueue) Dequeue(ctx context.Context) (*Job, error) {
	for _, priority := range []Priority{PriorityHigh, PriorityNormal, PriorityLow} {
		raw, err := q.backend.PopHead(ctx, q.laneKey(priority))
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		var job Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("decode job: %w", err)
		}
		return &job, nil
	}
	return nil, nil
}

// Complete records a finished job id in the completed sink. The sink is
// append-only and exists for operational visibility, not replay.
func (q *PriorityQueue) Complete(ctx context.Context, jobID string) error {
	return q.backend.PushTail(ctx, q.completedKey(), []byte(jobID))
}

// Fail records the job and its error in the failed sink for the retry manager.
func (q *PriorityQueue) Fail(ctx context.Context, job Job, errMsg string) error {
	record := FailedJobRecord{
		Job:      job,
		Error:    errMsg,
		FailedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode failed job record: %w", err)
	}
	return q.backend.PushTail(ctx, q.failedKey(), raw)
}

// Stats holds lane and sink sizes.
type Stats struct {
	High      int64 `json:"high"`
	Normal    int64 `json:"normal"`
	Low       int64 `json:"low"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dead      int64 `json:"dead"`
}

// Stats returns counts per lane plus sink sizes.
func (q *PriorityQueue) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, entry := range []struct {
		key string
		out *int64
	}{
		{q.laneKey(PriorityHigh), &stats.High},
		{q.laneKey(PriorityNormal), &stats.Normal},
		{q.laneKey(PriorityLow), &stats.Low},
		{q.completedKey(), &stats.Completed},
		{q.failedKey(), &stats.Failed},
		{q.deadKey(), &stats.Dead},
	} {
		count, err := q.backend.Length(ctx, entry.key)
		if err != nil {
			return Stats{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		*entry.out = count
	}
	return stats, nil
}

// Seen marks (sender, externalID) as delivered and reports whether it had
// been seen before. The check is best-effort: any backend failure reports
// "not seen" so delivery stays at-least-once. Callers that go on to fail the
// delivery must release the mark with Forget, or the sender's retry would be
// swallowed as a duplicate.
func (q *PriorityQueue) Seen(ctx context.Context, sender, externalID string) bool {
	if q.dedupeTTL <= 0 || sender == "" || externalID == "" {
		return false
	}
	fresh, err := q.backend.SetNX(ctx, q.dedupeKey(sender, externalID), []byte("1"), q.dedupeTTL)
	if err != nil {
		return false
	}
	return !fresh
}

// Forget releases the dedupe mark for (sender, externalID) so the next
// delivery of the same event is processed again. Best-effort like Seen.
func (q *PriorityQueue) Forget(ctx context.Context, sender, externalID string) {
	if q.dedupeTTL <= 0 || sender == "" || externalID == "" {
		return
	}
	if err := q.backend.Delete(ctx, q.dedupeKey(sender, externalID)); err != nil {
		q.logger.Printf("dedupe release failed sender=%s id=%s err=%v", sender, externalID, err)
	}
}

func (q *PriorityQueue) dedupeKey(sender, externalID string) string {
	return "dedupe:" + sender + ":" + externalID
}

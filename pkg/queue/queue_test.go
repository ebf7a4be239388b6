package queue

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

// brokenBackend simulates an unreachable queue backend.
type brokenBackend struct{}

var errConnRefused = errors.New("dial tcp: connection refused")

func (brokenBackend) PushTail(context.Context, string, []byte) error { return errConnRefused }
func (brokenBackend) PopHead(context.Context, string) ([]byte, error) {
	return nil, errConnRefused
}
func (brokenBackend) Length(context.Context, string) (int64, error) { return 0, errConnRefused }
func (brokenBackend) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errConnRefused
}
func (brokenBackend) Delete(context.Context, string) error { return errConnRefused }
func (brokenBackend) Ping(context.Context) error           { return errConnRefused }

func testQueue(t *testing.T, opts ...Option) *PriorityQueue {
	t.Helper()
	opts = append(opts, WithLogger(log.New(io.Discard, "", 0)))
	return New("accounting", NewMemoryBackend(), opts...)
}

func TestDequeuePriorityOrder(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)

	order := []Priority{PriorityLow, PriorityHigh, PriorityNormal, PriorityHigh}
	ids := make(map[string]Priority, len(order))
	for _, priority := range order {
		id, err := q.Enqueue(ctx, JobOrderSync, OrderSyncPayload{ExternalID: "o-1"}, priority)
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids[id] = priority
	}

	want := []Priority{PriorityHigh, PriorityHigh, PriorityNormal, PriorityLow}
	for i, expected := range want {
		job, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if job == nil {
			t.Fatalf("dequeue %d: expected a job", i)
		}
		if ids[job.ID] != expected {
			t.Fatalf("dequeue %d: got priority %q, want %q", i, ids[job.ID], expected)
		}
	}
	job, err := q.Dequeue(ctx)
	if err != nil || job != nil {
		t.Fatalf("expected empty queue, got job=%v err=%v", job, err)
	}
}

func TestLanesAreFIFO(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)

	first, _ := q.Enqueue(ctx, JobOrderSync, OrderSyncPayload{ExternalID: "a"}, PriorityNormal)
	second, _ := q.Enqueue(ctx, JobOrderSync, OrderSyncPayload{ExternalID: "b"}, PriorityNormal)

	job, err := q.Dequeue(ctx)
	if err != nil || job == nil || job.ID != first {
		t.Fatalf("expected first job, got %v err=%v", job, err)
	}
	job, err = q.Dequeue(ctx)
	if err != nil || job == nil || job.ID != second {
		t.Fatalf("expected second job, got %v err=%v", job, err)
	}
}

func TestEnqueueFallsBackToInlineExecution(t *testing.T) {
	ctx := context.Background()
	executed := 0
	q := New("accounting", brokenBackend{},
		WithLogger(log.New(io.Discard, "", 0)),
		WithFallback(func(ctx context.Context, job Job) error {
			executed++
			if job.Type != JobPaymentApplied {
				t.Fatalf("unexpected job type: %s", job.Type)
			}
			return nil
		}))

	id, err := q.Enqueue(ctx, JobPaymentApplied, PaymentPayload{OrderID: "42"}, PriorityHigh)
	if err != nil {
		t.Fatalf("enqueue with fallback: %v", err)
	}
	if id == "" {
		t.Fatalf("expected job id even in degraded mode")
	}
	if executed != 1 {
		t.Fatalf("expected inline execution, got %d", executed)
	}
}

func TestEnqueueWithoutFallbackSurfacesBackendError(t *testing.T) {
	q := New("accounting", brokenBackend{}, WithLogger(log.New(io.Discard, "", 0)))
	_, err := q.Enqueue(context.Background(), JobOrderSync, OrderSyncPayload{}, PriorityNormal)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestDequeueBackendErrorIsRetryable(t *testing.T) {
	q := New("accounting", brokenBackend{}, WithLogger(log.New(io.Discard, "", 0)))
	_, err := q.Dequeue(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestCompleteAndFailSinks(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)

	id, err := q.Enqueue(ctx, JobOrderSync, OrderSyncPayload{ExternalID: "o-1"}, PriorityNormal)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := q.Dequeue(ctx)
	if err != nil || job == nil {
		t.Fatalf("dequeue: job=%v err=%v", job, err)
	}
	if err := q.Complete(ctx, id); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := q.Fail(ctx, *job, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected sink sizes: %+v", stats)
	}
	if stats.High != 0 || stats.Normal != 0 || stats.Low != 0 {
		t.Fatalf("expected empty lanes: %+v", stats)
	}
}

func TestSeenDeduplicates(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t, WithDedupeTTL(time.Minute))

	if q.Seen(ctx, "stripe", "evt_1") {
		t.Fatalf("first delivery must not be seen")
	}
	if !q.Seen(ctx, "stripe", "evt_1") {
		t.Fatalf("second delivery must be seen")
	}
	if q.Seen(ctx, "shopify", "evt_1") {
		t.Fatalf("dedupe keys must be scoped per sender")
	}
	if q.Seen(ctx, "stripe", "") {
		t.Fatalf("empty external id must never dedupe")
	}
}

func TestForgetReleasesDedupeKey(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t, WithDedupeTTL(time.Minute))

	if q.Seen(ctx, "stripe", "evt_1") {
		t.Fatalf("first delivery must not be seen")
	}
	q.Forget(ctx, "stripe", "evt_1")
	if q.Seen(ctx, "stripe", "evt_1") {
		t.Fatalf("delivery after Forget must not be seen")
	}
	if !q.Seen(ctx, "stripe", "evt_1") {
		t.Fatalf("redelivery without Forget must be seen")
	}
}

func TestSeenBestEffortWhenBackendDown(t *testing.T) {
	q := New("accounting", brokenBackend{},
		WithLogger(log.New(io.Discard, "", 0)), WithDedupeTTL(time.Minute))
	if q.Seen(context.Background(), "stripe", "evt_1") {
		t.Fatalf("backend failure must report not-seen")
	}
}

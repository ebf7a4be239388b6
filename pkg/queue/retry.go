package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// RetryManager drains the failed sink back into the normal lane. It is not
// safe to run concurrently from multiple processes; callers bound each drain
// with a limit.
type RetryManager struct {
	queue       *PriorityQueue
	maxAttempts int
	logger      *log.Logger
}

// NewRetryManager creates a retry manager over the queue. maxAttempts of 0
// retries forever; otherwise jobs whose incremented attempt count exceeds it
// are moved to the dead sink instead of re-queued.
func NewRetryManager(q *PriorityQueue, maxAttempts int, logger *log.Logger) *RetryManager {
	if logger == nil {
		logger = log.Default()
	}
	return &RetryManager{queue: q, maxAttempts: maxAttempts, logger: logger}
}

// RetryFailed pops up to limit records from the failed sink and re-enqueues
// each job on the normal lane with its attempt counter incremented. It
// returns the number of jobs re-enqueued.
func (m *RetryManager) RetryFailed(ctx context.Context, limit int) (int, error) {
	count := 0
	for i := 0; i < limit; i++ {
		raw, err := m.queue.backend.PopHead(ctx, m.queue.failedKey())
		if errors.Is(err, ErrEmpty) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		record, err := decodeFailedRecord(raw)
		if err != nil {
			m.logger.Printf("retry skipped undecodable record: %v", err)
			continue
		}
		job := record.Job
		job.Attempts++
		job.Priority = PriorityNormal
		if m.maxAttempts > 0 && job.Attempts > m.maxAttempts {
			if err := m.deadLetter(ctx, job, record.Error); err != nil {
				return count, err
			}
			m.logger.Printf("job dead-lettered job_id=%s type=%s attempts=%d", job.ID, job.Type, job.Attempts)
			continue
		}
		if _, err := m.queue.EnqueueJob(ctx, job); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (m *RetryManager) deadLetter(ctx context.Context, job Job, errMsg string) error {
	raw, err := json.Marshal(FailedJobRecord{Job: job, Error: errMsg})
	if err != nil {
		return fmt.Errorf("encode dead-letter record: %w", err)
	}
	return m.queue.backend.PushTail(ctx, m.queue.deadKey(), raw)
}

func decodeFailedRecord(raw []byte) (FailedJobRecord, error) {
	var record FailedJobRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return FailedJobRecord{}, err
	}
	if record.Job.ID == "" {
		return FailedJobRecord{}, errors.New("failed record is missing a job id")
	}
	return record, nil
}

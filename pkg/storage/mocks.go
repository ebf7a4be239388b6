package storage

import (
	"context"
	"sync"
)

// MockWebhookEventStore is an in-memory WebhookEventStore for tests.
type MockWebhookEventStore struct {
	mu      sync.Mutex
	Records []WebhookEventRecord
	// CreateErr, when set, is returned by CreateWebhookEvent.
	CreateErr error
}

// CreateWebhookEvent appends the record or returns the injected error.
func (m *MockWebhookEventStore) CreateWebhookEvent(_ context.Context, record WebhookEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Records = append(m.Records, record)
	return nil
}

// Count returns the number of stored records.
func (m *MockWebhookEventStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}

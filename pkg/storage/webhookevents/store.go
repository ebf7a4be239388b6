package webhookevents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ledgerhooks/pkg/storage"
)

// Store implements storage.WebhookEventStore on top of GORM. Rows are
// append-only audit records, written before verification.
type Store struct {
	db *gorm.DB
}

type row struct {
	ID          string    `gorm:"column:id;size:64;primaryKey"`
	Source      string    `gorm:"column:source;size:32;not null;index:idx_webhook_events_source_received,priority:1"`
	HeadersJSON string    `gorm:"column:headers_json;type:text"`
	Body        string    `gorm:"column:body;type:text"`
	ReceivedAt  time.Time `gorm:"column:received_at;index:idx_webhook_events_source_received,priority:2,sort:desc"`
}

func (row) TableName() string { return "webhook_events" }

// New creates a webhook event store over a shared database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the webhook events table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&row{})
}

// CreateWebhookEvent inserts one audit record.
func (s *Store) CreateWebhookEvent(ctx context.Context, record storage.WebhookEventRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}
	data := row{
		ID:          record.ID,
		Source:      record.Source,
		HeadersJSON: record.HeadersJSON,
		Body:        record.Body,
		ReceivedAt:  record.ReceivedAt,
	}
	return s.db.WithContext(ctx).Create(&data).Error
}

package storage

import (
	"context"
	"time"
)

// Order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Ledger transaction kinds.
const (
	LedgerKindPayment    = "payment"
	LedgerKindRefund     = "refund"
	LedgerKindCommission = "commission"
)

// Ledger transaction statuses.
const (
	LedgerStatusPending   = "pending"
	LedgerStatusCompleted = "completed"
	LedgerStatusFailed    = "failed"
)

// OrderRecord stores an order mirrored from a commerce platform or created
// by a payment gateway event.
type OrderRecord struct {
	ID         uint
	Source     string
	ExternalID string
	Status     string
	Email      string
	TotalCents int64
	Currency   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LedgerRecord stores a single money movement tied to an order.
type LedgerRecord struct {
	ID          uint
	OrderID     uint
	ExternalID  string
	Gateway     string
	Kind        string
	Status      string
	AmountCents int64
	Currency    string
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// WebhookEventRecord is the append-only audit row written for every inbound
// webhook request, before any verification happens.
type WebhookEventRecord struct {
	ID          string
	Source      string
	HeadersJSON string
	Body        string
	ReceivedAt  time.Time
}

// OrderStore persists orders.
type OrderStore interface {
	UpsertOrder(ctx context.Context, record OrderRecord) (OrderRecord, error)
	GetOrderByExternalID(ctx context.Context, source, externalID string) (*OrderRecord, error)
	UpdateOrderStatus(ctx context.Context, id uint, status string) error
}

// LedgerStore persists ledger transactions and serves aggregates.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, record LedgerRecord) (LedgerRecord, error)
	SumByKind(ctx context.Context, kind, status string, start, end time.Time) (int64, error)
}

// WebhookEventStore persists webhook audit records.
type WebhookEventStore interface {
	CreateWebhookEvent(ctx context.Context, record WebhookEventRecord) error
}

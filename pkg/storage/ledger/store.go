package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ledgerhooks/pkg/storage"
)

// Store implements storage.LedgerStore on top of GORM.
type Store struct {
	db *gorm.DB
}

type row struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     uint      `gorm:"column:order_id;index"`
	ExternalID  string    `gorm:"column:external_id;size:128;not null;uniqueIndex"`
	Gateway     string    `gorm:"column:gateway;size:32;not null;index"`
	Kind        string    `gorm:"column:kind;size:32;not null;index:idx_ledger_kind_status,priority:1"`
	Status      string    `gorm:"column:status;size:32;not null;index:idx_ledger_kind_status,priority:2"`
	AmountCents int64     `gorm:"column:amount_cents;not null"`
	Currency    string    `gorm:"column:currency;size:8;not null;default:'USD'"`
	OccurredAt  time.Time `gorm:"column:occurred_at;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (row) TableName() string { return "ledger_transactions" }

// New creates a ledger store over a shared database handle. The handle may
// be a transaction.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the ledger table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&row{})
}

// CreateTransaction appends one ledger row. External ids are unique, so a
// duplicate gateway transaction fails the insert and rolls back the
// surrounding job transaction.
func (s *Store) CreateTransaction(ctx context.Context, record storage.LedgerRecord) (storage.LedgerRecord, error) {
	if s == nil || s.db == nil {
		return storage.LedgerRecord{}, errors.New("store is not initialized")
	}
	if record.ExternalID == "" {
		return storage.LedgerRecord{}, errors.New("external id is required")
	}
	if record.Kind == "" || record.Status == "" {
		return storage.LedgerRecord{}, errors.New("kind and status are required")
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	data := toRow(record)
	if err := s.db.WithContext(ctx).Create(&data).Error; err != nil {
		return storage.LedgerRecord{}, err
	}
	return fromRow(data), nil
}

// SumByKind returns the total amount for (kind, status) over [start, end).
func (s *Store) SumByKind(ctx context.Context, kind, status string, start, end time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	var total int64
	query := s.db.WithContext(ctx).Model(&row{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("kind = ? AND status = ?", kind, status)
	if !start.IsZero() {
		query = query.Where("occurred_at >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("occurred_at < ?", end)
	}
	if err := query.Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func toRow(record storage.LedgerRecord) row {
	return row{
		ID:          record.ID,
		OrderID:     record.OrderID,
		ExternalID:  record.ExternalID,
		Gateway:     record.Gateway,
		Kind:        record.Kind,
		Status:      record.Status,
		AmountCents: record.AmountCents,
		Currency:    record.Currency,
		OccurredAt:  record.OccurredAt,
		CreatedAt:   record.CreatedAt,
	}
}

func fromRow(data row) storage.LedgerRecord {
	return storage.LedgerRecord{
		ID:          data.ID,
		OrderID:     data.OrderID,
		ExternalID:  data.ExternalID,
		Gateway:     data.Gateway,
		Kind:        data.Kind,
		Status:      data.Status,
		AmountCents: data.AmountCents,
		Currency:    data.Currency,
		OccurredAt:  data.OccurredAt,
		CreatedAt:   data.CreatedAt,
	}
}

package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"ledgerhooks/pkg/storage"
)

// Store implements storage.OrderStore on top of GORM.
type Store struct {
	db *gorm.DB
}

type row struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Source     string    `gorm:"column:source;size:32;not null;index:idx_orders_source_external,unique,priority:1"`
	ExternalID string    `gorm:"column:external_id;size:128;not null;index:idx_orders_source_external,unique,priority:2"`
	Status     string    `gorm:"column:status;size:32;not null;default:'pending';index"`
	Email      string    `gorm:"column:email;size:256"`
	TotalCents int64     `gorm:"column:total_cents;not null;default:0"`
	Currency   string    `gorm:"column:currency;size:8;not null;default:'USD'"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime;index"`
}

func (row) TableName() string { return "orders" }

// New creates an order store over a shared database handle. The handle may
// be a transaction.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the orders table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&row{})
}

// UpsertOrder creates the order or updates its mutable fields, keyed by
// (source, external id).
func (s *Store) UpsertOrder(ctx context.Context, record storage.OrderRecord) (storage.OrderRecord, error) {
	if s == nil || s.db == nil {
		return storage.OrderRecord{}, errors.New("store is not initialized")
	}
	record.Source = strings.TrimSpace(record.Source)
	record.ExternalID = strings.TrimSpace(record.ExternalID)
	if record.Source == "" || record.ExternalID == "" {
		return storage.OrderRecord{}, errors.New("source and external id are required")
	}
	if record.Status == "" {
		record.Status = storage.OrderStatusPending
	}

	var existing row
	err := s.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", record.Source, record.ExternalID).
		First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"status":      record.Status,
			"total_cents": record.TotalCents,
		}
		if record.Email != "" {
			updates["email"] = record.Email
		}
		if record.Currency != "" {
			updates["currency"] = record.Currency
		}
		if err := s.db.WithContext(ctx).Model(&row{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return storage.OrderRecord{}, err
		}
		record.ID = existing.ID
		return record, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		data := toRow(record)
		if err := s.db.WithContext(ctx).Create(&data).Error; err != nil {
			return storage.OrderRecord{}, err
		}
		return fromRow(data), nil
	default:
		return storage.OrderRecord{}, err
	}
}

// GetOrderByExternalID returns the order for (source, external id), or nil
// when no such order exists.
func (s *Store) GetOrderByExternalID(ctx context.Context, source, externalID string) (*storage.OrderRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data row
	err := s.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", strings.TrimSpace(source), strings.TrimSpace(externalID)).
		First(&data).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record := fromRow(data)
	return &record, nil
}

// UpdateOrderStatus sets the order's status.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uint, status string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if status == "" {
		return errors.New("status is required")
	}
	result := s.db.WithContext(ctx).Model(&row{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func toRow(record storage.OrderRecord) row {
	return row{
		ID:         record.ID,
		Source:     record.Source,
		ExternalID: record.ExternalID,
		Status:     record.Status,
		Email:      record.Email,
		TotalCents: record.TotalCents,
		Currency:   record.Currency,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

func fromRow(data row) storage.OrderRecord {
	return storage.OrderRecord{
		ID:         data.ID,
		Source:     data.Source,
		ExternalID: data.ExternalID,
		Status:     data.Status,
		Email:      data.Email,
		TotalCents: data.TotalCents,
		Currency:   data.Currency,
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
	}
}

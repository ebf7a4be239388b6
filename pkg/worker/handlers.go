package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"ledgerhooks/pkg/cache"
	"ledgerhooks/pkg/queue"
	"ledgerhooks/pkg/storage"
	"ledgerhooks/pkg/storage/ledger"
	"ledgerhooks/pkg/storage/orders"
)

// paymentApplied marks the order paid and writes a completed ledger row in
// one transaction. A failure on either side rolls back both.
func (d *Dispatcher) paymentApplied(ctx context.Context, p *queue.PaymentPayload) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		orderStore := orders.New(tx)
		ledgerStore := ledger.New(tx)

		var orderID uint
		if p.OrderID != "" {
			record, err := orderStore.GetOrderByExternalID(ctx, p.Source, p.OrderID)
			if err != nil {
				return err
			}
			if record == nil {
				created, err := orderStore.UpsertOrder(ctx, storage.OrderRecord{
					Source:     p.Source,
					ExternalID: p.OrderID,
					Status:     storage.OrderStatusPaid,
					TotalCents: p.AmountCents,
					Currency:   p.Currency,
				})
				if err != nil {
					return err
				}
				orderID = created.ID
			} else {
				if err := orderStore.UpdateOrderStatus(ctx, record.ID, storage.OrderStatusPaid); err != nil {
					return err
				}
				orderID = record.ID
			}
		}

		_, err := ledgerStore.CreateTransaction(ctx, storage.LedgerRecord{
			OrderID:     orderID,
			ExternalID:  p.TransactionID,
			Gateway:     p.Gateway,
			Kind:        storage.LedgerKindPayment,
			Status:      storage.LedgerStatusCompleted,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("payment_applied: %w", err)
	}
	d.cache.InvalidateNamespace(ctx, cache.Namespace)
	return nil
}

// paymentFailed records the failed attempt in the ledger; the order keeps its
// current status so a later retry from the gateway can still complete it.
func (d *Dispatcher) paymentFailed(ctx context.Context, p *queue.PaymentPayload) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		orderStore := orders.New(tx)
		ledgerStore := ledger.New(tx)

		var orderID uint
		if p.OrderID != "" {
			record, err := orderStore.GetOrderByExternalID(ctx, p.Source, p.OrderID)
			if err != nil {
				return err
			}
			if record != nil {
				orderID = record.ID
			}
		}
		_, err := ledgerStore.CreateTransaction(ctx, storage.LedgerRecord{
			OrderID:     orderID,
			ExternalID:  p.TransactionID,
			Gateway:     p.Gateway,
			Kind:        storage.LedgerKindPayment,
			Status:      storage.LedgerStatusFailed,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("payment_failed: %w", err)
	}
	d.cache.InvalidateNamespace(ctx, cache.Namespace)
	return nil
}

// refundApplied writes a refund ledger row. The refund references the same
// gateway transaction as the payment, so its ledger external id gets a
// refund: prefix to keep the unique index satisfied.
func (d *Dispatcher) refundApplied(ctx context.Context, p *queue.PaymentPayload) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		orderStore := orders.New(tx)
		ledgerStore := ledger.New(tx)

		var orderID uint
		if p.OrderID != "" {
			record, err := orderStore.GetOrderByExternalID(ctx, p.Source, p.OrderID)
			if err != nil {
				return err
			}
			if record != nil {
				orderID = record.ID
			}
		}
		_, err := ledgerStore.CreateTransaction(ctx, storage.LedgerRecord{
			OrderID:     orderID,
			ExternalID:  "refund:" + p.TransactionID,
			Gateway:     p.Gateway,
			Kind:        storage.LedgerKindRefund,
			Status:      storage.LedgerStatusCompleted,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("refund_applied: %w", err)
	}
	d.cache.InvalidateNamespace(ctx, cache.Namespace)
	return nil
}

func (d *Dispatcher) orderSync(ctx context.Context, p *queue.OrderSyncPayload) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		_, err := orders.New(tx).UpsertOrder(ctx, storage.OrderRecord{
			Source:     p.Source,
			ExternalID: p.ExternalID,
			Status:     orderStatusFromSync(p.Status),
			Email:      p.Email,
			TotalCents: p.TotalCents,
			Currency:   p.Currency,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("order_sync: %w", err)
	}
	d.cache.InvalidateNamespace(ctx, cache.Namespace)
	return nil
}

// commission writes a commission ledger row derived from the order total.
// The order must exist already; payment jobs ride the high lane so under
// normal flow it does, and otherwise the retry manager re-runs this job
// after the payment landed.
func (d *Dispatcher) commission(ctx context.Context, p *queue.CommissionPayload) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		orderStore := orders.New(tx)
		record, err := orderStore.GetOrderByExternalID(ctx, p.Source, p.OrderID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("order %s/%s not found", p.Source, p.OrderID)
		}
		rate := p.RateBps
		if rate == 0 {
			rate = d.accounting.CommissionRateBps
		}
		currency := record.Currency
		if currency == "" {
			currency = d.accounting.Currency
		}
		_, err = ledger.New(tx).CreateTransaction(ctx, storage.LedgerRecord{
			OrderID:     record.ID,
			ExternalID:  "commission:" + p.Source + ":" + p.OrderID,
			Gateway:     p.Source,
			Kind:        storage.LedgerKindCommission,
			Status:      storage.LedgerStatusCompleted,
			AmountCents: record.TotalCents * int64(rate) / 10000,
			Currency:    currency,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("commission_calculation: %w", err)
	}
	d.cache.InvalidateNamespace(ctx, cache.Namespace)
	return nil
}

// FinancialReport is the aggregate a financial_report job computes and caches.
type FinancialReport struct {
	ReportType      string    `json:"report_type"`
	Start           time.Time `json:"start,omitempty"`
	End             time.Time `json:"end,omitempty"`
	PaymentCents    int64     `json:"payment_cents"`
	RefundCents     int64     `json:"refund_cents"`
	CommissionCents int64     `json:"commission_cents"`
	NetRevenueCents int64     `json:"net_revenue_cents"`
	GeneratedAt     time.Time `json:"generated_at"`
}

func (d *Dispatcher) financialReport(ctx context.Context, p *queue.FinancialReportPayload) error {
	start, end, err := reportWindow(p.Start, p.End)
	if err != nil {
		return fmt.Errorf("financial_report: %w", err)
	}
	ledgerStore := ledger.New(d.db)
	payments, err := ledgerStore.SumByKind(ctx, storage.LedgerKindPayment, storage.LedgerStatusCompleted, start, end)
	if err != nil {
		return fmt.Errorf("financial_report: %w", err)
	}
	refunds, err := ledgerStore.SumByKind(ctx, storage.LedgerKindRefund, storage.LedgerStatusCompleted, start, end)
	if err != nil {
		return fmt.Errorf("financial_report: %w", err)
	}
	commissions, err := ledgerStore.SumByKind(ctx, storage.LedgerKindCommission, storage.LedgerStatusCompleted, start, end)
	if err != nil {
		return fmt.Errorf("financial_report: %w", err)
	}
	report := FinancialReport{
		ReportType:      p.ReportType,
		Start:           start,
		End:             end,
		PaymentCents:    payments,
		RefundCents:     refunds,
		CommissionCents: commissions,
		NetRevenueCents: payments - refunds - commissions,
		GeneratedAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("financial_report: %w", err)
	}
	d.cache.Set(ctx, cache.Key("report", p.ReportType), data, ttlFromMS(d.ttls.ReportTTLMS))
	balance, err := json.Marshal(map[string]int64{"net_revenue_cents": report.NetRevenueCents})
	if err != nil {
		return fmt.Errorf("financial_report: %w", err)
	}
	d.cache.Set(ctx, cache.Key("balance"), balance, ttlFromMS(d.ttls.BalanceTTLMS))
	return nil
}

// MarketingROI is the result a marketing_roi job computes and caches.
type MarketingROI struct {
	CampaignID   string `json:"campaign_id"`
	SpendCents   int64  `json:"spend_cents"`
	RevenueCents int64  `json:"revenue_cents"`
	ROIBps       int64  `json:"roi_bps"`
}

func (d *Dispatcher) marketingROI(ctx context.Context, p *queue.MarketingROIPayload) error {
	start, end, err := reportWindow(p.Start, p.End)
	if err != nil {
		return fmt.Errorf("marketing_roi: %w", err)
	}
	revenue, err := ledger.New(d.db).SumByKind(ctx, storage.LedgerKindPayment, storage.LedgerStatusCompleted, start, end)
	if err != nil {
		return fmt.Errorf("marketing_roi: %w", err)
	}
	result := MarketingROI{
		CampaignID:   p.CampaignID,
		SpendCents:   p.SpendCents,
		RevenueCents: revenue,
	}
	if p.SpendCents > 0 {
		result.ROIBps = revenue * 10000 / p.SpendCents
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marketing_roi: %w", err)
	}
	d.cache.Set(ctx, cache.Key("marketing", p.CampaignID), data, ttlFromMS(d.ttls.MarketingTTLMS))
	return nil
}

func orderStatusFromSync(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid":
		return storage.OrderStatusPaid
	case "cancelled", "canceled", "voided", "refunded":
		return storage.OrderStatusCancelled
	default:
		return storage.OrderStatusPending
	}
}

func reportWindow(start, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if start != "" {
		from, err = time.Parse(time.RFC3339, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad start %q: %w", start, err)
		}
	}
	if end != "" {
		to, err = time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad end %q: %w", end, err)
		}
	}
	return from, to, nil
}

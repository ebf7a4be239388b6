package webhook

import (
	"context"
	"errors"
	"strings"

	"ledgerhooks/pkg/queue"
)

// RegisterDefaultHandlers wires the sender events this service acts on to
// queue jobs. Payment movements ride the high lane, order mirroring the
// normal lane, marketing analytics the low lane.
func RegisterDefaultHandlers(registry *Registry, q *queue.PriorityQueue) error {
	entries := []struct {
		sender  string
		name    string
		handler HandlerFunc
	}{
		{"stripe", "payment_intent.succeeded", stripePaymentSucceeded(q)},
		{"stripe", "payment_intent.payment_failed", stripePaymentFailed(q)},
		{"stripe", "charge.refunded", stripeChargeRefunded(q)},
		{"shopify", "orders/create", shopifyOrderSync(q, "")},
		{"shopify", "orders/updated", shopifyOrderSync(q, "")},
		{"shopify", "orders/cancelled", shopifyOrderSync(q, "cancelled")},
		{"shopify", "orders/paid", shopifyOrderPaid(q)},
		{"paypal", "payment.completed", paypalPayment(q, queue.JobPaymentApplied)},
		{"paypal", "payment.refunded", paypalPayment(q, queue.JobRefundApplied)},
		{"paypal", "payment.denied", paypalPayment(q, queue.JobPaymentFailed)},
		{"meta", "campaign_result", metaCampaignResult(q)},
		{"meta", "leadgen", metaCampaignResult(q)},
	}
	for _, entry := range entries {
		if err := registry.Register(entry.sender, entry.name, entry.handler); err != nil {
			return err
		}
	}
	return nil
}

func stripePaymentSucceeded(q *queue.PriorityQueue) HandlerFunc {
	return func(ctx context.Context, event Event) error {
		payload := queue.PaymentPayload{
			Source:        "stripe",
			Gateway:       "stripe",
			OrderID:       stringField(event.Data, "data.object.metadata.order_id"),
			TransactionID: stringField(event.Data, "data.object.id"),
			AmountCents:   intField(event.Data, "data.object.amount_received", "data.object.amount"),
			Currency:      strings.ToUpper(stringField(event.Data, "data.object.currency")),
		}
		if payload.TransactionID == "" {
			return errors.New("stripe event has no payment intent id")
		}
		_, err := q.Enqueue(ctx, queue.JobPaymentApplied, payload, queue.PriorityHigh)
		return err
	}
}

func stripePaymentFailed(q *queue.PriorityQueue) HandlerFunc {
	return func(ctx context.Context, event Event) error {
		payload := queue.PaymentPayload{
			Source:        "stripe",
			Gateway:       "stripe",
			OrderID:       stringField(event.Data, "data.object.metadata.order_id"),
			TransactionID: stringField(event.Data, "data.object.id"),
			AmountCents:   intField(event.Data, "data.object.amount"),
			Currency:      strings.ToUpper(stringField(event.Data, "data.object.currency")),
			Reason:        stringField(event.Data, "data.object.last_payment_error.message"),
		}
		if payload.TransactionID == "" {
			return errors.New("stripe event has no payment intent id")
		}
		_, err := q.Enqueue(ctx, queue.JobPaymentFailed, payload, queue.PriorityHigh)
		return err
	}
}

func stripeChargeRefunded(q *queue.PriorityQueue) HandlerFunc {
	return func(ctx context.Context, event Event) error {
		payload := queue.PaymentPayload{
			Source:        "stripe",
			Gateway:       "stripe",
			OrderID:       stringField(event.Data, "data.object.metadata.order_id"),
			TransactionID: stringField(event.Data, "data.object.payment_intent", "data.object.id"),
			AmountCents:   intField(event.Data, "data.object.amount_refunded"),
			Currency:      strings.ToUpper(stringField(event.Data, "data.object.currency")),
		}
		if payload.TransactionID == "" {
			return errors.New("stripe event has no charge id")
		}
		_, err := q.Enqueue(ctx, queue.JobRefundApplied, payload, queue.PriorityHigh)
		return err
	}
}

// shopifyOrderSync mirrors order create/update/cancel deliveries into an
// order_sync job. statusOverride forces the stored status for cancellations,
// where the payload's financial_status lags the topic.
func shopifyOrderSync(q *queue.PriorityQueue, statusOverride string) HandlerFunc {
	return func(ctx context.Context, event Event) error {
		externalID := stringField(event.Data, "id")
		if externalID == "" {
			return errors.New("shopify order has no id")
		}
		status := statusOverride
		if status == "" {
			status = stringField(event.Data, "financial_status")
		}
		payload := queue.OrderSyncPayload{
			Source:     "shopify",
			ExternalID: externalID,
			Status:     status,
			Email:      stringField(event.Data, "email", "customer.email"),
			TotalCents: moneyCents(event.Data, "total_price"),
			Currency:   strings.ToUpper(stringField(event.Data, "currency")),
		}
		_, err := q.Enqueue(ctx, queue.JobOrderSync, payload, queue.PriorityNormal)
		return err
	}
}

// shopifyOrderPaid records the payment on the high lane and queues a
// commission calculation behind it on the normal lane.
func shopifyOrderPaid(q *queue.PriorityQueue) HandlerFunc {
	return func(ctx context.Context, event Event) error {
		orderID := stringField(event.Data, "id")
		if orderID == "" {
			return errors.New("shopify order has no id")
		}
		transactionID := stringField(event.Data, "checkout_id", "checkout_token")
		if transactionID == "" {
			transactionID = "shopify:" + orderID
		}
		payment := queue.PaymentPayload{
			Source:        "shopify",
			Gateway:       "shopify",
			OrderID:       orderID,
			TransactionID: transactionID,
			AmountCents:   moneyCents(event.Data, "total_price"),
			Currency:      strings.ToUpper(stringField(event.Data, "currency")),
		}
		if _, err := q.Enqueue(ctx, queue.JobPaymentApplied, payment, queue.PriorityHigh); err != nil {
			return err
		}
		commission := queue.CommissionPayload{
			Source:  "shopify",
			OrderID: orderID,
		}
		_, err := q.Enqueue(ctx, queue.JobCommission, commission, queue.PriorityNormal)
		return err
	}
}

func paypalPayment(q *queue.PriorityQueue, jobType queue.JobType) HandlerFunc {
	return func(ctx context.Context, event Event) error {
		payload := queue.PaymentPayload{
			Source:        "paypal",
			Gateway:       "paypal",
			OrderID:       stringField(event.Data, "custom", "invoice"),
			TransactionID: stringField(event.Data, "txn_id"),
			AmountCents:   moneyCents(event.Data, "mc_gross"),
			Currency:      strings.ToUpper(stringField(event.Data, "mc_currency")),
			Reason:        stringField(event.Data, "pending_reason", "reason_code"),
		}
		if payload.TransactionID == "" {
			return errors.New("paypal notification has no txn_id")
		}
		if payload.AmountCents < 0 {
			payload.AmountCents = -payload.AmountCents
		}
		_, err := q.Enqueue(ctx, jobType, payload, queue.PriorityHigh)
		return err
	}
}

func metaCampaignResult(q *queue.PriorityQueue) HandlerFunc {
	return func(ctx context.Context, event Event) error {
		payload := queue.MarketingROIPayload{
			CampaignID: stringField(event.Data,
				"entry[0].changes[0].value.campaign_id", "campaign_id"),
			SpendCents: intField(event.Data,
				"entry[0].changes[0].value.spend_cents", "spend_cents"),
			Start: stringField(event.Data, "entry[0].changes[0].value.start", "start"),
			End:   stringField(event.Data, "entry[0].changes[0].value.end", "end"),
		}
		if payload.CampaignID == "" {
			return errors.New("meta change has no campaign id")
		}
		_, err := q.Enqueue(ctx, queue.JobMarketingROI, payload, queue.PriorityLow)
		return err
	}
}

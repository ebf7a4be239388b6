package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority selects the queue lane a job is pushed onto.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// NormalizePriority maps empty or unknown priorities to the normal lane.
func NormalizePriority(p Priority) Priority {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return p
	default:
		return PriorityNormal
	}
}

// JobType identifies the handler a job is dispatched to.
type JobType string

const (
	JobPaymentApplied  JobType = "payment_applied"
	JobPaymentFailed   JobType = "payment_failed"
	JobRefundApplied   JobType = "refund_applied"
	JobOrderSync       JobType = "order_sync"
	JobCommission      JobType = "commission_calculation"
	JobFinancialReport JobType = "financial_report"
	JobMarketingROI    JobType = "marketing_roi"
)

// Job is the envelope stored on the queue backend.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Data      json.RawMessage `json:"data"`
	Priority  Priority        `json:"priority"`
	CreatedAt time.Time       `json:"created_at"`
	Attempts  int             `json:"attempts"`
}

// FailedJobRecord is what the failed sink holds for each failed job.
type FailedJobRecord struct {
	Job      Job       `json:"job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// PaymentPayload carries a gateway payment or refund event.
type PaymentPayload struct {
	Source        string `json:"source"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Gateway       string `json:"gateway"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason,omitempty"`
}

// OrderSyncPayload mirrors an order from a commerce platform.
type OrderSyncPayload struct {
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Email      string `json:"email,omitempty"`
	TotalCents int64  `json:"total_cents"`
	Currency   string `json:"currency"`
}

// CommissionPayload requests a commission calculation for an order.
type CommissionPayload struct {
	Source  string `json:"source"`
	OrderID string `json:"order_id"`
	RateBps int    `json:"rate_bps,omitempty"`
}

// FinancialReportPayload requests an aggregate over a ledger window.
type FinancialReportPayload struct {
	ReportType string `json:"report_type"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// MarketingROIPayload requests return-on-spend for a campaign window.
type MarketingROIPayload struct {
	CampaignID string `json:"campaign_id"`
	SpendCents int64  `json:"spend_cents"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// NewJob wraps a typed payload into a queue envelope.
func NewJob(jobType JobType, payload interface{}, priority Priority) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode job payload: %w", err)
	}
	return Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Data:      data,
		Priority:  NormalizePriority(priority),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodePayload decodes a job's raw data into the payload struct for its
// type, so handlers receive statically-shaped data.
func DecodePayload(job Job) (interface{}, error) {
	decode := func(v interface{}) (interface{}, error) {
		if err := json.Unmarshal(job.Data, v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", job.Type, err)
		}
		return v, nil
	}
	switch job.Type {
	case JobPaymentApplied, JobPaymentFailed, JobRefundApplied:
		return decode(&PaymentPayload{})
	case JobOrderSync:
		return decode(&OrderSyncPayload{})
	case JobCommission:
		return decode(&CommissionPayload{})
	case JobFinancialReport:
		return decode(&FinancialReportPayload{})
	case JobMarketingROI:
		return decode(&MarketingROIPayload{})
	default:
		return nil, fmt.Errorf("unknown job type: %s", job.Type)
	}
}

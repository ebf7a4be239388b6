package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"ledgerhooks/pkg/cache"
	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/queue"
)

// Dispatcher resolves a job type to its handler. It holds the shared database
// handle so every handler can run inside one transaction, and it satisfies
// queue.Executor so the gateway can fall back to it when the queue backend is
// down.
type Dispatcher struct {
	db         *gorm.DB
	cache      *cache.Cache
	accounting core.AccountingConfig
	ttls       core.CacheConfig
	logger     *log.Logger
}

// NewDispatcher creates a dispatcher over the shared database and cache.
func NewDispatcher(db *gorm.DB, eventCache *cache.Cache, cfg core.Config, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		db:         db,
		cache:      eventCache,
		accounting: cfg.Accounting,
		ttls:       cfg.Cache,
		logger:     logger,
	}
}

// Execute runs one job. An unknown job type is an ordinary failure: the job
// lands in the failed sink instead of crashing the loop.
func (d *Dispatcher) Execute(ctx context.Context, job queue.Job) error {
	payload, err := queue.DecodePayload(job)
	if err != nil {
		return err
	}
	switch p := payload.(type) {
	case *queue.PaymentPayload:
		switch job.Type {
		case queue.JobPaymentApplied:
			return d.paymentApplied(ctx, p)
		case queue.JobPaymentFailed:
			return d.paymentFailed(ctx, p)
		default:
			return d.refundApplied(ctx, p)
		}
	case *queue.OrderSyncPayload:
		return d.orderSync(ctx, p)
	case *queue.CommissionPayload:
		return d.commission(ctx, p)
	case *queue.FinancialReportPayload:
		return d.financialReport(ctx, p)
	case *queue.MarketingROIPayload:
		return d.marketingROI(ctx, p)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func ttlFromMS(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

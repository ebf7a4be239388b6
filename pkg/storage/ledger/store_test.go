package ledger

import (
	"context"
	"testing"
	"time"

	"ledgerhooks/pkg/storage"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(storage.Config{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	created, err := store.CreateTransaction(ctx, storage.LedgerRecord{
		OrderID:     1,
		ExternalID:  "pi_1",
		Gateway:     "stripe",
		Kind:        storage.LedgerKindPayment,
		Status:      storage.LedgerStatusCompleted,
		AmountCents: 1999,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || created.OccurredAt.IsZero() {
		t.Fatalf("unexpected record: %+v", created)
	}
}

func TestCreateTransactionRejectsDuplicateExternalID(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	record := storage.LedgerRecord{
		ExternalID:  "pi_1",
		Gateway:     "stripe",
		Kind:        storage.LedgerKindPayment,
		Status:      storage.LedgerStatusCompleted,
		AmountCents: 100,
	}
	if _, err := store.CreateTransaction(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateTransaction(ctx, record); err == nil {
		t.Fatalf("expected unique violation for duplicate external id")
	}
}

func TestSumByKind(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := []storage.LedgerRecord{
		{ExternalID: "p1", Gateway: "stripe", Kind: storage.LedgerKindPayment, Status: storage.LedgerStatusCompleted, AmountCents: 1000, OccurredAt: base},
		{ExternalID: "p2", Gateway: "stripe", Kind: storage.LedgerKindPayment, Status: storage.LedgerStatusCompleted, AmountCents: 500, OccurredAt: base.Add(24 * time.Hour)},
		{ExternalID: "p3", Gateway: "stripe", Kind: storage.LedgerKindPayment, Status: storage.LedgerStatusFailed, AmountCents: 9000, OccurredAt: base},
		{ExternalID: "r1", Gateway: "stripe", Kind: storage.LedgerKindRefund, Status: storage.LedgerStatusCompleted, AmountCents: 250, OccurredAt: base},
		{ExternalID: "p4", Gateway: "stripe", Kind: storage.LedgerKindPayment, Status: storage.LedgerStatusCompleted, AmountCents: 7777, OccurredAt: base.Add(40 * 24 * time.Hour)},
	}
	for _, record := range rows {
		if _, err := store.CreateTransaction(ctx, record); err != nil {
			t.Fatalf("create %s: %v", record.ExternalID, err)
		}
	}

	start := base.Add(-time.Hour)
	end := base.Add(7 * 24 * time.Hour)
	total, err := store.SumByKind(ctx, storage.LedgerKindPayment, storage.LedgerStatusCompleted, start, end)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 1500 {
		t.Fatalf("expected completed payments in window = 1500, got %d", total)
	}

	refunds, err := store.SumByKind(ctx, storage.LedgerKindRefund, storage.LedgerStatusCompleted, start, end)
	if err != nil {
		t.Fatalf("sum refunds: %v", err)
	}
	if refunds != 250 {
		t.Fatalf("expected refunds = 250, got %d", refunds)
	}

	all, err := store.SumByKind(ctx, storage.LedgerKindPayment, storage.LedgerStatusCompleted, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("sum all: %v", err)
	}
	if all != 9277 {
		t.Fatalf("expected unbounded sum = 9277, got %d", all)
	}
}

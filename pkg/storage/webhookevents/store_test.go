package webhookevents

import (
	"context"
	"testing"

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

func TestCreateWebhookEvent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	err := store.CreateWebhookEvent(ctx, storage.WebhookEventRecord{
		Source:      "stripe",
		HeadersJSON: `{"Stripe-Signature":["t=1,v1=abc"]}`,
		Body:        `{"type":"payment_intent.succeeded"}`,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var count int64
	if err := store.db.Table("webhook_events").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 audit row, got %d", count)
	}

	var data row
	if err := store.db.First(&data).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if data.ID == "" || data.ReceivedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp: %+v", data)
	}
	if data.Source != "stripe" {
		t.Fatalf("unexpected source: %q", data.Source)
	}
}

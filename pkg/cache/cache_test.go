package cache

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"
	"time"
)

func testCache() *Cache {
	return New(nil, log.New(io.Discard, "", 0))
}

func TestKey(t *testing.T) {
	if got := Key("financial_report", "profit_loss", "2026-01-01", "2026-01-31"); got != "accounting:financial_report:profit_loss:2026-01-01:2026-01-31" {
		t.Fatalf("unexpected key: %q", got)
	}
	if got := Key("balances"); got != "accounting:balances" {
		t.Fatalf("unexpected key: %q", got)
	}
}

func TestSetThenGet(t *testing.T) {
	ctx := context.Background()
	c := testCache()

	c.Set(ctx, Key("balances"), []byte(`{"total":100}`), time.Minute)
	value, ok := c.Get(ctx, Key("balances"))
	if !ok {
		t.Fatalf("expected cached value")
	}
	if !bytes.Equal(value, []byte(`{"total":100}`)) {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestExpiredEntryIsNotFound(t *testing.T) {
	ctx := context.Background()
	c := testCache()

	c.Set(ctx, Key("balances"), []byte("x"), 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get(ctx, Key("balances")); ok {
		t.Fatalf("expired entry must not be returned")
	}
}

func TestZeroTTLIsIgnored(t *testing.T) {
	ctx := context.Background()
	c := testCache()

	c.Set(ctx, Key("balances"), []byte("x"), 0)
	if _, ok := c.Get(ctx, Key("balances")); ok {
		t.Fatalf("zero ttl must not store anything")
	}
}

func TestInvalidateNamespace(t *testing.T) {
	ctx := context.Background()
	c := testCache()

	c.Set(ctx, Key("financial_report", "profit_loss"), []byte("a"), time.Minute)
	c.Set(ctx, Key("balances"), []byte("b"), time.Minute)
	c.Set(ctx, "inventory:stock", []byte("c"), time.Minute)

	c.InvalidateNamespace(ctx, Namespace)

	if _, ok := c.Get(ctx, Key("financial_report", "profit_loss")); ok {
		t.Fatalf("namespace entry must be invalidated")
	}
	if _, ok := c.Get(ctx, Key("balances")); ok {
		t.Fatalf("namespace entry must be invalidated")
	}
	if _, ok := c.Get(ctx, "inventory:stock"); !ok {
		t.Fatalf("entries outside the namespace must survive")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := testCache()

	c.Set(ctx, Key("balances"), []byte("abc"), time.Minute)
	value, _ := c.Get(ctx, Key("balances"))
	value[0] = 'z'
	again, _ := c.Get(ctx, Key("balances"))
	if !bytes.Equal(again, []byte("abc")) {
		t.Fatalf("cached value must not be mutable by callers, got %s", again)
	}
}

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/queue"
)

const stripeSecret = "whsec_test"

func stripeRequest(body []byte, signature string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if signature != "" {
		r.Header.Set("Stripe-Signature", signature)
	}
	return r
}

func TestStripeHandlerEnqueuesPayment(t *testing.T) {
	opts, q, audit := newTestOptions(t)
	handler := NewStripeHandler(core.SenderConfig{Secret: stripeSecret}, opts)

	body := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_1",
			"amount_received": 1999,
			"currency": "usd",
			"metadata": {"order_id": "order-7"}
		}}
	}`)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, stripeRequest(body, signStripe(stripeSecret, body, time.Now())))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || !resp["received"] {
		t.Fatalf("unexpected response body: %s", w.Body.String())
	}

	jobs := drainJobs(t, q)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.Type != queue.JobPaymentApplied || job.Priority != queue.PriorityHigh {
		t.Fatalf("unexpected job: type=%s priority=%s", job.Type, job.Priority)
	}
	var payload queue.PaymentPayload
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.OrderID != "order-7" || payload.TransactionID != "pi_1" ||
		payload.AmountCents != 1999 || payload.Currency != "USD" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if audit.Count() != 1 {
		t.Fatalf("expected 1 audit row, got %d", audit.Count())
	}
}

func TestStripeHandlerRejectsBadSignature(t *testing.T) {
	opts, q, audit := newTestOptions(t)
	handler := NewStripeHandler(core.SenderConfig{Secret: stripeSecret}, opts)

	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, stripeRequest(body, signStripe("wrong_secret", body, time.Now())))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "signature_invalid") {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}
	if jobs := drainJobs(t, q); len(jobs) != 0 {
		t.Fatalf("expected no jobs after rejection, got %d", len(jobs))
	}
	// The audit trail keeps rejected deliveries too.
	if audit.Count() != 1 {
		t.Fatalf("expected audit row for rejected delivery, got %d", audit.Count())
	}
}

func TestStripeHandlerRejectsMalformedBody(t *testing.T) {
	opts, q, _ := newTestOptions(t)
	handler := NewStripeHandler(core.SenderConfig{Secret: stripeSecret}, opts)

	body := []byte(`{"id": "evt_1",`)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, stripeRequest(body, signStripe(stripeSecret, body, time.Now())))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "malformed_payload") {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}
	if jobs := drainJobs(t, q); len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestStripeHandlerAcknowledgesUnknownEvent(t *testing.T) {
	opts, q, _ := newTestOptions(t)
	handler := NewStripeHandler(core.SenderConfig{Secret: stripeSecret}, opts)

	body := []byte(`{"id":"evt_1","type":"customer.created"}`)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, stripeRequest(body, signStripe(stripeSecret, body, time.Now())))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unhandled event, got %d", w.Code)
	}
	if jobs := drainJobs(t, q); len(jobs) != 0 {
		t.Fatalf("expected no jobs for unhandled event, got %d", len(jobs))
	}
}

func TestStripeHandlerIgnoresDuplicateDelivery(t *testing.T) {
	opts, q, _ := newTestOptions(t)
	handler := NewStripeHandler(core.SenderConfig{Secret: stripeSecret}, opts)

	body := []byte(`{
		"id": "evt_dup",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "amount": 100, "currency": "usd"}}
	}`)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, stripeRequest(body, signStripe(stripeSecret, body, time.Now())))
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, w.Code)
		}
	}
	if jobs := drainJobs(t, q); len(jobs) != 1 {
		t.Fatalf("expected 1 job after duplicate delivery, got %d", len(jobs))
	}
}

func TestStripeHandlerFailureDoesNotDedupeRetry(t *testing.T) {
	opts, q, _ := newTestOptions(t)
	calls := 0
	err := opts.Registry.Register("stripe", "invoice.created", func(context.Context, Event) error {
		calls++
		if calls == 1 {
			return errors.New("downstream unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	handler := NewStripeHandler(core.SenderConfig{Secret: stripeSecret}, opts)

	body := []byte(`{"id":"evt_retry","type":"invoice.created"}`)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, stripeRequest(body, signStripe(stripeSecret, body, time.Now())))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on handler failure, got %d", w.Code)
	}

	// The sender retries the same delivery; it must be processed, not
	// acknowledged as a duplicate of the failed attempt.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, stripeRequest(body, signStripe(stripeSecret, body, time.Now())))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d body=%s", w.Code, w.Body.String())
	}
	if calls != 2 {
		t.Fatalf("expected handler invoked twice, got %d", calls)
	}

	// A third delivery after the successful one is a real duplicate.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, stripeRequest(body, signStripe(stripeSecret, body, time.Now())))
	if w.Code != http.StatusOK || calls != 2 {
		t.Fatalf("expected duplicate acknowledged without handler call, code=%d calls=%d", w.Code, calls)
	}
	if jobs := drainJobs(t, q); len(jobs) != 0 {
		t.Fatalf("expected no jobs from custom handler, got %d", len(jobs))
	}
}

func TestStripeHandlerProcessesWhenAuditWriteFails(t *testing.T) {
	opts, q, audit := newTestOptions(t)
	audit.CreateErr = errors.New("database is locked")
	handler := NewStripeHandler(core.SenderConfig{Secret: stripeSecret}, opts)

	body := []byte(`{
		"id": "evt_audit",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_9", "amount": 500, "currency": "usd"}}
	}`)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, stripeRequest(body, signStripe(stripeSecret, body, time.Now())))

	if w.Code != http.StatusOK {
		t.Fatalf("audit failure must not block processing, got %d body=%s", w.Code, w.Body.String())
	}
	if jobs := drainJobs(t, q); len(jobs) != 1 {
		t.Fatalf("expected 1 job despite audit failure, got %d", len(jobs))
	}
	if audit.Count() != 0 {
		t.Fatalf("expected no audit rows, got %d", audit.Count())
	}
}

func TestStripeHandlerRejectsNonPost(t *testing.T) {
	opts, _, _ := newTestOptions(t)
	handler := NewStripeHandler(core.SenderConfig{Secret: stripeSecret}, opts)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

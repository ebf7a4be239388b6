package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/queue"
)

const paypalSecret = "pp_test"

func paypalRequest(form url.Values, signature string) *http.Request {
	body := form.Encode()
	r := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		r.Header.Set("X-Paypal-Signature", signature)
	}
	return r
}

func TestPaypalHandlerCompletedPayment(t *testing.T) {
	opts, q, _ := newTestOptions(t)
	handler := NewPaypalHandler(core.SenderConfig{Secret: paypalSecret}, opts)

	form := url.Values{}
	form.Set("txn_id", "61E67681CH3238416")
	form.Set("payment_status", "Completed")
	form.Set("mc_gross", "19.95")
	form.Set("mc_currency", "usd")
	form.Set("custom", "order-9")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, paypalRequest(form, signHex(paypalSecret, []byte(form.Encode()))))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	jobs := drainJobs(t, q)
	if len(jobs) != 1 || jobs[0].Type != queue.JobPaymentApplied || jobs[0].Priority != queue.PriorityHigh {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	var payload queue.PaymentPayload
	if err := json.Unmarshal(jobs[0].Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TransactionID != "61E67681CH3238416" || payload.OrderID != "order-9" ||
		payload.AmountCents != 1995 || payload.Currency != "USD" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestPaypalHandlerRefund(t *testing.T) {
	opts, q, _ := newTestOptions(t)
	handler := NewPaypalHandler(core.SenderConfig{Secret: paypalSecret}, opts)

	form := url.Values{}
	form.Set("txn_id", "7XK12345AB")
	form.Set("payment_status", "Refunded")
	form.Set("mc_gross", "-19.95")
	form.Set("mc_currency", "USD")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, paypalRequest(form, signHex(paypalSecret, []byte(form.Encode()))))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	jobs := drainJobs(t, q)
	if len(jobs) != 1 || jobs[0].Type != queue.JobRefundApplied {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	var payload queue.PaymentPayload
	if err := json.Unmarshal(jobs[0].Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.AmountCents != 1995 {
		t.Fatalf("expected refund amount normalized to 1995, got %d", payload.AmountCents)
	}
}

func TestPaypalHandlerRejectsMissingStatus(t *testing.T) {
	opts, q, _ := newTestOptions(t)
	handler := NewPaypalHandler(core.SenderConfig{Secret: paypalSecret}, opts)

	form := url.Values{}
	form.Set("txn_id", "7XK12345AB")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, paypalRequest(form, signHex(paypalSecret, []byte(form.Encode()))))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "malformed_payload") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if jobs := drainJobs(t, q); len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestPaypalHandlerRejectsBadSignature(t *testing.T) {
	opts, q, _ := newTestOptions(t)
	handler := NewPaypalHandler(core.SenderConfig{Secret: paypalSecret}, opts)

	form := url.Values{}
	form.Set("txn_id", "7XK12345AB")
	form.Set("payment_status", "Completed")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, paypalRequest(form, signHex("wrong", []byte(form.Encode()))))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if jobs := drainJobs(t, q); len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

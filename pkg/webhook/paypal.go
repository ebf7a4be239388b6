package webhook

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"ledgerhooks/pkg/core"
)

// PaypalHandler handles PayPal IPN-style notifications. Bodies arrive
// form-encoded; the payment_status field drives the event type.
type PaypalHandler struct {
	secret string
	opts   HandlerOptions
	logger *log.Logger
}

// NewPaypalHandler creates a PayPal webhook handler.
func NewPaypalHandler(cfg core.SenderConfig, opts HandlerOptions) *PaypalHandler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PaypalHandler{secret: cfg.Secret, opts: opts, logger: logger}
}

// ServeHTTP handles an incoming HTTP request.
func (h *PaypalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	reqID := requestID(r)
	w.Header().Set("X-Request-Id", reqID)
	logger := core.WithRequestID(h.logger, reqID)
	ctx := r.Context()

	body, ok := readBody(w, r, h.opts.MaxBodyBytes)
	if !ok {
		return
	}
	auditRequest(ctx, h.opts.AuditStore, logger, "paypal", r.Header, body)

	signature := r.Header.Get("X-Paypal-Signature")
	if !verifyHexSignature(h.secret, body, signature) {
		logger.Printf("paypal signature rejected")
		writeError(w, http.StatusBadRequest, errSignatureInvalid)
		return
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		logger.Printf("paypal parse failed: %v", err)
		writeError(w, http.StatusBadRequest, errMalformedPayload)
		return
	}
	data := make(map[string]interface{}, len(values))
	for key := range values {
		data[key] = values.Get(key)
	}
	status := strings.ToLower(stringField(data, "payment_status"))
	if status == "" {
		logger.Printf("paypal notification has no payment_status")
		writeError(w, http.StatusBadRequest, errMalformedPayload)
		return
	}
	eventName := "payment." + status
	if h.opts.DebugEvents {
		logDebugEvent(logger, "paypal", eventName, body)
	}
	eventID := stringField(data, "txn_id")
	if eventID != "" {
		eventID = eventID + ":" + status
	}
	if h.opts.Queue.Seen(ctx, "paypal", eventID) {
		logger.Printf("duplicate delivery ignored sender=paypal event_id=%s", eventID)
		writeReceived(w)
		return
	}

	h.opts.dispatch(ctx, w, logger, Event{
		Sender:    "paypal",
		Name:      eventName,
		RequestID: reqID,
		Data:      data,
		Raw:       body,
	}, eventID)
}

package webhook

import (
	"log"
	"net/http"
	"time"

	"ledgerhooks/pkg/core"
)

// StripeHandler handles incoming webhooks from Stripe.
type StripeHandler struct {
	secret string
	opts   HandlerOptions
	logger *log.Logger
	now    func() time.Time
}

// NewStripeHandler creates a Stripe webhook handler.
func NewStripeHandler(cfg core.SenderConfig, opts HandlerOptions) *StripeHandler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &StripeHandler{
		secret: cfg.Secret,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// ServeHTTP handles an incoming HTTP request.
func (h *StripeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	auditRequest(ctx, h.opts.AuditStore, logger, "stripe", r.Header, body)

	signature := r.Header.Get("Stripe-Signature")
	if !verifyStripeSignature(h.secret, signature, body, h.now().UTC()) {
		logger.Printf("stripe signature rejected")
		writeError(w, http.StatusBadRequest, errSignatureInvalid)
		return
	}

	data, err := rawObjectFlatten(body)
	if err != nil {
		logger.Printf("stripe parse failed: %v", err)
		writeError(w, http.StatusBadRequest, errMalformedPayload)
		return
	}
	eventName := stringField(data, "type")
	if h.opts.DebugEvents {
		logDebugEvent(logger, "stripe", eventName, body)
	}
	eventID := stringField(data, "id")
	if h.opts.Queue.Seen(ctx, "stripe", eventID) {
		logger.Printf("duplicate delivery ignored sender=stripe event_id=%s", eventID)
		writeReceived(w)
		return
	}

	h.opts.dispatch(ctx, w, logger, Event{
		Sender:    "stripe",
		Name:      eventName,
		RequestID: reqID,
		Data:      data,
		Raw:       body,
	}, eventID)
}

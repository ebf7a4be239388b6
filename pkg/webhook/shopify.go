package webhook

import (
	"log"
	"net/http"

	"ledgerhooks/pkg/core"
)

// ShopifyHandler handles incoming webhooks from Shopify.
type ShopifyHandler struct {
	secret string
	opts   HandlerOptions
	logger *log.Logger
}

// NewShopifyHandler creates a Shopify webhook handler.
func NewShopifyHandler(cfg core.SenderConfig, opts HandlerOptions) *ShopifyHandler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &ShopifyHandler{secret: cfg.Secret, opts: opts, logger: logger}
}

// ServeHTTP handles an incoming HTTP request. The event name comes from the
// X-Shopify-Topic header, not the payload.
func (h *ShopifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	auditRequest(ctx, h.opts.AuditStore, logger, "shopify", r.Header, body)

	signature := r.Header.Get("X-Shopify-Hmac-Sha256")
	if !verifyShopifySignature(h.secret, body, signature) {
		logger.Printf("shopify signature rejected")
		writeError(w, http.StatusBadRequest, errSignatureInvalid)
		return
	}

	data, err := rawObjectFlatten(body)
	if err != nil {
		logger.Printf("shopify parse failed: %v", err)
		writeError(w, http.StatusBadRequest, errMalformedPayload)
		return
	}
	eventName := r.Header.Get("X-Shopify-Topic")
	if domain := r.Header.Get("X-Shopify-Shop-Domain"); domain != "" {
		data["shop_domain"] = domain
	}
	if h.opts.DebugEvents {
		logDebugEvent(logger, "shopify", eventName, body)
	}
	eventID := r.Header.Get("X-Shopify-Webhook-Id")
	if h.opts.Queue.Seen(ctx, "shopify", eventID) {
		logger.Printf("duplicate delivery ignored sender=shopify event_id=%s", eventID)
		writeReceived(w)
		return
	}

	h.opts.dispatch(ctx, w, logger, Event{
		Sender:    "shopify",
		Name:      eventName,
		RequestID: reqID,
		Data:      data,
		Raw:       body,
	}, eventID)
}

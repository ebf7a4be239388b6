package webhook

import (
	"crypto/subtle"
	"log"
	"net/http"

	"ledgerhooks/pkg/core"
)

// MetaHandler handles Meta (Graph API) webhooks: the GET subscription
// challenge and POSTed change notifications.
type MetaHandler struct {
	secret      string
	verifyToken string
	opts        HandlerOptions
	logger      *log.Logger
}

// NewMetaHandler creates a Meta webhook handler.
func NewMetaHandler(cfg core.SenderConfig, opts HandlerOptions) *MetaHandler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &MetaHandler{
		secret:      cfg.Secret,
		verifyToken: cfg.VerifyToken,
		opts:        opts,
		logger:      logger,
	}
}

// ServeHTTP handles an incoming HTTP request.
func (h *MetaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serveChallenge(w, r)
	case http.MethodPost:
		h.serveEvent(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// serveChallenge answers the subscription handshake: when the verify token
// matches, the challenge value is echoed back verbatim.
func (h *MetaHandler) serveChallenge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	token := query.Get("hub.verify_token")
	if token == "" {
		token = query.Get("verify_token")
	}
	challenge := query.Get("hub.challenge")
	if challenge == "" {
		challenge = query.Get("challenge")
	}
	if h.verifyToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		h.logger.Printf("meta verify token rejected")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(challenge))
}

func (h *MetaHandler) serveEvent(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	w.Header().Set("X-Request-Id", reqID)
	logger := core.WithRequestID(h.logger, reqID)
	ctx := r.Context()

	body, ok := readBody(w, r, h.opts.MaxBodyBytes)
	if !ok {
		return
	}
	auditRequest(ctx, h.opts.AuditStore, logger, "meta", r.Header, body)

	signature := r.Header.Get("X-Hub-Signature-256")
	if !verifyMetaSignature(h.secret, signature, body) {
		logger.Printf("meta signature rejected")
		writeError(w, http.StatusForbidden, errSignatureInvalid)
		return
	}

	data, err := rawObjectFlatten(body)
	if err != nil {
		logger.Printf("meta parse failed: %v", err)
		writeError(w, http.StatusBadRequest, errMalformedPayload)
		return
	}
	eventName := stringField(data, "entry[0].changes[0].field", "event")
	if h.opts.DebugEvents {
		logDebugEvent(logger, "meta", eventName, body)
	}
	eventID := stringField(data, "entry[0].id")
	if h.opts.Queue.Seen(ctx, "meta", eventID) {
		logger.Printf("duplicate delivery ignored sender=meta event_id=%s", eventID)
		writeReceived(w)
		return
	}

	h.opts.dispatch(ctx, w, logger, Event{
		Sender:    "meta",
		Name:      eventName,
		RequestID: reqID,
		Data:      data,
		Raw:       body,
	}, eventID)
}

package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/queue"
	"ledgerhooks/pkg/storage"
)

const (
	errSignatureInvalid = "signature_invalid"
	errMalformedPayload = "malformed_payload"
	errInternal         = "internal server error"
)

// HandlerOptions holds dependencies shared by all sender handlers.
type HandlerOptions struct {
	Logger       *log.Logger
	MaxBodyBytes int64
	DebugEvents  bool
	Queue        *queue.PriorityQueue
	Registry     *Registry
	AuditStore   storage.WebhookEventStore
}

// Event is what a registered handler receives after verification and decode.
type Event struct {
	Sender    string
	Name      string
	RequestID string
	Data      map[string]interface{}
	Raw       []byte
}

// HandlerFunc converts a verified event into jobs (or other side effects).
type HandlerFunc func(ctx context.Context, event Event) error

func requestID(r *http.Request) string {
	if r == nil {
		return uuid.NewString()
	}
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Correlation-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeReceived(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// readBody drains the request body under the configured cap. A false return
// means the response has already been written.
func readBody(w http.ResponseWriter, r *http.Request, maxBody int64) ([]byte, bool) {
	if maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedPayload)
		return nil, false
	}
	return body, true
}

// auditRequest records the raw delivery before any verification runs, so
// rejected and accepted requests alike leave a trace. Failures only log.
func auditRequest(ctx context.Context, store storage.WebhookEventStore, logger *log.Logger, source string, header http.Header, body []byte) {
	if store == nil {
		return
	}
	headers, err := json.Marshal(header)
	if err != nil {
		headers = []byte("{}")
	}
	record := storage.WebhookEventRecord{
		Source:      source,
		HeadersJSON: string(headers),
		Body:        string(body),
	}
	if err := store.CreateWebhookEvent(ctx, record); err != nil && logger != nil {
		logger.Printf("audit write failed source=%s err=%v", source, err)
	}
}

// rawObjectFlatten unmarshals a JSON body and flattens nested objects into
// dotted paths for handler field access.
func rawObjectFlatten(raw []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return core.Flatten(out), nil
}

// dispatch routes a verified event through the registry. Unhandled events are
// acknowledged so senders can add event types without breaking deliveries.
// A handler failure releases the event's dedupe mark before the 500 goes out,
// so the sender's retry is processed instead of swallowed as a duplicate.
func (opts HandlerOptions) dispatch(ctx context.Context, w http.ResponseWriter, logger *log.Logger, event Event, eventID string) {
	handler, ok := opts.Registry.Lookup(event.Sender, event.Name)
	if !ok {
		logger.Printf("event unhandled sender=%s name=%s", event.Sender, event.Name)
		writeReceived(w)
		return
	}
	if err := handler(ctx, event); err != nil {
		logger.Printf("event handler failed sender=%s name=%s err=%v", event.Sender, event.Name, err)
		opts.Queue.Forget(ctx, event.Sender, eventID)
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	logger.Printf("event accepted sender=%s name=%s", event.Sender, event.Name)
	writeReceived(w)
}

func logDebugEvent(logger *log.Logger, sender, name string, body []byte) {
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("debug event sender=%s name=%s payload=%s", sender, name, string(body))
}

func stringField(data map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		value, ok := data[key]
		if !ok || value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
			continue
		}
		if f, ok := value.(float64); ok {
			if f == float64(int64(f)) {
				return strconv.FormatInt(int64(f), 10)
			}
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		if s := strings.TrimSpace(fmt.Sprintf("%v", value)); s != "" {
			return s
		}
	}
	return ""
}

func intField(data map[string]interface{}, keys ...string) int64 {
	for _, key := range keys {
		value, ok := data[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func roundCents(f float64) int64 {
	if f < 0 {
		return int64(f*100 - 0.5)
	}
	return int64(f*100 + 0.5)
}

// moneyCents parses decimal money strings like "19.99" (and plain numbers)
// into integer cents.
func moneyCents(data map[string]interface{}, keys ...string) int64 {
	for _, key := range keys {
		value, ok := data[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case float64:
			return roundCents(v)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			return roundCents(f)
		}
	}
	return 0
}

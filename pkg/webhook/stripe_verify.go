package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const stripeTimestampTolerance = 5 * time.Minute

// verifyStripeSignature checks a `t=<unix>,v1=<hex>` header against
// HMAC-SHA256 of "<t>.<body>". Timestamps outside the tolerance window are
// rejected even when the digest matches, which caps replay exposure. Any
// missing input fails closed.
func verifyStripeSignature(secret, header string, body []byte, now time.Time) bool {
	if secret == "" || header == "" || len(body) == 0 {
		return false
	}
	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return false
	}
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	when := time.Unix(seconds, 0)
	if now.Sub(when) > stripeTimestampTolerance || when.Sub(now) > stripeTimestampTolerance {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return true
		}
	}
	return false
}

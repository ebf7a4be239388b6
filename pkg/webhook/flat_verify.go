package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// verifyShopifySignature checks the base64 HMAC-SHA256 digest Shopify sends
// in X-Shopify-Hmac-Sha256 against the raw body. Fails closed on any
// missing input.
func verifyShopifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || len(body) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// verifyHexSignature checks a flat hex HMAC-SHA256 digest over the raw body.
func verifyHexSignature(secret string, body []byte, signature string) bool {
	if secret == "" || len(body) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// verifyMetaSignature checks a `sha256=<hex>` X-Hub-Signature-256 header.
// Headers without the prefix are rejected.
func verifyMetaSignature(secret, signature string, body []byte) bool {
	value := strings.TrimSpace(signature)
	if !strings.HasPrefix(value, "sha256=") {
		return false
	}
	return verifyHexSignature(secret, body, strings.TrimPrefix(value, "sha256="))
}

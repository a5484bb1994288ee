package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenerateSignedPayload generates a signed notification payload with HMAC-SHA256 signature
// Returns the JSON payload, signature header value, timestamp, and any error
func GenerateSignedPayload(secret string, notification Notification) (payload []byte, signature string, timestamp int64, err error) {
	payload, err = json.Marshal(notification)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to marshal notification: %w", err)
	}

	timestamp = time.Now().Unix()

	// Signature payload: {timestamp}.{saga_id}.{json_body}
	// This format allows receivers to verify:
	// 1. The timestamp to prevent replay attacks
	// 2. The saga ID for deduplication
	// 3. The entire payload integrity
	signaturePayload := fmt.Sprintf("%d.%s.%s", timestamp, notification.SagaID, string(payload))

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(signaturePayload))
	signatureBytes := h.Sum(nil)

	// Format: "sha256=<hex_signature>"
	signature = "sha256=" + hex.EncodeToString(signatureBytes)

	return payload, signature, timestamp, nil
}

// VerifySignature checks a signature produced by GenerateSignedPayload.
// Receivers use this to authenticate incoming notifications.
func VerifySignature(secret, signature string, timestamp int64, sagaID string, payload []byte) bool {
	signaturePayload := fmt.Sprintf("%d.%s.%s", timestamp, sagaID, string(payload))
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(signaturePayload))
	expected := "sha256=" + hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

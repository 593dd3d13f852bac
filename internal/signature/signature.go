package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Sign computes the hex HMAC-SHA256 of "{timestampMillis}.{payload}" with the
// destination secret. The timestamp is part of the signed material so
// receivers can reject replayed deliveries by checking X-Webhook-Timestamp
// against their own clock.
func Sign(secret string, timestampMillis int64, payload []byte) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMillis, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)

	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time. Exported for
// receiver-side verification in integration tests and integrator tooling.
func Verify(secret string, timestampMillis int64, payload []byte, signatureHex string) bool {
	expected, err := Sign(secret, timestampMillis, payload)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}

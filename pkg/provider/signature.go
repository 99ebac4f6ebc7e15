package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// replayWindow bounds how old a timestamped webhook may be.
const replayWindow = 5 * time.Minute

// hmacSHA256 computes the raw HMAC-SHA256 of msg under secret.
func hmacSHA256(secret string, msg []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return mac.Sum(nil)
}

// verifyHexHMAC checks a hex-encoded HMAC-SHA256 signature over body in
// constant time.
func verifyHexHMAC(secret, signature string, body []byte) error {
	if secret == "" {
		return fmt.Errorf("%w: no signing secret configured", ErrBadSignature)
	}
	if signature == "" {
		return fmt.Errorf("%w: missing signature header", ErrBadSignature)
	}
	want := hex.EncodeToString(hmacSHA256(secret, body))
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// verifyTimestampedHMAC checks a base64-encoded HMAC-SHA256 signature over
// "method\npath\ntimestamp\nbody" and rejects timestamps outside the replay
// window. Timestamps are unix seconds.
func verifyTimestampedHMAC(secret, signature, timestamp, method, path string, body []byte, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: no signing secret configured", ErrBadSignature)
	}
	if signature == "" || timestamp == "" {
		return fmt.Errorf("%w: missing signature headers", ErrBadSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrBadSignature)
	}
	drift := now.Sub(time.Unix(ts, 0))
	if drift < -replayWindow || drift > replayWindow {
		return fmt.Errorf("%w: timestamp outside replay window", ErrBadSignature)
	}

	msg := fmt.Sprintf("%s\n%s\n%s\n%s", method, path, timestamp, body)
	want := base64.StdEncoding.EncodeToString(hmacSHA256(secret, []byte(msg)))
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// SignHexHMAC produces the hex HMAC-SHA256 signature providers A and B put
// on webhook deliveries. Exported for tests and local webhook simulation.
func SignHexHMAC(secret string, body []byte) string {
	return hex.EncodeToString(hmacSHA256(secret, body))
}

// SignTimestampedHMAC produces provider C's base64 signature over
// method, path, timestamp and body.
func SignTimestampedHMAC(secret, method, path string, timestamp int64, body []byte) string {
	msg := fmt.Sprintf("%s\n%s\n%d\n%s", method, path, timestamp, body)
	return base64.StdEncoding.EncodeToString(hmacSHA256(secret, []byte(msg)))
}

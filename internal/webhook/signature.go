package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

// Sign returns the signature header value for body.
func Sign(secret []byte, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against an HMAC-SHA256 of the raw request body. It
// must be given the bytes exactly as received.
func Verify(secret []byte, body []byte, header string) bool {
	if len(secret) == 0 || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(header)))
}

// VerifyChallenge answers the platform's subscription handshake.
func VerifyChallenge(mode string, token string, challenge string, verifyToken string) (string, bool) {
	if mode != "subscribe" || verifyToken == "" || challenge == "" {
		return "", false
	}
	if !hmac.Equal([]byte(token), []byte(verifyToken)) {
		return "", false
	}
	return challenge, true
}

// Fingerprint identifies a delivery in logs.
func Fingerprint(body []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(body))
}

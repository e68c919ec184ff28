package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-inbox/core"
)

const SignatureHeader = "X-Signature"

// HMACVerifier checks lowercase hex HMAC-SHA256 signatures over the raw body.
// The secret is captured at construction; an empty secret rejects everything.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier keeps the secret bytes as given. A blank secret leaves the
// verifier unconfigured.
func NewHMACVerifier(secret string) HMACVerifier {
	if strings.TrimSpace(secret) == "" {
		return HMACVerifier{}
	}
	return HMACVerifier{secret: []byte(secret)}
}

func (v HMACVerifier) Configured() bool {
	return len(v.secret) > 0
}

func (v HMACVerifier) Verify(body []byte, signature string) bool {
	if !v.Configured() {
		return false
	}
	if signature == "" {
		return false
	}
	expected := Sign(v.secret, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Sign returns the lowercase hex HMAC-SHA256 of body under secret.
func Sign(secret []byte, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ core.SignatureVerifier = HMACVerifier{}

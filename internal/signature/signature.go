// internal/signature/signature.go

// Package signature decides the authenticity of inbound webhook payloads.
//
// The gateway delivers one of two signature envelopes depending on
// deployment: a plain HMAC-SHA256 hex digest of the raw body, or a
// multi-signature header of version,signature pairs over
// "<id>.<timestamp>.<body>". Verification tries every supported scheme
// and accepts on the first match.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Aux header names for the multi-signature envelope.
const (
	HeaderWebhookID        = "webhook-id"
	HeaderWebhookTimestamp = "webhook-timestamp"
)

// Verify reports whether header is a valid signature of payload under
// secret. It never panics and returns false on any malformed input.
func Verify(payload []byte, header string, aux map[string]string, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	if verifyHexDigest(payload, header, secret) {
		return true
	}
	return verifyMultiSignature(payload, header, aux, secret)
}

// verifyHexDigest checks a single HMAC-SHA256 hex digest of the raw
// payload, with an optional "sha256=" algorithm prefix.
func verifyHexDigest(payload []byte, header, secret string) bool {
	received := strings.TrimPrefix(header, "sha256=")

	decoded, err := hex.DecodeString(received)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	// hmac.Equal is constant time.
	return hmac.Equal(decoded, mac.Sum(nil))
}

// verifyMultiSignature checks a space-separated list of
// "version,signature" candidates where the signed string is
// "<webhook-id>.<webhook-timestamp>.<payload>" and the digest is
// base64-encoded HMAC-SHA256. Any matching candidate accepts.
func verifyMultiSignature(payload []byte, header string, aux map[string]string, secret string) bool {
	msgID, ok := auxHeader(aux, HeaderWebhookID)
	if !ok {
		return false
	}
	timestamp, ok := auxHeader(aux, HeaderWebhookTimestamp)
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(header) {
		parts := strings.SplitN(candidate, ",", 2)
		if len(parts) != 2 {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return true
		}
	}

	return false
}

func auxHeader(aux map[string]string, name string) (string, bool) {
	for k, v := range aux {
		if strings.EqualFold(k, name) && v != "" {
			return v, true
		}
	}
	return "", false
}

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"
)

// SignatureHeader carries Dojah's HMAC of the raw request body.
const SignatureHeader = "x-dojah-signature"

// SignatureVerifier checks webhook signatures against the shared Dojah secret.
// Dojah signs with HMAC-SHA512; HMAC-SHA256 is accepted for sandbox apps that
// sign with it. All comparisons are constant time.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a verifier. An empty secret rejects everything.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(strings.TrimSpace(secret))}
}

// Verify reports whether header is a valid signature of body. The header may
// hold one or more comma-separated signatures, hex or base64 encoded, optionally
// prefixed with "sha512=" or "sha256=".
func (v *SignatureVerifier) Verify(header string, body []byte) bool {
	if len(v.secret) == 0 {
		return false
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}

	sha512Sum := computeHMAC(sha512.New, v.secret, body)
	sha256Sum := computeHMAC(sha256.New, v.secret, body)

	for _, part := range strings.Split(header, ",") {
		sig := strings.TrimSpace(part)
		lower := strings.ToLower(sig)

		expected := [][]byte{sha512Sum, sha256Sum}
		switch {
		case strings.HasPrefix(lower, "sha512="):
			sig = strings.TrimSpace(sig[len("sha512="):])
			expected = [][]byte{sha512Sum}
		case strings.HasPrefix(lower, "sha256="):
			sig = strings.TrimSpace(sig[len("sha256="):])
			expected = [][]byte{sha256Sum}
		}

		for _, provided := range decodeSignature(sig) {
			for _, want := range expected {
				if hmac.Equal(provided, want) {
					return true
				}
			}
		}
	}
	return false
}

func computeHMAC(h func() hash.Hash, secret, body []byte) []byte {
	mac := hmac.New(h, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

func decodeSignature(sig string) [][]byte {
	var out [][]byte
	if decoded, err := hex.DecodeString(sig); err == nil {
		out = append(out, decoded)
	}
	if decoded, err := base64.StdEncoding.DecodeString(sig); err == nil {
		out = append(out, decoded)
	}
	return out
}

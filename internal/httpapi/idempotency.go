package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const idempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 255

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// validIdempotencyKey accepts printable ASCII keys up to maxIdempotencyKeyLen.
func validIdempotencyKey(k string) bool {
	if k == "" || len(k) > maxIdempotencyKeyLen {
		return false
	}
	return !strings.ContainsFunc(k, func(r rune) bool { return r < 0x21 || r > 0x7e })
}

package server

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// newID2 synthesizes the 64-character base62 x-amz-id-2 value.
func newID2() string {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a fixed marker rather than aborting the response.
		return strings.Repeat("0", 64)
	}
	for i, b := range buf {
		buf[i] = base62Alphabet[int(b)%len(base62Alphabet)]
	}
	return string(buf[:])
}

// newRequestID synthesizes the 16-character hex x-amz-request-id value.
func newRequestID() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:16]
}

// Package fortresscrypto implements the deterministic authenticated
// encryption used for every fortress encryption operation, the key
// derivation pipeline, and the on-disk container format.
package fortresscrypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
)

// hmac512 computes HMAC-SHA-512(key, data...) over the concatenation of the
// given chunks. Output is 64 bytes.
func hmac512(key []byte, data ...[]byte) []byte {
	mac := hmac.New(sha512.New, key)
	for _, d := range data {
		mac.Write(d)
	}
	return mac.Sum(nil)
}

// hmac512Trunc256 is HMAC-SHA-512 truncated to its leading 32 bytes.
// Note this is plain truncation, not HMAC-SHA-512/256 with its own IV.
func hmac512Trunc256(key []byte, data ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], hmac512(key, data...)[:32])
	return out
}

// checksum512Trunc256 is SHA-512 truncated to its leading 32 bytes.
func checksum512Trunc256(data ...[]byte) [32]byte {
	h := sha512.New()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil)[:32])
	return out
}

// ctEqual compares two byte slices in constant time.
func ctEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// RandBytes fills a fresh slice of length n from the CSRNG.
// The system CSRNG never fails on supported platforms.
func RandBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

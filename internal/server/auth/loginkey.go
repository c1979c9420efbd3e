package auth

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HashLoginKey derives the stored verifier for a login key. The pepper is a
// server-side secret, so a dumped users table alone cannot confirm key
// guesses.
func HashLoginKey(loginKey, pepper []byte) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write(loginKey)
	return mac.Sum(nil)
}

// VerifyLoginKey compares a presented key against the stored verifier in
// constant time.
func VerifyLoginKey(loginKey, pepper, storedHash []byte) bool {
	return hmac.Equal(HashLoginKey(loginKey, pepper), storedHash)
}

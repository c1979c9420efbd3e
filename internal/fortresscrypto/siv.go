package fortresscrypto

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

const (
	// SIVSize is the size of a synthetic initialization vector in bytes.
	SIVSize = 32

	hmacKeySize = 128

	// SivEncryptionKeysSize is the raw size of a SivEncryptionKeys pair.
	SivEncryptionKeysSize = hmacKeySize * 2
)

// SIV is a synthetic initialization vector. It is the MAC over
// (aad, plaintext) and doubles as the cipher nonce, so the same inputs
// always encrypt to the same bytes.
type SIV [SIVSize]byte

func (s SIV) String() string {
	return hex.EncodeToString(s[:])
}

// SivEncryptionKeys hold the two independent keys of the SIV construction.
type SivEncryptionKeys struct {
	// sivKey MACs (aad, plaintext) to produce the SIV.
	sivKey [hmacKeySize]byte
	// cipherKey keys the stream cipher.
	cipherKey [hmacKeySize]byte
}

// NewSivEncryptionKeys builds keys from 256 bytes of keying material,
// split into sivKey and cipherKey.
func NewSivEncryptionKeys(raw []byte) (*SivEncryptionKeys, error) {
	if len(raw) != SivEncryptionKeysSize {
		return nil, fmt.Errorf("siv keys must be %d bytes, got %d", SivEncryptionKeysSize, len(raw))
	}
	keys := &SivEncryptionKeys{}
	copy(keys.sivKey[:], raw[:hmacKeySize])
	copy(keys.cipherKey[:], raw[hmacKeySize:])
	return keys, nil
}

// Encrypt deterministically encrypts plaintext, authenticating both aad and
// plaintext. The same (keys, aad, plaintext) always yields the same output.
func (k *SivEncryptionKeys) Encrypt(aad, plaintext []byte) (SIV, []byte) {
	siv := k.calculateSIV(aad, plaintext)
	ciphertext := k.cipher(siv, plaintext)
	return siv, ciphertext
}

// Decrypt reverses Encrypt, verifying the SIV in constant time.
// Returns ErrDecryptionFailed if siv, aad, or ciphertext were altered.
func (k *SivEncryptionKeys) Decrypt(aad []byte, siv SIV, ciphertext []byte) ([]byte, error) {
	plaintext := k.cipher(siv, ciphertext)
	expected := k.calculateSIV(aad, plaintext)
	if !ctEqual(siv[:], expected[:]) {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// cipher encrypts or decrypts data under the combination of cipherKey and
// nonce. A per-message key and nonce are derived with
// HMAC-SHA-512(cipherKey, nonce) and split at 32 bytes; ChaCha20 consumes
// the first 12 bytes of the derived nonce.
func (k *SivEncryptionKeys) cipher(nonce SIV, data []byte) []byte {
	derived := hmac512(k.cipherKey[:], nonce[:])
	chachaKey, chachaNonce := derived[:32], derived[32:][:chacha20.NonceSize]

	c, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// calculateSIV computes HMAC-SHA-512-256(sivKey, encode(aad, plaintext)).
func (k *SivEncryptionKeys) calculateSIV(aad, plaintext []byte) SIV {
	return hmac512Trunc256(k.sivKey[:], encode(aad, plaintext))
}

// encode maps (a, b) to a || b || le64(len(a)) || le64(len(b)). The trailing
// length prefixes make the encoding injective even when len(a)+len(b)
// collides, so distinct (aad, plaintext) pairs never share a SIV input.
func encode(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b)+16)
	out = append(out, a...)
	out = append(out, b...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(a)))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(b)))
	return out
}

// MarshalJSON encodes the keys as a single lowercase hex string so cached
// key suites serialize deterministically.
func (k SivEncryptionKeys) MarshalJSON() ([]byte, error) {
	raw := make([]byte, 0, SivEncryptionKeysSize)
	raw = append(raw, k.sivKey[:]...)
	raw = append(raw, k.cipherKey[:]...)
	return json.Marshal(hex.EncodeToString(raw))
}

func (k *SivEncryptionKeys) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	keys, err := NewSivEncryptionKeys(raw)
	if err != nil {
		return err
	}
	*k = *keys
	return nil
}

// Equal reports whether two key pairs are identical, in constant time.
func (k *SivEncryptionKeys) Equal(other *SivEncryptionKeys) bool {
	return ctEqual(k.sivKey[:], other.sivKey[:]) && ctEqual(k.cipherKey[:], other.cipherKey[:])
}

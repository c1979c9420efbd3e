package fortresscrypto

import (
	"bytes"
	"compress/gzip"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/pbkdf2"
)

// Version 1 containers are read-only. The layout is the NUL-terminated
// magic, scrypt parameters, a 32-byte scrypt salt, a 32-byte pbkdf2 salt,
// the ciphertext, a 32-byte HMAC-SHA-256 tag over everything preceding it,
// and a 32-byte SHA-256 checksum over everything preceding that.
// The plaintext is gzip-compressed JSON.
const legacyKdfHeaderSize = 1 + 4 + 4 + 32 + 32

func decryptV1(filedata, passphrase []byte) ([]byte, error) {
	body, trailer, err := splitChecksum(filedata)
	if err != nil {
		return nil, err
	}
	computed := sha256.Sum256(body)
	if !ctEqual(trailer, computed[:]) {
		return nil, ErrBadChecksum
	}

	if len(body) < len(magicV1)+legacyKdfHeaderSize+32 {
		return nil, ErrTruncatedData
	}
	rest := body[len(magicV1):]

	logN := rest[0]
	r := binary.LittleEndian.Uint32(rest[1:5])
	p := binary.LittleEndian.Uint32(rest[5:9])
	scryptSalt := rest[9:41]
	pbkdf2Salt := rest[41:73]
	ciphertext := rest[legacyKdfHeaderSize : len(rest)-32]
	macTag := rest[len(rest)-32:]

	masterKey, err := passphraseDerive(scryptSalt, passphrase, logN, r, p, 32)
	if err != nil {
		return nil, err
	}

	// One pbkdf2 iteration spreads the master key into the cipher and MAC
	// keys; the work factor lives entirely in scrypt.
	keying := pbkdf2.Key(masterKey, pbkdf2Salt, 1, 32+8+32, sha256.New)
	chachaKey := keying[:32]
	chachaNonce := keying[32:40]
	hmacKey := keying[40:72]

	expectedMac := legacyHmac256(hmacKey, body[:len(body)-32])
	if !ctEqual(macTag, expectedMac) {
		return nil, ErrDecryptionFailed
	}

	compressed, err := legacyChaCha20(chachaKey, chachaNonce, ciphertext)
	if err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: bad gzip payload", ErrBadChecksum)
	}
	plaintext, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad gzip payload", ErrBadChecksum)
	}
	return plaintext, nil
}

func legacyHmac256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// legacyChaCha20 runs ChaCha20 with the original 8-byte nonce. The 8-byte
// nonce variant with a 64-bit counter produces the same keystream as the
// 12-byte variant with a zero-prefixed nonce while the block counter stays
// below 2^32, which a container payload cannot exceed.
func legacyChaCha20(key, nonce8, data []byte) ([]byte, error) {
	nonce := make([]byte, chacha20.NonceSize)
	copy(nonce[4:], nonce8)

	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

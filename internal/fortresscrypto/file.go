package fortresscrypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magicV2 = "fortress2\x00"
	magicV1 = "fortress1-scrypt-chacha20\x00"

	checksumSize = 32

	// logN + r + p + salt, immediately after the magic.
	kdfHeaderSize = 1 + 4 + 4 + 32
)

// EncryptToFile writes a version 2 container: NUL-terminated magic, scrypt
// parameters, salt, SIV, ciphertext, and a trailing SHA-512-256 checksum
// over everything preceding it.
func EncryptToFile(w io.Writer, payload []byte, suite *FileKeySuite) error {
	siv, ciphertext := suite.encryptPayload(payload)

	header := make([]byte, 0, len(magicV2)+kdfHeaderSize)
	header = append(header, magicV2...)
	header = append(header, suite.Params.LogN)
	header = binary.LittleEndian.AppendUint32(header, suite.Params.R)
	header = binary.LittleEndian.AppendUint32(header, suite.Params.P)
	header = append(header, suite.Params.Salt[:]...)

	checksum := checksum512Trunc256(header, siv[:], ciphertext)

	for _, chunk := range [][]byte{header, siv[:], ciphertext, checksum[:]} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// DecryptFromFile reads a container and decrypts it with the given
// passphrase. For a version 2 container it also returns the FileKeySuite
// that was derived, so the caller can re-encrypt without re-running the KDF.
// For a legacy version 1 container the suite is nil; the caller must derive
// fresh parameters before the next save.
func DecryptFromFile(r io.Reader, passphrase []byte) ([]byte, *FileKeySuite, error) {
	filedata, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	nul := bytes.IndexByte(filedata, 0)
	if nul < 0 {
		return nil, nil, ErrTruncatedData
	}

	switch magic := string(filedata[:nul+1]); magic {
	case magicV2:
		return decryptV2(filedata, passphrase)
	case magicV1:
		plaintext, err := decryptV1(filedata, passphrase)
		return plaintext, nil, err
	default:
		if bytes.HasPrefix(filedata, []byte("fortress")) {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, magic)
		}
		return nil, nil, ErrUnknownMagic
	}
}

func decryptV2(filedata, passphrase []byte) ([]byte, *FileKeySuite, error) {
	body, trailer, err := splitChecksum(filedata)
	if err != nil {
		return nil, nil, err
	}
	computed := checksum512Trunc256(body)
	if !ctEqual(trailer, computed[:]) {
		return nil, nil, ErrBadChecksum
	}

	if len(body) < len(magicV2)+kdfHeaderSize+SIVSize {
		return nil, nil, ErrTruncatedData
	}
	rest := body[len(magicV2):]

	params := FileKdfParameters{LogN: rest[0]}
	params.R = binary.LittleEndian.Uint32(rest[1:5])
	params.P = binary.LittleEndian.Uint32(rest[5:9])
	copy(params.Salt[:], rest[9:9+32])

	var siv SIV
	copy(siv[:], rest[kdfHeaderSize:kdfHeaderSize+SIVSize])
	payload := rest[kdfHeaderSize+SIVSize:]

	suite, err := DeriveFileKeySuite(passphrase, params)
	if err != nil {
		return nil, nil, err
	}

	plaintext, err := suite.decryptPayload(siv, payload)
	if err != nil {
		return nil, nil, err
	}
	return plaintext, suite, nil
}

// splitChecksum separates the trailing 32-byte checksum from the body.
func splitChecksum(filedata []byte) (body, checksum []byte, err error) {
	if len(filedata) < checksumSize {
		return nil, nil, ErrTruncatedData
	}
	cut := len(filedata) - checksumSize
	return filedata[:cut], filedata[cut:], nil
}

package fortresscrypto

import "errors"

var (
	// ErrDecryptionFailed means the SIV or MAC did not verify. The usual
	// cause is a wrong passphrase.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrBadChecksum means the container checksum did not match its contents.
	ErrBadChecksum = errors.New("bad checksum")

	// ErrTruncatedData means the container is too short to parse.
	ErrTruncatedData = errors.New("truncated data")

	// ErrUnsupportedVersion means the container magic was recognized but
	// names a version we do not handle.
	ErrUnsupportedVersion = errors.New("unsupported container version")

	// ErrUnknownMagic means the file does not look like a fortress container.
	ErrUnknownMagic = errors.New("unknown container magic")

	ErrBadScryptParameters = errors.New("bad scrypt parameters")
)

// Package fortress implements the encrypted password database: an
// append-only object model of directories and entries, deterministic
// merging, and synchronization with an untrusted remote object store.
package fortress

import "errors"

var (
	// ErrWrongPassphrase means authentication failed with the supplied
	// passphrase. Non-fatal; the user can retry.
	ErrWrongPassphrase = errors.New("wrong passphrase")

	// ErrCorruption means the container or its payload is damaged. The
	// database should be restored from a backup.
	ErrCorruption = errors.New("database is corrupt")

	// ErrUnsupportedVersion means the container was written by an
	// incompatible version.
	ErrUnsupportedVersion = errors.New("unsupported database version")

	// ErrInvalidInput means a caller-supplied value failed validation
	// before any event was appended.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransportFailure means a network call failed; sync is retryable.
	ErrTransportFailure = errors.New("transport failure")

	// ErrServerRejected means the server refused authentication or
	// authorization.
	ErrServerRejected = errors.New("server rejected request")
)

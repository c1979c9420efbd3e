// Package storage persists encrypted objects for the sync API. The server
// never sees plaintext; rows hold opaque (siv, ciphertext) pairs keyed by
// account and object id.
package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUserNotFound = errors.New("user not found")
)

// StoredObject is one line of an account's inventory.
type StoredObject struct {
	ObjectId []byte
	Siv      []byte
}

// Repository is the persistence surface of the sync server.
type Repository interface {
	// CreateUser registers an account verifier. Creating an existing user
	// is an error.
	CreateUser(ctx context.Context, loginId, loginKeyHash []byte) error

	// GetUserKeyHash returns the stored verifier, or ErrUserNotFound.
	GetUserKeyHash(ctx context.Context, loginId []byte) ([]byte, error)

	// ListObjects returns the account's full (object id, siv) inventory.
	ListObjects(ctx context.Context, loginId []byte) ([]StoredObject, error)

	// GetObject returns one object's siv and ciphertext, or ErrNotFound.
	GetObject(ctx context.Context, loginId, objectId []byte) ([]byte, []byte, error)

	// PutObject inserts or replaces one object.
	PutObject(ctx context.Context, loginId, objectId, siv, ciphertext []byte) error

	// Close releases the underlying connections.
	Close()
}

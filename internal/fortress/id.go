package fortress

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/fortress/internal/fortresscrypto"
)

// IDSize is the size of an object identifier in bytes.
const IDSize = 32

// ID identifies a Directory or Entry. Rendered as 64 lowercase hex
// characters. The root directory is the all-zero ID.
type ID [IDSize]byte

// RootID is the well-known ID of the root directory.
var RootID = ID{}

// NewID returns a fresh random ID.
func NewID() ID {
	var id ID
	copy(id[:], fortresscrypto.RandBytes(IDSize))
	return id
}

// ParseID decodes 64 lowercase hex characters.
func ParseID(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != IDSize {
		return id, fmt.Errorf("%w: malformed id %q", ErrInvalidInput, s)
	}
	copy(id[:], raw)
	return id, nil
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Less orders IDs lexically over their raw bytes.
func (id ID) Less(other ID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

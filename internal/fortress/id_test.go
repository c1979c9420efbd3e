package fortress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDHexRoundTrip(t *testing.T) {
	id := NewID()
	s := id.String()
	assert.Len(t, s, 64)
	assert.Equal(t, strings.ToLower(s), s)

	parsed, err := ParseID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseIDInvalid(t *testing.T) {
	for _, s := range []string{"", "00", "zz", strings.Repeat("0", 63), strings.Repeat("g", 64)} {
		_, err := ParseID(s)
		assert.ErrorIs(t, err, ErrInvalidInput, s)
	}
}

func TestRootIDIsZero(t *testing.T) {
	assert.Equal(t, strings.Repeat("0", 64), RootID.String())
}

func TestNewIDUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}

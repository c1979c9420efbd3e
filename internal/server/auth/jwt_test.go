package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("secret")

	token, err := GenerateToken("abcd1234", secret, time.Minute)
	require.NoError(t, err)

	loginId, err := GetLoginIdFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "abcd1234", loginId)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("abcd1234", []byte("secret"), time.Minute)
	require.NoError(t, err)

	_, err = GetLoginIdFromToken(token, []byte("other"))
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	token, err := GenerateToken("abcd1234", []byte("secret"), -time.Minute)
	require.NoError(t, err)

	_, err = GetLoginIdFromToken(token, []byte("secret"))
	assert.Error(t, err)
}

func TestHashLoginKey(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	pepper := []byte("pepper")

	hash := HashLoginKey(key, pepper)
	assert.True(t, VerifyLoginKey(key, pepper, hash))
	assert.False(t, VerifyLoginKey([]byte("wrong key material here........."), pepper, hash))
	assert.False(t, VerifyLoginKey(key, []byte("other pepper"), hash))
}

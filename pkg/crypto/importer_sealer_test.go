package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("not-32-bytes")
	require.NoError(t, err)

	sealed, err := s.Seal("oauth-token-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "oauth-token-secret", sealed)

	again, err := s.Seal("oauth-token-secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce is random")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "oauth-token-secret", opened)
}

func TestSealer_Empty(t *testing.T) {
	s, err := NewSealer("k")
	require.NoError(t, err)

	sealed, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := s.Open("")
	require.NoError(t, err)
	assert.Empty(t, opened)

	_, err = NewSealer("")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestSealer_RejectsTampering(t *testing.T) {
	a, _ := NewSealer("key-a")
	b, _ := NewSealer("key-b")

	sealed, err := a.Seal("secret")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = a.Open("!!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = a.Open("c2hvcnQ")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSealer_AllFields(t *testing.T) {
	s, _ := NewSealer("key")
	token, secret := "t", "s"

	require.NoError(t, s.SealAll(&token, &secret))
	assert.NotEqual(t, "t", token)

	require.NoError(t, s.OpenAll(&token, &secret))
	assert.Equal(t, "t", token)
	assert.Equal(t, "s", secret)
}

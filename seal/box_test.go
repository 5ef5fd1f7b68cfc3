package seal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)

	plaintext := []byte(`{"tenderID":"abc-123","status":"complete"}`)

	sealed, err := Seal(pub, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := Open(priv, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	pub, _, err := GenerateKeypair()
	require.NoError(t, err)

	plaintext := []byte("same input twice")
	first, err := Seal(pub, plaintext)
	require.NoError(t, err)
	second, err := Seal(pub, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "each seal must use a fresh ephemeral key and nonce")
}

func TestSealRejectsShortRecipientKey(t *testing.T) {
	_, err := Seal([]byte("too-short"), []byte("data"))
	assert.ErrorIs(t, err, ErrInvalidRecipientKey)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	pub, _, err := GenerateKeypair()
	require.NoError(t, err)
	_, wrongPriv, err := GenerateKeypair()
	require.NoError(t, err)

	sealed, err := Seal(pub, []byte("secret payload"))
	require.NoError(t, err)

	_, err = Open(wrongPriv, sealed)
	assert.Error(t, err)
}

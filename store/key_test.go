package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobKey(t *testing.T) {
	key, err := BlobKey("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400/e29b/41d4/a716/446655440000", key)
}

func TestBlobKeyRejectsNonUUID(t *testing.T) {
	_, err := BlobKey("not-a-uuid")
	assert.Error(t, err)
}

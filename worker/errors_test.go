package worker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openprocurement/archivarius-bridge/db"
)

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, isUnauthorized(&db.CouchDBError{StatusCode: 401}))
	assert.True(t, isUnauthorized(&db.CouchDBError{StatusCode: 403}))
	assert.False(t, isUnauthorized(&db.CouchDBError{StatusCode: 404}))
	assert.False(t, isUnauthorized(errors.New("boom")))
}
